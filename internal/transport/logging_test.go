package transport

import (
	"bytes"
	"os"
	"strings"
	"testing"

	applog "kaleido/internal/log"
)

func TestLoggingTransportSamples(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	applog.SetLevel(applog.LevelDebug)
	t.Cleanup(func() {
		applog.SetLevel(applog.LevelInfo)
		applog.SetOutput(os.Stderr)
	})

	lt := NewLoggingTransport(3)
	for i := range 7 {
		if err := lt.Send(Message{Type: MessageBands, Data: i}); err != nil {
			t.Fatalf("Send returned %v", err)
		}
	}

	if got := lt.Count(); got != 7 {
		t.Errorf("Count() = %d, want 7", got)
	}
	// Messages 1, 4 and 7 are logged.
	if got := strings.Count(buf.String(), `"type":"bands"`); got != 3 {
		t.Errorf("logged %d messages, want 3\n%s", got, buf.String())
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

func TestLoggingTransportSilentAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	applog.SetLevel(applog.LevelWarn)
	t.Cleanup(func() {
		applog.SetLevel(applog.LevelInfo)
		applog.SetOutput(os.Stderr)
	})

	lt := NewLoggingTransport(0)
	_ = lt.Send(Message{Type: MessageTempo})
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	if lt.Count() != 1 {
		t.Errorf("Count() = %d, want 1", lt.Count())
	}
}
