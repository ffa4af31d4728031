package transport

import (
	"encoding/json"
	"sync/atomic"

	applog "kaleido/internal/log"
)

var llog = applog.New("transport")

// LoggingTransport implements the Transport interface by logging data at
// debug level. It stands in for the WebSocket transport when that is
// disabled, so the pipeline always has somewhere to publish.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
}

// NewLoggingTransport logs one message out of every `every` (at least 1).
func NewLoggingTransport(every int) *LoggingTransport {
	llog.Infof("using LoggingTransport (1 in %d messages)", max(1, every))
	return &LoggingTransport{every: uint64(max(1, every))}
}

// Send logs the received data as JSON.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.count.Add(1)
	if (n-1)%lt.every != 0 || !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		llog.Debugf("#%d (%T): %+v (marshal error: %v)", n, data, data, err)
		return nil
	}
	llog.Debugf("#%d %s", n, payload)
	return nil
}

// Count returns the number of messages received.
func (lt *LoggingTransport) Count() uint64 {
	return lt.count.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	llog.Debugf("close after %d messages", lt.count.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
