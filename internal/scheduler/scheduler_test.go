package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leakyHost never cancels, so stale callbacks still fire.
type leakyHost struct {
	*ManualHost
}

func (leakyHost) CancelFrame(uint64) {}

func steppedClock(step float64) Clock {
	var t float64
	return func() float64 {
		t += step
		return t
	}
}

func TestStartIsIdempotent(t *testing.T) {
	host := NewManualHost()
	var ticks int
	s := New(host, func(float64) { ticks++ }, WithClock(steppedClock(1.0/60)))

	s.Start()
	s.Start()
	assert.Equal(t, Running, s.State())
	assert.Equal(t, 1, host.Pending(), "a second Start must not open a second chain")

	for range 10 {
		host.Fire()
	}
	assert.Equal(t, 10, ticks)
	assert.Equal(t, uint64(10), s.Frames())
	assert.Equal(t, 1, host.Pending())
}

func TestStopCancelsPendingFrame(t *testing.T) {
	host := NewManualHost()
	var ticks int
	s := New(host, func(float64) { ticks++ })

	s.Stop() // Idle stop is a no-op.
	assert.Equal(t, Idle, s.State())

	s.Start()
	host.Fire()
	s.Stop()
	s.Stop()

	assert.Equal(t, Idle, s.State())
	assert.Zero(t, host.Pending(), "no orphaned frame request after Stop")
	assert.Zero(t, host.Fire())
	assert.Equal(t, 1, ticks)
}

func TestStaleCallbackIsIgnored(t *testing.T) {
	host := leakyHost{NewManualHost()}
	var ticks int
	s := New(host, func(float64) { ticks++ })

	s.Start()
	s.Stop()
	s.Start()
	require.Equal(t, 2, host.Pending())

	host.Fire()
	assert.Equal(t, 1, ticks, "only the current chain ticks")
	assert.Equal(t, 1, host.Pending())
}

func TestTickTimesStrictlyIncrease(t *testing.T) {
	host := NewManualHost()
	var times []float64
	frozen := func() float64 { return 2.5 }
	s := New(host, func(t float64) { times = append(times, t) }, WithClock(frozen))

	s.Start()
	for range 5 {
		host.Fire()
	}

	require.Len(t, times, 5)
	assert.Equal(t, 2.5, times[0])
	for i := 1; i < len(times); i++ {
		assert.Greater(t, times[i], times[i-1])
	}
}

func TestStopFromInsideTick(t *testing.T) {
	host := NewManualHost()
	var s *Scheduler
	var ticks int
	s = New(host, func(float64) {
		ticks++
		if ticks == 3 {
			s.Stop()
		}
	})

	s.Start()
	for range 5 {
		host.Fire()
	}
	assert.Equal(t, 3, ticks)
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, host.Pending())
}

func TestRestartContinuesClock(t *testing.T) {
	host := NewManualHost()
	var times []float64
	s := New(host, func(t float64) { times = append(times, t) }, WithClock(steppedClock(0.5)))

	s.Start()
	host.Fire()
	s.Stop()
	s.Start()
	host.Fire()

	assert.Equal(t, []float64{0.5, 1.0}, times)
}

func TestVSyncHostDrivesScheduler(t *testing.T) {
	host := NewVSyncHost(500, nil)
	defer host.Close()

	s := New(host, func(float64) {})
	s.Start()
	assert.Eventually(t, func() bool { return s.Frames() >= 5 }, 2*time.Second, time.Millisecond)

	s.Stop()
	stopped := s.Frames()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, s.Frames(), "no ticks after Stop")
}

func TestVSyncHostSkipsWhileHidden(t *testing.T) {
	var mu sync.Mutex
	visible := false
	host := NewVSyncHost(500, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return visible
	})
	defer host.Close()

	s := New(host, func(float64) {})
	s.Start()

	assert.Eventually(t, func() bool { return host.Skipped() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Zero(t, s.Frames(), "hidden surface gets no frames")

	mu.Lock()
	visible = true
	mu.Unlock()
	assert.Eventually(t, func() bool { return s.Frames() >= 2 }, 2*time.Second, time.Millisecond)
	s.Stop()
}

func TestVSyncHostCloseIsIdempotent(t *testing.T) {
	host := NewVSyncHost(0, nil)
	assert.Equal(t, time.Second/60, host.Interval())
	host.Close()
	host.Close()
}
