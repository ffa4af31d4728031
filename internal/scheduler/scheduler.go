/*
Package scheduler drives the frame loop from a host's refresh signal.

The Scheduler never sleeps or runs its own timer. Each tick asks the
RefreshHost for exactly one more frame callback, so cadence follows the host
(a display refresh, a paced ticker, or a test feeding frames by hand) and
stops the moment the host stops calling back.
*/
package scheduler

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	applog "kaleido/internal/log"
)

var slog = applog.New("scheduler")

// State is the lifecycle state of a Scheduler.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// RefreshHost delivers one-shot frame callbacks. RequestFrame must not run
// the callback synchronously. CancelFrame with an unknown or already fired
// id is a no-op.
type RefreshHost interface {
	RequestFrame(cb func()) uint64
	CancelFrame(id uint64)
}

// Clock returns monotonic time in seconds.
type Clock func() float64

// TickFunc renders one frame at time t, in seconds.
type TickFunc func(t float64)

// MonotonicClock returns a Clock measuring seconds since the call.
func MonotonicClock() Clock {
	start := time.Now()
	return func() float64 {
		return time.Since(start).Seconds()
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the default monotonic clock, typically with a
// synthetic one in tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// Scheduler runs a TickFunc once per host frame while Running.
type Scheduler struct {
	host  RefreshHost
	tick  TickFunc
	clock Clock

	mu      sync.Mutex
	state   State
	gen     uint64 // Bumped on every Start and Stop; older callbacks are stale.
	pending uint64
	last    float64
	started bool

	frames atomic.Uint64
}

// New returns an idle scheduler.
func New(host RefreshHost, tick TickFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		host:  host,
		tick:  tick,
		clock: MonotonicClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the tick chain. Calling it while running does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return
	}
	s.state = Running
	s.gen++
	s.request()
	slog.Debugf("started")
}

// Stop cancels the pending frame and returns to Idle. It is safe to call at
// any time, including from inside a tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle {
		return
	}
	s.state = Idle
	s.gen++
	s.host.CancelFrame(s.pending)
	s.pending = 0
	slog.Debugf("stopped after %d frames", s.frames.Load())
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames returns the number of ticks run so far.
func (s *Scheduler) Frames() uint64 {
	return s.frames.Load()
}

// request asks the host for the next frame. Caller holds s.mu.
func (s *Scheduler) request() {
	gen := s.gen
	s.pending = s.host.RequestFrame(func() { s.onFrame(gen) })
}

func (s *Scheduler) onFrame(gen uint64) {
	s.mu.Lock()
	if s.state != Running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.pending = 0
	t := s.now()
	s.mu.Unlock()

	s.tick(t)
	s.frames.Add(1)

	s.mu.Lock()
	if s.state == Running && gen == s.gen {
		s.request()
	}
	s.mu.Unlock()
}

// now reads the clock, nudging it forward when it fails to advance so tick
// times are strictly increasing. Caller holds s.mu.
func (s *Scheduler) now() float64 {
	t := s.clock()
	if s.started && !(t > s.last) {
		t = math.Nextafter(s.last, math.Inf(1))
	}
	s.last, s.started = t, true
	return t
}
