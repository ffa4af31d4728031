/*
Package tempo estimates a beat from tapped timestamps and turns it into
rotation and segment settings.

Taps are kept in a small FIFO. Old taps are not discarded by age unless
ResetAfter is set, so a long pause before a tap skews the next estimate.
*/
package tempo

import (
	"math"
	"sync"
	"time"

	"kaleido/internal/controls"
	applog "kaleido/internal/log"
)

// HistorySize is the number of taps averaged.
const HistorySize = 8

// Mapping from BPM to controls.
const (
	rotationPerBPM = 1.0 / 140
	minRotation    = 0.02
	maxRotation    = 2
	segmentsPerBPM = 1.0 / 8
	minSegments    = 6
	maxSegments    = 24
)

var tlog = applog.New("tempo")

// Estimate is the result of one tap once at least two taps are known.
type Estimate struct {
	Interval      time.Duration `json:"interval"`
	BPM           float64       `json:"bpm"`
	RotationSpeed float64       `json:"rotationSpeed"`
	SegmentCount  int           `json:"segments"`
}

// FromInterval derives an estimate from a mean inter-tap interval. It
// reports false for non-positive intervals.
func FromInterval(avg time.Duration) (Estimate, bool) {
	ms := float64(avg) / float64(time.Millisecond)
	if !(ms > 0) {
		return Estimate{}, false
	}
	bpm := 60000 / ms
	return Estimate{
		Interval:      avg,
		BPM:           bpm,
		RotationSpeed: math.Min(maxRotation, math.Max(minRotation, bpm*rotationPerBPM)),
		SegmentCount:  int(math.Round(math.Min(maxSegments, math.Max(minSegments, bpm*segmentsPerBPM)))),
	}, true
}

// Estimator records taps and writes the derived tempo into a control store.
type Estimator struct {
	store *controls.Store
	clock func() time.Duration

	// ResetAfter clears the history before a tap that follows the previous
	// one by more than this gap. Zero keeps every tap.
	ResetAfter time.Duration

	mu      sync.Mutex
	history []time.Duration
}

// NewEstimator returns an estimator writing into store. store may be nil, in
// which case estimates are only returned.
func NewEstimator(store *controls.Store) *Estimator {
	start := time.Now()
	return &Estimator{
		store:   store,
		clock:   func() time.Duration { return time.Since(start) },
		history: make([]time.Duration, 0, HistorySize),
	}
}

// SetClock replaces the clock used by RecordNow.
func (e *Estimator) SetClock(clock func() time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if clock != nil {
		e.clock = clock
	}
}

// RecordNow records a tap at the current clock time.
func (e *Estimator) RecordNow() (Estimate, bool) {
	e.mu.Lock()
	ts := e.clock()
	e.mu.Unlock()
	return e.Record(ts)
}

// Record adds a tap at ts. With two or more taps it returns the estimate and
// applies it to the store; a single tap only fills the history.
func (e *Estimator) Record(ts time.Duration) (Estimate, bool) {
	e.mu.Lock()
	if n := len(e.history); e.ResetAfter > 0 && n > 0 && ts-e.history[n-1] > e.ResetAfter {
		tlog.Debugf("gap of %v exceeds %v, clearing %d taps", ts-e.history[n-1], e.ResetAfter, n)
		e.history = e.history[:0]
	}
	if len(e.history) == HistorySize {
		copy(e.history, e.history[1:])
		e.history = e.history[:HistorySize-1]
	}
	e.history = append(e.history, ts)

	n := len(e.history)
	if n < 2 {
		e.mu.Unlock()
		return Estimate{}, false
	}
	// The mean of successive intervals telescopes to span / count.
	avg := (e.history[n-1] - e.history[0]) / time.Duration(n-1)
	e.mu.Unlock()

	est, ok := FromInterval(avg)
	if !ok {
		return Estimate{}, false
	}
	if e.store != nil {
		e.store.Update(func(c *controls.Controls) {
			c.RotationSpeed = est.RotationSpeed
			c.SegmentCount = est.SegmentCount
		})
	}
	tlog.Debugf("%.1f BPM from %d taps (rotation %.3f, %d segments)", est.BPM, n, est.RotationSpeed, est.SegmentCount)
	return est, true
}

// History returns a copy of the recorded taps, oldest first.
func (e *Estimator) History() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]time.Duration, len(e.history))
	copy(out, e.history)
	return out
}

// Reset forgets every tap.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.history = e.history[:0]
	e.mu.Unlock()
}
