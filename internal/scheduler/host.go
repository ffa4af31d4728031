package scheduler

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// VSyncHost emulates a display refresh for headless rendering: a paced
// goroutine fires the pending one-shot callbacks on each refresh edge.
// While Visible reports false, edges are skipped and callbacks wait, the
// way a browser throttles frames for a hidden page.
type VSyncHost struct {
	interval time.Duration
	visible  func() bool

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]func()

	skipped atomic.Uint64
	edges   atomic.Uint64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewVSyncHost starts a host refreshing refreshRate times per second.
// visible may be nil, meaning always visible.
func NewVSyncHost(refreshRate int, visible func() bool) *VSyncHost {
	if refreshRate <= 0 {
		refreshRate = 60
	}
	h := &VSyncHost{
		interval: time.Second / time.Duration(refreshRate),
		visible:  visible,
		pending:  make(map[uint64]func()),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

// RequestFrame queues cb for the next visible refresh edge.
func (h *VSyncHost) RequestFrame(cb func()) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.pending[h.nextID] = cb
	return h.nextID
}

// CancelFrame drops a queued callback.
func (h *VSyncHost) CancelFrame(id uint64) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}

// Interval returns the time between refresh edges.
func (h *VSyncHost) Interval() time.Duration {
	return h.interval
}

// Skipped returns how many edges were skipped while hidden.
func (h *VSyncHost) Skipped() uint64 {
	return h.skipped.Load()
}

// Edges returns how many edges fired callbacks.
func (h *VSyncHost) Edges() uint64 {
	return h.edges.Load()
}

// Close stops the refresh goroutine and waits for it. Pending callbacks are
// dropped.
func (h *VSyncHost) Close() {
	h.once.Do(func() {
		close(h.stop)
		<-h.done
	})
}

func (h *VSyncHost) run() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if h.visible != nil && !h.visible() {
				h.skipped.Add(1)
				continue
			}
			h.fire()
		}
	}
}

// fire runs the callbacks queued before this edge. Callbacks requested
// while firing wait for the next edge.
func (h *VSyncHost) fire() {
	h.mu.Lock()
	if len(h.pending) == 0 {
		h.mu.Unlock()
		return
	}
	batch := h.pending
	h.pending = make(map[uint64]func(), len(batch))
	h.mu.Unlock()

	h.edges.Add(1)
	for _, id := range slices.Sorted(maps.Keys(batch)) {
		batch[id]()
	}
}

// ManualHost queues callbacks until Fire is called. It stands in for a
// display in tests and offline rendering.
type ManualHost struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]func()
}

// NewManualHost returns an empty ManualHost.
func NewManualHost() *ManualHost {
	return &ManualHost{pending: make(map[uint64]func())}
}

// RequestFrame queues cb.
func (h *ManualHost) RequestFrame(cb func()) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.pending[h.nextID] = cb
	return h.nextID
}

// CancelFrame drops a queued callback.
func (h *ManualHost) CancelFrame(id uint64) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}

// Pending returns the number of queued callbacks.
func (h *ManualHost) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Fire runs every callback queued so far, oldest first, and returns how many
// ran.
func (h *ManualHost) Fire() int {
	h.mu.Lock()
	batch := h.pending
	h.pending = make(map[uint64]func())
	h.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(batch)) {
		batch[id]()
	}
	return len(batch)
}
