// SPDX-License-Identifier: MIT
package controls

import (
	"sync/atomic"
)

// Store publishes Controls snapshots. Load is wait-free; writers retry a
// compare-and-swap so concurrent edits never lose each other's fields.
type Store struct {
	current atomic.Pointer[Controls]
	version atomic.Uint64
}

// NewStore returns a store holding the clamped initial value.
func NewStore(initial Controls) *Store {
	s := &Store{}
	c := initial.Clamped()
	s.current.Store(&c)
	return s
}

// Load returns the current snapshot. The returned value is a copy; later
// writes never change it.
func (s *Store) Load() Controls {
	return *s.current.Load()
}

// Version increments on every successful write.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Update applies fn to a copy of the current snapshot, clamps the result and
// publishes it. fn may be called more than once under contention and must
// not have side effects.
func (s *Store) Update(fn func(*Controls)) Controls {
	for {
		old := s.current.Load()
		next := *old
		fn(&next)
		next = next.Clamped()
		if s.current.CompareAndSwap(old, &next) {
			s.version.Add(1)
			return next
		}
	}
}

// Set writes a single field.
func (s *Store) Set(f Field, v float64) (Controls, error) {
	if _, ok := ranges[f]; !ok {
		return s.Load(), unknownField(f)
	}
	return s.Update(func(c *Controls) {
		// Field is known, With cannot fail.
		*c, _ = c.With(f, v)
	}), nil
}

// Step moves a field by n steps of its range (the terminal panel's arrow
// keys). AutoSpin toggles regardless of n.
func (s *Store) Step(f Field, n int) (Controls, error) {
	r, ok := ranges[f]
	if !ok {
		return s.Load(), unknownField(f)
	}
	return s.Update(func(c *Controls) {
		if f == FieldAutoSpin {
			c.AutoSpin = !c.AutoSpin
			return
		}
		v, _ := c.Get(f)
		next := v + float64(n)*r.Step
		if !r.Wrap {
			next = clampRange(next, r)
		}
		*c, _ = c.With(f, next)
	}), nil
}

// Replace publishes c (clamped) as the new snapshot.
func (s *Store) Replace(c Controls) Controls {
	return s.Update(func(cur *Controls) { *cur = c })
}
