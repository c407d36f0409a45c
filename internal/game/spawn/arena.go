// Package spawn owns live actors: generational slot storage, the
// death/linger/despawn/respawn lifecycle, and boss status persistence.
package spawn

import (
	"errors"
	"fmt"
)

// ErrStaleHandle is returned when a Handle refers to a removed or reused slot.
var ErrStaleHandle = errors.New("spawn: stale handle")

// Handle addresses one occupant of an Arena slot.
//
// A Handle stays valid until its occupant is removed; afterwards the slot's
// generation moves on and the Handle is rejected even if the slot is reused.
// The zero Handle is never valid.
type Handle struct {
	Index      uint32
	Generation uint32
}

func (h Handle) String() string { return fmt.Sprintf("%d@%d", h.Index, h.Generation) }

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena stores values in reusable slots with O(1) insert and removal.
//
// Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// NewArena returns an empty Arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v and returns its Handle.
//
// Postcondition: reuses a free slot when one exists.
func (a *Arena[T]) Insert(v T) Handle {
	a.live++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.occupied = true
		return Handle{Index: idx, Generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: v, generation: 1, occupied: true})
	return Handle{Index: uint32(len(a.slots) - 1), Generation: 1}
}

// Get returns the value addressed by h.
func (a *Arena[T]) Get(h Handle) (T, error) {
	var zero T
	if !a.valid(h) {
		return zero, fmt.Errorf("spawn.Arena.Get %s: %w", h, ErrStaleHandle)
	}
	return a.slots[h.Index].value, nil
}

// Remove frees the slot addressed by h.
//
// Postcondition: h and every copy of it are stale.
func (a *Arena[T]) Remove(h Handle) error {
	if !a.valid(h) {
		return fmt.Errorf("spawn.Arena.Remove %s: %w", h, ErrStaleHandle)
	}
	var zero T
	s := &a.slots[h.Index]
	s.value = zero
	s.occupied = false
	s.generation++
	a.free = append(a.free, h.Index)
	a.live--
	return nil
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Each calls fn for every live value in slot order.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.occupied {
			fn(Handle{Index: uint32(i), Generation: s.generation}, s.value)
		}
	}
}

func (a *Arena[T]) valid(h Handle) bool {
	if int(h.Index) >= len(a.slots) {
		return false
	}
	s := a.slots[h.Index]
	return s.occupied && s.generation == h.Generation
}
