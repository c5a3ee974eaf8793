// Package history keeps the most recent values reported for a player.
package history

// DefaultSize is the number of game state snapshots retained per player
const DefaultSize = 5

// Ring is a fixed-capacity buffer that overwrites its oldest value once
// full. It is not safe for concurrent use; callers own it from a single
// goroutine.
type Ring[T any] struct {
	slots []T
	set   []bool
	start int
	end   int
	full  bool
}

// NewRing creates a Ring holding up to size values. size must be positive.
func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		panic("history: ring size must be positive")
	}
	return &Ring[T]{
		slots: make([]T, size),
		set:   make([]bool, size),
	}
}

// Push writes v into the next slot, evicting the oldest value when full
func (r *Ring[T]) Push(v T) {
	r.slots[r.end] = v
	r.set[r.end] = true
	r.end = (r.end + 1) % len(r.slots)
	if r.full {
		r.start = (r.start + 1) % len(r.slots)
	}
	if r.end == r.start {
		r.full = true
	}
}

// IsFull reports whether every slot has been written
func (r *Ring[T]) IsFull() bool {
	return r.full
}

// Cap returns the capacity
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}

// Len returns the number of values held
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.slots)
	}
	return r.end - r.start
}

// Snapshot returns a copy of every slot in slot-index order. Unwritten
// slots are nil. Slot order is not recency order once the ring has wrapped.
func (r *Ring[T]) Snapshot() []*T {
	out := make([]*T, len(r.slots))
	for i := range r.slots {
		if r.set[i] {
			v := r.slots[i]
			out[i] = &v
		}
	}
	return out
}

// Recent returns the held values from oldest to newest
func (r *Ring[T]) Recent() []T {
	n := r.Len()
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.slots[(r.start+i)%len(r.slots)])
	}
	return out
}
