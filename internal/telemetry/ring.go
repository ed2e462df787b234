package telemetry

// Ring is a fixed-capacity sequence that evicts its oldest element when a
// push would exceed the capacity. It is not safe for concurrent use; State
// guards every ring it owns.
type Ring[T any] struct {
	capacity int
	items    []T
}

// NewRing returns an empty ring. A capacity below one is raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{capacity: capacity, items: make([]T, 0, capacity)}
}

// Push appends v, dropping the oldest element when full.
func (r *Ring[T]) Push(v T) {
	if len(r.items) == r.capacity {
		copy(r.items, r.items[1:])
		r.items[len(r.items)-1] = v
		return
	}
	r.items = append(r.items, v)
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return len(r.items) }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Snapshot returns a copy of the elements, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Reset drops every element.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.items = r.items[:0]
}
