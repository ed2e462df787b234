package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
		assert.LessOrEqual(t, r.Len(), 3)
	}
	assert.Equal(t, []int{3, 4, 5}, r.Snapshot())

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRing_SnapshotIsACopy(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	snap := r.Snapshot()
	snap[0] = "changed"
	assert.Equal(t, []string{"a"}, r.Snapshot())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Snapshot())
}
