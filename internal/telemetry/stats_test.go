package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	one := Summarize([]Sample{{Timestamp: t0, Value: 4}})
	assert.Equal(t, 1, one.Count)
	assert.Equal(t, 0.0, one.StdDev)

	sum := Summarize([]Sample{
		{Timestamp: t0, Value: 2},
		{Timestamp: t0.Add(time.Second), Value: 4},
		{Timestamp: t0.Add(2 * time.Second), Value: 6},
	})
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 2.0, sum.Min)
	assert.Equal(t, 6.0, sum.Max)
	assert.InDelta(t, 4.0, sum.Mean, 1e-9)
	assert.InDelta(t, 2.0, sum.StdDev, 1e-9)
	require.NotNil(t, sum.First)
	assert.Equal(t, t0, *sum.First)
	assert.Equal(t, t0.Add(2*time.Second), *sum.Last)
	assert.False(t, math.IsNaN(sum.StdDev))
}
