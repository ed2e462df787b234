package telemetry

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the rolling series for the graph page.
type Summary struct {
	Count  int        `json:"count"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
	Mean   float64    `json:"mean"`
	StdDev float64    `json:"stddev"`
	First  *time.Time `json:"first,omitempty"`
	Last   *time.Time `json:"last,omitempty"`
}

// Summarize computes min/max/mean and the sample standard deviation.
// StdDev is zero with fewer than two samples.
func Summarize(samples []Sample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.Value
	}
	first := samples[0].Timestamp
	last := samples[len(samples)-1].Timestamp
	sum := Summary{
		Count: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Mean:  stat.Mean(vals, nil),
		First: &first,
		Last:  &last,
	}
	if len(vals) > 1 {
		sum.StdDev = stat.StdDev(vals, nil)
	}
	return sum
}
