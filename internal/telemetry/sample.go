package telemetry

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrParseSkipped means a line carries no numeric sample. It is not a
// failure: the line stays in the log and is left out of the series.
var ErrParseSkipped = errors.New("line is not a sample")

// Sample is one numeric reading, stamped with the time its line completed.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ParseSample recognizes a bare number ("12.5") or a labelled number
// ("light=312", "temp: 21.5"). Anything else returns ErrParseSkipped.
func ParseSample(line string, at time.Time) (Sample, error) {
	s := strings.TrimSpace(line)
	if i := strings.IndexAny(s, "=:"); i >= 0 {
		if strings.TrimSpace(s[:i]) == "" {
			return Sample{}, ErrParseSkipped
		}
		s = strings.TrimSpace(s[i+1:])
	}
	if s == "" {
		return Sample{}, ErrParseSkipped
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Sample{}, ErrParseSkipped
	}
	return Sample{Timestamp: at, Value: v}, nil
}
