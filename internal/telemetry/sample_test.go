package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSample(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"-3", -3, true},
		{"1e3", 1000, true},
		{"light=312", 312, true},
		{"temp: 21.5", 21.5, true},
		{"hello", 0, false},
		{"", 0, false},
		{"=5", 0, false},
		{"light=", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"12.5 volts", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s, err := ParseSample(tt.line, at)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrParseSkipped)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Value)
			assert.Equal(t, at, s.Timestamp)
		})
	}
}
