package telemetry

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// Aggregator reassembles newline-delimited records from raw per-device
// bytes and appends completed lines to State.
type Aggregator struct {
	state *State
	now   func() time.Time

	mu      sync.Mutex
	pending map[string][]byte
}

// NewAggregator returns an aggregator feeding state.
func NewAggregator(state *State) *Aggregator {
	return &Aggregator{
		state:   state,
		now:     time.Now,
		pending: make(map[string][]byte),
	}
}

// Feed appends b to the device's buffer and moves every complete line into
// the rolling log (and the series when it parses as a sample). Blank lines
// are dropped. The non-empty lines completed by this call are returned.
func (a *Aggregator) Feed(device string, b []byte) []string {
	// Holding mu through appendEntries keeps the log in feed order even if
	// two goroutines feed at once.
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := append(a.pending[device], b...)
	var lines []string
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(buf[:i]))
		buf = buf[i+1:]
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(buf) == 0 {
		delete(a.pending, device)
	} else {
		// Copy the partial tail so drained bytes are not kept alive.
		a.pending[device] = append([]byte(nil), buf...)
	}

	if len(lines) == 0 {
		return nil
	}
	at := a.now()
	entries := make([]entry, len(lines))
	for i, line := range lines {
		entries[i].line = line
		if s, err := ParseSample(line, at); err == nil {
			entries[i].sample = s
			entries[i].isSample = true
		}
	}
	a.state.appendEntries(entries)
	return lines
}

// Pending returns the unterminated bytes buffered for device.
func (a *Aggregator) Pending(device string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.pending[device]...)
}

// Reset drops every partial line.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.pending)
}
