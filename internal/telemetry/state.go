package telemetry

import (
	"sort"
	"sync"
)

// Default window sizes.
const (
	DefaultLogLines      = 28
	DefaultSeriesSamples = 40
)

// Payload cache keys used by the polling endpoints.
const (
	PayloadListen = "listen"
	PayloadGraphs = "graphs"
)

// State is the process-wide telemetry state shared by the collector, the
// HTTP handlers and the upload coordinator. One mutex guards all of it and
// is only held for in-memory work.
type State struct {
	mu       sync.Mutex
	log      *Ring[string]
	series   *Ring[Sample]
	selected map[string]bool
	running  bool
	gen      uint64
	payloads map[string][]byte
}

// Snapshot is a consistent copy of the buffers. Generation changes on every
// mutation of the log or series.
type Snapshot struct {
	Log        []string
	Series     []Sample
	Running    bool
	Generation uint64
}

// NewState builds an empty state with the given window sizes; values below
// one fall back to the defaults.
func NewState(logLines, seriesSamples int) *State {
	if logLines < 1 {
		logLines = DefaultLogLines
	}
	if seriesSamples < 1 {
		seriesSamples = DefaultSeriesSamples
	}
	return &State{
		log:      NewRing[string](logLines),
		series:   NewRing[Sample](seriesSamples),
		selected: make(map[string]bool),
		payloads: make(map[string][]byte),
	}
}

type entry struct {
	line     string
	sample   Sample
	isSample bool
}

// appendEntries adds completed lines in order. Cached payloads are dropped
// since they no longer describe the buffers.
func (s *State) appendEntries(entries []entry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.log.Push(e.line)
		if e.isSample {
			s.series.Push(e.sample)
		}
	}
	s.gen++
	clear(s.payloads)
}

// Snapshot copies the log and series under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Log:        s.log.Snapshot(),
		Series:     s.series.Snapshot(),
		Running:    s.running,
		Generation: s.gen,
	}
}

// Log returns the rolling log, oldest line first.
func (s *State) Log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Snapshot()
}

// Series returns the rolling series, oldest sample first.
func (s *State) Series() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series.Snapshot()
}

// Reset empties the log, the series and the payload cache.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Reset()
	s.series.Reset()
	s.gen++
	clear(s.payloads)
}

// Running reports whether the collector is running.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *State) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

// SetSelection replaces the selection flags. Devices missing from sel are
// deselected.
func (s *State) SetSelection(sel map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.selected)
	for name, on := range sel {
		if on {
			s.selected[name] = true
		}
	}
}

// IsSelected reports the flag of one device.
func (s *State) IsSelected(device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[device]
}

// Selected filters devices down to the selected ones, keeping their order.
func (s *State) Selected(devices []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		if s.selected[d] {
			out = append(out, d)
		}
	}
	return out
}

// Selection returns the selected device names, sorted.
func (s *State) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.selected))
	for name := range s.selected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ReplayPayload returns the payload cached under key, but only while the
// collector is stopped: no new data can arrive then, so the cached bytes
// are still current.
func (s *State) ReplayPayload(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, false
	}
	b, ok := s.payloads[key]
	return b, ok
}

// StorePayload caches the payload serialized from the snapshot with
// generation gen. It is ignored if the buffers changed since.
func (s *State) StorePayload(key string, gen uint64, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.payloads[key] = b
}
