package server

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type uploadKind string

const (
	uploadKindImage  uploadKind = "image"
	uploadKindSource uploadKind = "source"
)

const defaultHistorySize = 32

// UploadRecord is one finished upload request.
type UploadRecord struct {
	ID       string            `json:"id"`
	Kind     uploadKind        `json:"kind,omitempty"`
	Devices  []string          `json:"devices"`
	Code     int               `json:"code"`
	Error    string            `json:"error,omitempty"`
	Results  []DeviceResultDTO `json:"results,omitempty"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
}

// detail is the text shown on the error page.
func (r *UploadRecord) detail() string {
	var lines []string
	if r.Error != "" {
		lines = append(lines, r.Error)
	}
	for _, d := range r.Results {
		if d.Code == 0 {
			continue
		}
		// Link and coordinator errors already lead with the port.
		if strings.HasPrefix(d.Error, d.Device+":") {
			lines = append(lines, d.Error)
		} else {
			lines = append(lines, d.Device+": "+d.Error)
		}
	}
	return strings.Join(lines, "\n")
}

// UploadHistory keeps the most recent upload records in memory.
type UploadHistory struct {
	mu    sync.RWMutex
	max   int
	order []string
	m     map[string]*UploadRecord
}

func NewUploadHistory(max int) *UploadHistory {
	if max < 1 {
		max = defaultHistorySize
	}
	return &UploadHistory{max: max, m: make(map[string]*UploadRecord)}
}

// Add assigns rec an id and stores it, evicting the oldest record when
// full.
func (h *UploadHistory) Add(rec *UploadRecord) {
	rec.ID = uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.order) == h.max {
		delete(h.m, h.order[0])
		h.order = h.order[1:]
	}
	h.order = append(h.order, rec.ID)
	h.m[rec.ID] = rec
}

func (h *UploadHistory) Get(id string) (*UploadRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.m[id]
	return r, ok
}

// List returns the records newest first.
func (h *UploadHistory) List() []*UploadRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*UploadRecord, 0, len(h.order))
	for i := len(h.order) - 1; i >= 0; i-- {
		out = append(out, h.m[h.order[i]])
	}
	return out
}
