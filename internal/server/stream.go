package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Content types used by the streaming endpoints.
const (
	contentHTML = "text/html"
	contentJSON = "application/json"
)

// Stream writes a response as a series of HTTP/1.1 chunks. Every WriteChunk
// is flushed on its own, so each payload goes out as exactly one chunk; the
// terminating zero-length chunk is sent when the handler returns.
//
// Write failures and client disconnects are not reported to the caller.
// The stream goes dead and later chunks are dropped.
type Stream struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ctx    context.Context
	path   string
	logger *zap.Logger
	dead   bool
}

// NewStream sends the status line and headers.
func NewStream(w http.ResponseWriter, r *http.Request, status int, contentType string, logger *zap.Logger) *Stream {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Cache-Control", "no-store")
	h.Del("Content-Length")
	w.WriteHeader(status)
	return &Stream{
		w:      w,
		rc:     http.NewResponseController(w),
		ctx:    r.Context(),
		path:   r.URL.Path,
		logger: logger,
	}
}

// WriteChunk sends p as one chunk. Empty payloads are skipped: a
// zero-length chunk would end the body early.
func (s *Stream) WriteChunk(p []byte) {
	if s.dead || len(p) == 0 {
		return
	}
	if err := s.ctx.Err(); err != nil {
		s.fail(err)
		return
	}
	if _, err := s.w.Write(p); err != nil {
		s.fail(err)
		return
	}
	if err := s.rc.Flush(); err != nil {
		s.fail(err)
	}
}

// WriteString is WriteChunk for strings.
func (s *Stream) WriteString(str string) {
	s.WriteChunk([]byte(str))
}

// Alive reports whether chunks are still being delivered.
func (s *Stream) Alive() bool { return !s.dead }

// Close ends the stream. Nothing more is written; net/http emits the final
// chunk once the handler returns.
func (s *Stream) Close() {
	s.dead = true
}

func (s *Stream) fail(err error) {
	s.dead = true
	s.logger.Debug("Client disconnected", zap.String("path", s.path), zap.Error(err))
}
