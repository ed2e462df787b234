package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/CK6170/motebridge/internal/render"
	"github.com/CK6170/motebridge/internal/telemetry"
	"github.com/CK6170/motebridge/internal/upload"
	"github.com/CK6170/motebridge/serial"
)

// Collector is the lifecycle surface of the poll loop the handlers toggle.
type Collector interface {
	Start() bool
	Stop() bool
	Running() bool
}

// Uploader flashes images or builds sources onto the selected motes.
type Uploader interface {
	Upload(ctx context.Context, image []byte, devices []string) (serial.ResultCode, []upload.DeviceResult)
	Build(ctx context.Context, src upload.Source, devices []string) (serial.ResultCode, []upload.DeviceResult, error)
}

// Options wires the server to the rest of the process.
type Options struct {
	State     *telemetry.State
	Collector Collector
	Uploader  Uploader
	// Devices lists the attached motes in configured order.
	Devices  []string
	Renderer render.Renderer
	// Web is the web root; files under assets/ are served as-is.
	Web     fs.FS
	Metrics *Metrics
	Logger  *zap.Logger
	// UploadTimeout bounds one upload request; 0 means no limit.
	UploadTimeout time.Duration
}

type Server struct {
	mux *http.ServeMux

	state     *telemetry.State
	collector Collector
	uploader  Uploader
	devices   []string
	renderer  render.Renderer
	metrics   *Metrics
	history   *UploadHistory
	logger    *zap.Logger

	uploadTimeout time.Duration

	// wsListen pushes freshly collected lines to /ws/listen clients.
	wsListen *WSHub
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(opts.Collector.Running)
	}
	s := &Server{
		mux:       http.NewServeMux(),
		state:     opts.State,
		collector: opts.Collector,
		uploader:  opts.Uploader,
		devices:   append([]string(nil), opts.Devices...),
		renderer:  opts.Renderer,
		metrics:   metrics,
		history:   NewUploadHistory(defaultHistorySize),
		logger:    logger,
		wsListen:  NewWSHub(),

		uploadTimeout: opts.UploadTimeout,
	}

	// Pages
	s.mux.HandleFunc("/", s.handleDefault)
	s.mux.HandleFunc("/motes", s.handleMotes)
	s.mux.HandleFunc("/listen", s.handleListen)
	s.mux.HandleFunc("/listen-data", s.handleListenData)
	s.mux.HandleFunc("/graphs", s.handleGraphs)
	s.mux.HandleFunc("/graphs-data", s.handleGraphsData)
	s.mux.HandleFunc("/graphs-stats", s.handleGraphsStats)
	s.mux.HandleFunc("/upload", s.handleUpload)

	// API
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/uploads", s.handleUploads)
	s.mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// WS
	s.mux.HandleFunc("/ws/listen", s.handleWSListen)

	// Static assets
	if opts.Web != nil {
		files := http.FileServer(http.FS(opts.Web))
		s.mux.Handle("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Avoid stale scripts after the web dir is edited.
			w.Header().Set("Cache-Control", "no-store")
			files.ServeHTTP(w, r)
		}))
	}

	return s
}

// Handler returns the routes wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = RecoveryMiddleware(s.logger)(h)
	h = LoggingMiddleware(s.logger)(h)
	return h
}

// PublishLines is the collector's OnLines hook: it counts the lines and
// pushes them to websocket listeners.
func (s *Server) PublishLines(lines []string) {
	s.metrics.ObserveLines(lines)
	s.wsListen.Broadcast(WSMessage{Type: "lines", Data: lines})
}

// DeviceError is the collector's OnDeviceError hook.
func (s *Server) DeviceError(device string, err error) {
	s.metrics.DeviceError(device)
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.wsListen.CloseAll()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		OK:        true,
		Timestamp: time.Now(),
		Running:   s.collector.Running(),
		Devices:   s.devices,
	})
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		rec, ok := s.history.Get(id)
		if !ok {
			s.writeJSON(w, http.StatusNotFound, APIError{Error: "upload not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, rec)
		return
	}
	s.writeJSON(w, http.StatusOK, s.history.List())
}
