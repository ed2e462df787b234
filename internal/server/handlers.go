package server

import (
	"encoding/json"
	"html"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/CK6170/motebridge/internal/telemetry"
)

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/default" {
		s.handleNotFound(w, r)
		return
	}
	st := s.startHTML(w, r, http.StatusOK)
	s.writeHeader(st, "default", bodyGeneric, nil)
	s.writeBody(st, "default", nil)
	s.writeFooter(st)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	st := s.startHTML(w, r, http.StatusNotFound)
	s.writeHeader(st, "404", bodyGeneric, nil)
	s.writeBody(st, "404", map[string]string{"PATH": html.EscapeString(r.URL.Path)})
	s.writeFooter(st)
}

func (s *Server) handleMotes(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	for _, d := range s.devices {
		status := ""
		if s.state.IsSelected(d) {
			status = " (selected)"
		}
		b.WriteString("<li>" + html.EscapeString(d) + status + "</li>\n")
	}
	st := s.startHTML(w, r, http.StatusOK)
	s.writeHeader(st, "motes", bodyMote, nil)
	s.writeBody(st, "motes", map[string]string{"MOTES_LIST": b.String()})
	s.writeFooter(st)
}

// toggleCollector applies ?action=start|stop.
func (s *Server) toggleCollector(r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "start":
		s.collector.Start()
	case "stop":
		s.collector.Stop()
	}
}

// actionLabels returns the next action and its button label for a page
// whose collector verb is verb ("listening", "graphing").
func actionLabels(running bool, verb string) (action, label string) {
	if running {
		return "stop", "Stop " + verb
	}
	return "start", "Start " + verb
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	st := s.startHTML(w, r, http.StatusOK)
	s.writeHeader(st, "listen", bodyGeneric, nil)
	s.updateSelection(r.URL.Query()["device"])
	s.writeDeviceForm(st, "Listen", false)
	s.toggleCollector(r)

	running := s.collector.Running()
	action, label := actionLabels(running, "listening")
	s.writeBody(st, "listen", map[string]string{
		"LISTEN_TXT":     string(formatLog(s.state.Log())),
		"LISTEN_ACTION":  action,
		"LISTEN_CMD":     label,
		"LISTEN_RUNNING": strconv.FormatBool(running),
	})
	s.writeFooter(st)
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	st := s.startHTML(w, r, http.StatusOK)
	s.writeHeader(st, "graphs", bodyGeneric, nil)
	s.updateSelection(r.URL.Query()["device"])
	s.writeDeviceForm(st, "Graph", false)
	s.toggleCollector(r)

	running := s.collector.Running()
	action, label := actionLabels(running, "graphing")
	s.writeBody(st, "graphs", map[string]string{
		"GRAPHS_ACTION":  action,
		"GRAPHS_CMD":     label,
		"GRAPHS_RUNNING": strconv.FormatBool(running),
	})
	s.writeFooter(st)
}

// cachedPayload returns the payload for key, replaying the cached copy
// while the collector is stopped and serializing a fresh snapshot
// otherwise.
func (s *Server) cachedPayload(key string, encode func(telemetry.Snapshot) ([]byte, error)) ([]byte, error) {
	if b, ok := s.state.ReplayPayload(key); ok {
		return b, nil
	}
	snap := s.state.Snapshot()
	b, err := encode(snap)
	if err != nil {
		return nil, err
	}
	s.state.StorePayload(key, snap.Generation, b)
	return b, nil
}

func (s *Server) handleListenData(w http.ResponseWriter, r *http.Request) {
	b, _ := s.cachedPayload(telemetry.PayloadListen, func(snap telemetry.Snapshot) ([]byte, error) {
		return formatLog(snap.Log), nil
	})
	st := s.startHTML(w, r, http.StatusOK)
	st.WriteChunk(b)
	st.Close()
}

func (s *Server) handleGraphsData(w http.ResponseWriter, r *http.Request) {
	b, err := s.cachedPayload(telemetry.PayloadGraphs, func(snap telemetry.Snapshot) ([]byte, error) {
		series := snap.Series
		if series == nil {
			series = []telemetry.Sample{}
		}
		return json.Marshal(series)
	})
	if err != nil {
		s.logger.Error("Failed to encode series", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, APIError{Error: err.Error()})
		return
	}
	st := NewStream(w, r, http.StatusOK, contentJSON, s.logger)
	st.WriteChunk(b)
	st.Close()
}

func (s *Server) handleGraphsStats(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Summary: telemetry.Summarize(snap.Series),
		Running: snap.Running,
	})
}
