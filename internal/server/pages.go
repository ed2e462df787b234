package server

import (
	"errors"
	"html"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/CK6170/motebridge/internal/render"
)

// bodyStart selects the bodystart-* fragment written after the header.
type bodyStart string

const (
	bodyGeneric bodyStart = "generic"
	bodyMote    bodyStart = "mote"
)

// listenIndent precedes every line of the listen fragment.
const listenIndent = "&nbsp;&nbsp;&nbsp;&nbsp;"

// renderPage runs the renderer and logs failures. Missing optional pages
// return nil quietly.
func (s *Server) renderPage(page string, values map[string]string, optional bool) []byte {
	b, err := s.renderer.Render(page, values)
	if err != nil {
		if optional && errors.Is(err, render.ErrNotFound) {
			return nil
		}
		s.logger.Error("Failed to render page", zap.String("page", page), zap.Error(err))
		return nil
	}
	return b
}

// writeHeader writes the shared header, the page's own header fragment if
// there is one, and the body start.
func (s *Server) writeHeader(st *Stream, page string, start bodyStart, values map[string]string) {
	st.WriteChunk(s.renderPage("header", map[string]string{"PAGETITLE": page}, false))
	st.WriteChunk(s.renderPage(page+".header", values, true))
	st.WriteChunk(s.renderPage("bodystart-"+string(start), nil, false))
}

func (s *Server) writeBody(st *Stream, page string, values map[string]string) {
	st.WriteChunk(s.renderPage(page, values, false))
}

func (s *Server) writeFooter(st *Stream) {
	st.WriteChunk(s.renderPage("footer", nil, false))
	st.Close()
}

// writeDeviceForm opens the page form and lists one checkbox per attached
// mote, checked when the mote is selected. The page body closes the form.
func (s *Server) writeDeviceForm(st *Stream, action string, post bool) {
	if post {
		st.WriteString("<form method=\"post\" enctype=\"multipart/form-data\">\n")
	} else {
		st.WriteString("<form>\n")
	}
	var b strings.Builder
	for _, d := range s.devices {
		checked := ""
		if s.state.IsSelected(d) {
			checked = ` checked="checked"`
		}
		name := html.EscapeString(d)
		b.WriteString(`<p class="module"><strong>Mote: </strong>` + name +
			` <input type="checkbox" name="device" value="` + name + `"` + checked + `>` +
			action + "</p>\n")
	}
	if b.Len() > 0 {
		st.WriteString("<br/>Directly attached motes:\n<br/>\n" + b.String() + "<hr/>\n")
	}
}

// updateSelection replaces the selection with the devices named in the
// request, the way a submitted form reports its checked boxes.
func (s *Server) updateSelection(devices []string) {
	sel := make(map[string]bool, len(devices))
	for _, d := range devices {
		if d = strings.TrimSpace(d); d != "" {
			sel[d] = true
		}
	}
	s.state.SetSelection(sel)
}

// formatLog renders log lines as the listen fragment.
func formatLog(lines []string) []byte {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(listenIndent)
		b.WriteString(html.EscapeString(l))
		b.WriteString("<br/>")
	}
	return []byte(b.String())
}

// startHTML begins a page response.
func (s *Server) startHTML(w http.ResponseWriter, r *http.Request, status int) *Stream {
	return NewStream(w, r, status, contentHTML, s.logger)
}
