package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader upgrades HTTP requests to WebSockets.
//
// CheckOrigin accepts every origin: the bridge serves a local browser and
// should not be exposed beyond localhost.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWSListen streams lines as the collector completes them. New clients
// first receive the current rolling log.
func (s *Server) handleWSListen(w http.ResponseWriter, r *http.Request) {
	s.handleWSHub(w, r, s.wsListen, &WSMessage{Type: "lines", Data: s.state.Log()})
}

// handleWSHub is the shared "upgrade + register + read-loop" for a hub.
//
// Incoming messages are ignored; the read loop only detects disconnects.
func (s *Server) handleWSHub(w http.ResponseWriter, r *http.Request, hub *WSHub, hello *WSMessage) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := hub.Add(conn)
	if hello != nil {
		if err := client.Send(*hello); err != nil {
			hub.Remove(client)
			return
		}
	}

	// Keep reading until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Remove(client)
			return
		}
	}
}
