package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// streamInterval is the rate at which state snapshots are pushed to
// WebSocket clients.
const streamInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebSocket streams the named arm's desired joint state until the
// client disconnects. Authentication uses the token query parameter
// since browsers cannot set headers on WebSocket dials.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.verifyToken(bearerToken(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	name := r.URL.Query().Get("arm")
	if name == "" {
		writeError(w, http.StatusBadRequest, "arm query parameter is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reader goroutine: the client never sends data, but reading is how
	// close frames are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			state, ok := s.source.StateJointDesired(name)
			if !ok {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		}
	}
}
