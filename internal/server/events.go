package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// handleEvents streams bus events as JSON text frames. The optional
// session_id query parameter filters to one conversation. A subscriber
// dropped by the bus is closed with CloseTryAgainLater.
func (s *Server) handleEvents(c *gin.Context) {
	session := c.Query("session_id")

	// Subscribe before upgrading so no event emitted after the handshake
	// is missed.
	sub := s.events.Subscribe()
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.events.Unsubscribe(sub)
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer s.events.Unsubscribe(sub)

	s.log.Debug().Str("remote", c.ClientIP()).Str("session", session).Msg("event stream opened")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return

		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return

		case ev, ok := <-sub.C:
			if !ok {
				s.log.Warn().Str("remote", c.ClientIP()).Msg("event subscriber dropped")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber fell behind"),
					time.Now().Add(writeWait))
				return
			}
			if session != "" && ev.SessionID != session {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
