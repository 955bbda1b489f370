package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// SessionEvents streams a snapshot after every state change of the caller's
// session. The stream ends when the session is abandoned or replaced.
func (a *App) SessionEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	conn, err := a.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		a.Logger.Warn().Err(err).Str("session_id", s.ID()).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := s.Subscribe()
	defer cancel()

	// The kiosk never sends anything; reading only detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(2 * a.wsPing))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * a.wsPing))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(a.wsPing)
	defer ping.Stop()

	log := a.Logger.With().Str("session_id", s.ID()).Logger()
	log.Debug().Msg("event stream opened")
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(a.wsWriteTimeout))
				log.Debug().Msg("event stream closed by session")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(a.wsWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				log.Debug().Err(err).Msg("event stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(a.wsWriteTimeout)); err != nil {
				return
			}
		case <-gone:
			log.Debug().Msg("event stream closed by client")
			return
		case <-r.Context().Done():
			return
		}
	}
}
