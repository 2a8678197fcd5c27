package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

const watchWriteTimeout = 10 * time.Second

// watchMessage is pushed to websocket watchers on every poll.
type watchMessage struct {
	Time    time.Time           `json:"time"`
	Players []map[string]string `json:"players"`
	Errors  []string            `json:"errors,omitempty"`
}

// handleWatch upgrades to a websocket and pushes the live player list every poll interval
// until the client goes away or the server shuts down.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Incoming messages are ignored; CloseRead cancels ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.pushPlayers(ctx, conn); err != nil {
			log.Debug().Err(err).Msg("Websocket watcher gone")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushPlayers(ctx context.Context, conn *websocket.Conn) error {
	msg := watchMessage{Time: time.Now().UTC()}

	resp, err := s.livePlayers(ctx)
	if err != nil {
		msg.Errors = []string{err.Error()}
	} else {
		msg.Players = resp.Players
		msg.Errors = resp.Errors
	}

	writeCtx, cancel := context.WithTimeout(ctx, watchWriteTimeout)
	defer cancel()

	return wsjson.Write(writeCtx, conn, msg)
}
