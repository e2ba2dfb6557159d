package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 10 * time.Second

// handleWS relays the status subscription for one user over a websocket.
// Each connected client gets the current record immediately, then every
// subsequent write as it is published. The relay is one-way; clients write
// through the HTTP endpoints.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("gateway: websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "relay stopped")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := s.states.Subscribe(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("gateway: status subscribe failed")
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}

	// Seed the connection with the latest record so a fresh client does
	// not wait for the next write.
	if cur, err := s.states.Get(ctx, userID); err == nil {
		if err := writeWS(ctx, conn, cur); err != nil {
			return
		}
	}

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case st, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			if err := writeWS(ctx, conn, &st); err != nil {
				s.log.Debug().Err(err).Str("user", userID).Msg("gateway: websocket write failed")
				return
			}
		}
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, v any) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, v)
}
