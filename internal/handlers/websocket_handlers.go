package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"channel-chat/internal/auth"
	"channel-chat/internal/models"
	"channel-chat/internal/relay"
	"channel-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type WebSocketHandlers struct {
	verifier *auth.Verifier
	relay    *relay.Relay
	upgrader websocket.Upgrader
}

func NewWebSocketHandlers(verifier *auth.Verifier, r *relay.Relay) *WebSocketHandlers {
	return &WebSocketHandlers{
		verifier: verifier,
		relay:    r,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket opens the preferred transport. The bearer credential
// and target channel ride in the query string, the way the polling
// fallback carries them too.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	participantID, err := h.verifier.ParticipantID(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	channelID := r.URL.Query().Get("channel")
	if channelID == "" {
		http.Error(w, "missing channel", http.StatusBadRequest)
		return
	}

	// Authorization happens before the upgrade so a non-member sees a
	// 403, not a torn-down socket.
	sub, err := h.relay.Subscribe(r.Context(), channelID, participantID)
	if err != nil {
		if errors.Is(err, relay.ErrNotMember) {
			http.Error(w, "not a member of this channel", http.StatusForbidden)
			return
		}
		logger.Error("Subscribe error: %v", err)
		http.Error(w, "error joining channel", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		sub.Close()
		return
	}

	go writePump(conn, sub)
	go h.readPump(conn, sub)
}

// readPump feeds inbound frames to the relay until the peer leaves or
// the connection drops. Ends by releasing the subscription, which also
// announces the leave.
func (h *WebSocketHandlers) readPump(conn *websocket.Conn, sub *relay.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			return
		}

		var event models.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			logger.Debug("Dropping malformed frame from %s: %v", sub.ParticipantID, err)
			continue
		}

		switch event.Type {
		case models.EventMessage:
			// The request context is gone once the handler returns, so
			// publishes run on a background context.
			err := h.relay.Publish(context.Background(), sub, event.Msg())
			if err != nil && !errors.Is(err, relay.ErrNotMember) {
				logger.Error("Publish error: %v", err)
			}
		case models.EventLeave:
			return
		}
	}
}

// writePump drains the subscription onto the socket, keeping the
// relay's per-channel order, and pings to keep the connection healthy.
func writePump(conn *websocket.Conn, sub *relay.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
