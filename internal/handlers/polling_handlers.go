package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"channel-chat/internal/auth"
	"channel-chat/internal/models"
	"channel-chat/internal/relay"
	"channel-chat/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	pollWait        = 25 * time.Second
	pollSessionIdle = 90 * time.Second
	pollBatchLimit  = 64
)

// pollSession is one long-poll client's stand-in for a persistent
// socket: the same relay subscription, drained in batches.
type pollSession struct {
	id       string
	sub      *relay.Subscription
	lastSeen time.Time
}

// PollingHandlers implement the fallback transport for clients that
// cannot hold a websocket open. The event contract is identical to the
// websocket path; only the framing differs.
type PollingHandlers struct {
	verifier *auth.Verifier
	relay    *relay.Relay

	mu       sync.Mutex
	sessions map[string]*pollSession
}

func NewPollingHandlers(verifier *auth.Verifier, r *relay.Relay) *PollingHandlers {
	h := &PollingHandlers{
		verifier: verifier,
		relay:    r,
		sessions: make(map[string]*pollSession),
	}
	go h.reapIdleSessions()
	return h
}

// OpenSession subscribes the participant and hands back a session id
// the other polling endpoints key on.
func (h *PollingHandlers) OpenSession(w http.ResponseWriter, r *http.Request) {
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

	session := &pollSession{
		id:       uuid.NewString(),
		sub:      sub,
		lastSeen: time.Now(),
	}
	h.mu.Lock()
	h.sessions[session.id] = session
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": session.id,
		"channel_id": channelID,
	})
}

// Events long-polls the session's stream: it blocks until at least one
// event arrives or the wait expires, then drains whatever else is
// queued, preserving order.
func (h *PollingHandlers) Events(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	events := []models.Event{}
	timer := time.NewTimer(pollWait)
	defer timer.Stop()

	select {
	case event, ok := <-session.sub.Events():
		if !ok {
			// Subscription ended (dropped or closed elsewhere).
			h.remove(session.id)
			writeJSON(w, http.StatusGone, events)
			return
		}
		events = append(events, event)
	case <-timer.C:
	case <-r.Context().Done():
		return
	}

drain:
	for len(events) < pollBatchLimit {
		select {
		case event, ok := <-session.sub.Events():
			if !ok {
				break drain
			}
			events = append(events, event)
		default:
			break drain
		}
	}

	writeJSON(w, http.StatusOK, events)
}

// Send publishes one message on behalf of the session's participant.
func (h *PollingHandlers) Send(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	err := h.relay.Publish(context.Background(), session.sub, msg)
	switch {
	case errors.Is(err, relay.ErrNotMember):
		http.Error(w, "not a member of this channel", http.StatusForbidden)
	case errors.Is(err, relay.ErrWrongChannel):
		http.Error(w, "message channel does not match session", http.StatusBadRequest)
	case err != nil:
		logger.Error("Publish error: %v", err)
		http.Error(w, "error sending message", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// CloseSession is the polling equivalent of a leave frame.
func (h *PollingHandlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	if ok {
		session.sub.Close()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PollingHandlers) lookup(sessionID string) (*pollSession, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[sessionID]
	if ok {
		session.lastSeen = time.Now()
	}
	return session, ok
}

func (h *PollingHandlers) remove(sessionID string) {
	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()
}

// reapIdleSessions releases subscriptions whose client stopped polling
// without saying goodbye.
func (h *PollingHandlers) reapIdleSessions() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		for id, session := range h.sessions {
			if time.Since(session.lastSeen) > pollSessionIdle {
				delete(h.sessions, id)
				session.sub.Close()
				logger.Debug("Reaped idle polling session %s", id)
			}
		}
		h.mu.Unlock()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
