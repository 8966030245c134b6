package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"channel-chat/internal/auth"
	"channel-chat/internal/database"
	"channel-chat/internal/models"
	"channel-chat/internal/registry"
	"channel-chat/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type ChannelHandlers struct {
	registry *registry.Registry
	verifier *auth.Verifier
}

func NewChannelHandlers(reg *registry.Registry, verifier *auth.Verifier) *ChannelHandlers {
	return &ChannelHandlers{
		registry: reg,
		verifier: verifier,
	}
}

func (h *ChannelHandlers) CreateChannel(w http.ResponseWriter, r *http.Request) {
	participantID, err := h.participantFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	// The creator is always part of the channel it creates.
	if !slices.Contains(req.Members, participantID) {
		req.Members = append(req.Members, participantID)
	}

	ch, err := h.registry.Create(r.Context(), &req)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

func (h *ChannelHandlers) ListChannels(w http.ResponseWriter, r *http.Request) {
	participantID, err := h.participantFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	channels, err := h.registry.ListForMember(r.Context(), participantID)
	if err != nil {
		logger.Error("List channels error: %v", err)
		http.Error(w, "error listing channels", http.StatusInternalServerError)
		return
	}
	if channels == nil {
		channels = []*models.Channel{}
	}

	writeJSON(w, http.StatusOK, channels)
}

func (h *ChannelHandlers) GetChannel(w http.ResponseWriter, r *http.Request) {
	participantID, err := h.participantFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ch, err := h.registry.Get(r.Context(), chi.URLParam(r, "channelID"))
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	if !ch.IsPublic && !slices.Contains(ch.Members, participantID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandlers) AddMembers(w http.ResponseWriter, r *http.Request) {
	participantID, err := h.participantFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	channelID := chi.URLParam(r, "channelID")
	isMember, err := h.registry.IsMember(r.Context(), channelID, participantID)
	if err != nil {
		logger.Error("Membership check error: %v", err)
		http.Error(w, "error checking membership", http.StatusInternalServerError)
		return
	}
	if !isMember {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req models.MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	ch, err := h.registry.AddMembers(r.Context(), channelID, req.Members)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	participantID, err := h.participantFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	channelID := chi.URLParam(r, "channelID")
	memberID := chi.URLParam(r, "memberID")

	// Participants may remove themselves; removing someone else
	// requires being a member too.
	if memberID != participantID {
		isMember, err := h.registry.IsMember(r.Context(), channelID, participantID)
		if err != nil {
			logger.Error("Membership check error: %v", err)
			http.Error(w, "error checking membership", http.StatusInternalServerError)
			return
		}
		if !isMember {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	ch, err := h.registry.RemoveMember(r.Context(), channelID, memberID)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandlers) participantFromRequest(r *http.Request) (string, error) {
	var token string
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return "", errors.New("missing token")
	}
	return h.verifier.ParticipantID(token)
}

func (h *ChannelHandlers) writeRegistryError(w http.ResponseWriter, err error) {
	var validation *registry.ValidationError
	var constraint *registry.ConstraintViolation

	switch {
	case errors.As(err, &validation):
		http.Error(w, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &constraint):
		http.Error(w, constraint.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrNotFound):
		http.Error(w, "channel not found", http.StatusNotFound)
	default:
		logger.Error("Registry error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
