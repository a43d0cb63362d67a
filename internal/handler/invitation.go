package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/middleware"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/service"
)

type InvitationHandler struct {
	invites *service.ChannelInvitationService
}

func NewInvitationHandler(invites *service.ChannelInvitationService) *InvitationHandler {
	return &InvitationHandler{invites: invites}
}

func (h *InvitationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListMine)
	r.Post("/", h.Create)
	r.Patch("/{invitationID}", h.Update)
	r.Post("/{invitationID}/accept", h.Accept)
	r.Post("/{invitationID}/reject", h.Reject)

	return r
}

func invitationID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "invitationID"))
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput("invitationID", "must be a UUID")
	}
	return id, nil
}

// GET /channel-invitations
func (h *InvitationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	invs, err := h.invites.ListForInvitee(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

// POST /channel-invitations
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		ChannelID string            `json:"channelId"`
		InviteeID string            `json:"inviteeId"`
		Role      model.ChannelRole `json:"role"`
		ExpiresAt time.Time         `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}

	chID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		writeError(w, apperrors.InvalidInput("channelId", "must be a UUID"))
		return
	}
	inviteeID, err := uuid.Parse(req.InviteeID)
	if err != nil {
		writeError(w, apperrors.InvalidInput("inviteeId", "must be a UUID"))
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = time.Now().Add(7 * 24 * time.Hour)
	}

	inv, err := h.invites.Create(r.Context(), model.CreateChannelInvitationParams{
		ChannelID: chID,
		InviterID: user.ID,
		InviteeID: inviteeID,
		Role:      req.Role,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// PATCH /channel-invitations/{invitationID}
func (h *InvitationHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := invitationID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Role      model.ChannelRole `json:"role"`
		ExpiresAt time.Time         `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}

	inv, err := h.invites.Update(r.Context(), id, user.ID, req.Role, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// POST /channel-invitations/{invitationID}/accept
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := invitationID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	member, err := h.invites.Accept(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// POST /channel-invitations/{invitationID}/reject
func (h *InvitationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := invitationID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.invites.Reject(r.Context(), id, user.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
