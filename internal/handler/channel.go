package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/middleware"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/service"
)

type ChannelHandler struct {
	channels *service.ChannelService
	messages *service.MessageService
	events   http.Handler // nil when live events are disabled
}

func NewChannelHandler(channels *service.ChannelService, messages *service.MessageService, events http.Handler) *ChannelHandler {
	return &ChannelHandler{channels: channels, messages: messages, events: events}
}

func (h *ChannelHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{channelID}", h.Get)
	r.Patch("/{channelID}", h.Rename)
	r.Delete("/{channelID}", h.Delete)
	r.Post("/{channelID}/join", h.Join)
	r.Post("/{channelID}/leave", h.Leave)
	r.Get("/{channelID}/members", h.Members)
	r.Get("/{channelID}/messages", h.ListMessages)
	r.Post("/{channelID}/messages", h.SendMessage)
	if h.events != nil {
		r.Get("/{channelID}/events", h.events.ServeHTTP)
	}

	return r
}

func channelID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "channelID"))
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput("channelID", "must be a UUID")
	}
	return id, nil
}

// GET /channels
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.channels.List(r.Context(), ParsePagination(r), ParseSort(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// POST /channels
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Name        string            `json:"name"`
		DefaultRole model.ChannelRole `json:"defaultRole"`
		IsPublic    bool              `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}
	if req.DefaultRole == "" {
		req.DefaultRole = model.RoleMember
	}

	channel, err := h.channels.Create(r.Context(), model.CreateChannelParams{
		Name:        req.Name,
		OwnerID:     user.ID,
		DefaultRole: req.DefaultRole,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, channel)
}

// GET /channels/{channelID}
func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	channel, err := h.channels.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

// PATCH /channels/{channelID}
func (h *ChannelHandler) Rename(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}

	channel, err := h.channels.Rename(r.Context(), id, user.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

// DELETE /channels/{channelID}
func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.channels.Delete(r.Context(), id, user.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /channels/{channelID}/join
func (h *ChannelHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	member, err := h.channels.Join(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// POST /channels/{channelID}/leave
func (h *ChannelHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.channels.Leave(r.Context(), id, user.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /channels/{channelID}/members
func (h *ChannelHandler) Members(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	members, err := h.channels.Members(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// GET /channels/{channelID}/messages
func (h *ChannelHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.messages.ListByChannel(r.Context(), id, user.ID, ParsePagination(r), ParseSort(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// POST /channels/{channelID}/messages
func (h *ChannelHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}

	msg, err := h.messages.Send(r.Context(), model.CreateMessageParams{
		ChannelID: id,
		UserID:    user.ID,
		Content:   req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
