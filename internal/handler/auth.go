package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/audit"
	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/middleware"
	"github.com/loqui/chat-server-go/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
	ims  *service.ImInvitationService
}

func NewAuthHandler(auth *service.AuthService, ims *service.ImInvitationService) *AuthHandler {
	return &AuthHandler{auth: auth, ims: ims}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)

	return r
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		InvitationToken string `json:"invitationToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}

	token, err := uuid.Parse(req.InvitationToken)
	if err != nil {
		writeError(w, apperrors.InvalidInput("invitationToken", "must be a UUID"))
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterParams{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		InvitationToken: token,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventRegister,
		UserID: user.ID.String(),
	})
	writeJSON(w, http.StatusCreated, user)
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NameOrEmail string `json:"nameOrEmail"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}

	creds, err := h.auth.Login(r.Context(), req.NameOrEmail, req.Password)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"identifier": req.NameOrEmail},
		})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLoginSuccess,
		UserID: creds.User.ID.String(),
	})
	writeJSON(w, http.StatusOK, creds)
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}

	creds, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventTokenRefresh,
		UserID: creds.User.ID.String(),
	})
	writeJSON(w, http.StatusOK, creds)
}

// POST /auth/logout (authenticated)
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if len(token) > 7 {
		token = token[7:] // strip "Bearer "
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}

	event := audit.Event{Type: audit.EventLogout}
	if user := middleware.GetUser(r.Context()); user != nil {
		event.UserID = user.ID.String()
	}
	audit.LogFromRequest(r, event)
	w.WriteHeader(http.StatusNoContent)
}

// POST /invitations (authenticated: issue an application-join token)
func (h *AuthHandler) CreateImInvitation(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUser(r.Context()) == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req struct {
		TTLHours int `json:"ttlHours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}
	if req.TTLHours <= 0 {
		req.TTLHours = 72
	}

	inv, err := h.ims.Create(r.Context(), time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventInvitationIssued,
		UserID:  middleware.GetUser(r.Context()).ID.String(),
		Details: map[string]interface{}{"expiresAt": inv.ExpiresAt.Format(time.RFC3339)},
	})
	writeJSON(w, http.StatusCreated, inv)
}
