package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/users"
)

// Mailer queues outbound mail for asynchronous delivery.
type Mailer interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// Handler manages authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	users    *users.Service
	tokens   *TokenStore
	resets   *ResetManager
	recorder audit.Recorder
	mailer   Mailer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, userSvc *users.Service, tokens *TokenStore, resets *ResetManager, recorder audit.Recorder, mailer Mailer) *Handler {
	return &Handler{
		logger:   logger,
		users:    userSvc,
		tokens:   tokens,
		resets:   resets,
		recorder: recorder,
		mailer:   mailer,
	}
}

// MountPublicRoutes registers routes reachable without a token.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.login)
	r.Post("/auth/password-reset/request", h.requestReset)
	r.Post("/auth/password-reset/confirm", h.confirmReset)
}

// MountRoutes registers authenticated auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/logout", h.logout)
	r.Get("/auth/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email))
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor := shared.Actor{ID: user.ID, Email: user.Email, Role: user.Role}
	token, err := h.tokens.Issue(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.recorder.Record(r.Context(), audit.Event{
		ActorID:  user.ID,
		Action:   audit.ActionLogin,
		Entity:   "user",
		EntityID: user.ID,
		Details:  map[string]any{"email": user.Email},
	}); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if token := bearerToken(r); token != "" {
		if err := h.tokens.Revoke(r.Context(), token); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	if err := h.recorder.Record(r.Context(), audit.Event{
		ActorID:  actor.ID,
		Action:   audit.ActionLogout,
		Entity:   "user",
		EntityID: actor.ID,
		Details:  map[string]any{"email": actor.Email},
	}); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	user, err := h.users.Get(r.Context(), actor.ID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type resetRequest struct {
	Email string `json:"email"`
}

// requestReset always answers 202 so the endpoint does not leak which
// addresses exist.
func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err == nil && user.Active {
		token, err := h.resets.Issue(r.Context(), user.ID)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		body := fmt.Sprintf("Use the following token to reset your password within 30 minutes: %s", token)
		if err := h.mailer.EnqueueMail(r.Context(), user.Email, "Password reset", body); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

type confirmResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	userID, err := h.resets.Consume(r.Context(), req.Token)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.users.ResetPassword(r.Context(), userID, req.Password); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	// drop every open session of the account
	if err := h.tokens.RevokeAll(r.Context(), userID); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
