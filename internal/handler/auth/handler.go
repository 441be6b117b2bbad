package auth

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/middleware"
	"github.com/azerweys/panel/backend/internal/model/user"
	"github.com/azerweys/panel/backend/internal/service/session"
	userService "github.com/azerweys/panel/backend/internal/service/user"
	"github.com/azerweys/panel/backend/pkg/utils"
)

// Handler covers login, logout and credential recovery.
type Handler struct {
	users    *userService.Service
	sessions *session.Manager
}

// New creates the auth handler.
func New(users *userService.Service, sessions *session.Manager) *Handler {
	return &Handler{users: users, sessions: sessions}
}

// RegisterRoutes mounts the form endpoints at the site root.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
}

// RegisterAPIRoutes mounts the API endpoints that work without a login.
func (h *Handler) RegisterAPIRoutes(r chi.Router) {
	r.Post("/verify-owner", h.handleVerifyOwner)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password", h.handleResetPassword)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		if err := utils.DecodeJSON(r, &creds); err != nil {
			http.Redirect(w, r, middleware.LoginPage+"?error=true", http.StatusFound)
			return
		}
	} else {
		creds.Username = r.FormValue("username")
		creds.Password = r.FormValue("password")
	}

	identity, err := h.users.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if !errors.Is(err, userService.ErrInvalidCredentials) {
			log.Error().Err(err).Msg("[auth] login failed")
		}
		http.Redirect(w, r, middleware.LoginPage+"?error=true", http.StatusFound)
		return
	}

	sess := session.FromContext(r.Context())
	sess.User = &identity
	sess.OwnerVerified = false
	if err := h.sessions.Renew(r.Context(), w, sess); err != nil {
		log.Error().Err(err).Msg("[auth] save session failed")
		http.Redirect(w, r, middleware.LoginPage+"?error=true", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess.Authenticated() {
		h.users.Logout(*sess.User)
	}
	if err := h.sessions.Destroy(r.Context(), w, sess); err != nil {
		log.Error().Err(err).Msg("[auth] destroy session failed")
		http.Redirect(w, r, "/?logoutFailed=true", http.StatusFound)
		return
	}
	http.Redirect(w, r, middleware.LoginPage, http.StatusFound)
}

func (h *Handler) handleVerifyOwner(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.users.VerifyOwner(r.Context(), payload.Password); err != nil {
		if errors.Is(err, userService.ErrInvalidCredentials) {
			utils.RespondError(w, http.StatusUnauthorized, "wrong password")
			return
		}
		log.Error().Err(err).Msg("[auth] verify owner failed")
		utils.RespondError(w, http.StatusInternalServerError, "server error")
		return
	}

	sess := session.FromContext(r.Context())
	sess.OwnerVerified = true
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		log.Error().Err(err).Msg("[auth] save session failed")
		utils.RespondError(w, http.StatusInternalServerError, "server error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reset, email, err := h.users.RequestReset(r.Context(), payload.Username)
	switch {
	case errors.Is(err, userService.ErrNoEmail):
		utils.RespondError(w, http.StatusNotFound, "no email address found for this username")
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "reset code could not be sent")
		return
	}

	sess := session.FromContext(r.Context())
	sess.Reset = &reset
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		log.Error().Err(err).Msg("[auth] save session failed")
		utils.RespondError(w, http.StatusInternalServerError, "reset code could not be sent")
		return
	}
	utils.RespondMessage(w, http.StatusOK, "verification code sent to "+email)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload userService.ResetRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := session.FromContext(r.Context())
	err := h.users.ResetPassword(r.Context(), sess.Reset, payload)
	switch {
	case errors.Is(err, userService.ErrInvalidOTP):
		utils.RespondError(w, http.StatusBadRequest, "invalid reset code")
		return
	case errors.Is(err, userService.ErrOTPExpired):
		utils.RespondError(w, http.StatusBadRequest, "reset code expired")
		return
	case errors.Is(err, userService.ErrWeakPassword):
		utils.RespondError(w, http.StatusBadRequest, "new password must be at least 6 characters")
		return
	case errors.Is(err, user.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		log.Error().Err(err).Msg("[auth] reset password failed")
		utils.RespondError(w, http.StatusInternalServerError, "password could not be updated")
		return
	}

	sess.Reset = nil
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		log.Error().Err(err).Msg("[auth] save session failed")
	}
	utils.RespondMessage(w, http.StatusOK, "password updated")
}
