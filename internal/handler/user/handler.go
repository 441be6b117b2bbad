package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/middleware"
	"github.com/azerweys/panel/backend/internal/model/user"
	"github.com/azerweys/panel/backend/internal/service/session"
	userService "github.com/azerweys/panel/backend/internal/service/user"
	"github.com/azerweys/panel/backend/pkg/utils"
)

// Handler exposes account management.
type Handler struct {
	users *userService.Service
}

// New creates the user handler.
func New(users *userService.Service) *Handler {
	return &Handler{users: users}
}

// RegisterPublicRoutes mounts account creation, which is gated by owner
// verification instead of a login.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.With(middleware.RequireOwnerVerified).Post("/users/create", h.handleCreate)
}

// RegisterRoutes mounts the routes that need a logged in session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/user/me", h.handleMe)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOwner)
		r.Get("/users", h.handleList)
		r.Put("/users/{username}", h.handleUpdate)
		r.Delete("/users/{username}", h.handleDelete)
	})
}

func actor(r *http.Request) user.Identity {
	if sess := session.FromContext(r.Context()); sess.Authenticated() {
		return *sess.User
	}
	return user.Identity{}
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, actor(r))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload userService.CreateRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.users.Create(r.Context(), actor(r), payload); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusCreated, "user created")
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, users)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload userService.UpdateRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.users.Update(r.Context(), actor(r), chi.URLParam(r, "username"), payload); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "user updated")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), actor(r), chi.URLParam(r, "username")); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "user deleted")
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, userService.ErrInvalid):
		utils.RespondError(w, http.StatusBadRequest, "all fields are required")
	case errors.Is(err, userService.ErrSelfDelete):
		utils.RespondError(w, http.StatusBadRequest, "owner cannot delete own account")
	case errors.Is(err, user.ErrExists):
		utils.RespondError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, user.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
	default:
		log.Error().Err(err).Msg("[user] request failed")
		utils.RespondError(w, http.StatusInternalServerError, "server error")
	}
}
