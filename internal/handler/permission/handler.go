package permission

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/middleware"
	"github.com/azerweys/panel/backend/internal/model/permission"
	"github.com/azerweys/panel/backend/internal/service/audit"
	permissionService "github.com/azerweys/panel/backend/internal/service/permission"
	"github.com/azerweys/panel/backend/internal/service/session"
	"github.com/azerweys/panel/backend/pkg/utils"
)

// Handler exposes the role permission table.
type Handler struct {
	perms *permissionService.Service
	audit audit.Notifier
}

// New creates the permission handler.
func New(perms *permissionService.Service, notifier audit.Notifier) *Handler {
	return &Handler{perms: perms, audit: notifier}
}

// RegisterRoutes mounts the permission routes. They need a logged in session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/user/permissions", h.handleMine)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOwnerVerified)
		r.Get("/permissions", h.handleList)
		r.Put("/permissions", h.handleReplace)
	})
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	set, ok, err := h.perms.Lookup(r.Context(), *sess.User)
	if err != nil {
		log.Error().Err(err).Msg("[permission] lookup failed")
		utils.RespondError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !ok {
		utils.RespondJSON(w, http.StatusOK, struct{}{})
		return
	}
	utils.RespondJSON(w, http.StatusOK, set)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	table, err := h.perms.All(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("[permission] load failed")
		utils.RespondError(w, http.StatusInternalServerError, "server error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, table)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	var table permission.Table
	if err := utils.DecodeJSON(r, &table); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.perms.Replace(r.Context(), table); err != nil {
		log.Error().Err(err).Msg("[permission] save failed")
		utils.RespondError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.audit.Notify(*session.FromContext(r.Context()).User, "bütün rollar üçün icazələri yenilədi.")
	utils.RespondMessage(w, http.StatusOK, "permissions saved")
}
