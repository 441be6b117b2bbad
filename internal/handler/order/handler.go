package order

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/model/order"
	"github.com/azerweys/panel/backend/internal/model/user"
	orderService "github.com/azerweys/panel/backend/internal/service/order"
	"github.com/azerweys/panel/backend/internal/service/session"
	"github.com/azerweys/panel/backend/pkg/utils"
)

const maxBody = 1 << 20

// Handler exposes orders and the views derived from them.
type Handler struct {
	orders *orderService.Service
}

// New creates the order handler.
func New(orders *orderService.Service) *Handler {
	return &Handler{orders: orders}
}

// RegisterRoutes mounts the order routes. They need a logged in session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/search/rez/{rezNomresi}", h.handleSearch)
		r.Put("/{satisNo}", h.handleUpdate)
		r.Delete("/{satisNo}", h.handleDelete)
		r.Put("/{satisNo}/note", h.handleNote)
	})
	r.Get("/reservations", h.handleReservations)
	r.Get("/reports", h.handleReports)
	r.Get("/debts", h.handleDebts)
	r.Get("/notifications", h.handleNotifications)
}

func actor(r *http.Request) user.Identity {
	return *session.FromContext(r.Context()).User
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBody))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.orders.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.orders.Create(r.Context(), actor(r), body)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.orders.Update(r.Context(), actor(r), chi.URLParam(r, "satisNo"), body); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "order updated")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), actor(r), chi.URLParam(r, "satisNo")); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "order deleted")
}

func (h *Handler) handleNote(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Note *string `json:"qeyd"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.orders.UpdateNote(r.Context(), actor(r), chi.URLParam(r, "satisNo"), payload.Note); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "note updated")
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	found, err := h.orders.FindByReservation(r.Context(), chi.URLParam(r, "rezNomresi"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, found)
}

func (h *Handler) handleReservations(w http.ResponseWriter, r *http.Request) {
	out, err := h.orders.Reservations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	report, err := h.orders.Report(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.orders.Debts(r.Context(), r.URL.Query().Get("company"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, debts)
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := h.orders.Notifications(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orderService.ErrInvalid):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orderService.ErrNoteMissing):
		utils.RespondError(w, http.StatusBadRequest, "note text is missing")
	case errors.Is(err, orderService.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "you are not allowed to do this")
	case errors.Is(err, order.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "order not found")
	default:
		log.Error().Err(err).Msg("[order] request failed")
		utils.RespondError(w, http.StatusInternalServerError, "server error")
	}
}
