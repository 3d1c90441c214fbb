package balance

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/roles"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Handler exposes the leave balance ledger over HTTP. Decrements are never
// requested here; they only happen as part of an approval.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     roles.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireActor)
		r.Get("/mine", h.listMine)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCapability(shared.CapManageBalances))
		r.Get("/employees/{id}", h.listForEmployee)
		r.Put("/employees/{id}", h.set)
		r.Post("/employees/{id}/restore", h.restore)
	})
}

type setForm struct {
	Year int     `json:"year" validate:"required,gte=2000"`
	Days float64 `json:"days" validate:"gte=0"`
}

type restoreForm struct {
	Year int     `json:"year" validate:"required,gte=2000"`
	Days float64 `json:"days" validate:"required,gt=0"`
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actorID := shared.SessionFromContext(r.Context()).Actor()
	list, err := h.service.ListForEmployee(r.Context(), actorID)
	if err != nil {
		h.respondError(w, "list own balances", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) listForEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	list, err := h.service.ListForEmployee(r.Context(), employeeID)
	if err != nil {
		h.respondError(w, "list balances", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var form setForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	if err := h.service.Set(r.Context(), actorID, employeeID, form.Year, form.Days); err != nil {
		h.respondError(w, "set balance", err)
		return
	}
	balance, err := h.service.Get(r.Context(), employeeID, form.Year)
	if err != nil {
		h.respondError(w, "set balance", err)
		return
	}
	httpx.OK(w, http.StatusOK, balance)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var form restoreForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	if err := h.service.Restore(r.Context(), actorID, employeeID, form.Year, form.Days); err != nil {
		h.respondError(w, "restore balance", err)
		return
	}
	balance, err := h.service.Get(r.Context(), employeeID, form.Year)
	if err != nil {
		h.respondError(w, "restore balance", err)
		return
	}
	httpx.OK(w, http.StatusOK, balance)
}

func (h *Handler) parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.FailKind(w, httpx.KindValidation, "invalid employee id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.FailKind(w, httpx.KindNotFound, "balance not found")
	case errors.Is(err, ErrValidation):
		httpx.FailKind(w, httpx.KindValidation, err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.FailKind(w, httpx.KindInternal, "unexpected error")
	}
}
