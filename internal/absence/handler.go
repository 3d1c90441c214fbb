package absence

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/balance"
	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/roles"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Handler exposes absence requests over HTTP.
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

// MountRoutes registers absence routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireActor)
		r.Get("/types", h.listTypes)
		r.Post("/requests", h.submit)
		r.Get("/requests/mine", h.listMine)
		r.Get("/requests/{id}", h.getRequest)
		r.Post("/requests/{id}/manager-decision", h.decideAsManager)
		r.Post("/requests/{id}/rh-decision", h.decideAsRH)
		r.Post("/requests/{id}/cancel", h.cancel)
		r.Get("/queue/manager", h.managerQueue)
		r.Get("/queue/rh", h.rhQueue)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCapability(shared.CapManageEmployees))
		r.Post("/types", h.createType)
	})
}

type submitForm struct {
	TypeCode  string `json:"type_code" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	HalfDay   bool   `json:"half_day"`
	Reason    string `json:"reason" validate:"max=2000"`
}

type decisionForm struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Comment  string `json:"comment" validate:"max=2000"`
}

type typeForm struct {
	Code           string `json:"code" validate:"required,max=16"`
	Label          string `json:"label" validate:"required,max=255"`
	DeductsBalance bool   `json:"deducts_balance"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var form submitForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	start, ok := h.parseDate(w, form.StartDate)
	if !ok {
		return
	}
	end, ok := h.parseDate(w, form.EndDate)
	if !ok {
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	req, err := h.service.Submit(r.Context(), SubmitInput{
		RequesterID: actorID,
		TypeCode:    form.TypeCode,
		StartDate:   start,
		EndDate:     end,
		HalfDay:     form.HalfDay,
		Reason:      form.Reason,
	})
	if err != nil {
		h.respondError(w, "submit absence", err)
		return
	}
	httpx.OK(w, http.StatusCreated, req)
}

func (h *Handler) decideAsManager(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.DecideAsManager)
}

func (h *Handler) decideAsRH(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.DecideAsRH)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actorID, requestID int64, decision Decision, comment string) (Request, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form decisionForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	req, err := apply(r.Context(), actorID, id, Decision(form.Decision), form.Comment)
	if err != nil {
		h.respondError(w, "decide absence", err)
		return
	}
	httpx.OK(w, http.StatusOK, req)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	req, err := h.service.Cancel(r.Context(), actorID, id)
	if err != nil {
		h.respondError(w, "cancel absence", err)
		return
	}
	httpx.OK(w, http.StatusOK, req)
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		h.respondError(w, "get absence", err)
		return
	}
	httpx.OK(w, http.StatusOK, req)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actorID := shared.SessionFromContext(r.Context()).Actor()
	list, err := h.service.ListForRequester(r.Context(), actorID)
	if err != nil {
		h.respondError(w, "list own absences", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) managerQueue(w http.ResponseWriter, r *http.Request) {
	h.queue(w, r, StatusPendingManager)
}

func (h *Handler) rhQueue(w http.ResponseWriter, r *http.Request) {
	h.queue(w, r, StatusPendingRH)
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request, status Status) {
	list, err := h.service.ListQueue(r.Context(), status)
	if err != nil {
		h.respondError(w, "list queue", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTypes(r.Context())
	if err != nil {
		h.respondError(w, "list types", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) createType(w http.ResponseWriter, r *http.Request) {
	var form typeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	created, err := h.service.CreateType(r.Context(), actorID, Type{
		Code:           form.Code,
		Label:          form.Label,
		DeductsBalance: form.DeductsBalance,
		Active:         true,
	})
	if err != nil {
		h.respondError(w, "create type", err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.FailKind(w, httpx.KindValidation, "invalid request id")
		return 0, false
	}
	return id, true
}

func (h *Handler) parseDate(w http.ResponseWriter, value string) (time.Time, bool) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		httpx.FailKind(w, httpx.KindValidation, "dates must use YYYY-MM-DD")
		return time.Time{}, false
	}
	return parsed, true
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotAuthorized):
		httpx.FailKind(w, httpx.KindNotAuthorized, "you are not allowed to perform this action")
	case errors.Is(err, ErrInvalidState):
		httpx.FailKind(w, httpx.KindInvalidState, "the request is not in a state that allows this action")
	case errors.Is(err, ErrInvalidDateRange):
		httpx.FailKind(w, httpx.KindInvalidDateRange, "the end date must not precede the start date")
	case errors.Is(err, ErrUnknownType):
		httpx.FailKind(w, httpx.KindValidation, "unknown or inactive absence type")
	case errors.Is(err, balance.ErrInsufficientBalance):
		httpx.FailKind(w, httpx.KindInsufficientBalance, "not enough leave days remaining")
	case errors.Is(err, ErrNotFound):
		httpx.FailKind(w, httpx.KindNotFound, "absence request not found")
	case errors.Is(err, ErrValidation):
		httpx.FailKind(w, httpx.KindValidation, "invalid input")
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.FailKind(w, httpx.KindInternal, "")
	}
}
