package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Handler exposes the role catalog and assignment ledger over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCapability(shared.CapManageRoles))
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Patch("/{code}", h.updateRole)
		r.Post("/{code}/deactivate", h.deactivateRole)
		r.Post("/grants", h.grant)
		r.Post("/grants/revoke", h.revoke)
		r.Post("/grants/{id}/reactivate", h.reactivate)
		r.Get("/employees/{id}/active", h.listActiveRoles)
		r.Get("/employees/{id}/history", h.listHistory)
	})
}

type roleForm struct {
	Code         string          `json:"code" validate:"required,max=64"`
	Label        string          `json:"label" validate:"required,max=255"`
	Description  string          `json:"description"`
	Capabilities map[string]bool `json:"capabilities"`
}

type grantForm struct {
	EmployeeID int64  `json:"employee_id" validate:"required,gt=0"`
	RoleCode   string `json:"role_code" validate:"required"`
	StartDate  string `json:"start_date"`
	Comment    string `json:"comment"`
}

type revokeForm struct {
	EmployeeID int64  `json:"employee_id" validate:"required,gt=0"`
	RoleCode   string `json:"role_code" validate:"required"`
	EndDate    string `json:"end_date"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var form roleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	role, err := h.service.CreateRole(r.Context(), actorID, CreateRoleInput{
		Code:         form.Code,
		Label:        form.Label,
		Description:  form.Description,
		Capabilities: form.Capabilities,
	})
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.OK(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var form roleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	role, err := h.service.UpdateRole(r.Context(), actorID, chi.URLParam(r, "code"), form.Label, form.Description, form.Capabilities)
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.OK(w, http.StatusOK, role)
}

func (h *Handler) deactivateRole(w http.ResponseWriter, r *http.Request) {
	actorID := shared.SessionFromContext(r.Context()).Actor()
	if err := h.service.DeactivateRole(r.Context(), actorID, chi.URLParam(r, "code")); err != nil {
		h.respondError(w, "deactivate role", err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var form grantForm
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
	actorID := shared.SessionFromContext(r.Context()).Actor()
	assignment, err := h.service.Grant(r.Context(), GrantInput{
		EmployeeID: form.EmployeeID,
		RoleCode:   form.RoleCode,
		StartDate:  start,
		GrantedBy:  actorID,
		Comment:    form.Comment,
	})
	if err != nil {
		h.respondError(w, "grant role", err)
		return
	}
	httpx.OK(w, http.StatusCreated, assignment)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	var form revokeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	var end *time.Time
	if form.EndDate != "" {
		parsed, ok := h.parseDate(w, form.EndDate)
		if !ok {
			return
		}
		end = &parsed
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	closed, err := h.service.Revoke(r.Context(), actorID, form.EmployeeID, form.RoleCode, end)
	if err != nil {
		h.respondError(w, "revoke role", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"closed": closed})
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid assignment id")
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	assignment, err := h.service.Reactivate(r.Context(), actorID, id)
	if err != nil {
		h.respondError(w, "reactivate assignment", err)
		return
	}
	httpx.OK(w, http.StatusOK, assignment)
}

func (h *Handler) listActiveRoles(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid employee id")
		return
	}
	list, err := h.service.ListActiveRoles(r.Context(), id)
	if err != nil {
		h.respondError(w, "list active roles", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid employee id")
		return
	}
	history, err := h.service.ListAssignmentHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, "list assignment history", err)
		return
	}
	httpx.OK(w, http.StatusOK, history)
}

func (h *Handler) parseDate(w http.ResponseWriter, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		httpx.FailKind(w, httpx.KindValidation, "dates must use YYYY-MM-DD")
		return time.Time{}, false
	}
	return parsed, true
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrDuplicateCode):
		httpx.FailKind(w, httpx.KindDuplicateCode, "a role with this code already exists")
	case errors.Is(err, ErrUnknownRole):
		httpx.FailKind(w, httpx.KindUnknownRole, "role is unknown or inactive")
	case errors.Is(err, ErrAlreadyGranted):
		httpx.FailKind(w, httpx.KindAlreadyGranted, "an open assignment already exists")
	case errors.Is(err, ErrOpenConflict):
		httpx.FailKind(w, httpx.KindOpenConflict, "another open assignment exists for this employee and role")
	case errors.Is(err, ErrNotFound):
		httpx.FailKind(w, httpx.KindNotFound, "role or assignment not found")
	case errors.Is(err, ErrValidation):
		httpx.FailKind(w, httpx.KindValidation, "invalid input")
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.FailKind(w, httpx.KindInternal, "")
	}
}
