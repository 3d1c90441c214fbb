package directory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/roles"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Handler exposes the directory over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *Resolver
	guard     roles.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, guard roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, resolver: resolver, guard: guard, validator: validator.New()}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireActor)
		r.Get("/employees", h.listEmployees)
		r.Get("/employees/{id}", h.getEmployee)
		r.Get("/employees/{id}/manager", h.managerOf)
		r.Get("/departments", h.listDepartments)
		r.Get("/departments/{id}/manager", h.openManager)
		r.Get("/departments/{id}/managers", h.managerHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCapability(shared.CapManageEmployees))
		r.Post("/employees", h.createEmployee)
		r.Put("/employees/{id}", h.updateEmployee)
		r.Post("/employees/{id}/move", h.moveEmployee)
		r.Post("/departments", h.createDepartment)
		r.Post("/departments/{id}/manager", h.appointManager)
		r.Delete("/departments/{id}/manager", h.dismissManager)
	})
}

type employeeForm struct {
	Number       string `json:"number" validate:"required,max=32"`
	FirstName    string `json:"first_name" validate:"max=128"`
	LastName     string `json:"last_name" validate:"required,max=128"`
	Email        string `json:"email" validate:"omitempty,email"`
	Position     string `json:"position" validate:"max=128"`
	DepartmentID *int64 `json:"department_id"`
	Active       bool   `json:"active"`
}

type appointForm struct {
	EmployeeID int64  `json:"employee_id" validate:"required,gt=0"`
	StartDate  string `json:"start_date"`
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListEmployees(r.Context())
	if err != nil {
		h.respondError(w, "list employees", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	emp, err := h.service.GetEmployee(r.Context(), id)
	if err != nil {
		h.respondError(w, "get employee", err)
		return
	}
	httpx.OK(w, http.StatusOK, emp)
}

func (h *Handler) managerOf(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	manager, found, err := h.resolver.ManagerOf(r.Context(), id)
	if err != nil {
		h.respondError(w, "resolve manager", err)
		return
	}
	if !found {
		httpx.OK(w, http.StatusOK, nil)
		return
	}
	httpx.OK(w, http.StatusOK, manager)
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.respondError(w, "list departments", err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) openManager(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	manager, found, err := h.resolver.OpenManager(r.Context(), id)
	if err != nil {
		h.respondError(w, "resolve department manager", err)
		return
	}
	if !found {
		httpx.OK(w, http.StatusOK, nil)
		return
	}
	httpx.OK(w, http.StatusOK, manager)
}

func (h *Handler) managerHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	history, err := h.service.ManagerHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, "manager history", err)
		return
	}
	httpx.OK(w, http.StatusOK, history)
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	var form employeeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	emp, err := h.service.CreateEmployee(r.Context(), actorID, Employee{
		Number:       form.Number,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		Position:     form.Position,
		DepartmentID: form.DepartmentID,
		Active:       form.Active,
	})
	if err != nil {
		h.respondError(w, "create employee", err)
		return
	}
	httpx.OK(w, http.StatusCreated, emp)
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form employeeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	err := h.service.UpdateEmployee(r.Context(), actorID, Employee{
		ID:           id,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		Position:     form.Position,
		DepartmentID: form.DepartmentID,
		Active:       form.Active,
	})
	if err != nil {
		h.respondError(w, "update employee", err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) moveEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form struct {
		DepartmentID *int64 `json:"department_id"`
	}
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	if err := h.service.MoveEmployee(r.Context(), actorID, id, form.DepartmentID); err != nil {
		h.respondError(w, "move employee", err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Name string `json:"name" validate:"required,max=128"`
	}
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	dep, err := h.service.CreateDepartment(r.Context(), actorID, form.Name)
	if err != nil {
		h.respondError(w, "create department", err)
		return
	}
	httpx.OK(w, http.StatusCreated, dep)
}

func (h *Handler) appointManager(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form appointForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.FailKind(w, httpx.KindValidation, err.Error())
		return
	}
	var start time.Time
	if form.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", form.StartDate)
		if err != nil {
			httpx.FailKind(w, httpx.KindValidation, "dates must use YYYY-MM-DD")
			return
		}
		start = parsed
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	assignment, err := h.service.AppointManager(r.Context(), actorID, id, form.EmployeeID, start)
	if err != nil {
		h.respondError(w, "appoint manager", err)
		return
	}
	httpx.OK(w, http.StatusCreated, assignment)
}

func (h *Handler) dismissManager(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actorID := shared.SessionFromContext(r.Context()).Actor()
	closed, err := h.service.DismissManager(r.Context(), actorID, id, nil)
	if err != nil {
		h.respondError(w, "dismiss manager", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"closed": closed})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.FailKind(w, httpx.KindValidation, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.FailKind(w, httpx.KindNotFound, "employee or department not found")
	case errors.Is(err, ErrDuplicateNumber):
		httpx.FailKind(w, httpx.KindDuplicateCode, "an employee with this number already exists")
	case errors.Is(err, ErrValidation):
		httpx.FailKind(w, httpx.KindValidation, "invalid input")
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.FailKind(w, httpx.KindInternal, "")
	}
}
