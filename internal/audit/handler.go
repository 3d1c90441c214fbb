package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/roles"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Handler exposes the audit timeline over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   roles.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCapability(shared.CapViewAudit))
		r.Get("/", h.timeline)
		r.Get("/{entity}/{id}", h.entityHistory)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := TimelineFilters{
		Entity:   query.Get("entity"),
		Action:   query.Get("action"),
		EntityID: query.Get("entity_id"),
	}
	if raw := query.Get("actor"); raw != "" {
		actor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.FailKind(w, httpx.KindValidation, "actor must be an id")
			return
		}
		filters.Actor = actor
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.FailKind(w, httpx.KindValidation, "dates must use YYYY-MM-DD")
			return
		}
		filters.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.FailKind(w, httpx.KindValidation, "dates must use YYYY-MM-DD")
			return
		}
		// Include the whole day.
		filters.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	filters.Page, _ = strconv.Atoi(query.Get("page"))
	filters.PageSize, _ = strconv.Atoi(query.Get("page_size"))

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.FailKind(w, httpx.KindInternal, "")
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) entityHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.EntityHistory(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		httpx.FailKind(w, httpx.KindValidation, "entity and id are required")
		return
	}
	httpx.OK(w, http.StatusOK, entries)
}
