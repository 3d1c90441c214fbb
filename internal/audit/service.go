package audit

import (
	"context"
	"fmt"
)

// RepositoryPort is the read surface the service needs.
type RepositoryPort interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error)
}

// Service coordinates reading the audit trail.
type Service struct {
	repo RepositoryPort
}

// NewService creates a new timeline service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline fetches audit entries with paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Window(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// EntityHistory returns every entry ever written for one record.
func (s *Service) EntityHistory(ctx context.Context, entity, entityID string) ([]Entry, error) {
	if entity == "" || entityID == "" {
		return nil, fmt.Errorf("audit: entity and entity id are required")
	}
	return s.repo.Window(ctx, TimelineFilters{Entity: entity, EntityID: entityID}, 0, 500)
}
