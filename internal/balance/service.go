package balance

import (
	"context"
	"fmt"

	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// RepositoryPort describes the persistence surface used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, employeeID int64, year int) (Balance, error)
	ListForEmployee(ctx context.Context, employeeID int64) ([]Balance, error)
	Set(ctx context.Context, employeeID int64, year int, days float64) error
	Restore(ctx context.Context, employeeID int64, year int, days float64) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes administrative reads and writes of the leave balance
// ledger. Approval-driven decrements do not go through here; they run inside
// the approval transaction.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the balance service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) Get(ctx context.Context, employeeID int64, year int) (Balance, error) {
	return s.repo.Get(ctx, employeeID, year)
}

func (s *Service) ListForEmployee(ctx context.Context, employeeID int64) ([]Balance, error) {
	return s.repo.ListForEmployee(ctx, employeeID)
}

// Set writes an absolute entitlement for the employee and year.
func (s *Service) Set(ctx context.Context, actorID, employeeID int64, year int, days float64) error {
	if employeeID <= 0 || year < 2000 || days < 0 {
		return ErrValidation
	}
	var before map[string]any
	if current, err := s.repo.Get(ctx, employeeID, year); err == nil {
		before = map[string]any{"days_remaining": current.DaysRemaining}
	}
	if err := s.repo.Set(ctx, employeeID, year, days); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditUpdate, employeeID, year,
		fmt.Sprintf("balance set to %.1f", days), before, map[string]any{"days_remaining": days})
	return nil
}

// Restore credits days back to an existing balance row.
func (s *Service) Restore(ctx context.Context, actorID, employeeID int64, year int, days float64) error {
	if days <= 0 {
		return ErrValidation
	}
	if err := s.repo.Restore(ctx, employeeID, year, days); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditUpdate, employeeID, year,
		fmt.Sprintf("balance credited %.1f days", days), nil, map[string]any{"credited": days})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, employeeID int64, year int, description string, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:     actorID,
		Action:      action,
		Entity:      "leave_balances",
		EntityID:    fmt.Sprintf("%d:%d", employeeID, year),
		Description: description,
		Before:      before,
		After:       after,
	})
}
