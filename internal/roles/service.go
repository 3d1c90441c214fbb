package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRoleByCode(ctx context.Context, code string) (Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetAssignment(ctx context.Context, id int64) (Assignment, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListOpenAssignments(ctx context.Context, employeeID int64) ([]Assignment, error)
	ListAssignmentHistory(ctx context.Context, employeeID int64) ([]Assignment, error)
	RolesForEmployee(ctx context.Context, employeeID int64) ([]Role, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached permission answers for an employee after the
// ledger changes.
type Invalidator interface {
	Invalidate(ctx context.Context, employeeID int64) error
}

// ServiceConfig tunes ledger behaviour.
type ServiceConfig struct {
	// AllowDuplicateGrants preserves the historical multiplicity where a
	// second open grant for the same (employee, role) is accepted rather
	// than rejected. Off by default.
	AllowDuplicateGrants bool
}

// Service orchestrates the role catalog and the assignment ledger.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache Invalidator
	cfg   ServiceConfig
	now   func() time.Time
}

// NewService constructs the roles service.
func NewService(repo RepositoryPort, audit AuditPort, cache Invalidator, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, cfg: cfg, now: time.Now}
}

// CreateRoleInput describes role creation payload.
type CreateRoleInput struct {
	Code         string
	Label        string
	Description  string
	Capabilities map[string]bool
}

// CreateRole inserts a new role into the catalog.
func (s *Service) CreateRole(ctx context.Context, actorID int64, input CreateRoleInput) (Role, error) {
	code := normalizeCode(input.Code)
	label := strings.TrimSpace(input.Label)
	if code == "" || label == "" {
		return Role{}, ErrValidation
	}
	role := Role{
		Code:         code,
		Label:        label,
		Description:  strings.TrimSpace(input.Description),
		Capabilities: input.Capabilities,
		Active:       true,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertRole(ctx, role)
		if err != nil {
			return err
		}
		role.ID = id
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, shared.AuditCreate, "roles", role.ID, "role created", nil, map[string]any{
		"code": role.Code, "label": role.Label, "capabilities": role.Capabilities,
	})
	return role, nil
}

// UpdateRole changes label, description and capabilities. The code is the
// immutable key and cannot change.
func (s *Service) UpdateRole(ctx context.Context, actorID int64, code, label, description string, capabilities map[string]bool) (Role, error) {
	role, err := s.repo.GetRoleByCode(ctx, normalizeCode(code))
	if err != nil {
		return Role{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return Role{}, ErrValidation
	}
	before := map[string]any{"label": role.Label, "description": role.Description, "capabilities": role.Capabilities}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRole(ctx, role.ID, label, strings.TrimSpace(description), capabilities)
	})
	if err != nil {
		return Role{}, err
	}
	role.Label = label
	role.Description = strings.TrimSpace(description)
	role.Capabilities = capabilities
	s.recordAudit(ctx, actorID, shared.AuditUpdate, "roles", role.ID, "role updated", before, map[string]any{
		"label": role.Label, "description": role.Description, "capabilities": role.Capabilities,
	})
	return role, nil
}

// DeactivateRole retires a role from the catalog. Existing grants keep their
// history; new grants of the code fail with ErrUnknownRole.
func (s *Service) DeactivateRole(ctx context.Context, actorID int64, code string) error {
	role, err := s.repo.GetRoleByCode(ctx, normalizeCode(code))
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetRoleActive(ctx, role.Code, false)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditUpdate, "roles", role.ID, "role deactivated",
		map[string]any{"active": true}, map[string]any{"active": false})
	return nil
}

// ListRoles returns the full catalog.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GrantInput describes a grant payload.
type GrantInput struct {
	EmployeeID int64
	RoleCode   string
	StartDate  time.Time
	GrantedBy  int64
	Comment    string
}

// Grant opens a new assignment. Fails with ErrUnknownRole when the role is
// missing or deactivated, and with ErrAlreadyGranted when an open grant for
// the pair already exists (unless AllowDuplicateGrants is set).
func (s *Service) Grant(ctx context.Context, input GrantInput) (Assignment, error) {
	if input.EmployeeID == 0 {
		return Assignment{}, ErrValidation
	}
	role, err := s.repo.GetRoleByCode(ctx, normalizeCode(input.RoleCode))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Assignment{}, ErrUnknownRole
		}
		return Assignment{}, err
	}
	if !role.Active {
		return Assignment{}, ErrUnknownRole
	}
	start := input.StartDate
	if start.IsZero() {
		start = s.today()
	}
	assignment := Assignment{
		EmployeeID: input.EmployeeID,
		RoleID:     role.ID,
		RoleCode:   role.Code,
		StartDate:  start,
		Active:     true,
		GrantedBy:  input.GrantedBy,
		Comment:    strings.TrimSpace(input.Comment),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !s.cfg.AllowDuplicateGrants {
			open, err := tx.CountOpenAssignments(ctx, input.EmployeeID, role.Code)
			if err != nil {
				return err
			}
			if open > 0 {
				return ErrAlreadyGranted
			}
		}
		id, err := tx.InsertAssignment(ctx, assignment)
		if err != nil {
			return err
		}
		assignment.ID = id
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}
	s.invalidate(ctx, input.EmployeeID)
	s.recordAudit(ctx, input.GrantedBy, shared.AuditCreate, "role_assignments", assignment.ID,
		fmt.Sprintf("granted %s", role.Code), nil, map[string]any{
			"employee_id": assignment.EmployeeID,
			"role_code":   assignment.RoleCode,
			"start_date":  assignment.StartDate.Format("2006-01-02"),
			"comment":     assignment.Comment,
		})
	return assignment, nil
}

// Revoke closes every open assignment of the role for the employee and
// returns how many rows were closed. Zero is not an error.
func (s *Service) Revoke(ctx context.Context, actorID, employeeID int64, roleCode string, endDate *time.Time) (int64, error) {
	roleCode = normalizeCode(roleCode)
	end := s.today()
	if endDate != nil {
		end = *endDate
	}
	var closed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.CloseOpenAssignments(ctx, employeeID, roleCode, end)
		if err != nil {
			return err
		}
		closed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		s.invalidate(ctx, employeeID)
		s.recordAudit(ctx, actorID, shared.AuditUpdate, "role_assignments", employeeID,
			fmt.Sprintf("revoked %s (%d closed)", roleCode, closed),
			map[string]any{"active": true, "end_date": nil},
			map[string]any{"active": false, "end_date": end.Format("2006-01-02")})
	}
	return closed, nil
}

// Reactivate reopens a closed assignment. Fails with ErrOpenConflict when the
// employee already holds another open grant of the same role.
func (s *Service) Reactivate(ctx context.Context, actorID, assignmentID int64) (Assignment, error) {
	assignment, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if assignment.Open() {
		return Assignment{}, ErrOpenConflict
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		open, err := tx.CountOpenAssignments(ctx, assignment.EmployeeID, assignment.RoleCode)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrOpenConflict
		}
		return tx.ReopenAssignment(ctx, assignmentID)
	})
	if err != nil {
		return Assignment{}, err
	}
	before := map[string]any{"active": assignment.Active}
	if assignment.EndDate != nil {
		before["end_date"] = assignment.EndDate.Format("2006-01-02")
	}
	assignment.Active = true
	assignment.EndDate = nil
	s.invalidate(ctx, assignment.EmployeeID)
	s.recordAudit(ctx, actorID, shared.AuditUpdate, "role_assignments", assignment.ID,
		fmt.Sprintf("reactivated %s", assignment.RoleCode), before,
		map[string]any{"active": true, "end_date": nil})
	return assignment, nil
}

// ListActiveRoles returns the roles behind the employee's open grants. Order
// is informational only; the result feeds display and audit surfaces.
func (s *Service) ListActiveRoles(ctx context.Context, employeeID int64) ([]Role, error) {
	return s.repo.RolesForEmployee(ctx, employeeID)
}

// ListAssignmentHistory returns the full ledger for an employee.
func (s *Service) ListAssignmentHistory(ctx context.Context, employeeID int64) ([]Assignment, error) {
	return s.repo.ListAssignmentHistory(ctx, employeeID)
}

// Role codes are stored uppercase; every lookup goes through the same
// normalization so "drh" and "DRH" name one role.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) invalidate(ctx context.Context, employeeID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, employeeID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, description string, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:     actorID,
		Action:      action,
		Entity:      entity,
		EntityID:    fmt.Sprintf("%d", entityID),
		Description: description,
		Before:      before,
		After:       after,
	})
}
