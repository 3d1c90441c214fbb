package absence

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
	GetRequest(ctx context.Context, id int64) (Request, error)
	ListForRequester(ctx context.Context, employeeID int64) ([]Request, error)
	ListByStatus(ctx context.Context, status Status) ([]Request, error)
	GetTypeByCode(ctx context.Context, code string) (Type, error)
	ListTypes(ctx context.Context) ([]Type, error)
	CreateType(ctx context.Context, t Type) (int64, error)
}

// PermissionPort gates the two approval stages from the role ledger.
type PermissionPort interface {
	HasRole(ctx context.Context, employeeID int64, roleCode string) (bool, error)
	HasCapability(ctx context.Context, employeeID int64, capability string) (bool, error)
}

// HierarchyPort answers the department manager relation.
type HierarchyPort interface {
	IsManagerOf(ctx context.Context, candidateID, subordinateID int64) (bool, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort delivers decision notifications out of band. Failures are
// swallowed; a notification must never affect a transition.
type NotifierPort interface {
	RequestDecided(ctx context.Context, req Request) error
}

// Service owns the absence request lifecycle. Every transition is gated by
// the permission or hierarchy resolver and applied with a compare-and-set on
// the status column, so of two concurrent decisions exactly one wins and the
// loser observes ErrInvalidState.
type Service struct {
	repo        RepositoryPort
	permissions PermissionPort
	hierarchy   HierarchyPort
	audit       AuditPort
	notifier    NotifierPort
	now         func() time.Time
}

// NewService constructs the approval service. audit and notifier may be nil.
func NewService(repo RepositoryPort, permissions PermissionPort, hierarchy HierarchyPort, audit AuditPort, notifier NotifierPort) *Service {
	return &Service{
		repo:        repo,
		permissions: permissions,
		hierarchy:   hierarchy,
		audit:       audit,
		notifier:    notifier,
		now:         time.Now,
	}
}

// SubmitInput describes a new absence request.
type SubmitInput struct {
	RequesterID int64
	TypeCode    string
	StartDate   time.Time
	EndDate     time.Time
	HalfDay     bool
	Reason      string
}

// Submit creates a request in PENDING_MANAGER. No balance is touched until
// the final approval.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (Request, error) {
	if input.RequesterID == 0 {
		return Request{}, ErrValidation
	}
	if input.EndDate.Before(input.StartDate) {
		return Request{}, ErrInvalidDateRange
	}
	if input.HalfDay && !input.EndDate.Equal(input.StartDate) {
		return Request{}, ErrInvalidDateRange
	}
	typ, err := s.repo.GetTypeByCode(ctx, strings.ToUpper(strings.TrimSpace(input.TypeCode)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Request{}, ErrUnknownType
		}
		return Request{}, err
	}
	if !typ.Active {
		return Request{}, ErrUnknownType
	}
	req := Request{
		RequesterID: input.RequesterID,
		TypeID:      typ.ID,
		TypeCode:    typ.Code,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		HalfDay:     input.HalfDay,
		Reason:      strings.TrimSpace(input.Reason),
		Status:      StatusPendingManager,
		CreatedBy:   input.RequesterID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertRequest(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, input.RequesterID, shared.AuditCreate, req.ID, "absence request submitted", nil, map[string]any{
		"type":       req.TypeCode,
		"start_date": req.StartDate.Format("2006-01-02"),
		"end_date":   req.EndDate.Format("2006-01-02"),
		"half_day":   req.HalfDay,
		"status":     string(req.Status),
	})
	return req, nil
}

// DecideAsManager applies the first-stage decision. The actor must manage
// the requester's department or hold the MANAGER role; the two signals are
// independent and either one suffices.
func (s *Service) DecideAsManager(ctx context.Context, actorID, requestID int64, decision Decision, comment string) (Request, error) {
	target, err := stageTarget(decision, StatusPendingRH)
	if err != nil {
		return Request{}, err
	}
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	allowed, err := s.managerGate(ctx, actorID, req.RequesterID)
	if err != nil {
		return Request{}, err
	}
	if !allowed {
		return Request{}, ErrNotAuthorized
	}
	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.UpdateStatusIf(ctx, requestID, StatusPendingManager, target)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return tx.SetManagerDecision(ctx, requestID, actorID, comment, now)
	})
	if err != nil {
		return Request{}, err
	}
	before := map[string]any{"status": string(req.Status)}
	req.Status = target
	req.ManagerValidator = actorID
	req.ManagerComment = comment
	req.ManagerDecidedAt = &now
	s.recordAudit(ctx, actorID, shared.AuditUpdate, req.ID,
		fmt.Sprintf("manager decision %s", decision), before, map[string]any{
			"status":            string(req.Status),
			"manager_validator": actorID,
		})
	s.notify(ctx, req)
	return req, nil
}

// DecideAsRH applies the second-stage decision. On final approval of a
// balance-deducting type, the leave balance decrement runs in the same
// transaction as the status change; an insufficient balance rolls both back.
func (s *Service) DecideAsRH(ctx context.Context, actorID, requestID int64, decision Decision, comment string) (Request, error) {
	target, err := stageTarget(decision, StatusApproved)
	if err != nil {
		return Request{}, err
	}
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	allowed, err := s.rhGate(ctx, actorID)
	if err != nil {
		return Request{}, err
	}
	if !allowed {
		return Request{}, ErrNotAuthorized
	}
	typ, err := s.repo.GetTypeByCode(ctx, req.TypeCode)
	if err != nil {
		return Request{}, err
	}
	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.UpdateStatusIf(ctx, requestID, StatusPendingRH, target)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		if err := tx.SetRHDecision(ctx, requestID, actorID, comment, now); err != nil {
			return err
		}
		if target == StatusApproved && typ.DeductsBalance {
			return tx.DecrementBalance(ctx, req.RequesterID, req.StartDate.Year(), req.Days())
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	before := map[string]any{"status": string(req.Status)}
	req.Status = target
	req.RHValidator = actorID
	req.RHComment = comment
	req.RHDecidedAt = &now
	after := map[string]any{
		"status":       string(req.Status),
		"rh_validator": actorID,
	}
	if target == StatusApproved && typ.DeductsBalance {
		after["days_deducted"] = req.Days()
	}
	s.recordAudit(ctx, actorID, shared.AuditUpdate, req.ID,
		fmt.Sprintf("rh decision %s", decision), before, after)
	s.notify(ctx, req)
	return req, nil
}

// Cancel ends a pending request. Only the requester may cancel their own
// request, unless the actor carries the cancel-any override capability.
func (s *Service) Cancel(ctx context.Context, actorID, requestID int64) (Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if actorID != req.RequesterID {
		override, err := s.permissions.HasCapability(ctx, actorID, shared.CapCancelAnyAbsence)
		if err != nil {
			return Request{}, err
		}
		if !override {
			return Request{}, ErrNotAuthorized
		}
	}
	if req.Status.Terminal() {
		return Request{}, ErrInvalidState
	}
	from := req.Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.UpdateStatusIf(ctx, requestID, from, StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	req.Status = StatusCancelled
	s.recordAudit(ctx, actorID, shared.AuditUpdate, req.ID, "absence request cancelled",
		map[string]any{"status": string(from)}, map[string]any{"status": string(StatusCancelled)})
	s.notify(ctx, req)
	return req, nil
}

// GetRequest fetches a single request.
func (s *Service) GetRequest(ctx context.Context, id int64) (Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// ListForRequester returns the employee's own requests.
func (s *Service) ListForRequester(ctx context.Context, employeeID int64) ([]Request, error) {
	return s.repo.ListForRequester(ctx, employeeID)
}

// ListQueue returns requests waiting in the given status.
func (s *Service) ListQueue(ctx context.Context, status Status) ([]Request, error) {
	switch status {
	case StatusPendingManager, StatusPendingRH:
		return s.repo.ListByStatus(ctx, status)
	default:
		return nil, ErrValidation
	}
}

// ListTypes returns the absence type catalog.
func (s *Service) ListTypes(ctx context.Context) ([]Type, error) {
	return s.repo.ListTypes(ctx)
}

// CreateType registers a new absence type.
func (s *Service) CreateType(ctx context.Context, actorID int64, t Type) (Type, error) {
	t.Code = strings.ToUpper(strings.TrimSpace(t.Code))
	t.Label = strings.TrimSpace(t.Label)
	if t.Code == "" || t.Label == "" {
		return Type{}, ErrValidation
	}
	id, err := s.repo.CreateType(ctx, t)
	if err != nil {
		return Type{}, err
	}
	t.ID = id
	s.recordAudit(ctx, actorID, shared.AuditCreate, id, "absence type created", nil, map[string]any{
		"code": t.Code, "deducts_balance": t.DeductsBalance,
	})
	return t, nil
}

func (s *Service) managerGate(ctx context.Context, actorID, requesterID int64) (bool, error) {
	byHierarchy, err := s.hierarchy.IsManagerOf(ctx, actorID, requesterID)
	if err != nil {
		return false, err
	}
	byRole, err := s.permissions.HasRole(ctx, actorID, shared.RoleManager)
	if err != nil {
		return false, err
	}
	return byHierarchy || byRole, nil
}

func (s *Service) rhGate(ctx context.Context, actorID int64) (bool, error) {
	byRole, err := s.permissions.HasRole(ctx, actorID, shared.RoleRHValidation)
	if err != nil {
		return false, err
	}
	byCapability, err := s.permissions.HasCapability(ctx, actorID, shared.CapValidateAbsenceRH)
	if err != nil {
		return false, err
	}
	return byRole || byCapability, nil
}

func stageTarget(decision Decision, approveTarget Status) (Status, error) {
	switch decision {
	case DecisionApprove:
		return approveTarget, nil
	case DecisionReject:
		return StatusRejected, nil
	default:
		return "", ErrValidation
	}
}

func (s *Service) notify(ctx context.Context, req Request) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.RequestDecided(ctx, req)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, requestID int64, description string, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:     actorID,
		Action:      action,
		Entity:      "absence_requests",
		EntityID:    fmt.Sprintf("%d", requestID),
		Description: description,
		Before:      before,
		After:       after,
	})
}
