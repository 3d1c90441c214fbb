package absence

import (
	"errors"
	"time"
)

// Absence request lifecycle statuses. The graph is fixed: PENDING_MANAGER
// advances to PENDING_RH, PENDING_RH advances to APPROVED, and either pending
// state may end in REJECTED or CANCELLED. The three terminal states have no
// outgoing edges.
type Status string

const (
	StatusPendingManager Status = "PENDING_MANAGER"
	StatusPendingRH      Status = "PENDING_RH"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
	StatusCancelled      Status = "CANCELLED"
)

// Terminal reports whether no transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Decision taken by a validator at either stage.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Type catalogs a kind of absence. DeductsBalance marks the types whose full
// approval consumes leave balance.
type Type struct {
	ID             int64
	Code           string
	Label          string
	DeductsBalance bool
	Active         bool
}

// Request is an absence request moving through the two-stage approval. A
// zero validator id means the stage has not been decided. Requests are never
// deleted; cancellation is a terminal status.
type Request struct {
	ID               int64
	RequesterID      int64
	TypeID           int64
	TypeCode         string
	StartDate        time.Time
	EndDate          time.Time
	HalfDay          bool
	Reason           string
	Status           Status
	ManagerValidator int64
	ManagerComment   string
	ManagerDecidedAt *time.Time
	RHValidator      int64
	RHComment        string
	RHDecidedAt      *time.Time
	CreatedBy        int64
	CreatedAt        time.Time
}

// Days returns how many balance days the request consumes. A half-day
// request consumes 0.5; otherwise the count is calendar days, inclusive of
// both endpoints.
func (r Request) Days() float64 {
	if r.HalfDay {
		return 0.5
	}
	days := r.EndDate.Sub(r.StartDate).Hours()/24 + 1
	if days < 1 {
		return 1
	}
	return float64(int(days))
}

var (
	// ErrNotFound indicates the request or type does not exist.
	ErrNotFound = errors.New("absence: not found")
	// ErrInvalidDateRange occurs when the end date does not follow the start.
	ErrInvalidDateRange = errors.New("absence: invalid date range")
	// ErrInvalidState occurs on any transition not in the lifecycle graph,
	// including every attempt to leave a terminal state.
	ErrInvalidState = errors.New("absence: invalid state transition")
	// ErrNotAuthorized occurs when the actor fails the stage's gate.
	ErrNotAuthorized = errors.New("absence: not authorized")
	// ErrUnknownType occurs when submitting with a missing or inactive type.
	ErrUnknownType = errors.New("absence: unknown or inactive type")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("absence: invalid input")
)
