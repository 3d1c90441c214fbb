package roles

import (
	"errors"
	"time"
)

// Role groups a set of named boolean capabilities under an immutable code.
// Roles are never deleted, only deactivated: historical assignments keep
// referencing them.
type Role struct {
	ID           int64
	Code         string
	Label        string
	Description  string
	Capabilities map[string]bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assignment is a time-bounded grant of a role to an employee. Rows are never
// hard-deleted; revocation closes the grant by setting Active=false and an
// end date, preserving the ledger for audit.
type Assignment struct {
	ID         int64
	EmployeeID int64
	RoleID     int64
	RoleCode   string
	StartDate  time.Time
	EndDate    *time.Time
	Active     bool
	GrantedBy  int64
	Comment    string
	CreatedAt  time.Time
}

// Open reports whether the assignment is currently open. Openness is a
// null-check on the end date, never a comparison against today: a grant
// with any end date set, past or future, reads as closed.
func (a Assignment) Open() bool {
	return a.Active && a.EndDate == nil
}

var (
	// ErrNotFound indicates the role or assignment does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrDuplicateCode occurs when creating a role whose code already exists.
	ErrDuplicateCode = errors.New("roles: duplicate role code")
	// ErrUnknownRole occurs when granting a missing or deactivated role.
	ErrUnknownRole = errors.New("roles: unknown or inactive role")
	// ErrAlreadyGranted occurs when an open assignment already exists for the
	// employee and role.
	ErrAlreadyGranted = errors.New("roles: already granted")
	// ErrOpenConflict occurs when reactivating an assignment would produce a
	// second open grant for the same employee and role.
	ErrOpenConflict = errors.New("roles: another open assignment exists")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("roles: invalid input")
)
