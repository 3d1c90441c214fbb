package auth

import "time"

// User is an authentication principal linked to an employee. Permissions are
// system-level grants carried by the principal itself, independent of any
// role assignment.
type User struct {
	ID           int64
	EmployeeID   int64
	Email        string
	PasswordHash string
	Permissions  []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
