package directory

import (
	"errors"
	"time"
)

// Employee is an actor in the organisation. Lifecycle state comes from
// payroll; approval and role logic only reads it.
type Employee struct {
	ID           int64
	Number       string
	FirstName    string
	LastName     string
	Email        string
	Position     string
	DepartmentID *int64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName renders the display name.
func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// Department groups employees under a single managed unit.
type Department struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
}

// ManagerAssignment is a time-bounded appointment of an employee as manager
// of a department. At most one assignment per department is open at a time;
// appointing a new manager closes the previous one in the same transaction.
type ManagerAssignment struct {
	ID           int64
	DepartmentID int64
	EmployeeID   int64
	StartDate    time.Time
	EndDate      *time.Time
	Active       bool
	CreatedAt    time.Time
}

// Open reports whether the appointment is current. Same null-check reading
// as role grants: the end date's value is never compared against today.
func (m ManagerAssignment) Open() bool {
	return m.Active && m.EndDate == nil
}

var (
	// ErrNotFound indicates the employee, department or assignment does not exist.
	ErrNotFound = errors.New("directory: not found")
	// ErrDuplicateNumber occurs when creating an employee whose business
	// number is already taken.
	ErrDuplicateNumber = errors.New("directory: duplicate employee number")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("directory: invalid input")
)
