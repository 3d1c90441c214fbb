package directory

import (
	"context"
	"errors"
)

// ResolverRepositoryPort is the read surface the hierarchy resolver needs.
type ResolverRepositoryPort interface {
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	OpenManagerAssignment(ctx context.Context, departmentID int64) (ManagerAssignment, error)
}

// Resolver answers manager relationship questions from the department
// manager ledger and the employee's current department affiliation.
type Resolver struct {
	repo ResolverRepositoryPort
}

// NewResolver constructs a Resolver.
func NewResolver(repo ResolverRepositoryPort) *Resolver {
	return &Resolver{repo: repo}
}

// OpenManager returns the department's current manager, or ok=false when the
// department has no open appointment.
func (r *Resolver) OpenManager(ctx context.Context, departmentID int64) (Employee, bool, error) {
	assignment, err := r.repo.OpenManagerAssignment(ctx, departmentID)
	if errors.Is(err, ErrNotFound) {
		return Employee{}, false, nil
	}
	if err != nil {
		return Employee{}, false, err
	}
	manager, err := r.repo.GetEmployee(ctx, assignment.EmployeeID)
	if err != nil {
		return Employee{}, false, err
	}
	return manager, true, nil
}

// IsManagerOf reports whether candidate currently manages the department
// that contains subordinate. An employee without a department has no
// manager; self-management is possible when an employee manages their own
// department.
func (r *Resolver) IsManagerOf(ctx context.Context, candidateID, subordinateID int64) (bool, error) {
	subordinate, err := r.repo.GetEmployee(ctx, subordinateID)
	if err != nil {
		return false, err
	}
	if subordinate.DepartmentID == nil {
		return false, nil
	}
	assignment, err := r.repo.OpenManagerAssignment(ctx, *subordinate.DepartmentID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return assignment.EmployeeID == candidateID, nil
}

// ManagerOf returns the employee's current manager via their department, or
// ok=false when they have no department or the department has no open
// appointment.
func (r *Resolver) ManagerOf(ctx context.Context, employeeID int64) (Employee, bool, error) {
	emp, err := r.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return Employee{}, false, err
	}
	if emp.DepartmentID == nil {
		return Employee{}, false, nil
	}
	return r.OpenManager(ctx, *emp.DepartmentID)
}
