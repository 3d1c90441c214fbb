package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// RepositoryPort describes the persistence surface used by Service.
type RepositoryPort interface {
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	GetEmployeeByNumber(ctx context.Context, number string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	CreateEmployee(ctx context.Context, emp Employee) (int64, error)
	UpdateEmployee(ctx context.Context, emp Employee) error
	SetEmployeeDepartment(ctx context.Context, employeeID int64, departmentID *int64) error
	GetDepartment(ctx context.Context, id int64) (Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	CreateDepartment(ctx context.Context, dep Department) (int64, error)
	AssignManager(ctx context.Context, departmentID, employeeID int64, start time.Time) (ManagerAssignment, int64, error)
	EndManagerAssignment(ctx context.Context, departmentID int64, end time.Time) (int64, error)
	OpenManagerAssignment(ctx context.Context, departmentID int64) (ManagerAssignment, error)
	ManagerHistory(ctx context.Context, departmentID int64) ([]ManagerAssignment, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the employee directory and the department manager ledger.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the directory service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

func (s *Service) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return s.repo.GetEmployee(ctx, id)
}

func (s *Service) GetEmployeeByNumber(ctx context.Context, number string) (Employee, error) {
	return s.repo.GetEmployeeByNumber(ctx, strings.TrimSpace(number))
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.repo.ListEmployees(ctx)
}

// CreateEmployee registers a new employee record.
func (s *Service) CreateEmployee(ctx context.Context, actorID int64, emp Employee) (Employee, error) {
	emp.Number = strings.TrimSpace(emp.Number)
	emp.FirstName = strings.TrimSpace(emp.FirstName)
	emp.LastName = strings.TrimSpace(emp.LastName)
	if emp.Number == "" || emp.LastName == "" {
		return Employee{}, ErrValidation
	}
	id, err := s.repo.CreateEmployee(ctx, emp)
	if err != nil {
		return Employee{}, err
	}
	emp.ID = id
	s.recordAudit(ctx, actorID, shared.AuditCreate, "employees", id, "employee created", nil, map[string]any{
		"number": emp.Number, "last_name": emp.LastName, "department_id": emp.DepartmentID,
	})
	return emp, nil
}

// UpdateEmployee overwrites the mutable employee fields.
func (s *Service) UpdateEmployee(ctx context.Context, actorID int64, emp Employee) error {
	current, err := s.repo.GetEmployee(ctx, emp.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(emp.LastName) == "" {
		return ErrValidation
	}
	emp.Number = current.Number
	if err := s.repo.UpdateEmployee(ctx, emp); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditUpdate, "employees", emp.ID, "employee updated",
		map[string]any{"last_name": current.LastName, "position": current.Position, "department_id": current.DepartmentID, "active": current.Active},
		map[string]any{"last_name": emp.LastName, "position": emp.Position, "department_id": emp.DepartmentID, "active": emp.Active})
	return nil
}

// MoveEmployee changes the employee's department affiliation. A nil
// department detaches them.
func (s *Service) MoveEmployee(ctx context.Context, actorID, employeeID int64, departmentID *int64) error {
	current, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	if departmentID != nil {
		if _, err := s.repo.GetDepartment(ctx, *departmentID); err != nil {
			return err
		}
	}
	if err := s.repo.SetEmployeeDepartment(ctx, employeeID, departmentID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditUpdate, "employees", employeeID, "employee moved",
		map[string]any{"department_id": current.DepartmentID},
		map[string]any{"department_id": departmentID})
	return nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

// CreateDepartment registers a new department.
func (s *Service) CreateDepartment(ctx context.Context, actorID int64, name string) (Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Department{}, ErrValidation
	}
	dep := Department{Name: name, Active: true}
	id, err := s.repo.CreateDepartment(ctx, dep)
	if err != nil {
		return Department{}, err
	}
	dep.ID = id
	s.recordAudit(ctx, actorID, shared.AuditCreate, "departments", id, "department created", nil, map[string]any{"name": name})
	return dep, nil
}

// AppointManager makes the employee the department's manager, closing the
// previous appointment if one was open.
func (s *Service) AppointManager(ctx context.Context, actorID, departmentID, employeeID int64, start time.Time) (ManagerAssignment, error) {
	if _, err := s.repo.GetDepartment(ctx, departmentID); err != nil {
		return ManagerAssignment{}, err
	}
	if _, err := s.repo.GetEmployee(ctx, employeeID); err != nil {
		return ManagerAssignment{}, err
	}
	if start.IsZero() {
		start = s.today()
	}
	assignment, closed, err := s.repo.AssignManager(ctx, departmentID, employeeID, start)
	if err != nil {
		return ManagerAssignment{}, err
	}
	s.recordAudit(ctx, actorID, shared.AuditCreate, "department_managers", assignment.ID,
		fmt.Sprintf("manager appointed (%d previous closed)", closed), nil, map[string]any{
			"department_id": departmentID,
			"employee_id":   employeeID,
			"start_date":    start.Format("2006-01-02"),
		})
	return assignment, nil
}

// DismissManager closes the department's open appointment. Zero closed rows
// is not an error.
func (s *Service) DismissManager(ctx context.Context, actorID, departmentID int64, end *time.Time) (int64, error) {
	when := s.today()
	if end != nil {
		when = *end
	}
	closed, err := s.repo.EndManagerAssignment(ctx, departmentID, when)
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		s.recordAudit(ctx, actorID, shared.AuditUpdate, "department_managers", departmentID,
			"manager dismissed",
			map[string]any{"active": true, "end_date": nil},
			map[string]any{"active": false, "end_date": when.Format("2006-01-02")})
	}
	return closed, nil
}

// ManagerHistory returns the department's full appointment ledger.
func (s *Service) ManagerHistory(ctx context.Context, departmentID int64) ([]ManagerAssignment, error) {
	return s.repo.ManagerHistory(ctx, departmentID)
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
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
