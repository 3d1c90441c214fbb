package directory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu          sync.Mutex
	employees   map[int64]Employee
	byNumber    map[string]int64
	departments map[int64]Department
	managers    map[int64]ManagerAssignment
	nextEmp     int64
	nextDep     int64
	nextMgr     int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		employees:   map[int64]Employee{},
		byNumber:    map[string]int64{},
		departments: map[int64]Department{},
		managers:    map[int64]ManagerAssignment{},
	}
}

func (m *memRepo) GetEmployee(_ context.Context, id int64) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	emp, ok := m.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return emp, nil
}

func (m *memRepo) GetEmployeeByNumber(_ context.Context, number string) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byNumber[number]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return m.employees[id], nil
}

func (m *memRepo) ListEmployees(_ context.Context) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		out = append(out, emp)
	}
	return out, nil
}

func (m *memRepo) CreateEmployee(_ context.Context, emp Employee) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byNumber[emp.Number]; exists {
		return 0, ErrDuplicateNumber
	}
	m.nextEmp++
	emp.ID = m.nextEmp
	m.employees[emp.ID] = emp
	m.byNumber[emp.Number] = emp.ID
	return emp.ID, nil
}

func (m *memRepo) UpdateEmployee(_ context.Context, emp Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[emp.ID]; !ok {
		return ErrNotFound
	}
	m.employees[emp.ID] = emp
	return nil
}

func (m *memRepo) SetEmployeeDepartment(_ context.Context, employeeID int64, departmentID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	emp, ok := m.employees[employeeID]
	if !ok {
		return ErrNotFound
	}
	emp.DepartmentID = departmentID
	m.employees[employeeID] = emp
	return nil
}

func (m *memRepo) GetDepartment(_ context.Context, id int64) (Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dep, ok := m.departments[id]
	if !ok {
		return Department{}, ErrNotFound
	}
	return dep, nil
}

func (m *memRepo) ListDepartments(_ context.Context) ([]Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Department, 0, len(m.departments))
	for _, dep := range m.departments {
		out = append(out, dep)
	}
	return out, nil
}

func (m *memRepo) CreateDepartment(_ context.Context, dep Department) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDep++
	dep.ID = m.nextDep
	m.departments[dep.ID] = dep
	return dep.ID, nil
}

func (m *memRepo) AssignManager(_ context.Context, departmentID, employeeID int64, start time.Time) (ManagerAssignment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var closed int64
	for id, a := range m.managers {
		if a.DepartmentID == departmentID && a.Open() {
			a.Active = false
			endCopy := start
			a.EndDate = &endCopy
			m.managers[id] = a
			closed++
		}
	}
	m.nextMgr++
	assignment := ManagerAssignment{
		ID:           m.nextMgr,
		DepartmentID: departmentID,
		EmployeeID:   employeeID,
		StartDate:    start,
		Active:       true,
	}
	m.managers[assignment.ID] = assignment
	return assignment, closed, nil
}

func (m *memRepo) EndManagerAssignment(_ context.Context, departmentID int64, end time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var closed int64
	for id, a := range m.managers {
		if a.DepartmentID == departmentID && a.Open() {
			a.Active = false
			endCopy := end
			a.EndDate = &endCopy
			m.managers[id] = a
			closed++
		}
	}
	return closed, nil
}

func (m *memRepo) OpenManagerAssignment(_ context.Context, departmentID int64) (ManagerAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.managers {
		if a.DepartmentID == departmentID && a.Open() {
			return a, nil
		}
	}
	return ManagerAssignment{}, ErrNotFound
}

func (m *memRepo) ManagerHistory(_ context.Context, departmentID int64) ([]ManagerAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ManagerAssignment
	for _, a := range m.managers {
		if a.DepartmentID == departmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func seedDirectory(t *testing.T) (*memRepo, *Service, *Resolver, Department, Employee, Employee) {
	t.Helper()
	repo := newMemRepo()
	svc := NewService(repo, nil)
	resolver := NewResolver(repo)
	ctx := context.Background()

	dep, err := svc.CreateDepartment(ctx, 1, "Engineering")
	require.NoError(t, err)
	manager, err := svc.CreateEmployee(ctx, 1, Employee{Number: "E001", LastName: "Durand", DepartmentID: &dep.ID, Active: true})
	require.NoError(t, err)
	worker, err := svc.CreateEmployee(ctx, 1, Employee{Number: "E002", LastName: "Martin", DepartmentID: &dep.ID, Active: true})
	require.NoError(t, err)
	return repo, svc, resolver, dep, manager, worker
}

func TestCreateEmployeeValidationAndDuplicates(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()

	_, err := svc.CreateEmployee(ctx, 1, Employee{Number: "", LastName: "Durand"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateEmployee(ctx, 1, Employee{Number: "E001", LastName: "Durand"})
	require.NoError(t, err)
	_, err = svc.CreateEmployee(ctx, 1, Employee{Number: "E001", LastName: "Other"})
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestAppointManagerClosesPreviousAppointment(t *testing.T) {
	repo, svc, resolver, dep, manager, worker := seedDirectory(t)
	ctx := context.Background()

	_, err := svc.AppointManager(ctx, 1, dep.ID, manager.ID, time.Time{})
	require.NoError(t, err)

	current, found, err := resolver.OpenManager(ctx, dep.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, manager.ID, current.ID)

	// Appointing a successor closes the first appointment.
	_, err = svc.AppointManager(ctx, 1, dep.ID, worker.ID, time.Time{})
	require.NoError(t, err)

	current, found, err = resolver.OpenManager(ctx, dep.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, worker.ID, current.ID)

	history, err := repo.ManagerHistory(ctx, dep.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	var open int
	for _, a := range history {
		if a.Open() {
			open++
		}
	}
	require.Equal(t, 1, open)
}

func TestIsManagerOf(t *testing.T) {
	_, svc, resolver, dep, manager, worker := seedDirectory(t)
	ctx := context.Background()

	is, err := resolver.IsManagerOf(ctx, manager.ID, worker.ID)
	require.NoError(t, err)
	require.False(t, is)

	_, err = svc.AppointManager(ctx, 1, dep.ID, manager.ID, time.Time{})
	require.NoError(t, err)

	is, err = resolver.IsManagerOf(ctx, manager.ID, worker.ID)
	require.NoError(t, err)
	require.True(t, is)

	// The relation is directional.
	is, err = resolver.IsManagerOf(ctx, worker.ID, manager.ID)
	require.NoError(t, err)
	require.False(t, is)

	// An employee without a department has no manager.
	outsider, err := svc.CreateEmployee(ctx, 1, Employee{Number: "E099", LastName: "Petit", Active: true})
	require.NoError(t, err)
	is, err = resolver.IsManagerOf(ctx, manager.ID, outsider.ID)
	require.NoError(t, err)
	require.False(t, is)
}

func TestManagerOfFollowsDepartmentMove(t *testing.T) {
	_, svc, resolver, dep, manager, worker := seedDirectory(t)
	ctx := context.Background()

	_, err := svc.AppointManager(ctx, 1, dep.ID, manager.ID, time.Time{})
	require.NoError(t, err)

	got, found, err := resolver.ManagerOf(ctx, worker.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, manager.ID, got.ID)

	require.NoError(t, svc.MoveEmployee(ctx, 1, worker.ID, nil))
	_, found, err = resolver.ManagerOf(ctx, worker.ID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDismissManagerWithNothingOpen(t *testing.T) {
	_, svc, _, dep, _, _ := seedDirectory(t)
	closed, err := svc.DismissManager(context.Background(), 1, dep.ID, nil)
	require.NoError(t, err)
	require.Zero(t, closed)
}
