package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hr/meridian-hr/internal/platform/db"
)

// Repository persists the employee directory and the department manager
// ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const employeeColumns = `id, number, first_name, last_name, email, position, department_id, active, created_at, updated_at`

func (r *Repository) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	return scanEmployee(row)
}

func (r *Repository) GetEmployeeByNumber(ctx context.Context, number string) (Employee, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE number = $1`, number)
	return scanEmployee(row)
}

func (r *Repository) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("directory: list employees: %w", err)
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (r *Repository) CreateEmployee(ctx context.Context, emp Employee) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO employees (number, first_name, last_name, email, position, department_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id`,
		emp.Number, emp.FirstName, emp.LastName, emp.Email, emp.Position, emp.DepartmentID, emp.Active,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, fmt.Errorf("directory: create employee: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateEmployee(ctx context.Context, emp Employee) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE employees
		SET first_name = $2, last_name = $3, email = $4, position = $5, department_id = $6, active = $7, updated_at = NOW()
		WHERE id = $1`,
		emp.ID, emp.FirstName, emp.LastName, emp.Email, emp.Position, emp.DepartmentID, emp.Active,
	)
	if err != nil {
		return fmt.Errorf("directory: update employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetEmployeeDepartment(ctx context.Context, employeeID int64, departmentID *int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE employees SET department_id = $2, updated_at = NOW() WHERE id = $1`,
		employeeID, departmentID,
	)
	if err != nil {
		return fmt.Errorf("directory: set department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	var dep Department
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, active, created_at FROM departments WHERE id = $1`, id,
	).Scan(&dep.ID, &dep.Name, &dep.Active, &dep.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrNotFound
	}
	if err != nil {
		return Department{}, fmt.Errorf("directory: get department: %w", err)
	}
	return dep, nil
}

func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, active, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("directory: list departments: %w", err)
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var dep Department
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.Active, &dep.CreatedAt); err != nil {
			return nil, fmt.Errorf("directory: scan department: %w", err)
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

func (r *Repository) CreateDepartment(ctx context.Context, dep Department) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO departments (name, active, created_at) VALUES ($1, $2, NOW()) RETURNING id`,
		dep.Name, dep.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("directory: create department: %w", err)
	}
	return id, nil
}

// AssignManager closes the department's open appointment, if any, and opens
// a new one for the employee. Both writes happen in one transaction so the
// ledger never shows two open managers for a department.
func (r *Repository) AssignManager(ctx context.Context, departmentID, employeeID int64, start time.Time) (ManagerAssignment, int64, error) {
	var assignment ManagerAssignment
	var closed int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE department_managers
			SET active = FALSE, end_date = $2
			WHERE department_id = $1 AND active = TRUE AND end_date IS NULL`,
			departmentID, start,
		)
		if err != nil {
			return fmt.Errorf("directory: close manager assignments: %w", err)
		}
		closed = tag.RowsAffected()

		row := tx.QueryRow(ctx, `
			INSERT INTO department_managers (department_id, employee_id, start_date, end_date, active, created_at)
			VALUES ($1, $2, $3, NULL, TRUE, NOW())
			RETURNING id, department_id, employee_id, start_date, end_date, active, created_at`,
			departmentID, employeeID, start,
		)
		assignment, err = scanManagerAssignment(row)
		return err
	})
	if err != nil {
		return ManagerAssignment{}, 0, err
	}
	return assignment, closed, nil
}

// EndManagerAssignment closes the department's open appointment without
// opening a new one. Returns the number of rows closed.
func (r *Repository) EndManagerAssignment(ctx context.Context, departmentID int64, end time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE department_managers
		SET active = FALSE, end_date = $2
		WHERE department_id = $1 AND active = TRUE AND end_date IS NULL`,
		departmentID, end,
	)
	if err != nil {
		return 0, fmt.Errorf("directory: end manager assignment: %w", err)
	}
	return tag.RowsAffected(), nil
}

// OpenManagerAssignment returns the department's single open appointment.
func (r *Repository) OpenManagerAssignment(ctx context.Context, departmentID int64) (ManagerAssignment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, department_id, employee_id, start_date, end_date, active, created_at
		FROM department_managers
		WHERE department_id = $1 AND active = TRUE AND end_date IS NULL
		ORDER BY start_date DESC
		LIMIT 1`,
		departmentID,
	)
	return scanManagerAssignment(row)
}

// ManagerHistory returns every appointment the department ever had, newest
// first.
func (r *Repository) ManagerHistory(ctx context.Context, departmentID int64) ([]ManagerAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, department_id, employee_id, start_date, end_date, active, created_at
		FROM department_managers
		WHERE department_id = $1
		ORDER BY start_date DESC, id DESC`,
		departmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("directory: manager history: %w", err)
	}
	defer rows.Close()

	var out []ManagerAssignment
	for rows.Next() {
		assignment, err := scanManagerAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, assignment)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.Number, &emp.FirstName, &emp.LastName, &emp.Email,
		&emp.Position, &emp.DepartmentID, &emp.Active, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, fmt.Errorf("directory: scan employee: %w", err)
	}
	return emp, nil
}

func scanManagerAssignment(row rowScanner) (ManagerAssignment, error) {
	var m ManagerAssignment
	err := row.Scan(&m.ID, &m.DepartmentID, &m.EmployeeID, &m.StartDate, &m.EndDate, &m.Active, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ManagerAssignment{}, ErrNotFound
	}
	if err != nil {
		return ManagerAssignment{}, fmt.Errorf("directory: scan manager assignment: %w", err)
	}
	return m, nil
}
