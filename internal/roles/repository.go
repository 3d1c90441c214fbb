package roles

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for the role catalog and
// the assignment ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertRole(ctx context.Context, role Role) (int64, error)
	UpdateRole(ctx context.Context, id int64, label, description string, capabilities map[string]bool) error
	SetRoleActive(ctx context.Context, code string, active bool) error
	InsertAssignment(ctx context.Context, a Assignment) (int64, error)
	CloseOpenAssignments(ctx context.Context, employeeID int64, roleCode string, end time.Time) (int64, error)
	ReopenAssignment(ctx context.Context, id int64) error
	CountOpenAssignments(ctx context.Context, employeeID int64, roleCode string) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const roleColumns = `id, code, label, description, capabilities, active, created_at, updated_at`

// GetRoleByCode fetches a role by its immutable code.
func (r *Repository) GetRoleByCode(ctx context.Context, code string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE code = $1`, code)
	return scanRole(row)
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// ListRoles returns all roles ordered by code.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

const assignmentColumns = `a.id, a.employee_id, a.role_id, r.code, a.start_date, a.end_date, a.active, a.granted_by, a.comment, a.created_at`

// GetAssignment fetches a single ledger row by id.
func (r *Repository) GetAssignment(ctx context.Context, id int64) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+`
FROM role_assignments a JOIN roles r ON r.id = a.role_id WHERE a.id = $1`, id)
	return scanAssignment(row)
}

// ListOpenAssignments returns the employee's currently-open grants. Openness
// is active AND end_date IS NULL; the end date is deliberately never compared
// against the current date.
func (r *Repository) ListOpenAssignments(ctx context.Context, employeeID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+`
FROM role_assignments a JOIN roles r ON r.id = a.role_id
WHERE a.employee_id = $1 AND a.active = TRUE AND a.end_date IS NULL
ORDER BY a.id ASC`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ListAssignmentHistory returns every grant for the employee, open or closed.
func (r *Repository) ListAssignmentHistory(ctx context.Context, employeeID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+`
FROM role_assignments a JOIN roles r ON r.id = a.role_id
WHERE a.employee_id = $1 ORDER BY a.id ASC`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Columns must stay qualified: roles and role_assignments both carry id,
// active and created_at, and the join would otherwise be ambiguous.
const rolesForEmployeeQuery = `SELECT DISTINCT roles.id, roles.code, roles.label, roles.description, roles.capabilities, roles.active, roles.created_at, roles.updated_at
FROM roles JOIN role_assignments a ON a.role_id = roles.id
WHERE a.employee_id = $1 AND a.active = TRUE AND a.end_date IS NULL
ORDER BY roles.code ASC`

// RolesForEmployee returns the distinct roles behind the employee's open
// grants, capabilities included.
func (r *Repository) RolesForEmployee(ctx context.Context, employeeID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, rolesForEmployeeQuery, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

func (tx *txRepo) InsertRole(ctx context.Context, role Role) (int64, error) {
	caps, err := json.Marshal(role.Capabilities)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.tx.QueryRow(ctx, `INSERT INTO roles (code, label, description, capabilities, active)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		role.Code, role.Label, role.Description, caps, role.Active).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) UpdateRole(ctx context.Context, id int64, label, description string, capabilities map[string]bool) error {
	caps, err := json.Marshal(capabilities)
	if err != nil {
		return err
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE roles SET label = $2, description = $3, capabilities = $4, updated_at = NOW() WHERE id = $1`,
		id, label, description, caps)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) SetRoleActive(ctx context.Context, code string, active bool) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE roles SET active = $2, updated_at = NOW() WHERE code = $1`, code, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) InsertAssignment(ctx context.Context, a Assignment) (int64, error) {
	var end pgtype.Date
	if a.EndDate != nil {
		end = pgtype.Date{Time: *a.EndDate, Valid: true}
	}
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO role_assignments (employee_id, role_id, start_date, end_date, active, granted_by, comment)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.EmployeeID, a.RoleID, a.StartDate, end, a.Active, a.GrantedBy, a.Comment).Scan(&id)
	return id, err
}

func (tx *txRepo) CloseOpenAssignments(ctx context.Context, employeeID int64, roleCode string, end time.Time) (int64, error) {
	tag, err := tx.tx.Exec(ctx, `UPDATE role_assignments a SET active = FALSE, end_date = $3
FROM roles r WHERE r.id = a.role_id AND a.employee_id = $1 AND r.code = $2
AND a.active = TRUE AND a.end_date IS NULL`,
		employeeID, roleCode, end)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (tx *txRepo) ReopenAssignment(ctx context.Context, id int64) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE role_assignments SET active = TRUE, end_date = NULL WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) CountOpenAssignments(ctx context.Context, employeeID int64, roleCode string) (int64, error) {
	var count int64
	err := tx.tx.QueryRow(ctx, `SELECT COUNT(*) FROM role_assignments a JOIN roles r ON r.id = a.role_id
WHERE a.employee_id = $1 AND r.code = $2 AND a.active = TRUE AND a.end_date IS NULL`,
		employeeID, roleCode).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var caps []byte
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&role.ID, &role.Code, &role.Label, &role.Description, &caps, &role.Active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	if len(caps) > 0 {
		if err := json.Unmarshal(caps, &role.Capabilities); err != nil {
			return Role{}, err
		}
	}
	if createdAt.Valid {
		role.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		role.UpdatedAt = updatedAt.Time
	}
	return role, nil
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var a Assignment
	var end pgtype.Date
	var createdAt pgtype.Timestamptz
	err := row.Scan(&a.ID, &a.EmployeeID, &a.RoleID, &a.RoleCode, &a.StartDate, &end, &a.Active, &a.GrantedBy, &a.Comment, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, err
	}
	if end.Valid {
		t := end.Time
		a.EndDate = &t
	}
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time
	}
	return a, nil
}
