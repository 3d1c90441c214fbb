package absence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hr/meridian-hr/internal/balance"
)

// Repository provides PostgreSQL backed persistence for absence requests and
// the absence type catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Status changes, validator
// fields and the balance decrement all ride the same transaction so a lost
// decision race or an insufficient balance rolls everything back together.
type TxRepository interface {
	InsertRequest(ctx context.Context, req Request) (int64, error)
	UpdateStatusIf(ctx context.Context, id int64, from, to Status) (bool, error)
	SetManagerDecision(ctx context.Context, id, validator int64, comment string, at time.Time) error
	SetRHDecision(ctx context.Context, id, validator int64, comment string, at time.Time) error
	DecrementBalance(ctx context.Context, employeeID int64, year int, days float64) error
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

const requestColumns = `r.id, r.requester_id, r.type_id, t.code, r.start_date, r.end_date, r.half_day, r.reason,
r.status, r.manager_validator, r.manager_comment, r.manager_decided_at,
r.rh_validator, r.rh_comment, r.rh_decided_at, r.created_by, r.created_at`

// GetRequest fetches a request by id.
func (r *Repository) GetRequest(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+`
FROM absence_requests r JOIN absence_types t ON t.id = r.type_id WHERE r.id = $1`, id)
	return scanRequest(row)
}

// ListForRequester returns the employee's requests, newest first.
func (r *Repository) ListForRequester(ctx context.Context, employeeID int64) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`
FROM absence_requests r JOIN absence_types t ON t.id = r.type_id
WHERE r.requester_id = $1 ORDER BY r.created_at DESC, r.id DESC`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListByStatus returns all requests currently in the status, oldest first,
// for the validation work queues.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`
FROM absence_requests r JOIN absence_types t ON t.id = r.type_id
WHERE r.status = $1 ORDER BY r.created_at ASC, r.id ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// GetTypeByCode fetches an absence type by code.
func (r *Repository) GetTypeByCode(ctx context.Context, code string) (Type, error) {
	var t Type
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, label, deducts_balance, active FROM absence_types WHERE code = $1`, code,
	).Scan(&t.ID, &t.Code, &t.Label, &t.DeductsBalance, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Type{}, ErrNotFound
	}
	if err != nil {
		return Type{}, fmt.Errorf("absence: get type: %w", err)
	}
	return t, nil
}

// ListTypes returns the whole catalog.
func (r *Repository) ListTypes(ctx context.Context) ([]Type, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, label, deducts_balance, active FROM absence_types ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.ID, &t.Code, &t.Label, &t.DeductsBalance, &t.Active); err != nil {
			return nil, fmt.Errorf("absence: scan type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateType inserts a new catalog entry.
func (r *Repository) CreateType(ctx context.Context, t Type) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO absence_types (code, label, deducts_balance, active) VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Code, t.Label, t.DeductsBalance, t.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("absence: create type: %w", err)
	}
	return id, nil
}

func (t *txRepo) InsertRequest(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO absence_requests
			(requester_id, type_id, start_date, end_date, half_day, reason, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id`,
		req.RequesterID, req.TypeID, req.StartDate, req.EndDate, req.HalfDay, req.Reason, req.Status, req.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("absence: insert request: %w", err)
	}
	return id, nil
}

// UpdateStatusIf moves the request from one status to another only when the
// row still holds the expected status. Returns false when another decision
// won the race.
func (t *txRepo) UpdateStatusIf(ctx context.Context, id int64, from, to Status) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE absence_requests SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("absence: update status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) SetManagerDecision(ctx context.Context, id, validator int64, comment string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE absence_requests
		SET manager_validator = $2, manager_comment = $3, manager_decided_at = $4
		WHERE id = $1`,
		id, validator, comment, at,
	)
	if err != nil {
		return fmt.Errorf("absence: set manager decision: %w", err)
	}
	return nil
}

func (t *txRepo) SetRHDecision(ctx context.Context, id, validator int64, comment string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE absence_requests
		SET rh_validator = $2, rh_comment = $3, rh_decided_at = $4
		WHERE id = $1`,
		id, validator, comment, at,
	)
	if err != nil {
		return fmt.Errorf("absence: set rh decision: %w", err)
	}
	return nil
}

// DecrementBalance consumes leave days with a floor guard in the WHERE
// clause. A missing row counts as a zero balance.
func (t *txRepo) DecrementBalance(ctx context.Context, employeeID int64, year int, days float64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE leave_balances
		SET days_remaining = days_remaining - $3, updated_at = NOW()
		WHERE employee_id = $1 AND year = $2 AND days_remaining >= $3`,
		employeeID, year, days,
	)
	if err != nil {
		return fmt.Errorf("absence: decrement balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return balance.ErrInsufficientBalance
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.TypeID, &req.TypeCode, &req.StartDate, &req.EndDate, &req.HalfDay, &req.Reason,
		&req.Status, &req.ManagerValidator, &req.ManagerComment, &req.ManagerDecidedAt,
		&req.RHValidator, &req.RHComment, &req.RHDecidedAt, &req.CreatedBy, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("absence: scan request: %w", err)
	}
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
