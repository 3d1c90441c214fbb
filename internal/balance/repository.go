package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists leave balances in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, employeeID int64, year int) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `
		SELECT employee_id, year, days_remaining, updated_at
		FROM leave_balances
		WHERE employee_id = $1 AND year = $2`,
		employeeID, year,
	).Scan(&b.EmployeeID, &b.Year, &b.DaysRemaining, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrNotFound
	}
	if err != nil {
		return Balance{}, fmt.Errorf("balance: get: %w", err)
	}
	return b, nil
}

func (r *Repository) ListForEmployee(ctx context.Context, employeeID int64) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT employee_id, year, days_remaining, updated_at
		FROM leave_balances
		WHERE employee_id = $1
		ORDER BY year DESC`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("balance: list: %w", err)
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.EmployeeID, &b.Year, &b.DaysRemaining, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("balance: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Set upserts the balance row to an absolute value.
func (r *Repository) Set(ctx context.Context, employeeID int64, year int, days float64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leave_balances (employee_id, year, days_remaining, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (employee_id, year)
		DO UPDATE SET days_remaining = EXCLUDED.days_remaining, updated_at = NOW()`,
		employeeID, year, days,
	)
	if err != nil {
		return fmt.Errorf("balance: set: %w", err)
	}
	return nil
}

// Restore credits days back, for example when an approved absence is later
// corrected out of band.
func (r *Repository) Restore(ctx context.Context, employeeID int64, year int, days float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leave_balances
		SET days_remaining = days_remaining + $3, updated_at = NOW()
		WHERE employee_id = $1 AND year = $2`,
		employeeID, year, days,
	)
	if err != nil {
		return fmt.Errorf("balance: restore: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
