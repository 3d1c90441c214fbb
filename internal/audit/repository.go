package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs. Writes go through shared.AuditLogger; this
// side is read-only by construction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the read repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Window returns a filtered slice of the timeline, newest first.
func (r *Repository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error) {
	var conditions []string
	var args []any
	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if filters.Actor != 0 {
		add("actor_id = $%d", filters.Actor)
	}
	if filters.Entity != "" {
		add("entity = $%d", filters.Entity)
	}
	if filters.EntityID != "" {
		add("entity_id = $%d", filters.EntityID)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, offset, limit)
	query := fmt.Sprintf(`
		SELECT id, actor_id, action, entity, entity_id, description, before_value, after_value, occurred_at
		FROM audit_logs
		%s
		ORDER BY occurred_at DESC, id DESC
		OFFSET $%d LIMIT $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: window: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		var before, after []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Entity, &entry.EntityID,
			&entry.Description, &before, &after, &entry.At); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if len(before) > 0 {
			_ = json.Unmarshal(before, &entry.Before)
		}
		if len(after) > 0 {
			_ = json.Unmarshal(after, &entry.After)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
