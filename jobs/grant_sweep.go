package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hr/meridian-hr/internal/roles"
)

// TaskRoleGrantSweep marks role assignments with a past end date inactive.
const TaskRoleGrantSweep = "roles:grant_sweep"

// GrantSweepPayload carries scheduling metadata.
type GrantSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewGrantSweepTask constructs an Asynq task for the nightly grant sweep.
func NewGrantSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(GrantSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleGrantSweep, body, asynq.Queue(QueueDefault)), nil
}

// SweepExpiredGrants deactivates assignments whose end date has passed while
// the active flag was still set, then drops cached permission answers for the
// affected employees. Grant openness is decided by the end date alone, so the
// sweep changes bookkeeping, not effective permissions.
func SweepExpiredGrants(ctx context.Context, pool *pgxpool.Pool, cache roles.Invalidator, logger *slog.Logger, now time.Time) (int64, error) {
	if pool == nil {
		return 0, nil
	}
	rows, err := pool.Query(ctx, `
		UPDATE role_assignments
		SET active = FALSE
		WHERE active = TRUE AND end_date IS NOT NULL AND end_date < $1
		RETURNING employee_id`, now)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	employees := make(map[int64]struct{})
	var swept int64
	for rows.Next() {
		var employeeID int64
		if err := rows.Scan(&employeeID); err != nil {
			return swept, err
		}
		employees[employeeID] = struct{}{}
		swept++
	}
	if err := rows.Err(); err != nil {
		return swept, err
	}

	if cache != nil {
		for employeeID := range employees {
			if err := cache.Invalidate(ctx, employeeID); err != nil && logger != nil {
				logger.Warn("grant sweep cache invalidation",
					slog.Int64("employee_id", employeeID), slog.Any("error", err))
			}
		}
	}
	if logger != nil && swept > 0 {
		logger.Info("grant sweep closed assignments",
			slog.Int64("count", swept), slog.Int("employees", len(employees)))
	}
	return swept, nil
}

// NewGrantSweepHandler builds the Asynq handler for TaskRoleGrantSweep.
func NewGrantSweepHandler(pool *pgxpool.Pool, cache roles.Invalidator, logger *slog.Logger, record func(task, status string)) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload GrantSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		_, err := SweepExpiredGrants(ctx, pool, cache, logger, time.Now().UTC())
		if record != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			record(TaskRoleGrantSweep, status)
		}
		return err
	}
}
