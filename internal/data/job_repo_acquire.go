package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/target/taskflow/internal/errors"

	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/data/pgxutil"
	"github.com/target/taskflow/internal/domain/model"
)

// SQL used by AcquireNextDue to atomically claim the next due job.
// The CTE selects the single best candidate under FOR UPDATE SKIP
// LOCKED so concurrent workers pass over rows another transaction
// already claimed instead of blocking on them.
const acquireNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE queue = $1
      AND archived = FALSE
      AND state IN ('PENDING', 'SCHEDULED')
      AND (next_run_at IS NULL OR next_run_at <= $2)
    ORDER BY priority DESC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    state = 'RUNNING',
    locked_by = $3,
    locked_at = $2,
    last_run_at = $2,
    attempts = j.attempts + 1,
    updated_at = $2
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.queue, j.name, j.tenant_id, j.payload, j.state, j.priority, j.attempts, j.max_attempts, j.retry_strategy, j.retry_base_delay_seconds, j.scheduled_at, j.next_run_at, j.last_run_at, j.locked_by, j.locked_at, j.last_error, j.archived, j.created_at, j.updated_at`

// AcquireNextDue atomically claims the highest-priority due job on the
// queue. The claim runs in its own read-committed transaction; callers
// that need the claim inside a larger transaction use the unit of work.
func (r *JobRepo) AcquireNextDue(ctx context.Context, params core.AcquireParams) (model.Job, bool, error) {
	var (
		job model.Job
		ok  bool
	)
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			var acquireErr error
			job, ok, acquireErr = acquireNextDue(ctx, tx, params)
			return acquireErr
		},
	})
	if err != nil {
		return model.Job{}, false, err
	}
	return job, ok, nil
}

func acquireNextDue(ctx context.Context, q queryer, params core.AcquireParams) (model.Job, bool, error) {
	if params.Queue == "" {
		return model.Job{}, false, apperrors.ValidationField("queue", "queue is required")
	}
	if params.WorkerID == "" {
		return model.Job{}, false, apperrors.ValidationField("worker_id", "worker id is required")
	}

	rows, err := q.Query(ctx, acquireNextUpdateSQL, params.Queue, params.Now.UTC(), params.WorkerID)
	if err != nil {
		return model.Job{}, false, apperrors.MapDBError(fmt.Errorf("acquire job: %w", err))
	}
	defer rows.Close()

	job, err := collectJobFromRows(rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, false, nil
	}
	if err != nil {
		return model.Job{}, false, apperrors.MapDBError(fmt.Errorf("acquire job: %w", err))
	}
	return job, true, nil
}
