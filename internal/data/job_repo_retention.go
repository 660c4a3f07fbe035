package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/data/pgxutil"
)

// Advisory lock namespace for retention sweeps.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for taskflow retention operations.
const (
	advisoryLockRetentionMajor   = 1000
	advisoryLockRetentionArchive = 1 // minor key for ArchiveTerminalJobs
	advisoryLockRetentionPurge   = 2 // minor key for PurgeArchivedJobs
)

// ArchiveTerminalJobs archives SUCCEEDED and DEAD jobs whose updated_at
// is older than the cutoff. Processes up to BatchSize jobs per call to
// prevent long locks and I/O spikes. Uses advisory locks so concurrent
// sweeper instances skip instead of contending.
// Returns the number of jobs archived.
func (r *JobRepo) ArchiveTerminalJobs(ctx context.Context, params core.RetentionParams) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockRetentionMajor, advisoryLockRetentionArchive).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			res, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET archived = TRUE,
					updated_at = now()
				WHERE id IN (
					SELECT id FROM jobs
					WHERE archived = FALSE
					  AND state IN ('SUCCEEDED', 'DEAD')
					  AND updated_at < $1
					ORDER BY updated_at
					LIMIT $2
				)
			`, params.OlderThan.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("archive terminal jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// PurgeArchivedJobs deletes archived jobs whose updated_at is older than
// the cutoff. Attempts go with them through the FK cascade. Processes up
// to BatchSize jobs per call. Returns the number of jobs deleted.
func (r *JobRepo) PurgeArchivedJobs(ctx context.Context, params core.RetentionParams) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockRetentionMajor, advisoryLockRetentionPurge).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					WHERE archived = TRUE
					  AND updated_at < $1
					ORDER BY updated_at
					LIMIT $2
				)
			`, params.OlderThan.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("purge archived jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
