package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/target/taskflow/internal/errors"

	"github.com/target/taskflow/internal/data/pgxutil"
	"github.com/target/taskflow/internal/domain/model"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger *slog.Logger
}

// JobRepo provides database operations for jobs. Pool-level methods run
// each statement on its own connection; the transactional view used by
// the unit of work shares one pgx.Tx across repositories.
type JobRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	return &JobRepo{
		DB:     db,
		logger: cfg.Logger,
	}
}

const jobColumns = `
  id,
  queue,
  name,
  tenant_id,
  payload,
  state,
  priority,
  attempts,
  max_attempts,
  retry_strategy,
  retry_base_delay_seconds,
  scheduled_at,
  next_run_at,
  last_run_at,
  locked_by,
  locked_at,
  last_error,
  archived,
  created_at,
  updated_at
`

// queryer is the subset of pgx query methods shared by *pgx.Conn and
// pgx.Tx, letting the same SQL helpers serve pool and transaction paths.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Insert persists a new job.
func (r *JobRepo) Insert(ctx context.Context, job model.Job) error {
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return insertJob(ctx, conn, job)
	})
}

// GetByID fetches a job by id, archived or not.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Job, error) {
	var job model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var getErr error
		job, getErr = getJobByID(ctx, conn, id)
		return getErr
	})
	return job, err
}

// Update writes all mutable fields of an existing job.
func (r *JobRepo) Update(ctx context.Context, job model.Job) error {
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return updateJob(ctx, conn, job)
	})
}

// CountByState returns non-archived job counts per state for a queue.
func (r *JobRepo) CountByState(ctx context.Context, queue string) (map[model.JobState]int64, error) {
	var counts map[model.JobState]int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var countErr error
		counts, countErr = countJobsByState(ctx, conn, queue)
		return countErr
	})
	return counts, err
}

func insertJob(ctx context.Context, q queryer, job model.Job) error {
	payload, err := marshalPayload(job.Payload)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
      INSERT INTO jobs (`+jobColumns+`)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
    `,
		job.ID,
		job.Queue,
		job.Name,
		nullIfEmpty(job.TenantID),
		payload,
		job.State,
		job.Priority,
		job.Attempts,
		job.MaxAttempts,
		string(job.RetryPolicy.Strategy),
		int(job.RetryPolicy.BaseDelay/time.Second),
		job.ScheduledAt,
		job.NextRunAt,
		job.LastRunAt,
		nullIfEmpty(job.LockedBy),
		job.LockedAt,
		nullIfEmpty(job.LastError),
		job.Archived,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("insert job: %w", err))
	}
	return nil
}

func getJobByID(ctx context.Context, q queryer, id uuid.UUID) (model.Job, error) {
	row := q.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	job, err := scanJobFromRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return model.Job{}, apperrors.MapDBError(fmt.Errorf("get job: %w", err))
	}
	return job, nil
}

func updateJob(ctx context.Context, q queryer, job model.Job) error {
	payload, err := marshalPayload(job.Payload)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
      UPDATE jobs
      SET
        queue = $2,
        name = $3,
        tenant_id = $4,
        payload = $5,
        state = $6,
        priority = $7,
        attempts = $8,
        max_attempts = $9,
        retry_strategy = $10,
        retry_base_delay_seconds = $11,
        scheduled_at = $12,
        next_run_at = $13,
        last_run_at = $14,
        locked_by = $15,
        locked_at = $16,
        last_error = $17,
        archived = $18,
        updated_at = $19
      WHERE id = $1
    `,
		job.ID,
		job.Queue,
		job.Name,
		nullIfEmpty(job.TenantID),
		payload,
		job.State,
		job.Priority,
		job.Attempts,
		job.MaxAttempts,
		string(job.RetryPolicy.Strategy),
		int(job.RetryPolicy.BaseDelay/time.Second),
		job.ScheduledAt,
		job.NextRunAt,
		job.LastRunAt,
		nullIfEmpty(job.LockedBy),
		job.LockedAt,
		nullIfEmpty(job.LastError),
		job.Archived,
		job.UpdatedAt,
	)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("update job: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundf("job %s not found", job.ID)
	}
	return nil
}

func countJobsByState(ctx context.Context, q queryer, queue string) (map[model.JobState]int64, error) {
	rows, err := q.Query(ctx, `
      SELECT state, COUNT(*)
      FROM jobs
      WHERE queue = $1 AND archived = FALSE
      GROUP BY state
    `, queue)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("count jobs: %w", err))
	}
	defer rows.Close()

	counts := make(map[model.JobState]int64)
	for rows.Next() {
		var state model.JobState
		var n int64
		if scanErr := rows.Scan(&state, &n); scanErr != nil {
			return nil, apperrors.MapDBError(fmt.Errorf("scan count: %w", scanErr))
		}
		counts[state] = n
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("count jobs: %w", rowsErr))
	}
	return counts, nil
}

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Job{}, err
		}
		return model.Job{}, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return model.Job{}, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return model.Job{}, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload                                     []byte
	tenantID, lockedBy, lastError               sql.NullString
	retryStrategy                               string
	retryBaseDelaySeconds                       int64
	scheduledAt, nextRunAt, lastRunAt, lockedAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.Queue,
		&job.Name,
		&d.tenantID,
		&d.payload,
		&job.State,
		&job.Priority,
		&job.Attempts,
		&job.MaxAttempts,
		&d.retryStrategy,
		&d.retryBaseDelaySeconds,
		&d.scheduledAt,
		&d.nextRunAt,
		&d.lastRunAt,
		&d.lockedBy,
		&d.lockedAt,
		&d.lastError,
		&job.Archived,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) error {
	payload := map[string]any{}
	if len(d.payload) > 0 {
		if err := json.Unmarshal(d.payload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	job.Payload = payload

	job.RetryPolicy = model.RetryPolicy{
		Strategy:  model.RetryStrategy(d.retryStrategy),
		BaseDelay: time.Duration(d.retryBaseDelaySeconds) * time.Second,
	}

	job.TenantID = d.tenantID.String
	job.LockedBy = d.lockedBy.String
	job.LastError = d.lastError.String
	job.ScheduledAt = cloneNullableTime(d.scheduledAt)
	job.NextRunAt = cloneNullableTime(d.nextRunAt)
	job.LastRunAt = cloneNullableTime(d.lastRunAt)
	job.LockedAt = cloneNullableTime(d.lockedAt)
	return nil
}

func scanJobFromRow(scanner jobRowScanner) (model.Job, error) {
	var job model.Job
	var data jobRowData
	if err := data.scanInto(scanner, &job); err != nil {
		return model.Job{}, err
	}

	if err := data.apply(&job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "marshal payload")
	}
	return raw, nil
}
