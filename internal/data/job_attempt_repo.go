package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/target/taskflow/internal/errors"

	"github.com/target/taskflow/internal/data/pgxutil"
	"github.com/target/taskflow/internal/domain/model"
)

// JobAttemptRepo provides database operations for job attempt records.
type JobAttemptRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewJobAttemptRepo creates a new JobAttemptRepo instance.
func NewJobAttemptRepo(db *sql.DB, cfg RepoConfig) *JobAttemptRepo {
	return &JobAttemptRepo{
		DB:     db,
		logger: cfg.Logger,
	}
}

const attemptColumns = `
  id,
  job_id,
  attempt_number,
  worker_id,
  success,
  error_type,
  error_message,
  started_at,
  finished_at
`

// Insert appends an attempt record and returns it with the generated id.
func (r *JobAttemptRepo) Insert(ctx context.Context, attempt model.JobAttempt) (model.JobAttempt, error) {
	var out model.JobAttempt
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var insertErr error
		out, insertErr = insertAttempt(ctx, conn, attempt)
		return insertErr
	})
	return out, err
}

// ListForJob returns all attempts of a job ordered by attempt number.
func (r *JobAttemptRepo) ListForJob(ctx context.Context, jobID uuid.UUID) ([]model.JobAttempt, error) {
	var attempts []model.JobAttempt
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var listErr error
		attempts, listErr = listAttemptsForJob(ctx, conn, jobID)
		return listErr
	})
	return attempts, err
}

func insertAttempt(ctx context.Context, q queryer, attempt model.JobAttempt) (model.JobAttempt, error) {
	row := q.QueryRow(ctx, `
      INSERT INTO job_attempts (job_id, attempt_number, worker_id, success, error_type, error_message, started_at, finished_at)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
      RETURNING id
    `,
		attempt.JobID,
		attempt.AttemptNumber,
		attempt.WorkerID,
		attempt.Success,
		nullIfEmpty(attempt.ErrorType),
		nullIfEmpty(attempt.ErrorMessage),
		attempt.StartedAt.UTC(),
		attempt.FinishedAt.UTC(),
	)

	out := attempt
	if err := row.Scan(&out.ID); err != nil {
		return model.JobAttempt{}, apperrors.MapDBError(fmt.Errorf("insert attempt: %w", err))
	}
	return out, nil
}

func listAttemptsForJob(ctx context.Context, q queryer, jobID uuid.UUID) ([]model.JobAttempt, error) {
	rows, err := q.Query(ctx, `
      SELECT `+attemptColumns+`
      FROM job_attempts
      WHERE job_id = $1
      ORDER BY attempt_number ASC
    `, jobID)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list attempts: %w", err))
	}
	defer rows.Close()

	attempts := []model.JobAttempt{}
	for rows.Next() {
		att, scanErr := scanAttemptFromRow(rows)
		if scanErr != nil {
			return nil, apperrors.MapDBError(fmt.Errorf("scan attempt: %w", scanErr))
		}
		attempts = append(attempts, att)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list attempts: %w", rowsErr))
	}
	return attempts, nil
}

func scanAttemptFromRow(scanner jobRowScanner) (model.JobAttempt, error) {
	var att model.JobAttempt
	var errorType, errorMessage sql.NullString

	if err := scanner.Scan(
		&att.ID,
		&att.JobID,
		&att.AttemptNumber,
		&att.WorkerID,
		&att.Success,
		&errorType,
		&errorMessage,
		&att.StartedAt,
		&att.FinishedAt,
	); err != nil {
		return model.JobAttempt{}, err
	}

	att.ErrorType = errorType.String
	att.ErrorMessage = errorMessage.String
	att.StartedAt = att.StartedAt.UTC()
	att.FinishedAt = att.FinishedAt.UTC()
	return att, nil
}
