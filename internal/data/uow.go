package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/target/taskflow/internal/errors"

	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/data/pgxutil"
	"github.com/target/taskflow/internal/domain/model"
)

// TxManager implements core.TxRunner on top of the shared pool. Each
// WithinTx call opens one pgx transaction, hands the callback a unit of
// work whose repositories are bound to that transaction, and commits on
// clean return or rolls back when the callback errors.
type TxManager struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewTxManager creates a new TxManager instance.
func NewTxManager(db *sql.DB, cfg RepoConfig) *TxManager {
	return &TxManager{
		DB:     db,
		logger: cfg.Logger,
	}
}

// WithinTx runs fn inside one database transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(uow core.UnitOfWork) error) error {
	return pgxutil.WithPgxTx(ctx, m.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			return fn(&unitOfWork{tx: tx})
		},
	})
}

// unitOfWork exposes repositories bound to one shared pgx transaction.
type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Jobs() core.JobRepository {
	return &txJobRepo{tx: u.tx}
}

func (u *unitOfWork) Attempts() core.JobAttemptRepository {
	return &txJobAttemptRepo{tx: u.tx}
}

// txJobRepo is the transaction-bound view of the job repository. Reads
// take row locks: a job fetched here is about to be mutated, and the
// lock serializes concurrent completion and failure reports.
type txJobRepo struct {
	tx pgx.Tx
}

func (t *txJobRepo) Insert(ctx context.Context, job model.Job) error {
	return insertJob(ctx, t.tx, job)
}

func (t *txJobRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Job, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)

	job, err := scanJobFromRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return model.Job{}, apperrors.MapDBError(fmt.Errorf("get job: %w", err))
	}
	return job, nil
}

func (t *txJobRepo) Update(ctx context.Context, job model.Job) error {
	return updateJob(ctx, t.tx, job)
}

func (t *txJobRepo) AcquireNextDue(ctx context.Context, params core.AcquireParams) (model.Job, bool, error) {
	return acquireNextDue(ctx, t.tx, params)
}

func (t *txJobRepo) CountByState(ctx context.Context, queue string) (map[model.JobState]int64, error) {
	return countJobsByState(ctx, t.tx, queue)
}

// txJobAttemptRepo is the transaction-bound view of the attempt repository.
type txJobAttemptRepo struct {
	tx pgx.Tx
}

func (t *txJobAttemptRepo) Insert(ctx context.Context, attempt model.JobAttempt) (model.JobAttempt, error) {
	return insertAttempt(ctx, t.tx, attempt)
}

func (t *txJobAttemptRepo) ListForJob(ctx context.Context, jobID uuid.UUID) ([]model.JobAttempt, error) {
	return listAttemptsForJob(ctx, t.tx, jobID)
}
