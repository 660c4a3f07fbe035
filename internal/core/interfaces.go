package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/target/taskflow/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// TimeProvider abstracts the current time so services and repositories
// can be tested deterministically.
type TimeProvider interface {
	// Now returns the current time
	Now() time.Time
}

// AcquireParams groups parameters for JobRepository.AcquireNextDue to keep param count ≤3.
type AcquireParams struct {
	Queue    string
	WorkerID string
	Now      time.Time
}

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	// Insert persists a new job. A duplicate id surfaces as a
	// job_already_exists error.
	Insert(ctx context.Context, job model.Job) error

	// GetByID fetches a job by id, archived or not.
	GetByID(ctx context.Context, id uuid.UUID) (model.Job, error)

	// Update writes all mutable fields of an existing job.
	Update(ctx context.Context, job model.Job) error

	// AcquireNextDue atomically claims the highest-priority due job on the
	// queue for the given worker and returns it in RUNNING state. The
	// second result is false when no job is due. Concurrent callers never
	// receive the same job.
	AcquireNextDue(ctx context.Context, params AcquireParams) (model.Job, bool, error)

	// CountByState returns non-archived job counts per state for a queue.
	CountByState(ctx context.Context, queue string) (map[model.JobState]int64, error)
}

// JobAttemptRepository defines the interface for job attempt records.
type JobAttemptRepository interface {
	// Insert appends an attempt record, filling its generated id.
	Insert(ctx context.Context, attempt model.JobAttempt) (model.JobAttempt, error)

	// ListForJob returns all attempts of a job ordered by attempt number.
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]model.JobAttempt, error)
}

// UnitOfWork exposes repositories bound to one shared transaction.
// Everything done through it commits or rolls back together.
type UnitOfWork interface {
	Jobs() JobRepository
	Attempts() JobAttemptRepository
}

// TxRunner runs a function inside a database transaction. The transaction
// commits when fn returns nil and rolls back when it returns an error.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// RetentionParams groups parameters for retention sweeps to keep param count ≤3.
type RetentionParams struct {
	OlderThan time.Time
	BatchSize int
}

// RetentionRepository defines the interface for job retention sweeps.
type RetentionRepository interface {
	// ArchiveTerminalJobs archives terminal jobs whose updated_at is older
	// than the cutoff. Processes up to BatchSize jobs per call to prevent
	// long locks. Returns the number of jobs archived.
	ArchiveTerminalJobs(ctx context.Context, params RetentionParams) (int64, error)

	// PurgeArchivedJobs deletes archived jobs whose updated_at is older
	// than the cutoff, cascading to their attempts. Processes up to
	// BatchSize jobs per call. Returns the number of jobs deleted.
	PurgeArchivedJobs(ctx context.Context, params RetentionParams) (int64, error)
}

// JobNotifier carries cross-process wake-up signals so idle workers can
// react to new work before their next poll tick. Signals are advisory:
// losing one only delays pickup until the poll interval elapses.
type JobNotifier interface {
	// Notify signals that a job was scheduled on the queue.
	Notify(ctx context.Context, queue string) error

	// Wait blocks until a signal arrives for the queue, the timeout
	// elapses, or ctx is done. It returns ctx.Err when ctx ended the wait
	// and nil otherwise.
	Wait(ctx context.Context, queue string, timeout time.Duration) error
}
