package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/domain/model"
	apperrors "github.com/target/taskflow/internal/errors"
	"github.com/target/taskflow/internal/observability/metrics"
	"github.com/target/taskflow/internal/observability/notify"
	"github.com/target/taskflow/internal/observability/statsd"
	"github.com/target/taskflow/internal/service/deadletter"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Tx         core.TxRunner             // Required: transaction boundary for job state transitions
	Jobs       core.JobRepository        // Required: job repository for reads and scheduling
	Attempts   core.JobAttemptRepository // Required: attempt history reads
	Time       core.TimeProvider         // Optional: clock, defaults to system UTC time
	Logger     *slog.Logger              // Optional: structured logger
	Metrics    statsd.Sink               // Optional: metrics sink (StatsD-compatible)
	Notifier   core.JobNotifier          // Optional: queue wake-up broadcasts
	DeadLetter *deadletter.Service       // Optional: dead job notification fan-out
}

// JobService provides business logic for job lifecycle operations.
//
// This service manages:
// - Scheduling new jobs and reading them back
// - Claiming due jobs on behalf of workers
// - Reporting completion and failure outcomes with attempt history
// - Queue statistics for operational visibility.
//
// Completion and failure reports run inside a transaction so the job row
// and its attempt record commit or roll back together.
type JobService struct {
	tx         core.TxRunner
	jobs       core.JobRepository
	attempts   core.JobAttemptRepository
	time       core.TimeProvider
	logger     *slog.Logger
	metrics    statsd.Sink
	notifier   core.JobNotifier
	deadLetter *deadletter.Service
}

// systemClock is the fallback TimeProvider when none is injected.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Tx == nil {
		return nil, errors.New("TxRunner is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Attempts == nil {
		return nil, errors.New("JobAttemptRepository is required")
	}

	timeProvider := opts.Time
	if timeProvider == nil {
		timeProvider = systemClock{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		tx:         opts.Tx,
		jobs:       opts.Jobs,
		attempts:   opts.Attempts,
		time:       timeProvider,
		logger:     logger,
		metrics:    opts.Metrics,
		notifier:   opts.Notifier,
		deadLetter: opts.DeadLetter,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Schedule validates the command, persists a new job, and wakes any idle
// workers on the target queue when the job is immediately runnable.
func (s *JobService) Schedule(ctx context.Context, cmd model.ScheduleJobCommand) (model.Job, error) {
	now := s.time.Now()

	job, err := model.NewJob(cmd, now)
	if err != nil {
		return model.Job{}, err
	}

	if err := s.jobs.Insert(ctx, job); err != nil {
		return model.Job{}, fmt.Errorf("schedule job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job scheduled",
			"id", job.ID,
			"queue", job.Queue,
			"name", job.Name,
			"state", job.State,
		)
	}

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Queue:      job.Queue,
		JobName:    job.Name,
		Transition: metrics.TransitionScheduled,
		Result:     metrics.ResultSuccess,
	})

	if job.Runnable(now) {
		s.notifyQueue(ctx, job.Queue)
	}

	return job, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id uuid.UUID) (model.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return model.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListAttempts returns the attempt history for a job, oldest first.
// Returns not_found when the job itself does not exist.
func (s *JobService) ListAttempts(ctx context.Context, id uuid.UUID) ([]model.JobAttempt, error) {
	if _, err := s.jobs.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	attempts, err := s.attempts.ListForJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list attempts for job %s: %w", id, err)
	}
	return attempts, nil
}

// AcquireNext claims the next due job on the queue for the given worker.
// Returns false when no job is due.
func (s *JobService) AcquireNext(ctx context.Context, queue, workerID string) (model.Job, bool, error) {
	now := s.time.Now()

	job, ok, err := s.jobs.AcquireNextDue(ctx, core.AcquireParams{
		Queue:    queue,
		WorkerID: workerID,
		Now:      now,
	})
	if err != nil {
		return model.Job{}, false, fmt.Errorf("acquire next job on queue %s: %w", queue, err)
	}
	if !ok {
		return model.Job{}, false, nil
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job acquired",
			"id", job.ID,
			"queue", job.Queue,
			"name", job.Name,
			"worker_id", workerID,
			"attempt", job.Attempts,
		)
	}

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Queue:      job.Queue,
		JobName:    job.Name,
		Transition: metrics.TransitionAcquired,
		Result:     metrics.ResultSuccess,
	})

	return job, true, nil
}

// Complete marks a running job as succeeded and records the attempt.
// The job row and attempt record commit atomically.
func (s *JobService) Complete(ctx context.Context, id uuid.UUID, workerID string) (model.Job, error) {
	now := s.time.Now()

	var done model.Job
	var started *time.Time
	err := s.tx.WithinTx(ctx, func(uow core.UnitOfWork) error {
		current, err := uow.Jobs().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := verifyJobOwnership(current, workerID); err != nil {
			return err
		}

		transitioned, err := current.MarkSucceeded(now)
		if err != nil {
			return err
		}
		if err := uow.Jobs().Update(ctx, transitioned); err != nil {
			return err
		}
		if _, err := uow.Attempts().Insert(ctx, model.NewSuccessAttempt(current, now)); err != nil {
			return err
		}

		done = transitioned
		started = current.LastRunAt
		return nil
	})
	if err != nil {
		return model.Job{}, fmt.Errorf("complete job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job succeeded",
			"id", done.ID,
			"queue", done.Queue,
			"name", done.Name,
			"attempt", done.Attempts,
		)
	}

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Queue:      done.Queue,
		JobName:    done.Name,
		Transition: metrics.TransitionSucceeded,
		Result:     metrics.ResultSuccess,
		Duration:   durationSince(started, now),
	})

	return done, nil
}

// FailJobParams describes a failure report from a worker.
type FailJobParams struct {
	JobID        uuid.UUID
	WorkerID     string
	ErrorType    string
	ErrorMessage string
}

// Fail records a failed attempt for a running job. The job is rescheduled
// per its retry policy, or moved to the dead letter state once the attempt
// budget is exhausted. The job row and attempt record commit atomically.
func (s *JobService) Fail(ctx context.Context, params FailJobParams) (model.Job, error) {
	if params.ErrorMessage == "" {
		return model.Job{}, apperrors.ValidationField("error_message", "error message is required")
	}
	errorType := params.ErrorType
	if errorType == "" {
		errorType = "handler_error"
	}

	now := s.time.Now()

	var failed model.Job
	var started *time.Time
	err := s.tx.WithinTx(ctx, func(uow core.UnitOfWork) error {
		current, err := uow.Jobs().GetByID(ctx, params.JobID)
		if err != nil {
			return err
		}
		if err := verifyJobOwnership(current, params.WorkerID); err != nil {
			return err
		}

		transitioned, err := current.ApplyFailure(now, params.ErrorMessage)
		if err != nil {
			return err
		}
		if err := uow.Jobs().Update(ctx, transitioned); err != nil {
			return err
		}
		attempt := model.NewFailureAttempt(current, errorType, params.ErrorMessage, now)
		if _, err := uow.Attempts().Insert(ctx, attempt); err != nil {
			return err
		}

		failed = transitioned
		started = current.LastRunAt
		return nil
	})
	if err != nil {
		return model.Job{}, fmt.Errorf("fail job %s: %w", params.JobID, err)
	}

	s.reportFailureOutcome(ctx, failed, errorType, params.ErrorMessage, durationSince(started, now))

	return failed, nil
}

// reportFailureOutcome logs, emits metrics, and fans out dead letter
// notifications after a failure report has committed.
func (s *JobService) reportFailureOutcome(
	ctx context.Context,
	failed model.Job,
	errorType, errorMessage string,
	duration time.Duration,
) {
	dead := failed.State == model.JobStateDead

	if s.logger != nil {
		if dead {
			s.logger.WarnContext(ctx, "job dead",
				"id", failed.ID,
				"queue", failed.Queue,
				"name", failed.Name,
				"attempts", failed.Attempts,
				"error_type", errorType,
				"error", errorMessage,
			)
		} else {
			s.logger.DebugContext(ctx, "job failed, retry scheduled",
				"id", failed.ID,
				"queue", failed.Queue,
				"name", failed.Name,
				"attempt", failed.Attempts,
				"next_run_at", failed.NextRunAt,
				"error_type", errorType,
			)
		}
	}

	transition := metrics.TransitionRetried
	if dead {
		transition = metrics.TransitionDead
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Queue:      failed.Queue,
		JobName:    failed.Name,
		Transition: transition,
		Result:     metrics.ResultError,
		ErrorType:  errorType,
		Duration:   duration,
	})

	if dead && s.deadLetter != nil && s.deadLetter.Enabled() {
		s.deadLetter.NotifyDeadJob(ctx, notify.DeadJobPayload{
			JobID:         failed.ID.String(),
			Queue:         failed.Queue,
			JobName:       failed.Name,
			TenantID:      failed.TenantID,
			AttemptNumber: failed.Attempts,
			MaxAttempts:   failed.MaxAttempts,
			ErrorType:     errorType,
			Error:         errorMessage,
			OccurredAt:    s.time.Now(),
			Metadata: map[string]string{
				"priority": strconv.Itoa(int(failed.Priority)),
			},
		})
	}
}

// QueueStats returns per-state counts for live jobs on a queue.
func (s *JobService) QueueStats(ctx context.Context, queue string) (model.QueueStats, error) {
	if queue == "" {
		return model.QueueStats{}, apperrors.ValidationField("queue", "queue is required")
	}

	counts, err := s.jobs.CountByState(ctx, queue)
	if err != nil {
		return model.QueueStats{}, fmt.Errorf("count jobs by state for queue %s: %w", queue, err)
	}

	stats := model.NewQueueStats(queue, counts)
	if s.metrics != nil {
		gauges := make(map[string]int64, len(stats.Counts))
		for state, count := range stats.Counts {
			gauges[string(state)] = count
		}
		metrics.QueueDepth(s.metrics, queue, gauges)
	}

	return stats, nil
}

// verifyJobOwnership rejects completion or failure reports from a worker
// that does not hold the job's lock.
func verifyJobOwnership(job model.Job, workerID string) error {
	if workerID == "" {
		return apperrors.ValidationField("worker_id", "worker id is required")
	}
	if job.State == model.JobStateRunning && job.LockedBy != workerID {
		return apperrors.Conflictf("job %s is locked by worker %s", job.ID, job.LockedBy)
	}
	return nil
}

func (s *JobService) notifyQueue(ctx context.Context, queue string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, queue); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "queue wake-up notify failed", "queue", queue, "error", err)
	}
}

func durationSince(started *time.Time, now time.Time) time.Duration {
	if started == nil {
		return 0
	}
	d := now.Sub(*started)
	if d < 0 {
		return 0
	}
	return d
}
