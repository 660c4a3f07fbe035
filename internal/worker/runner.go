package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/data"
	"github.com/target/taskflow/internal/domain/model"
	obserrors "github.com/target/taskflow/internal/observability/errors"
	"github.com/target/taskflow/internal/observability/metrics"
	"github.com/target/taskflow/internal/observability/statsd"
	"github.com/target/taskflow/internal/service"
)

const defaultPollInterval = time.Second

// settleTimeout bounds the database writes that record a finished
// attempt once the handler has returned.
const settleTimeout = 30 * time.Second

// JobService is the slice of the job lifecycle the runner drives. The
// concrete *service.JobService satisfies it.
type JobService interface {
	AcquireNext(ctx context.Context, queue, workerID string) (model.Job, bool, error)
	Complete(ctx context.Context, id uuid.UUID, workerID string) (model.Job, error)
	Fail(ctx context.Context, params service.FailJobParams) (model.Job, error)
}

// RunnerOptions configures the worker runner.
type RunnerOptions struct {
	Jobs     JobService // Required: job lifecycle operations
	Registry *Registry  // Required: handler registry

	Queue        string            // Optional: queue to drain; defaults to "default"
	Concurrency  int               // Optional: number of worker goroutines; defaults to 1
	PollInterval time.Duration     // Optional: idle wait between claims; defaults to 1s
	Notifier     core.JobNotifier  // Optional: wake-up signals that cut idle waits short
	Time         core.TimeProvider // Optional: clock, defaults to system time
	Logger       *slog.Logger      // Optional: structured logger
	Metrics      statsd.Sink       // Optional: metrics sink (StatsD-compatible)
}

// Runner claims due jobs from a queue and executes them with registered
// handlers. Each worker goroutine carries its own worker id, so the jobs
// it locks can be attributed and release-checked on completion.
type Runner struct {
	jobs         JobService
	registry     *Registry
	queue        string
	workers      int
	pollInterval time.Duration
	notifier     core.JobNotifier
	time         core.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewRunner constructs a new Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("handler Registry is required")
	}

	queue := opts.Queue
	if queue == "" {
		queue = model.DefaultQueue
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	timeProvider := opts.Time
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "worker_runner")
	} else {
		logger = slog.Default().With("component", "worker_runner")
	}

	return &Runner{
		jobs:         opts.Jobs,
		registry:     opts.Registry,
		queue:        queue,
		workers:      workers,
		pollInterval: pollInterval,
		notifier:     opts.Notifier,
		time:         timeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Run starts the worker goroutines and blocks until the context is
// cancelled. Shutdown is cooperative: each worker finishes its in-flight
// job before exiting. Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting worker runner",
		"queue", r.queue,
		"workers", r.workers,
		"poll_interval", r.pollInterval,
		"handlers", r.registry.Names(),
	)

	var wg sync.WaitGroup
	for range r.workers {
		workerID := "worker-" + uuid.NewString()
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx, workerID)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// workerLoop claims and executes jobs until the context is cancelled.
// Handler failures never stop the loop; claim errors are logged and the
// loop continues on the next tick.
func (r *Runner) workerLoop(ctx context.Context, workerID string) {
	log := r.logger.With("worker_id", workerID, "queue", r.queue)
	log.InfoContext(ctx, "worker started")
	defer log.Info("worker stopped")

	for ctx.Err() == nil {
		job, ok, err := r.jobs.AcquireNext(ctx, r.queue, workerID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.ErrorContext(ctx, "acquire next job", "error", err)
			r.idle(ctx)
		case !ok:
			r.idle(ctx)
		default:
			r.runJob(ctx, log, workerID, job)
		}
	}
}

// idle waits out the poll interval. With a notifier configured the wait
// ends early when a job lands on the queue; polling remains the
// correctness mechanism either way.
func (r *Runner) idle(ctx context.Context) {
	if r.notifier != nil {
		// Wait only errors with ctx.Err, which the loop condition handles.
		_ = r.notifier.Wait(ctx, r.queue, r.pollInterval)
		return
	}

	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// runJob dispatches an acquired job to its handler and settles the
// outcome. The acquire call already counted the attempt, so exactly one
// of Complete or Fail follows here.
func (r *Runner) runJob(ctx context.Context, log *slog.Logger, workerID string, job model.Job) {
	log = log.With("job_id", job.ID, "job_name", job.Name, "attempt", job.Attempts)
	log.DebugContext(ctx, "dispatching job")

	handler, found := r.registry.Lookup(job.Name)
	if !found {
		log.WarnContext(ctx, "no handler registered for job name")
		r.failJob(ctx, log, failOutcome{
			Job:          job,
			WorkerID:     workerID,
			ErrorType:    model.ErrorTypeNoHandler,
			ErrorMessage: fmt.Sprintf("no handler registered for job name %q", job.Name),
		})
		return
	}

	started := r.time.Now()
	handlerErr := r.invoke(ctx, handler, job.Payload)
	elapsed := r.time.Now().Sub(started)

	if handlerErr != nil {
		log.WarnContext(ctx, "handler failed", "error", handlerErr, "duration", elapsed)
		r.emitHandlerMetric(job, metrics.ResultError, elapsed, handlerErr)
		r.failJob(ctx, log, failOutcome{
			Job:          job,
			WorkerID:     workerID,
			ErrorType:    obserrors.Classify(handlerErr),
			ErrorMessage: handlerErr.Error(),
		})
		return
	}

	sctx, cancel := settleContext(ctx)
	defer cancel()
	if _, err := r.jobs.Complete(sctx, job.ID, workerID); err != nil {
		log.ErrorContext(sctx, "complete job", "error", err)
		return
	}
	log.InfoContext(sctx, "job completed", "duration", elapsed)
	r.emitHandlerMetric(job, metrics.ResultSuccess, elapsed, nil)
}

// settleContext detaches outcome recording from shutdown cancellation.
// An attempt that already ran gets its terminal state committed even
// when the stop signal arrived mid-handler; the timeout keeps a stalled
// store from pinning worker exit.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// failOutcome carries one failed execution to the job service.
type failOutcome struct {
	Job          model.Job
	WorkerID     string
	ErrorType    string
	ErrorMessage string
}

func (r *Runner) failJob(ctx context.Context, log *slog.Logger, outcome failOutcome) {
	ctx, cancel := settleContext(ctx)
	defer cancel()
	if _, err := r.jobs.Fail(ctx, service.FailJobParams{
		JobID:        outcome.Job.ID,
		WorkerID:     outcome.WorkerID,
		ErrorType:    outcome.ErrorType,
		ErrorMessage: outcome.ErrorMessage,
	}); err != nil {
		log.ErrorContext(ctx, "fail job", "error", err, "error_type", outcome.ErrorType)
	}
}

// invoke runs the handler, converting a panic into an ordinary error so
// one bad job cannot take the worker down.
func (r *Runner) invoke(ctx context.Context, handler HandlerFunc, payload map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return handler(ctx, payload)
}

// panicError carries a recovered handler panic through the normal
// failure path.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.value)
}

func (r *Runner) emitHandlerMetric(job model.Job, result string, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}
	tags := map[string]string{
		"queue":   job.Queue,
		"handler": job.Name,
		"result":  result,
	}
	if err != nil {
		tags["error_class"] = obserrors.Classify(err)
	}
	r.metrics.Count("worker.jobs_processed", 1, tags)
	r.metrics.Timing("worker.handler_duration", elapsed, tags)
}
