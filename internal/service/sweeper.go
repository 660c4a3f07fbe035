package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/taskflow/config"
	"github.com/target/taskflow/internal/core"
	obserrors "github.com/target/taskflow/internal/observability/errors"
	"github.com/target/taskflow/internal/observability/metrics"
	"github.com/target/taskflow/internal/observability/statsd"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Repo    core.RetentionRepository // Required: retention repository
	Config  config.SweeperConfig     // Required: sweeper configuration
	Time    core.TimeProvider        // Optional: clock, defaults to system UTC time
	Logger  *slog.Logger             // Optional: structured logger
	Metrics statsd.Sink              // Optional: metrics sink (StatsD-compatible)
}

// SweeperService provides job retention operations.
//
// This service manages:
// - Archiving terminal jobs (SUCCEEDED/DEAD) past their retention age.
// - Purging archived jobs past their purge age to prevent database bloat.
//
// RUNNING jobs are never touched; a lost lease is recovered operationally,
// not by the sweeper.
type SweeperService struct {
	repo    core.RetentionRepository
	config  config.SweeperConfig
	time    core.TimeProvider
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("RetentionRepository is required")
	}

	timeProvider := opts.Time
	if timeProvider == nil {
		timeProvider = systemClock{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sweeper_service")
		logger.Debug("SweeperService initialized",
			"interval", opts.Config.Interval,
			"archive_after", opts.Config.ArchiveAfter,
			"purge_after", opts.Config.PurgeAfter,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &SweeperService{
		repo:    opts.Repo,
		config:  opts.Config,
		time:    timeProvider,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the sweeper loop and runs until the context is cancelled.
// It performs retention sweeps at the configured interval.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting sweeper service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run a sweep immediately after jitter
	if err := s.runSweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// Use modulo on uint64 before converting to avoid overflow
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// runLoop runs the sweep loop until context is cancelled.
func (s *SweeperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			}
			// Return nil on graceful shutdown to avoid treating it as a failure
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runSweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
				if isContextCancellation(err) {
					continue
				}
				// Continue running despite errors
			}
		}
	}
}

// runSweep performs all retention operations.
func (s *SweeperService) runSweep(ctx context.Context) error {
	start := time.Now()
	var (
		errs               []error
		allContextCanceled = true
		metricsData        = sweepMetrics{}
	)

	steps := []sweepStep{
		{
			fn:        s.archiveTerminalJobs,
			label:     "archive terminal jobs",
			count:     &metricsData.ArchivedCount,
			metricErr: &metricsData.ArchivedErr,
		},
		{
			fn:        s.purgeArchivedJobs,
			label:     "purge archived jobs",
			count:     &metricsData.PurgedCount,
			metricErr: &metricsData.PurgedErr,
		},
	}

	for _, step := range steps {
		outcome := s.executeSweepStep(ctx, step.fn, step.label)
		*step.count = outcome.count
		*step.metricErr = outcome.metricErr
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	metricsData.Elapsed = time.Since(start)
	s.emitSweepMetrics(metricsData)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("sweep failed: %w", joined)
	}

	return nil
}

type sweepFunc func(context.Context) (int64, error)

type sweepStep struct {
	fn        sweepFunc
	label     string
	count     *int64
	metricErr *error
}

type sweepStepOutcome struct {
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *SweeperService) executeSweepStep(
	ctx context.Context,
	fn sweepFunc,
	label string,
) sweepStepOutcome {
	count, err := fn(ctx)
	outcome := sweepStepOutcome{
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", label, err)
	}
	return outcome
}

// archiveTerminalJobs archives terminal jobs older than the configured age.
// Loops until no more rows are affected to handle large datasets in batches.
func (s *SweeperService) archiveTerminalJobs(ctx context.Context) (int64, error) {
	cutoff := s.time.Now().Add(-s.config.ArchiveAfter)

	var totalCount int64
	for {
		count, err := s.repo.ArchiveTerminalJobs(ctx, core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return totalCount, err
		}
		totalCount += count
		if count == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "archived terminal jobs",
			"count", totalCount,
			"archive_after", s.config.ArchiveAfter,
		)
	}

	return totalCount, nil
}

// purgeArchivedJobs deletes archived jobs older than the configured age.
// Attempt rows go with their job via FK cascade.
// Loops until no more rows are affected to handle large datasets in batches.
func (s *SweeperService) purgeArchivedJobs(ctx context.Context) (int64, error) {
	cutoff := s.time.Now().Add(-s.config.PurgeAfter)

	var totalCount int64
	for {
		count, err := s.repo.PurgeArchivedJobs(ctx, core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return totalCount, err
		}
		totalCount += count
		if count == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "purged archived jobs",
			"count", totalCount,
			"purge_after", s.config.PurgeAfter,
		)
	}

	return totalCount, nil
}

type sweepMetrics struct {
	ArchivedCount int64
	ArchivedErr   error
	PurgedCount   int64
	PurgedErr     error
	Elapsed       time.Duration
}

func (s *SweeperService) emitSweepMetrics(m sweepMetrics) {
	if s.metrics == nil {
		return
	}

	totalCount := m.ArchivedCount + m.PurgedCount
	firstErr := firstError(m.ArchivedErr, m.PurgedErr)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if totalCount == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("sweeper.sweep", 1, tags)

	if m.Elapsed > 0 {
		s.metrics.Timing("sweeper.sweep_duration", m.Elapsed, metrics.CloneTags(tags))
	}

	s.emitSweepOperationMetric("archive_terminal", m.ArchivedCount, m.ArchivedErr)
	s.emitSweepOperationMetric("purge_archived", m.PurgedCount, m.PurgedErr)

	if firstErr == nil {
		s.metrics.Gauge("sweeper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *SweeperService) emitSweepOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("sweeper.sweep_operation", 1, tags)

	if err == nil && count > 0 {
		s.metrics.Count("sweeper.jobs_processed", count, metrics.CloneTags(tags))
	}
}

func (s *SweeperService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
