package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/taskflow/internal/data"
	"github.com/target/taskflow/internal/domain/model"
	"github.com/target/taskflow/internal/service/deadletter"
	"github.com/target/taskflow/internal/testutil"
)

func newIntegrationJobService(db *sql.DB, clock *data.FixedTimeProvider) *JobService {
	return MustNewJobService(JobServiceOptions{
		Tx:       data.NewTxManager(db, data.RepoConfig{}),
		Jobs:     data.NewJobRepo(db, data.RepoConfig{}),
		Attempts: data.NewJobAttemptRepo(db, data.RepoConfig{}),
		Time:     clock,
	})
}

func TestJobService_Integration_RetryLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := data.NewFixedTimeProvider(testutil.TestTime())
		svc := newIntegrationJobService(db, clock)

		// Schedule an immediately runnable job
		job, err := svc.Schedule(ctx, model.ScheduleJobCommand{
			Name:        "send-email",
			Payload:     map[string]any{"to": "user@example.com"},
			MaxAttempts: 3,
			RetryPolicy: model.RetryPolicy{
				Strategy:  model.RetryStrategyFixed,
				BaseDelay: 30 * time.Second,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatePending, job.State)

		// First acquisition claims it
		claimed, ok, err := svc.AcquireNext(ctx, model.DefaultQueue, "worker-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, model.JobStateRunning, claimed.State)
		assert.Equal(t, 1, claimed.Attempts)

		// First attempt fails and the job is rescheduled 30s out
		failed, err := svc.Fail(ctx, FailJobParams{
			JobID:        claimed.ID,
			WorkerID:     "worker-1",
			ErrorType:    "smtp_error",
			ErrorMessage: "connection reset",
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStateScheduled, failed.State)
		require.NotNil(t, failed.NextRunAt)
		assert.Equal(t, clock.Now().Add(30*time.Second), failed.NextRunAt.UTC())

		// Not due yet: nothing to acquire
		_, ok, err = svc.AcquireNext(ctx, model.DefaultQueue, "worker-1")
		require.NoError(t, err)
		assert.False(t, ok)

		// Once the retry delay elapses the job is claimable again
		clock.AddTime(31 * time.Second)
		reclaimed, ok, err := svc.AcquireNext(ctx, model.DefaultQueue, "worker-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2, reclaimed.Attempts)

		// Second attempt succeeds
		done, err := svc.Complete(ctx, reclaimed.ID, "worker-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateSucceeded, done.State)
		assert.Empty(t, done.LockedBy)
		assert.Nil(t, done.NextRunAt)

		// Both attempts are on record, oldest first
		attempts, err := svc.ListAttempts(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.Equal(t, 1, attempts[0].AttemptNumber)
		assert.False(t, attempts[0].Success)
		assert.Equal(t, "smtp_error", attempts[0].ErrorType)
		assert.Equal(t, 2, attempts[1].AttemptNumber)
		assert.True(t, attempts[1].Success)

		// Queue stats reflect the terminal state
		stats, err := svc.QueueStats(ctx, model.DefaultQueue)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Counts[model.JobStateSucceeded])
		assert.Equal(t, int64(1), stats.Total)
	})
}

func TestJobService_Integration_DeadLetter(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := data.NewFixedTimeProvider(testutil.TestTime())
		sink := &recordingDeadLetterSink{}

		svc := MustNewJobService(JobServiceOptions{
			Tx:       data.NewTxManager(db, data.RepoConfig{}),
			Jobs:     data.NewJobRepo(db, data.RepoConfig{}),
			Attempts: data.NewJobAttemptRepo(db, data.RepoConfig{}),
			Time:     clock,
			DeadLetter: deadletter.NewService(deadletter.Options{
				Sinks: []deadletter.SinkRegistration{{Name: "test", Sink: sink}},
			}),
		})

		job, err := svc.Schedule(ctx, model.ScheduleJobCommand{
			Name:        "process-image",
			MaxAttempts: 1,
		})
		require.NoError(t, err)

		claimed, ok, err := svc.AcquireNext(ctx, model.DefaultQueue, "worker-1")
		require.NoError(t, err)
		require.True(t, ok)

		failed, err := svc.Fail(ctx, FailJobParams{
			JobID:        claimed.ID,
			WorkerID:     "worker-1",
			ErrorMessage: "corrupt image",
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStateDead, failed.State)
		assert.Nil(t, failed.NextRunAt)
		assert.Equal(t, "corrupt image", failed.LastError)

		// The budget is spent: the job is never claimable again
		_, ok, err = svc.AcquireNext(ctx, model.DefaultQueue, "worker-1")
		require.NoError(t, err)
		assert.False(t, ok)

		payloads := sink.all()
		require.Len(t, payloads, 1)
		assert.Equal(t, job.ID.String(), payloads[0].JobID)
		assert.Equal(t, 1, payloads[0].AttemptNumber)
		assert.Equal(t, "corrupt image", payloads[0].Error)
	})
}

func TestJobService_Integration_OwnershipConflict(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := data.NewFixedTimeProvider(testutil.TestTime())
		svc := newIntegrationJobService(db, clock)

		_, err := svc.Schedule(ctx, model.ScheduleJobCommand{Name: "send-email"})
		require.NoError(t, err)

		claimed, ok, err := svc.AcquireNext(ctx, model.DefaultQueue, "worker-1")
		require.NoError(t, err)
		require.True(t, ok)

		// A different worker cannot report on the claimed job
		_, err = svc.Complete(ctx, claimed.ID, "worker-2")
		require.Error(t, err)

		// The job is still running and untouched
		current, err := svc.GetByID(ctx, claimed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateRunning, current.State)
		assert.Equal(t, "worker-1", current.LockedBy)

		// The rightful worker can still complete it
		done, err := svc.Complete(ctx, claimed.ID, "worker-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateSucceeded, done.State)
	})
}

func TestSweeperService_Integration_Sweep(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		now := testutil.TestTime()
		clock := data.NewFixedTimeProvider(now)
		jobs := data.NewJobRepo(db, data.RepoConfig{})
		svc := newIntegrationJobService(db, clock)

		// Drive one job to SUCCEEDED
		scheduled, err := svc.Schedule(ctx, model.ScheduleJobCommand{Name: "send-email"})
		require.NoError(t, err)
		claimed, ok, err := svc.AcquireNext(ctx, model.DefaultQueue, "worker-1")
		require.NoError(t, err)
		require.True(t, ok)
		_, err = svc.Complete(ctx, claimed.ID, "worker-1")
		require.NoError(t, err)

		cfg := testSweeperConfig()
		cfg.ArchiveAfter = time.Hour
		cfg.PurgeAfter = 48 * time.Hour

		// A sweep an hour later leaves the fresh terminal job alone
		sweeper, err := NewSweeperService(SweeperServiceOptions{
			Repo:   jobs,
			Config: cfg,
			Time:   data.NewFixedTimeProvider(now.Add(time.Hour)),
		})
		require.NoError(t, err)
		require.NoError(t, sweeper.runSweep(ctx))

		current, err := jobs.GetByID(ctx, scheduled.ID)
		require.NoError(t, err)
		assert.False(t, current.Archived)

		// Well past the retention age the job gets archived. The archive
		// cutoff compares against updated_at, which Complete stamped with
		// the fixed test clock.
		sweeper, err = NewSweeperService(SweeperServiceOptions{
			Repo:   jobs,
			Config: cfg,
			Time:   data.NewFixedTimeProvider(now.Add(2 * time.Hour)),
		})
		require.NoError(t, err)
		require.NoError(t, sweeper.runSweep(ctx))

		current, err = jobs.GetByID(ctx, scheduled.ID)
		require.NoError(t, err)
		assert.True(t, current.Archived)
	})
}
