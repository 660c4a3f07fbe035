package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/taskflow/internal/errors"
)

func testNow() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func pendingJob(t *testing.T) Job {
	t.Helper()
	job, err := NewJob(ScheduleJobCommand{Name: "send-email"}, testNow())
	require.NoError(t, err)
	return job
}

func runningJob(t *testing.T) Job {
	t.Helper()
	job, err := pendingJob(t).MarkRunning("worker-1", testNow())
	require.NoError(t, err)
	return job
}

func TestJobState_Valid(t *testing.T) {
	for _, s := range []JobState{
		JobStatePending, JobStateScheduled, JobStateRunning,
		JobStateSucceeded, JobStateFailed, JobStateDead,
	} {
		assert.True(t, s.Valid(), "state %s", s)
	}
	assert.False(t, JobState("PAUSED").Valid())
	assert.False(t, JobState("pending").Valid())
}

func TestJobState_Terminal(t *testing.T) {
	assert.True(t, JobStateSucceeded.Terminal())
	assert.True(t, JobStateDead.Terminal())
	assert.False(t, JobStatePending.Terminal())
	assert.False(t, JobStateScheduled.Terminal())
	assert.False(t, JobStateRunning.Terminal())
}

func TestNewJob_Defaults(t *testing.T) {
	now := testNow()
	job, err := NewJob(ScheduleJobCommand{Name: "send-email"}, now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, DefaultQueue, job.Queue)
	assert.Equal(t, "send-email", job.Name)
	assert.Equal(t, JobStatePending, job.State)
	assert.Equal(t, int16(0), job.Priority)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
	assert.Equal(t, DefaultRetryPolicy(), job.RetryPolicy)
	assert.NotNil(t, job.Payload)
	assert.Empty(t, job.Payload)
	assert.Nil(t, job.ScheduledAt)
	assert.Nil(t, job.NextRunAt)
	assert.False(t, job.Archived)
	assert.Equal(t, now, job.CreatedAt)
	assert.Equal(t, now, job.UpdatedAt)
}

func TestNewJob_ExplicitFields(t *testing.T) {
	now := testNow()
	id := uuid.New()
	job, err := NewJob(ScheduleJobCommand{
		ID:          id,
		Name:        "  process-image  ",
		Queue:       "images",
		TenantID:    "tenant-a",
		Payload:     map[string]any{"image_id": "img-1"},
		Priority:    7,
		MaxAttempts: 5,
		RetryPolicy: RetryPolicy{Strategy: RetryStrategyFixed, BaseDelay: time.Minute},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, id, job.ID)
	assert.Equal(t, "process-image", job.Name)
	assert.Equal(t, "images", job.Queue)
	assert.Equal(t, "tenant-a", job.TenantID)
	assert.Equal(t, int16(7), job.Priority)
	assert.Equal(t, 5, job.MaxAttempts)
	assert.Equal(t, RetryStrategyFixed, job.RetryPolicy.Strategy)
	assert.Equal(t, "img-1", job.Payload["image_id"])
}

func TestNewJob_ScheduledAt(t *testing.T) {
	now := testNow()

	t.Run("future scheduled_at creates SCHEDULED job", func(t *testing.T) {
		at := now.Add(time.Hour)
		job, err := NewJob(ScheduleJobCommand{Name: "later", ScheduledAt: &at}, now)
		require.NoError(t, err)

		assert.Equal(t, JobStateScheduled, job.State)
		require.NotNil(t, job.NextRunAt)
		assert.Equal(t, at, *job.NextRunAt)
		require.NotNil(t, job.ScheduledAt)
		assert.Equal(t, at, *job.ScheduledAt)
	})

	t.Run("past scheduled_at creates PENDING job", func(t *testing.T) {
		at := now.Add(-time.Hour)
		job, err := NewJob(ScheduleJobCommand{Name: "overdue", ScheduledAt: &at}, now)
		require.NoError(t, err)

		assert.Equal(t, JobStatePending, job.State)
		require.NotNil(t, job.NextRunAt)
		assert.Equal(t, at, *job.NextRunAt)
	})

	t.Run("scheduled_at equal to now creates PENDING job", func(t *testing.T) {
		at := now
		job, err := NewJob(ScheduleJobCommand{Name: "due-now", ScheduledAt: &at}, now)
		require.NoError(t, err)

		assert.Equal(t, JobStatePending, job.State)
	})
}

func TestNewJob_InvalidCommand(t *testing.T) {
	_, err := NewJob(ScheduleJobCommand{Name: "   "}, testNow())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "name", apperrors.GetField(err))
}

func TestJob_Runnable(t *testing.T) {
	now := testNow()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		mod  func(Job) Job
		want bool
	}{
		{
			name: "pending without next_run_at",
			mod:  func(j Job) Job { return j },
			want: true,
		},
		{
			name: "pending with past next_run_at",
			mod:  func(j Job) Job { j.NextRunAt = &past; return j },
			want: true,
		},
		{
			name: "pending with next_run_at equal to now",
			mod:  func(j Job) Job { j.NextRunAt = &now; return j },
			want: true,
		},
		{
			name: "scheduled in the future",
			mod:  func(j Job) Job { j.State = JobStateScheduled; j.NextRunAt = &future; return j },
			want: false,
		},
		{
			name: "scheduled and due",
			mod:  func(j Job) Job { j.State = JobStateScheduled; j.NextRunAt = &past; return j },
			want: true,
		},
		{
			name: "running",
			mod:  func(j Job) Job { j.State = JobStateRunning; return j },
			want: false,
		},
		{
			name: "succeeded",
			mod:  func(j Job) Job { j.State = JobStateSucceeded; return j },
			want: false,
		},
		{
			name: "dead",
			mod:  func(j Job) Job { j.State = JobStateDead; return j },
			want: false,
		},
		{
			name: "archived",
			mod:  func(j Job) Job { j.Archived = true; return j },
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := tt.mod(pendingJob(t))
			assert.Equal(t, tt.want, job.Runnable(now))
		})
	}
}

func TestJob_MarkRunning(t *testing.T) {
	now := testNow()
	job := pendingJob(t)

	running, err := job.MarkRunning("worker-1", now)
	require.NoError(t, err)

	assert.Equal(t, JobStateRunning, running.State)
	assert.Equal(t, "worker-1", running.LockedBy)
	require.NotNil(t, running.LockedAt)
	assert.Equal(t, now, *running.LockedAt)
	require.NotNil(t, running.LastRunAt)
	assert.Equal(t, now, *running.LastRunAt)
	assert.Equal(t, 1, running.Attempts)

	// The original value is untouched.
	assert.Equal(t, JobStatePending, job.State)
	assert.Equal(t, 0, job.Attempts)
}

func TestJob_MarkRunning_Errors(t *testing.T) {
	now := testNow()

	t.Run("empty worker id", func(t *testing.T) {
		_, err := pendingJob(t).MarkRunning("", now)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("not runnable", func(t *testing.T) {
		_, err := runningJob(t).MarkRunning("worker-2", now)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("attempt budget exhausted", func(t *testing.T) {
		job := pendingJob(t)
		job.Attempts = job.MaxAttempts
		_, err := job.MarkRunning("worker-1", now)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestJob_MarkSucceeded(t *testing.T) {
	now := testNow()
	later := now.Add(time.Second)

	done, err := runningJob(t).MarkSucceeded(later)
	require.NoError(t, err)

	assert.Equal(t, JobStateSucceeded, done.State)
	assert.Empty(t, done.LockedBy)
	assert.Nil(t, done.LockedAt)
	assert.Nil(t, done.NextRunAt)
	assert.Equal(t, later, done.UpdatedAt)
	assert.Equal(t, 1, done.Attempts)

	_, err = done.MarkSucceeded(later)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestJob_MarkSucceeded_NotRunning(t *testing.T) {
	_, err := pendingJob(t).MarkSucceeded(testNow())
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestJob_ApplyFailure_SchedulesRetry(t *testing.T) {
	now := testNow()
	later := now.Add(time.Second)

	failed, err := runningJob(t).ApplyFailure(later, "smtp timeout")
	require.NoError(t, err)

	assert.Equal(t, JobStateScheduled, failed.State)
	assert.Empty(t, failed.LockedBy)
	assert.Nil(t, failed.LockedAt)
	assert.Equal(t, "smtp timeout", failed.LastError)
	require.NotNil(t, failed.NextRunAt)
	assert.Equal(t, later.Add(DefaultRetryBaseDelay), *failed.NextRunAt)
	assert.Equal(t, 1, failed.Attempts)
}

func TestJob_ApplyFailure_ExhaustedGoesDead(t *testing.T) {
	now := testNow()
	job := runningJob(t)
	job.Attempts = job.MaxAttempts

	dead, err := job.ApplyFailure(now, "still broken")
	require.NoError(t, err)

	assert.Equal(t, JobStateDead, dead.State)
	assert.Empty(t, dead.LockedBy)
	assert.Nil(t, dead.LockedAt)
	assert.Nil(t, dead.NextRunAt)
	assert.Equal(t, "still broken", dead.LastError)
	assert.GreaterOrEqual(t, dead.Attempts, dead.MaxAttempts)
}

func TestJob_ApplyFailure_NotRunning(t *testing.T) {
	_, err := pendingJob(t).ApplyFailure(testNow(), "boom")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestJob_Archive(t *testing.T) {
	now := testNow()
	later := now.Add(time.Minute)

	job := pendingJob(t)
	archived := job.Archive(later)

	assert.True(t, archived.Archived)
	assert.Equal(t, job.State, archived.State)
	assert.Equal(t, later, archived.UpdatedAt)
	assert.False(t, archived.Runnable(later))
	assert.False(t, job.Archived)
}

func TestJob_RetryLifecycle(t *testing.T) {
	// Walk a job through its whole retry budget: run, fail, retry,
	// until it lands in DEAD with attempts == max_attempts.
	now := testNow()
	job, err := NewJob(ScheduleJobCommand{Name: "flaky", MaxAttempts: 3}, now)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.True(t, job.Runnable(job.UpdatedAt.Add(maxRetryBackoff)), "attempt %d", i)

		now = now.Add(time.Minute)
		if job.NextRunAt != nil && job.NextRunAt.After(now) {
			now = job.NextRunAt.Add(time.Second)
		}

		job, err = job.MarkRunning("worker-1", now)
		require.NoError(t, err)
		assert.Equal(t, i, job.Attempts)

		job, err = job.ApplyFailure(now.Add(time.Second), "boom")
		require.NoError(t, err)
	}

	assert.Equal(t, JobStateDead, job.State)
	assert.Equal(t, 3, job.Attempts)
	assert.Nil(t, job.NextRunAt)

	_, err = job.MarkRunning("worker-1", now.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}
