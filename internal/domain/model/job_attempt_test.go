package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuccessAttempt(t *testing.T) {
	now := testNow()
	job := runningJob(t)
	finished := now.Add(3 * time.Second)

	att := NewSuccessAttempt(job, finished)

	assert.Equal(t, job.ID, att.JobID)
	assert.Equal(t, 1, att.AttemptNumber)
	assert.Equal(t, "worker-1", att.WorkerID)
	assert.True(t, att.Success)
	assert.Empty(t, att.ErrorType)
	assert.Empty(t, att.ErrorMessage)
	assert.Equal(t, now, att.StartedAt)
	assert.Equal(t, finished, att.FinishedAt)
}

func TestNewFailureAttempt(t *testing.T) {
	now := testNow()
	job := runningJob(t)
	finished := now.Add(time.Second)

	att := NewFailureAttempt(job, "handler_error", "smtp timeout", finished)

	assert.Equal(t, job.ID, att.JobID)
	assert.Equal(t, 1, att.AttemptNumber)
	assert.Equal(t, "worker-1", att.WorkerID)
	assert.False(t, att.Success)
	assert.Equal(t, "handler_error", att.ErrorType)
	assert.Equal(t, "smtp timeout", att.ErrorMessage)
	assert.Equal(t, now, att.StartedAt)
	assert.Equal(t, finished, att.FinishedAt)
}

func TestNewFailureAttempt_NoLastRunFallsBackToFinishedAt(t *testing.T) {
	job := runningJob(t)
	job.LastRunAt = nil
	finished := testNow().Add(time.Second)

	att := NewFailureAttempt(job, ErrorTypeNoHandler, "no handler registered", finished)
	assert.Equal(t, finished, att.StartedAt)
}

func TestNewQueueStats(t *testing.T) {
	stats := NewQueueStats("emails", map[JobState]int64{
		JobStatePending:   3,
		JobStateRunning:   1,
		JobStateSucceeded: 10,
	})

	assert.Equal(t, "emails", stats.Queue)
	assert.Equal(t, int64(14), stats.Total)
	assert.Equal(t, int64(3), stats.Counts[JobStatePending])
}

func TestNewQueueStats_NilCounts(t *testing.T) {
	stats := NewQueueStats("empty", nil)
	require.NotNil(t, stats.Counts)
	assert.Zero(t, stats.Total)
}
