// Package model defines the core data types of the taskflow job broker.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/target/taskflow/internal/errors"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	// JobStatePending indicates a job is runnable as soon as a worker asks.
	JobStatePending JobState = "PENDING"
	// JobStateScheduled indicates a job becomes runnable at next_run_at.
	JobStateScheduled JobState = "SCHEDULED"
	// JobStateRunning indicates a worker holds the job's lease.
	JobStateRunning JobState = "RUNNING"
	// JobStateSucceeded indicates the job finished successfully. Terminal.
	JobStateSucceeded JobState = "SUCCEEDED"
	// JobStateFailed indicates a failure recorded outside the retry flow.
	JobStateFailed JobState = "FAILED"
	// JobStateDead indicates the retry budget is exhausted. Terminal.
	JobStateDead JobState = "DEAD"
)

// Valid returns true if the JobState is one of the known states.
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateScheduled, JobStateRunning,
		JobStateSucceeded, JobStateFailed, JobStateDead:
		return true
	default:
		return false
	}
}

// Terminal returns true for states that are never re-acquired.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateDead
}

// DefaultQueue is the queue used when a schedule command names none.
const DefaultQueue = "default"

// DefaultMaxAttempts bounds executions when a schedule command sets no limit.
const DefaultMaxAttempts = 3

// Job is the scheduling unit of the broker. Values are immutable:
// transition methods take the current value plus inputs and return a new
// value without touching I/O. Mutation reaches storage only through the
// repository's update call.
type Job struct {
	ID          uuid.UUID      `json:"id"                     db:"id"`
	Queue       string         `json:"queue"                  db:"queue"`
	Name        string         `json:"name"                   db:"name"`
	TenantID    string         `json:"tenant_id,omitempty"    db:"tenant_id"`
	Payload     map[string]any `json:"payload"                db:"payload"`
	State       JobState       `json:"state"                  db:"state"`
	Priority    int16          `json:"priority"               db:"priority"`
	Attempts    int            `json:"attempts"               db:"attempts"`
	MaxAttempts int            `json:"max_attempts"           db:"max_attempts"`
	RetryPolicy RetryPolicy    `json:"retry_policy"           db:"-"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty" db:"scheduled_at"`
	NextRunAt   *time.Time     `json:"next_run_at,omitempty"  db:"next_run_at"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"  db:"last_run_at"`
	LockedBy    string         `json:"locked_by,omitempty"    db:"locked_by"`
	LockedAt    *time.Time     `json:"locked_at,omitempty"    db:"locked_at"`
	LastError   string         `json:"last_error,omitempty"   db:"last_error"`
	Archived    bool           `json:"archived"               db:"archived"`
	CreatedAt   time.Time      `json:"created_at"             db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"             db:"updated_at"`
}

// NewJob builds a fresh Job from a schedule command. The command is
// normalized and validated first. A caller-supplied id is used verbatim;
// otherwise a new one is generated. A future scheduled_at creates the job
// in SCHEDULED with next_run_at set; a past or absent one creates it in
// PENDING (a past next_run_at is already due).
func NewJob(cmd ScheduleJobCommand, now time.Time) (Job, error) {
	c := cmd.Normalized()
	if err := c.Validate(); err != nil {
		return Job{}, err
	}

	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	payload := c.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	maxAttempts := c.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}

	policy := c.RetryPolicy
	if policy.Strategy == "" {
		policy = DefaultRetryPolicy()
	}

	state := JobStatePending
	var scheduledAt, nextRunAt *time.Time
	if c.ScheduledAt != nil {
		at := *c.ScheduledAt
		scheduledAt = &at
		run := at
		nextRunAt = &run
		if at.After(now) {
			state = JobStateScheduled
		}
	}

	return Job{
		ID:          id,
		Queue:       c.Queue,
		Name:        c.Name,
		TenantID:    c.TenantID,
		Payload:     payload,
		State:       state,
		Priority:    int16(c.Priority),
		Attempts:    0,
		MaxAttempts: maxAttempts,
		RetryPolicy: policy,
		ScheduledAt: scheduledAt,
		NextRunAt:   nextRunAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Runnable reports whether the job is eligible for acquisition at now:
// not archived, PENDING or SCHEDULED, and due (next_run_at absent or
// not after now).
func (j Job) Runnable(now time.Time) bool {
	if j.Archived {
		return false
	}
	if j.State != JobStatePending && j.State != JobStateScheduled {
		return false
	}
	return j.NextRunAt == nil || !j.NextRunAt.After(now)
}

// MarkRunning claims the job for workerID: sets the lease, records the
// execution start, and counts the attempt. The attempt counter is
// incremented here and only here; completion and failure read it back.
func (j Job) MarkRunning(workerID string, now time.Time) (Job, error) {
	if workerID == "" {
		return Job{}, apperrors.ValidationField("worker_id", "worker id is required")
	}
	if !j.Runnable(now) {
		return Job{}, apperrors.Conflictf("job %s is not runnable in state %s", j.ID, j.State)
	}
	if j.Attempts >= j.MaxAttempts {
		return Job{}, apperrors.Conflictf("job %s has no attempts left (%d/%d)", j.ID, j.Attempts, j.MaxAttempts)
	}

	lockedAt := now
	lastRun := now
	next := j
	next.State = JobStateRunning
	next.LockedBy = workerID
	next.LockedAt = &lockedAt
	next.LastRunAt = &lastRun
	next.Attempts++
	next.UpdatedAt = now
	return next, nil
}

// MarkSucceeded finishes a RUNNING job: terminal SUCCEEDED, lease
// released, next_run_at cleared.
func (j Job) MarkSucceeded(now time.Time) (Job, error) {
	if j.State != JobStateRunning {
		return Job{}, apperrors.Conflictf("job %s is not running (state %s)", j.ID, j.State)
	}

	next := j
	next.State = JobStateSucceeded
	next.LockedBy = ""
	next.LockedAt = nil
	next.NextRunAt = nil
	next.UpdatedAt = now
	return next, nil
}

// ApplyFailure records a failed execution of a RUNNING job. The retry
// policy decides the outcome: SCHEDULED with a computed next_run_at when
// the budget allows another attempt, DEAD otherwise. The lease is
// released either way and the error text is retained on the job.
func (j Job) ApplyFailure(now time.Time, errMsg string) (Job, error) {
	if j.State != JobStateRunning {
		return Job{}, apperrors.Conflictf("job %s is not running (state %s)", j.ID, j.State)
	}

	next := j
	next.LockedBy = ""
	next.LockedAt = nil
	next.LastError = errMsg
	next.UpdatedAt = now

	runAt, retryable := j.RetryPolicy.NextRunAt(j.Attempts, j.MaxAttempts, now)
	if !retryable {
		next.State = JobStateDead
		next.NextRunAt = nil
		return next, nil
	}

	next.State = JobStateScheduled
	next.NextRunAt = &runAt
	return next, nil
}

// Archive soft-deletes the job: the state is kept but the job becomes
// invisible to acquisition.
func (j Job) Archive(now time.Time) Job {
	next := j
	next.Archived = true
	next.UpdatedAt = now
	return next
}

func (j Job) String() string {
	return fmt.Sprintf("Job(%s queue=%s name=%s state=%s attempts=%d/%d)",
		j.ID, j.Queue, j.Name, j.State, j.Attempts, j.MaxAttempts)
}
