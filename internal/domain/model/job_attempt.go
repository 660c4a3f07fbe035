package model

import (
	"time"

	"github.com/google/uuid"
)

// ErrorTypeNoHandler is recorded when a worker acquires a job whose name
// has no registered handler.
const ErrorTypeNoHandler = "no_handler"

// JobAttempt is the audit record of one execution of a job. Attempts are
// append-only; the (job_id, attempt_number) pair is unique. ErrorType and
// ErrorMessage are set exactly when Success is false.
type JobAttempt struct {
	ID            int64     `json:"id"`
	JobID         uuid.UUID `json:"job_id"`
	AttemptNumber int       `json:"attempt_number"`
	WorkerID      string    `json:"worker_id"`
	Success       bool      `json:"success"`
	ErrorType     string    `json:"error_type,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// NewSuccessAttempt builds the attempt record for a RUNNING job that
// completed. It must be called before the success transition is applied,
// while the lease fields still identify the execution.
func NewSuccessAttempt(job Job, finishedAt time.Time) JobAttempt {
	return JobAttempt{
		JobID:         job.ID,
		AttemptNumber: job.Attempts,
		WorkerID:      job.LockedBy,
		Success:       true,
		StartedAt:     attemptStart(job, finishedAt),
		FinishedAt:    finishedAt,
	}
}

// NewFailureAttempt builds the attempt record for a RUNNING job that
// failed. Like NewSuccessAttempt it reads the pre-transition job.
func NewFailureAttempt(job Job, errorType, errorMessage string, finishedAt time.Time) JobAttempt {
	return JobAttempt{
		JobID:         job.ID,
		AttemptNumber: job.Attempts,
		WorkerID:      job.LockedBy,
		ErrorType:     errorType,
		ErrorMessage:  errorMessage,
		StartedAt:     attemptStart(job, finishedAt),
		FinishedAt:    finishedAt,
	}
}

func attemptStart(job Job, fallback time.Time) time.Time {
	if job.LastRunAt != nil {
		return *job.LastRunAt
	}
	return fallback
}
