package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/target/taskflow/internal/errors"
)

const (
	maxNameLength     = 255
	maxQueueLength    = 64
	maxTenantIDLength = 64
	maxPriority       = 32767
	minPriority       = -32768
	maxMaxAttempts    = 100
)

// ScheduleJobCommand carries a request to enqueue a job. Zero values mean
// "use the default": an empty queue becomes DefaultQueue, a zero
// MaxAttempts becomes DefaultMaxAttempts, a nil payload becomes an empty
// object, and a nil id is generated.
type ScheduleJobCommand struct {
	ID          uuid.UUID      `json:"id,omitempty"`
	Name        string         `json:"name"`
	Queue       string         `json:"queue,omitempty"`
	TenantID    string         `json:"tenant_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Priority    int            `json:"priority,omitempty"`
	MaxAttempts int            `json:"max_attempts,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	RetryPolicy RetryPolicy    `json:"retry_policy,omitempty"`
}

// Normalized returns a copy with whitespace trimmed and the queue default
// applied.
func (c ScheduleJobCommand) Normalized() ScheduleJobCommand {
	out := c
	out.Name = strings.TrimSpace(c.Name)
	out.Queue = strings.TrimSpace(c.Queue)
	out.TenantID = strings.TrimSpace(c.TenantID)
	if out.Queue == "" {
		out.Queue = DefaultQueue
	}
	return out
}

// Validate checks field constraints on a normalized command. Callers
// should normalize first; Validate does not trim.
func (c ScheduleJobCommand) Validate() error {
	if c.Name == "" {
		return apperrors.ValidationField("name", "name is required")
	}
	if len(c.Name) > maxNameLength {
		return apperrors.ValidationField("name", "name must be at most 255 characters")
	}
	if c.Queue == "" || len(c.Queue) > maxQueueLength {
		return apperrors.ValidationField("queue", "queue must be between 1 and 64 characters")
	}
	if len(c.TenantID) > maxTenantIDLength {
		return apperrors.ValidationField("tenant_id", "tenant_id must be at most 64 characters")
	}
	if c.Priority < minPriority || c.Priority > maxPriority {
		return apperrors.ValidationField("priority", "priority must be between -32768 and 32767")
	}
	if c.MaxAttempts < 0 || c.MaxAttempts > maxMaxAttempts {
		return apperrors.ValidationField("max_attempts", "max_attempts must be between 1 and 100")
	}
	if c.RetryPolicy.Strategy != "" {
		if err := c.RetryPolicy.Validate(); err != nil {
			return err
		}
	}
	return nil
}
