// Package testutil provides testing utilities and helpers for the taskflow job system.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/target/taskflow/internal/domain/model"
)

// ScheduleCommandBuilder provides a fluent interface for building ScheduleJobCommand objects for testing.
type ScheduleCommandBuilder struct {
	cmd model.ScheduleJobCommand
}

// NewScheduleCommand creates a new ScheduleCommandBuilder with sensible defaults.
func NewScheduleCommand() *ScheduleCommandBuilder {
	return &ScheduleCommandBuilder{
		cmd: model.ScheduleJobCommand{
			Name:        "send-email",
			Queue:       model.DefaultQueue,
			Payload:     map[string]any{"to": "user@example.com"},
			MaxAttempts: 3,
		},
	}
}

// WithID sets an explicit job id.
func (b *ScheduleCommandBuilder) WithID(id uuid.UUID) *ScheduleCommandBuilder {
	b.cmd.ID = id
	return b
}

// WithName sets the handler name.
func (b *ScheduleCommandBuilder) WithName(name string) *ScheduleCommandBuilder {
	b.cmd.Name = name
	return b
}

// WithQueue sets the queue.
func (b *ScheduleCommandBuilder) WithQueue(queue string) *ScheduleCommandBuilder {
	b.cmd.Queue = queue
	return b
}

// WithTenantID sets the tenant id.
func (b *ScheduleCommandBuilder) WithTenantID(tenantID string) *ScheduleCommandBuilder {
	b.cmd.TenantID = tenantID
	return b
}

// WithPayload sets the job payload.
func (b *ScheduleCommandBuilder) WithPayload(payload map[string]any) *ScheduleCommandBuilder {
	b.cmd.Payload = payload
	return b
}

// WithPriority sets the job priority.
func (b *ScheduleCommandBuilder) WithPriority(priority int) *ScheduleCommandBuilder {
	b.cmd.Priority = priority
	return b
}

// WithMaxAttempts sets the attempt budget.
func (b *ScheduleCommandBuilder) WithMaxAttempts(maxAttempts int) *ScheduleCommandBuilder {
	b.cmd.MaxAttempts = maxAttempts
	return b
}

// WithScheduledAt sets the earliest run time.
func (b *ScheduleCommandBuilder) WithScheduledAt(scheduledAt time.Time) *ScheduleCommandBuilder {
	b.cmd.ScheduledAt = &scheduledAt
	return b
}

// WithRetryPolicy sets the retry policy.
func (b *ScheduleCommandBuilder) WithRetryPolicy(policy model.RetryPolicy) *ScheduleCommandBuilder {
	b.cmd.RetryPolicy = policy
	return b
}

// Build returns the constructed ScheduleJobCommand.
func (b *ScheduleCommandBuilder) Build() model.ScheduleJobCommand {
	return b.cmd
}

// Common test command presets

// SendEmailCommand creates a send-email command with default values.
func SendEmailCommand() model.ScheduleJobCommand {
	return NewScheduleCommand().
		WithName("send-email").
		WithPayload(map[string]any{"email": "user@example.com", "subject": "hello"}).
		Build()
}

// ProcessImageCommand creates a process-image command with default values.
func ProcessImageCommand() model.ScheduleJobCommand {
	return NewScheduleCommand().
		WithName("process-image").
		WithPayload(map[string]any{"image_id": "img-1234"}).
		Build()
}

// HighPriorityCommand creates a high priority command.
func HighPriorityCommand() model.ScheduleJobCommand {
	return NewScheduleCommand().
		WithPriority(100).
		WithPayload(map[string]any{"urgent": true}).
		Build()
}

// LowPriorityCommand creates a low priority command.
func LowPriorityCommand() model.ScheduleJobCommand {
	return NewScheduleCommand().
		WithPriority(-100).
		WithPayload(map[string]any{"background": true}).
		Build()
}

// ScheduledCommand creates a command scheduled for the given time.
func ScheduledCommand(scheduledAt time.Time) model.ScheduleJobCommand {
	return NewScheduleCommand().
		WithScheduledAt(scheduledAt).
		WithPayload(map[string]any{"scheduled": true}).
		Build()
}

// RetryableCommand creates a command with a custom attempt budget and fixed backoff.
func RetryableCommand(maxAttempts int) model.ScheduleJobCommand {
	return NewScheduleCommand().
		WithMaxAttempts(maxAttempts).
		WithRetryPolicy(model.RetryPolicy{
			Strategy:  model.RetryStrategyFixed,
			BaseDelay: time.Second,
		}).
		Build()
}
