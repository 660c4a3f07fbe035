package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
)

// DeadJobPayload captures the canonical data we emit when a job exhausts
// its attempt budget and lands in the dead letter state.
type DeadJobPayload struct {
	JobID         string
	Queue         string
	JobName       string
	TenantID      string
	AttemptNumber int
	MaxAttempts   int
	ErrorType     string
	Error         string
	Severity      string
	OccurredAt    time.Time
	Metadata      map[string]string
}

// Sink describes a destination capable of consuming dead job notifications.
type Sink interface {
	SendDeadJob(ctx context.Context, payload DeadJobPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload DeadJobPayload) error

// SendDeadJob implements the Sink interface.
func (f SinkFunc) SendDeadJob(ctx context.Context, payload DeadJobPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
