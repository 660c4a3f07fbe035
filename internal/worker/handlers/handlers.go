// Package handlers ships the default handler set registered by the
// worker command. The bodies only simulate their effects; deployments
// register their own handlers for real work.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/taskflow/internal/worker"
)

// Job names the default handlers answer to.
const (
	NameNoop         = "noop"
	NameSendEmail    = "send-email"
	NameProcessImage = "process-image"
)

// MissingFieldError reports a payload that lacks a field the handler
// requires. It fails the attempt like any other handler error; the retry
// policy decides what happens next.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("payload field %q is required", e.Field)
}

// Options configures the default handler set.
type Options struct {
	Logger    *slog.Logger  // Optional: structured logger
	WorkDelay time.Duration // Optional: simulated processing time for process-image
}

// Handlers is the runnable default handler set.
type Handlers struct {
	logger    *slog.Logger
	workDelay time.Duration
}

// New constructs the default handler set.
func New(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		logger:    logger.With("component", "handlers"),
		workDelay: opts.WorkDelay,
	}
}

// Register binds the default handlers on the registry.
func (h *Handlers) Register(reg *worker.Registry) {
	reg.Register(NameNoop, h.Noop)
	reg.Register(NameSendEmail, h.SendEmail)
	reg.Register(NameProcessImage, h.ProcessImage)
}

// Noop returns immediately. Useful for smoke tests and queue drills.
func (h *Handlers) Noop(context.Context, map[string]any) error {
	return nil
}

// SendEmail simulates an email send. The payload must carry a recipient
// under "email"; "subject" is optional.
func (h *Handlers) SendEmail(ctx context.Context, payload map[string]any) error {
	email, err := requireString(payload, "email")
	if err != nil {
		return err
	}
	subject := optionalString(payload, "subject")

	h.logger.InfoContext(ctx, "simulated email send", "to", email, "subject", subject)
	return nil
}

// ProcessImage simulates image processing for the "image_id" in the
// payload.
func (h *Handlers) ProcessImage(ctx context.Context, payload map[string]any) error {
	imageID, err := requireString(payload, "image_id")
	if err != nil {
		return err
	}

	if h.workDelay > 0 {
		timer := time.NewTimer(h.workDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	h.logger.InfoContext(ctx, "simulated image processing", "image_id", imageID)
	return nil
}

// requireString evaluates a JMESPath expression against the payload and
// returns the matched string. A missing, empty, or non-string match is a
// MissingFieldError.
func requireString(payload map[string]any, expr string) (string, error) {
	value, err := jmespath.Search(expr, payload)
	if err != nil {
		return "", fmt.Errorf("evaluate payload expression %q: %w", expr, err)
	}
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return "", &MissingFieldError{Field: expr}
	}
	return s, nil
}

// optionalString evaluates a JMESPath expression and returns the matched
// string, or "" when absent.
func optionalString(payload map[string]any, expr string) string {
	value, err := jmespath.Search(expr, payload)
	if err != nil {
		return ""
	}
	s, _ := value.(string)
	return strings.TrimSpace(s)
}
