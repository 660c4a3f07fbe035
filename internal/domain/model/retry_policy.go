package model

import (
	"time"

	apperrors "github.com/target/taskflow/internal/errors"
)

// RetryStrategy selects how retry delays grow between attempts.
type RetryStrategy string

const (
	// RetryStrategyFixed waits the base delay between every attempt.
	RetryStrategyFixed RetryStrategy = "FIXED"
	// RetryStrategyExponential doubles the base delay for each failed attempt.
	RetryStrategyExponential RetryStrategy = "EXPONENTIAL"
)

// Valid returns true if the RetryStrategy is one of the known strategies.
func (s RetryStrategy) Valid() bool {
	return s == RetryStrategyFixed || s == RetryStrategyExponential
}

// DefaultRetryBaseDelay is the base delay used when a policy sets none.
const DefaultRetryBaseDelay = 30 * time.Second

// maxRetryBackoff caps exponential growth. Doubling a 30s base passes this
// after roughly 17 failed attempts; beyond that every retry waits 30 days.
const maxRetryBackoff = 30 * 24 * time.Hour

// RetryPolicy decides whether and when a failed job runs again.
type RetryPolicy struct {
	Strategy  RetryStrategy `json:"strategy"`
	BaseDelay time.Duration `json:"base_delay"`
}

// DefaultRetryPolicy returns the policy applied when a schedule command
// carries none: exponential backoff from a 30 second base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Strategy:  RetryStrategyExponential,
		BaseDelay: DefaultRetryBaseDelay,
	}
}

// Validate checks the policy fields.
func (p RetryPolicy) Validate() error {
	if !p.Strategy.Valid() {
		return apperrors.ValidationField("retry_policy.strategy", "strategy must be FIXED or EXPONENTIAL")
	}
	if p.BaseDelay <= 0 {
		return apperrors.ValidationField("retry_policy.base_delay", "base delay must be positive")
	}
	return nil
}

// NextRunAt computes when the attempt after attemptsMade should run,
// where attemptsMade already counts the attempt that just failed. It
// returns false when the budget is spent (attemptsMade >= maxAttempts)
// and the job should go to DEAD instead.
//
// FIXED waits BaseDelay every time. EXPONENTIAL waits
// BaseDelay * 2^(attemptsMade-1): the first retry after BaseDelay, the
// second after twice that, and so on, capped at maxRetryBackoff.
func (p RetryPolicy) NextRunAt(attemptsMade, maxAttempts int, now time.Time) (time.Time, bool) {
	if attemptsMade >= maxAttempts {
		return time.Time{}, false
	}
	return now.Add(p.Backoff(attemptsMade)), true
}

// Backoff returns the delay before the retry that follows attemptsMade
// failed attempts.
func (p RetryPolicy) Backoff(attemptsMade int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}

	if p.Strategy == RetryStrategyFixed {
		return base
	}

	// Doubling in a loop keeps the shift from overflowing for large
	// attempt counts; the cap bounds the result long before that.
	delay := base
	for i := 1; i < attemptsMade; i++ {
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
		delay *= 2
	}
	if delay > maxRetryBackoff {
		return maxRetryBackoff
	}
	return delay
}
