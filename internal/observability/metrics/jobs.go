package metrics

import (
	"time"

	obserrors "github.com/target/taskflow/internal/observability/errors"
	"github.com/target/taskflow/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition constants for job lifecycle metrics.
const (
	TransitionScheduled = "scheduled"
	TransitionAcquired  = "acquired"
	TransitionSucceeded = "succeeded"
	TransitionRetried   = "retried"
	TransitionDead      = "dead"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	Queue      string
	JobName    string
	Transition string
	Result     string
	ErrorType  string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"queue":      in.Queue,
		"job":        in.JobName,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Result == ResultError {
		switch {
		case in.ErrorType != "":
			tags["error_class"] = in.ErrorType
		case in.Err != nil:
			if class := obserrors.Classify(in.Err); class != "" {
				tags["error_class"] = class
			}
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// QueueDepth emits per-state gauge metrics for a queue snapshot.
func QueueDepth(sink statsd.Sink, queue string, counts map[string]int64) {
	if sink == nil {
		return
	}

	for state, count := range counts {
		sink.Gauge("queue.depth", float64(count), map[string]string{
			"queue": queue,
			"state": state,
		})
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
