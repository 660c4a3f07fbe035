package deadletter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/target/taskflow/internal/observability/notify"
)

func TestServiceNotifyDeadJob(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var received []notify.DeadJobPayload
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.DeadJobPayload) error {
					mu.Lock()
					defer mu.Unlock()
					received = append(received, payload)
					return nil
				}),
			},
		},
	})

	svc.NotifyDeadJob(ctx, notify.DeadJobPayload{
		JobID:   "123",
		Queue:   "default",
		JobName: "send-email",
	})

	if len(received) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected severity to default to critical, got %s", received[0].Severity)
	}
}

func TestServiceFansOutToAllSinks(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	calls := map[string]int{}
	capture := func(name string) notify.Sink {
		return notify.SinkFunc(func(ctx context.Context, payload notify.DeadJobPayload) error {
			mu.Lock()
			defer mu.Unlock()
			calls[name]++
			return nil
		})
	}

	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "slack", Sink: capture("slack")},
			{Name: "pagerduty", Sink: capture("pagerduty")},
		},
	})

	svc.NotifyDeadJob(ctx, notify.DeadJobPayload{JobID: "123"})

	if calls["slack"] != 1 || calls["pagerduty"] != 1 {
		t.Fatalf("expected each sink to be called once, got %v", calls)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
}

func TestServiceLogsErrors(t *testing.T) {
	// Ensure we don't panic when sink returns an error.
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "fail",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.DeadJobPayload) error {
					return errors.New("boom")
				}),
			},
		},
	})

	svc.NotifyDeadJob(context.Background(), notify.DeadJobPayload{JobID: "123"})
}
