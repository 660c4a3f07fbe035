package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeAPI runs the HTTP submission API.
	ServiceModeAPI ServiceMode = "api"
	// ServiceModeWorker runs the job worker runner.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeSweeper runs the retention sweeper.
	ServiceModeSweeper ServiceMode = "sweeper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeAPI,
		ServiceModeWorker,
		ServiceModeSweeper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeAPI, ServiceModeWorker, ServiceModeSweeper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: api, worker, sweeper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains worker runner configuration.
type WorkerConfig struct {
	// Queue is the queue the worker drains.
	Queue string `env:"WORKER_QUEUE" envDefault:"default"`

	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"1"`

	// PollInterval is how long an idle worker waits before asking for work again.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"1s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	w.Queue = strings.TrimSpace(w.Queue)
	if w.Queue == "" {
		w.Queue = "default"
	}
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	// Enforce a floor to prevent busy-polling the database
	if w.PollInterval < 100*time.Millisecond {
		w.PollInterval = 100 * time.Millisecond
	}
}

// SweeperConfig contains retention sweeper configuration.
type SweeperConfig struct {
	// Interval is the sweeper tick interval.
	Interval time.Duration `env:"SWEEPER_INTERVAL" envDefault:"5m"`

	// ArchiveAfter is the age at which terminal jobs (SUCCEEDED/DEAD) are archived.
	ArchiveAfter time.Duration `env:"SWEEPER_ARCHIVE_AFTER" envDefault:"168h"` // 7 days

	// PurgeAfter is the age at which archived jobs are deleted outright.
	// Attempt rows go with their job via FK cascade.
	PurgeAfter time.Duration `env:"SWEEPER_PURGE_AFTER" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"SWEEPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if s.Interval < 1*time.Minute {
		s.Interval = 1 * time.Minute
	}
	if s.ArchiveAfter < 1*time.Hour {
		s.ArchiveAfter = 1 * time.Hour
	}
	if s.PurgeAfter < 1*time.Hour {
		s.PurgeAfter = 1 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.BatchSize > 10000 {
		s.BatchSize = 10000
	}
}
