package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/taskflow/config"
	"github.com/target/taskflow/internal/adapters/broker"
	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/data"
	"github.com/target/taskflow/internal/observability/statsd"
	"github.com/target/taskflow/internal/service"
	"github.com/target/taskflow/internal/service/deadletter"
	"github.com/target/taskflow/internal/worker"
	"github.com/target/taskflow/internal/worker/handlers"
)

// WorkerRunnerConfig contains configuration for the worker runner service.
type WorkerRunnerConfig struct {
	DB           *sql.DB
	Broker       redis.UniversalClient
	Logger       *slog.Logger
	Queue        string
	Concurrency  int
	PollInterval time.Duration
	Metrics      statsd.Sink
	DeadLetter   *deadletter.Service
}

// RunWorker builds and runs the worker runner until ctx is done. The
// runner gets its own job service so a worker process can run without
// the API surface enabled.
func RunWorker(ctx context.Context, cfg WorkerRunnerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repos := buildRepositories(cfg.DB, logger)

	var notifier core.JobNotifier
	if cfg.Broker != nil {
		notifier = broker.NewNotifier(cfg.Broker)
	}

	jobs := service.MustNewJobService(service.JobServiceOptions{
		Tx:         repos.Tx,
		Jobs:       repos.Jobs,
		Attempts:   repos.Attempts,
		Logger:     logger,
		Metrics:    cfg.Metrics,
		Notifier:   notifier,
		DeadLetter: cfg.DeadLetter,
	})

	registry := worker.NewRegistry()
	handlers.New(handlers.Options{Logger: logger}).Register(registry)

	runner, err := worker.NewRunner(worker.RunnerOptions{
		Jobs:         jobs,
		Registry:     registry,
		Queue:        cfg.Queue,
		Concurrency:  cfg.Concurrency,
		PollInterval: cfg.PollInterval,
		Notifier:     notifier,
		Logger:       logger,
		Metrics:      cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create worker runner: %w", err)
	}

	return runner.Run(ctx)
}

// SweeperRunnerConfig contains configuration for the retention sweeper service.
type SweeperRunnerConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.SweeperConfig
	Metrics statsd.Sink
}

// RunSweeper builds and runs the retention sweeper until ctx is done.
func RunSweeper(ctx context.Context, cfg SweeperRunnerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repo := data.NewJobRepo(cfg.DB, data.RepoConfig{Logger: logger})

	sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
		Repo:    repo,
		Config:  cfg.Config,
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create sweeper: %w", err)
	}

	return sweeper.Run(ctx)
}
