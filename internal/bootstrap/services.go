package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/target/taskflow/config"
	"github.com/target/taskflow/internal/adapters/broker"
	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/data"
	"github.com/target/taskflow/internal/observability/notify/pagerduty"
	"github.com/target/taskflow/internal/observability/notify/slack"
	"github.com/target/taskflow/internal/observability/statsd"
	"github.com/target/taskflow/internal/service"
	"github.com/target/taskflow/internal/service/deadletter"
	"golang.org/x/sync/errgroup"
)

// ServiceContainer holds the application services the API surface needs.
// Background runners (worker, sweeper) are built by their Run* adapters.
type ServiceContainer struct {
	Jobs          *service.JobService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink    *statsd.Client
	MetricsConfig  config.ObservabilityMetricsConfig
	DeadLetter     *deadletter.Service
	NotifierConfig config.ObservabilityNotificationsConfig
}

// Sink returns the metrics sink, or nil when metrics are disabled.
//
//nolint:ireturn // callers take the Sink interface so a disabled client stays a plain nil.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	Broker redis.UniversalClient
	Logger *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB       *sql.DB
	Jobs     *data.JobRepo
	Attempts *data.JobAttemptRepo
	Tx       *data.TxManager
}

// buildObservability configures metrics and dead letter notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "taskflow",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	deadLetter := buildDeadLetterNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:    metricsSink,
		MetricsConfig:  cfg.Metrics,
		DeadLetter:     deadLetter,
		NotifierConfig: cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, logger *slog.Logger) *serviceRepositories {
	repoCfg := data.RepoConfig{Logger: logger}
	return &serviceRepositories{
		DB:       db,
		Jobs:     data.NewJobRepo(db, repoCfg),
		Attempts: data.NewJobAttemptRepo(db, repoCfg),
		Tx:       data.NewTxManager(db, repoCfg),
	}
}

func newJobService(
	repos *serviceRepositories,
	notifier core.JobNotifier,
	observability ObservabilityContainer,
	logger *slog.Logger,
) *service.JobService {
	return service.MustNewJobService(service.JobServiceOptions{
		Tx:         repos.Tx,
		Jobs:       repos.Jobs,
		Attempts:   repos.Attempts,
		Logger:     logger,
		Metrics:    observability.Sink(),
		Notifier:   notifier,
		DeadLetter: observability.DeadLetter,
	})
}

// NewServices wires the services backing the API surface.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, logger)

	var notifier core.JobNotifier
	if deps.Broker != nil {
		notifier = broker.NewNotifier(deps.Broker)
	}

	return ServiceContainer{
		Jobs:          newJobService(repos, notifier, observability, logger),
		Observability: observability,
	}
}

func buildDeadLetterNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *deadletter.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return deadletter.NewService(deadletter.Options{
			Logger: baseLogger.With("component", "dead_letter_notifier"),
		})
	}

	sinks := make([]deadletter.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, deadletter.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, deadletter.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return deadletter.NewService(deadletter.Options{
		Logger: baseLogger.With("component", "dead_letter_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Broker   redis.UniversalClient
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and manages their
// lifecycle. It blocks until a shutdown signal is received or a service
// fails, and returns nil only on clean shutdown.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return RunServices(ctx, cfg)
}

// RunServices runs the enabled services under one errgroup until ctx is
// done or a service fails. A failing service cancels the group so its
// peers shut down too.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeAPI] {
		server := NewHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
		g.Go(func() error {
			return serveHTTP(gctx, server, cfg.Config.HTTP.ShutdownTimeout, logger)
		})
	}

	if enabled[config.ServiceModeWorker] {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", "worker")
			if err := RunWorker(gctx, WorkerRunnerConfig{
				DB:           cfg.DB,
				Broker:       cfg.Broker,
				Logger:       logger,
				Queue:        cfg.Config.Worker.Queue,
				Concurrency:  cfg.Config.Worker.Concurrency,
				PollInterval: cfg.Config.Worker.PollInterval,
				Metrics:      cfg.Services.Observability.Sink(),
				DeadLetter:   cfg.Services.Observability.DeadLetter,
			}); err != nil {
				return fmt.Errorf("worker failed: %w", err)
			}
			return nil
		})
	}

	if enabled[config.ServiceModeSweeper] {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", "sweeper")
			if err := RunSweeper(gctx, SweeperRunnerConfig{
				DB:      cfg.DB,
				Logger:  logger,
				Config:  cfg.Config.Sweeper,
				Metrics: cfg.Services.Observability.Sink(),
			}); err != nil {
				return fmt.Errorf("sweeper failed: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service error", "error", err)
		return err
	}

	logger.Info("services stopped")
	return nil
}
