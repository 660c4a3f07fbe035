package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/taskflow/config"
	"github.com/target/taskflow/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	// No subcommand runs the full service like a plain `taskflow serve`.
	cmdName := "serve"
	args := os.Args[1:]
	if len(os.Args) > 1 {
		cmdName = os.Args[1]
		args = os.Args[2:]
	}

	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.ReconfigureLogger(&cfg)

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, args); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"serve": {
			name:        "serve",
			description: "Run the enabled services (api, worker, sweeper) until signalled",
			run:         runServe,
		},
		"worker": {
			name:        "worker",
			description: "Run a worker process for a single queue",
			run:         runWorkerCommand,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations and exit",
			run:         runMigrateCommand,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: taskflow <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-10s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func runServe(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cfg := cmdCtx.Config
	fs.StringVar(&cfg.Services, "services", cfg.Services,
		"Comma-separated services to run (api, worker, sweeper)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	return runRuntime(cmdCtx.Ctx, cmdCtx.Logger, &cfg)
}

func runWorkerCommand(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cfg := cmdCtx.Config
	fs.StringVar(&cfg.Worker.Queue, "queue", cfg.Worker.Queue, "Queue to consume")
	fs.IntVar(&cfg.Worker.Concurrency, "concurrency", cfg.Worker.Concurrency,
		"Number of concurrent job slots")
	fs.DurationVar(&cfg.Worker.PollInterval, "poll-interval", cfg.Worker.PollInterval,
		"How long to wait between polls of an idle queue")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Services = string(config.ServiceModeWorker)

	return runRuntime(cmdCtx.Ctx, cmdCtx.Logger, &cfg)
}

func runMigrateCommand(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	timeout := fs.Duration("timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Database,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	return nil
}

// runRuntime connects infrastructure and runs the enabled services until
// a shutdown signal arrives. A nil return means clean shutdown.
func runRuntime(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) error {
	logStartupInfo(ctx, logger, cfg)

	if err := bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}

	db, brokerClient, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	if brokerClient != nil {
		defer func() {
			if cerr := brokerClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close broker failed", "error", cerr)
			}
		}()
	}

	if cfg.Database.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: cfg,
		DB:     db,
		Broker: brokerClient,
		Logger: logger,
	})

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   cfg,
		Services: services,
		DB:       db,
		Broker:   brokerClient,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting taskflow",
		"environment", cfg.Environment,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}

// initInfrastructure connects shared dependencies used by the service runtime.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:     cfg.Database,
		BrokerConfig: cfg.Broker,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	brokerClient, err := bootstrap.ConnectBroker(bootstrap.DatabaseConfig{
		DBConfig:     cfg.Database,
		BrokerConfig: cfg.Broker,
		Logger:       logger,
	})
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after broker connect failure", "error", cerr)
			return nil, nil, fmt.Errorf("connect broker: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
		}
		return nil, nil, fmt.Errorf("connect broker: %w", err)
	}

	return db, brokerClient, nil
}
