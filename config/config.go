package config

import (
	"log/slog"
	"strings"
)

// EnvPrefix is prepended to every environment variable the application
// reads. Set via env.Options{Prefix} at load time so the tags below stay
// prefix-free.
const EnvPrefix = "TASKFLOW_"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library, all under the TASKFLOW_ prefix. See
// individual domain config files for details on available environment
// variables:
//   - database.go: Database and broker configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode, worker, and sweeper configuration
//   - observability.go: Metrics and notification configuration
type AppConfig struct {
	// AppName identifies this deployment in logs and metrics.
	AppName string `env:"APP_NAME" envDefault:"taskflow"`

	// Environment names the runtime environment (local, dev, prod).
	Environment string `env:"ENVIRONMENT" envDefault:"local"`

	// LogLevel sets the minimum slog level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	Database DBConfig

	// Broker configuration (optional Redis wake-up channel)
	Broker BrokerConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"api"`

	// Worker runner configuration
	Worker WorkerConfig

	// Retention sweeper configuration
	Sweeper SweeperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.AppName = strings.TrimSpace(c.AppName)
	if c.AppName == "" {
		c.AppName = "taskflow"
	}
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = "local"
	}

	c.Database.Sanitize()
	c.Broker.Sanitize()
	c.HTTP.Sanitize()
	c.Worker.Sanitize()
	c.Sweeper.Sanitize()
	c.Observability.Sanitize()
}

// SlogLevel translates the configured LogLevel into a slog.Level.
// Unknown values fall back to info.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsAPIServerEnabled returns true if the API server service is enabled.
func (c *AppConfig) IsAPIServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeAPI]
}

// IsWorkerEnabled returns true if the worker runner service is enabled.
func (c *AppConfig) IsWorkerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeWorker]
}

// IsSweeperEnabled returns true if the retention sweeper service is enabled.
func (c *AppConfig) IsSweeperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeSweeper]
}
