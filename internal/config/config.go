// Package config loads the service's YAML configuration file and
// applies defaults/validation, following the teacher's
// internal/config.Load(path) contract.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Jenkins   JenkinsConfig   `yaml:"jenkins"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	SSE       SSEConfig       `yaml:"sse"`
	Logging   LoggingConfig   `yaml:"logging"`
	Admin     AdminConfig     `yaml:"admin"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	HTTPPort    string `yaml:"http_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// DatabaseConfig controls the relational store connection.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// JenkinsConfig describes the unified-parent CI job this service polls
// and, optionally, the bug-tracker JSON artifact the Bug Updater
// refreshes from. Credentials are never read from this struct; they
// are sourced directly from JENKINS_USER/JENKINS_API_TOKEN at the call
// site per spec.md §6. BugTrackerURL left empty disables the Bug
// Updater; its scheduled tick still records a "skipped" sync-log row.
type JenkinsConfig struct {
	ParentJobURL  string `yaml:"parent_job_url"`
	BugTrackerURL string `yaml:"bug_tracker_url"`
}

// IngestionConfig controls the polling pipeline's behavior.
type IngestionConfig struct {
	LogsBaseDir             string `yaml:"logs_base_dir"`
	ModuleWorkerPoolSize    int    `yaml:"module_worker_pool_size"`
	CleanupAfterImport      bool   `yaml:"cleanup_artifacts_after_import"`
	FlakyDetectionJobWindow int    `yaml:"flaky_detection_job_window"`
}

// SchedulerConfig controls the recurring jobs.
type SchedulerConfig struct {
	AutoUpdateEnabled         bool `yaml:"auto_update_enabled"`
	PollingIntervalHours      int  `yaml:"polling_interval_hours"`
	MetadataSyncEnabled       bool `yaml:"metadata_sync_enabled"`
	MetadataSyncIntervalHours int  `yaml:"metadata_sync_interval_hours"`
}

// SSEConfig controls the job-log streamer's drain phase.
type SSEConfig struct {
	DrainTimeoutSeconds float64 `yaml:"drain_timeout_seconds"`
	DrainPollInterval   float64 `yaml:"drain_poll_interval"`
}

// LoggingConfig controls the base zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AdminConfig controls the admin PIN gate. PINHash is the SHA-256 hex
// digest of the operator PIN; it is sourced from the ADMIN_PIN_HASH
// environment variable, never stored in the YAML file.
type AdminConfig struct {
	PINHash string `yaml:"-"`
}

// Load reads the YAML file at path, applies defaults, validates the
// result and returns the populated Config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Admin.PINHash = os.Getenv("ADMIN_PIN_HASH")

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// validate applies defaults for missing optional fields and rejects
// configurations that cannot be started.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort == "" {
		cfg.Server.HTTPPort = "8080"
	}
	if cfg.Server.MetricsPort == "" {
		cfg.Server.MetricsPort = "9090"
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.Ingestion.LogsBaseDir == "" {
		cfg.Ingestion.LogsBaseDir = "/var/lib/regtrack/artifacts"
	}
	if cfg.Ingestion.ModuleWorkerPoolSize == 0 {
		cfg.Ingestion.ModuleWorkerPoolSize = 5
	}
	if cfg.Ingestion.ModuleWorkerPoolSize > 5 {
		return fmt.Errorf("ingestion.module_worker_pool_size must be <= 5 to avoid overloading the CI server, got %d", cfg.Ingestion.ModuleWorkerPoolSize)
	}
	if cfg.Ingestion.FlakyDetectionJobWindow == 0 {
		cfg.Ingestion.FlakyDetectionJobWindow = 5
	}

	if cfg.Scheduler.PollingIntervalHours == 0 {
		cfg.Scheduler.PollingIntervalHours = 4
	}
	if cfg.Scheduler.MetadataSyncIntervalHours == 0 {
		cfg.Scheduler.MetadataSyncIntervalHours = 24
	}

	if cfg.SSE.DrainTimeoutSeconds == 0 {
		cfg.SSE.DrainTimeoutSeconds = 2.0
	}
	if cfg.SSE.DrainPollInterval == 0 {
		cfg.SSE.DrainPollInterval = 0.05
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported logging level %q", cfg.Logging.Level)
	}

	return nil
}
