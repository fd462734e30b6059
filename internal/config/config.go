package config

import "context"

// Package config provides configuration management for hostwatch-ai.
//
// Responsibilities:
//   - Load configuration from YAML files and environment variables
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. Environment variables (HOSTWATCH_* prefix)
//   2. YAML config file (default: /etc/hostwatch/config.yaml)
//   3. Built-in defaults
//
// Core pipeline components receive their configuration once at construction;
// there is no mid-run reload of detection parameters. Watch is provided for
// operational settings only (e.g. log level).

// Config contains all configuration fields.
type Config struct {
	// Host identifies the machine whose samples are ingested and analyzed.
	// Empty means the OS hostname.
	Host string

	// Sampling configuration
	Sampling struct {
		RateSeconds  float64
		BatchSize    int
		MaxQueueSize int
	}

	// Storage configuration
	Storage struct {
		DBPath        string
		RetentionDays int
	}

	// Anomaly detection configuration
	Anomaly struct {
		Algo          string // scorer algorithm name ("isolation_forest")
		NumTrees      int
		SubSampleSize int
		MaxDepth      int
		RandomState   int64

		TargetFPR float64 // calibration target false-positive rate
		ValSplit  float64 // chronological validation split ratio

		// Feature engineering windows
		ShortWindow int
		LongWindow  int
		SlopeWindow int
		BurstWindow int
		LagPeriods  []int
		EMAAlphas   []float64

		// Training / detection schedule
		BaselineWindowHours   int
		RetrainIntervalHours  int
		DetectIntervalSeconds int
		DetectWindowSeconds   int

		// Display thresholds for event tagging. Independent from alert rule
		// thresholds on purpose: these only shape explanations, never detection.
		DisplayPctThreshold float64
		DisplayBPSThreshold float64
	}

	// Forecast configuration
	Forecast struct {
		HorizonHours int
		Window       int
	}

	// Per-metric alert thresholds
	Thresholds struct {
		CPUPct  float64
		MemPct  float64
		SwapPct float64
	}

	// Alerting configuration
	Alerts struct {
		CooldownSeconds int64
		EnableSound     bool
		NATSURL         string // empty disables the NATS notifier
		NATSSubject     string
	}

	// Logging configuration
	Logging struct {
		Level      string
		FilePath   string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}

	// Server configuration (health + metrics endpoints)
	Server struct {
		Port int
	}
}

// Manager defines the interface for configuration access.
type Manager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration file changes and reloads.
	Watch(ctx context.Context) <-chan Config
}

// NewManager creates a new configuration manager reading from configPath.
func NewManager(configPath string) Manager {
	return &viperManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
}
