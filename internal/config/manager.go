package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("HOSTWATCH")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	// Config file is optional; defaults + env vars are enough to run.
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// use defaults
		} else if os.IsNotExist(err) {
			// use defaults
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	if m.config.Host == "" {
		if hostname, err := os.Hostname(); err == nil {
			m.config.Host = hostname
		}
	}

	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration file changes and reloads.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		select {
		case m.watchChan <- *m.config:
		default:
			// Channel full, skip this update
		}
	})

	return m.watchChan
}

// setDefaults sets default values in viper.
func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("host", defaults.Host)

	// Sampling defaults
	m.viper.SetDefault("sampling.rate_seconds", defaults.Sampling.RateSeconds)
	m.viper.SetDefault("sampling.batch_size", defaults.Sampling.BatchSize)
	m.viper.SetDefault("sampling.max_queue_size", defaults.Sampling.MaxQueueSize)

	// Storage defaults
	m.viper.SetDefault("storage.db_path", defaults.Storage.DBPath)
	m.viper.SetDefault("storage.retention_days", defaults.Storage.RetentionDays)

	// Anomaly defaults
	m.viper.SetDefault("anomaly.algo", defaults.Anomaly.Algo)
	m.viper.SetDefault("anomaly.num_trees", defaults.Anomaly.NumTrees)
	m.viper.SetDefault("anomaly.sub_sample_size", defaults.Anomaly.SubSampleSize)
	m.viper.SetDefault("anomaly.max_depth", defaults.Anomaly.MaxDepth)
	m.viper.SetDefault("anomaly.random_state", defaults.Anomaly.RandomState)
	m.viper.SetDefault("anomaly.target_fpr", defaults.Anomaly.TargetFPR)
	m.viper.SetDefault("anomaly.val_split", defaults.Anomaly.ValSplit)
	m.viper.SetDefault("anomaly.short_window", defaults.Anomaly.ShortWindow)
	m.viper.SetDefault("anomaly.long_window", defaults.Anomaly.LongWindow)
	m.viper.SetDefault("anomaly.slope_window", defaults.Anomaly.SlopeWindow)
	m.viper.SetDefault("anomaly.burst_window", defaults.Anomaly.BurstWindow)
	m.viper.SetDefault("anomaly.lag_periods", defaults.Anomaly.LagPeriods)
	m.viper.SetDefault("anomaly.ema_alphas", defaults.Anomaly.EMAAlphas)
	m.viper.SetDefault("anomaly.baseline_window_hours", defaults.Anomaly.BaselineWindowHours)
	m.viper.SetDefault("anomaly.retrain_interval_hours", defaults.Anomaly.RetrainIntervalHours)
	m.viper.SetDefault("anomaly.detect_interval_seconds", defaults.Anomaly.DetectIntervalSeconds)
	m.viper.SetDefault("anomaly.detect_window_seconds", defaults.Anomaly.DetectWindowSeconds)
	m.viper.SetDefault("anomaly.display_pct_threshold", defaults.Anomaly.DisplayPctThreshold)
	m.viper.SetDefault("anomaly.display_bps_threshold", defaults.Anomaly.DisplayBPSThreshold)

	// Forecast defaults
	m.viper.SetDefault("forecast.horizon_hours", defaults.Forecast.HorizonHours)
	m.viper.SetDefault("forecast.window", defaults.Forecast.Window)

	// Threshold defaults
	m.viper.SetDefault("thresholds.cpu_pct", defaults.Thresholds.CPUPct)
	m.viper.SetDefault("thresholds.mem_pct", defaults.Thresholds.MemPct)
	m.viper.SetDefault("thresholds.swap_pct", defaults.Thresholds.SwapPct)

	// Alert defaults
	m.viper.SetDefault("alerts.cooldown_seconds", defaults.Alerts.CooldownSeconds)
	m.viper.SetDefault("alerts.enable_sound", defaults.Alerts.EnableSound)
	m.viper.SetDefault("alerts.nats_url", defaults.Alerts.NATSURL)
	m.viper.SetDefault("alerts.nats_subject", defaults.Alerts.NATSSubject)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.file_path", defaults.Logging.FilePath)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Server defaults
	m.viper.SetDefault("server.port", defaults.Server.Port)
}

// unmarshalConfig unmarshals viper config into the Config struct.
func (m *viperManager) unmarshalConfig() error {
	cfg := &Config{}

	cfg.Host = m.viper.GetString("host")

	// Sampling
	cfg.Sampling.RateSeconds = m.viper.GetFloat64("sampling.rate_seconds")
	cfg.Sampling.BatchSize = m.viper.GetInt("sampling.batch_size")
	cfg.Sampling.MaxQueueSize = m.viper.GetInt("sampling.max_queue_size")

	// Storage
	cfg.Storage.DBPath = m.viper.GetString("storage.db_path")
	cfg.Storage.RetentionDays = m.viper.GetInt("storage.retention_days")

	// Anomaly
	cfg.Anomaly.Algo = m.viper.GetString("anomaly.algo")
	cfg.Anomaly.NumTrees = m.viper.GetInt("anomaly.num_trees")
	cfg.Anomaly.SubSampleSize = m.viper.GetInt("anomaly.sub_sample_size")
	cfg.Anomaly.MaxDepth = m.viper.GetInt("anomaly.max_depth")
	cfg.Anomaly.RandomState = m.viper.GetInt64("anomaly.random_state")
	cfg.Anomaly.TargetFPR = m.viper.GetFloat64("anomaly.target_fpr")
	cfg.Anomaly.ValSplit = m.viper.GetFloat64("anomaly.val_split")
	cfg.Anomaly.ShortWindow = m.viper.GetInt("anomaly.short_window")
	cfg.Anomaly.LongWindow = m.viper.GetInt("anomaly.long_window")
	cfg.Anomaly.SlopeWindow = m.viper.GetInt("anomaly.slope_window")
	cfg.Anomaly.BurstWindow = m.viper.GetInt("anomaly.burst_window")
	cfg.Anomaly.LagPeriods = m.viper.GetIntSlice("anomaly.lag_periods")
	for _, a := range m.viper.GetStringSlice("anomaly.ema_alphas") {
		var alpha float64
		if _, err := fmt.Sscanf(a, "%f", &alpha); err == nil {
			cfg.Anomaly.EMAAlphas = append(cfg.Anomaly.EMAAlphas, alpha)
		}
	}
	if len(cfg.Anomaly.EMAAlphas) == 0 {
		cfg.Anomaly.EMAAlphas = DefaultConfig().Anomaly.EMAAlphas
	}
	cfg.Anomaly.BaselineWindowHours = m.viper.GetInt("anomaly.baseline_window_hours")
	cfg.Anomaly.RetrainIntervalHours = m.viper.GetInt("anomaly.retrain_interval_hours")
	cfg.Anomaly.DetectIntervalSeconds = m.viper.GetInt("anomaly.detect_interval_seconds")
	cfg.Anomaly.DetectWindowSeconds = m.viper.GetInt("anomaly.detect_window_seconds")
	cfg.Anomaly.DisplayPctThreshold = m.viper.GetFloat64("anomaly.display_pct_threshold")
	cfg.Anomaly.DisplayBPSThreshold = m.viper.GetFloat64("anomaly.display_bps_threshold")

	// Forecast
	cfg.Forecast.HorizonHours = m.viper.GetInt("forecast.horizon_hours")
	cfg.Forecast.Window = m.viper.GetInt("forecast.window")

	// Thresholds
	cfg.Thresholds.CPUPct = m.viper.GetFloat64("thresholds.cpu_pct")
	cfg.Thresholds.MemPct = m.viper.GetFloat64("thresholds.mem_pct")
	cfg.Thresholds.SwapPct = m.viper.GetFloat64("thresholds.swap_pct")

	// Alerts
	cfg.Alerts.CooldownSeconds = m.viper.GetInt64("alerts.cooldown_seconds")
	cfg.Alerts.EnableSound = m.viper.GetBool("alerts.enable_sound")
	cfg.Alerts.NATSURL = m.viper.GetString("alerts.nats_url")
	cfg.Alerts.NATSSubject = m.viper.GetString("alerts.nats_subject")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.FilePath = m.viper.GetString("logging.file_path")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")

	// Server
	cfg.Server.Port = m.viper.GetInt("server.port")

	m.config = cfg
	return nil
}
