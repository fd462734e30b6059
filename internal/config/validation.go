package config

import (
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	if c.Sampling.RateSeconds <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "sampling.rate_seconds",
			Message: fmt.Sprintf("sample rate must be positive, got %g", c.Sampling.RateSeconds),
		})
	}

	if c.Sampling.BatchSize < 1 {
		errs = append(errs, &ValidationError{
			Field:   "sampling.batch_size",
			Message: fmt.Sprintf("batch size must be at least 1, got %d", c.Sampling.BatchSize),
		})
	}

	if c.Storage.DBPath == "" {
		errs = append(errs, &ValidationError{
			Field:   "storage.db_path",
			Message: "database path is required",
		})
	}

	if c.Storage.RetentionDays < 1 {
		errs = append(errs, &ValidationError{
			Field:   "storage.retention_days",
			Message: fmt.Sprintf("retention must be at least 1 day, got %d", c.Storage.RetentionDays),
		})
	}

	if c.Anomaly.TargetFPR <= 0 || c.Anomaly.TargetFPR >= 1 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.target_fpr",
			Message: fmt.Sprintf("target FPR must be in (0, 1), got %g", c.Anomaly.TargetFPR),
		})
	}

	if c.Anomaly.ValSplit <= 0 || c.Anomaly.ValSplit >= 1 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.val_split",
			Message: fmt.Sprintf("validation split must be in (0, 1), got %g", c.Anomaly.ValSplit),
		})
	}

	if c.Anomaly.ShortWindow < 2 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.short_window",
			Message: fmt.Sprintf("short window must be at least 2, got %d", c.Anomaly.ShortWindow),
		})
	}

	if c.Anomaly.LongWindow <= c.Anomaly.ShortWindow {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.long_window",
			Message: fmt.Sprintf("long window (%d) must exceed short window (%d)",
				c.Anomaly.LongWindow, c.Anomaly.ShortWindow),
		})
	}

	if c.Anomaly.SlopeWindow < 2 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.slope_window",
			Message: fmt.Sprintf("slope window must be at least 2, got %d", c.Anomaly.SlopeWindow),
		})
	}

	for _, lag := range c.Anomaly.LagPeriods {
		if lag < 1 {
			errs = append(errs, &ValidationError{
				Field:   "anomaly.lag_periods",
				Message: fmt.Sprintf("lag periods must be positive, got %d", lag),
			})
			break
		}
	}

	for _, alpha := range c.Anomaly.EMAAlphas {
		if alpha <= 0 || alpha > 1 {
			errs = append(errs, &ValidationError{
				Field:   "anomaly.ema_alphas",
				Message: fmt.Sprintf("EMA alpha must be in (0, 1], got %g", alpha),
			})
			break
		}
	}

	if c.Forecast.HorizonHours < 1 {
		errs = append(errs, &ValidationError{
			Field:   "forecast.horizon_hours",
			Message: fmt.Sprintf("forecast horizon must be at least 1 hour, got %d", c.Forecast.HorizonHours),
		})
	}

	if c.Alerts.CooldownSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "alerts.cooldown_seconds",
			Message: fmt.Sprintf("cooldown cannot be negative, got %d", c.Alerts.CooldownSeconds),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	return errs
}
