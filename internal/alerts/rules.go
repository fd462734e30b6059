// Package alerts evaluates stateful alert rules over detection output and
// delivers the triggered alerts to notifiers.
package alerts

import (
	"fmt"

	"github.com/hostwatch/hostwatch-ai/internal/forecast"
)

// Severity levels, lowest to highest.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Observation is one evaluation input: the latest sample's metric values
// plus the detector and forecaster verdicts for it.
type Observation struct {
	TS        int64
	Host      string
	Metrics   map[string]float64
	IsAnomaly bool
	Score     float64
	Forecasts map[string]forecast.Projection
}

// Alert is one triggered rule firing.
type Alert struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	TS       int64  `json:"ts"`
	Host     string `json:"host,omitempty"`
}

// Rule decides whether an observation warrants an alert. Rules are pure:
// firing state and cooldown dedup belong to the engine, never to the rule.
type Rule interface {
	// Name identifies the rule for deduplication. Must be unique per engine.
	Name() string

	// Severity is the level attached to alerts this rule produces.
	Severity() string

	// Evaluate returns the alert message and true when the rule fires.
	Evaluate(obs Observation) (string, bool)
}

// ThresholdRule fires when a metric meets or exceeds a fixed threshold.
type ThresholdRule struct {
	RuleName  string
	Metric    string
	Threshold float64
	Level     string
}

func (r ThresholdRule) Name() string     { return r.RuleName }
func (r ThresholdRule) Severity() string { return r.Level }

func (r ThresholdRule) Evaluate(obs Observation) (string, bool) {
	value, ok := obs.Metrics[r.Metric]
	if !ok {
		return "", false
	}
	if value >= r.Threshold {
		return fmt.Sprintf("%s exceeded threshold: %.1f >= %g", r.Metric, value, r.Threshold), true
	}
	return "", false
}

// AnomalyRule fires when the detector flagged the observation.
type AnomalyRule struct{}

func (AnomalyRule) Name() string     { return "anomaly_detected" }
func (AnomalyRule) Severity() string { return SeverityCritical }

func (AnomalyRule) Evaluate(obs Observation) (string, bool) {
	if !obs.IsAnomaly {
		return "", false
	}
	return fmt.Sprintf("Anomaly detected (score=%.3f)", obs.Score), true
}

// ForecastRule fires when a metric is projected to reach its threshold
// within the horizon.
type ForecastRule struct {
	RuleName     string
	Metric       string
	HorizonHours int
}

func (r ForecastRule) Name() string     { return r.RuleName }
func (r ForecastRule) Severity() string { return SeverityWarning }

func (r ForecastRule) Evaluate(obs Observation) (string, bool) {
	proj, ok := obs.Forecasts[r.Metric]
	if !ok {
		return "", false
	}
	if proj.WithinHorizon(r.HorizonHours) {
		return fmt.Sprintf("%s will reach threshold in %.1fh", r.Metric, proj.TimeToThresholdMinutes/60), true
	}
	return "", false
}
