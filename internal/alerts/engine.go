package alerts

import (
	"sync"

	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
	"github.com/hostwatch/hostwatch-ai/internal/features"
)

// knownMetrics are the metric names a rule may reference.
var knownMetrics = map[string]bool{
	features.ColCPUPct:       true,
	features.ColMemPct:       true,
	features.ColSwapPct:      true,
	features.ColDiskReadBPS:  true,
	features.ColDiskWriteBPS: true,
	features.ColNetUpBPS:     true,
	features.ColNetDownBPS:   true,
	features.ColProcCount:    true,
	features.ColCPUTemp:      true,
}

// Engine evaluates registered rules in registration order and suppresses
// repeat firings of the same rule inside the cooldown window. The engine
// owns all firing state; rules stay stateless.
type Engine struct {
	cooldownSeconds int64
	logger          *zap.Logger

	mu        sync.Mutex
	rules     []Rule
	lastFired map[string]int64
}

// NewEngine creates an empty rule engine with the given cooldown.
func NewEngine(cooldownSeconds int64, logger *zap.Logger) *Engine {
	return &Engine{
		cooldownSeconds: cooldownSeconds,
		logger:          logger,
		lastFired:       make(map[string]int64),
	}
}

// AddRule registers a rule. Rules referencing unknown metrics or reusing a
// registered name are rejected.
func (e *Engine) AddRule(rule Rule) error {
	switch r := rule.(type) {
	case ThresholdRule:
		if !knownMetrics[r.Metric] {
			return faults.Configf("threshold rule %q references unknown metric %q", r.RuleName, r.Metric)
		}
	case ForecastRule:
		if !knownMetrics[r.Metric] {
			return faults.Configf("forecast rule %q references unknown metric %q", r.RuleName, r.Metric)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.Name() == rule.Name() {
			return faults.Configf("rule %q already registered", rule.Name())
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// Evaluate runs every registered rule against the observation. A rule that
// fired within the cooldown window is skipped entirely; a firing rule
// records obs.TS as its last-fired time.
func (e *Engine) Evaluate(obs Observation) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var alerts []Alert
	for _, rule := range e.rules {
		if last, ok := e.lastFired[rule.Name()]; ok && obs.TS-last < e.cooldownSeconds {
			continue
		}
		msg, fired := rule.Evaluate(obs)
		if !fired {
			continue
		}
		e.lastFired[rule.Name()] = obs.TS
		alerts = append(alerts, Alert{
			Rule:     rule.Name(),
			Severity: rule.Severity(),
			Message:  msg,
			TS:       obs.TS,
			Host:     obs.Host,
		})
		e.logger.Info("alert triggered",
			zap.String("rule", rule.Name()),
			zap.String("severity", rule.Severity()),
			zap.String("message", msg),
		)
	}
	return alerts
}

// DefaultThresholds configures the stock threshold rules.
type DefaultThresholds struct {
	CPUPct       float64
	MemPct       float64
	SwapPct      float64
	HorizonHours int
}

// RegisterDefaults installs the stock rule set: per-metric threshold rules,
// the anomaly rule, and forecast rules for the percentage metrics.
func (e *Engine) RegisterDefaults(t DefaultThresholds) error {
	defaults := []Rule{
		ThresholdRule{RuleName: "cpu_high", Metric: features.ColCPUPct, Threshold: t.CPUPct, Level: SeverityWarning},
		ThresholdRule{RuleName: "mem_high", Metric: features.ColMemPct, Threshold: t.MemPct, Level: SeverityWarning},
		ThresholdRule{RuleName: "swap_high", Metric: features.ColSwapPct, Threshold: t.SwapPct, Level: SeverityWarning},
		AnomalyRule{},
		ForecastRule{RuleName: "cpu_forecast", Metric: features.ColCPUPct, HorizonHours: t.HorizonHours},
		ForecastRule{RuleName: "mem_forecast", Metric: features.ColMemPct, HorizonHours: t.HorizonHours},
	}
	for _, rule := range defaults {
		if err := e.AddRule(rule); err != nil {
			return err
		}
	}
	return nil
}
