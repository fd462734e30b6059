// Package forecast projects when a trending metric will cross its threshold.
package forecast

import (
	"math"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
)

// Projection is the outcome of extrapolating one metric toward a threshold.
// TimeToThresholdMinutes is +Inf when the metric is flat or trending away.
type Projection struct {
	Metric                 string  `json:"metric"`
	Threshold              float64 `json:"threshold"`
	Current                float64 `json:"current"`
	SlopePerMinute         float64 `json:"slope_per_minute"`
	TimeToThresholdMinutes float64 `json:"time_to_threshold_minutes"`
	ConfidenceLowerMinutes float64 `json:"confidence_lower_minutes"`
	ConfidenceUpperMinutes float64 `json:"confidence_upper_minutes"`
}

// WithinHorizon reports whether the projected crossing falls inside the
// given horizon.
func (p Projection) WithinHorizon(horizonHours int) bool {
	return p.TimeToThresholdMinutes < float64(horizonHours)*60
}

// Forecaster fits a least-squares trend to the most recent Window values of
// a metric and extrapolates linearly.
type Forecaster struct {
	Window int // number of trailing observations used for the trend
}

// NewForecaster returns a linear trend forecaster over the given window.
func NewForecaster(window int) *Forecaster {
	return &Forecaster{Window: window}
}

// Project estimates how many minutes until the metric reaches threshold.
// timestamps are sample times in epoch seconds, aligned with values. It needs
// at least two observations in the window.
func (f *Forecaster) Project(metric string, timestamps []int64, values []float64, threshold float64) (Projection, error) {
	if len(values) != len(timestamps) {
		return Projection{}, faults.Dataf("forecast %s: %d values vs %d timestamps", metric, len(values), len(timestamps))
	}
	if len(values) < 2 {
		return Projection{}, faults.Dataf("forecast %s: need at least 2 observations, got %d", metric, len(values))
	}

	start := 0
	if f.Window > 0 && len(values) > f.Window {
		start = len(values) - f.Window
	}
	ts, vs := timestamps[start:], values[start:]

	// Regress value on elapsed minutes since the window start.
	xs := make([]float64, len(ts))
	for i, t := range ts {
		xs[i] = float64(t-ts[0]) / 60.0
	}
	slope, intercept := leastSquares(xs, vs)

	current := vs[len(vs)-1]
	proj := Projection{
		Metric:         metric,
		Threshold:      threshold,
		Current:        current,
		SlopePerMinute: slope,
	}

	if current >= threshold {
		proj.TimeToThresholdMinutes = 0
		proj.ConfidenceLowerMinutes = 0
		proj.ConfidenceUpperMinutes = 0
		return proj, nil
	}
	if slope <= 0 {
		proj.TimeToThresholdMinutes = math.Inf(1)
		proj.ConfidenceLowerMinutes = math.Inf(1)
		proj.ConfidenceUpperMinutes = math.Inf(1)
		return proj, nil
	}

	// Minutes from now (the last observation) until the fitted line crosses
	// the threshold.
	now := xs[len(xs)-1]
	crossing := (threshold - intercept) / slope
	eta := crossing - now
	if eta < 0 {
		eta = 0
	}
	proj.TimeToThresholdMinutes = eta

	// Prediction interval from the residual spread, translated into time via
	// the slope.
	std := residualStd(xs, vs, slope, intercept)
	margin := 1.96 * std / slope
	proj.ConfidenceLowerMinutes = math.Max(0, eta-margin)
	proj.ConfidenceUpperMinutes = eta + margin
	return proj, nil
}

func leastSquares(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumX2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func residualStd(xs, ys []float64, slope, intercept float64) float64 {
	var ss float64
	for i := range xs {
		r := ys[i] - (slope*xs[i] + intercept)
		ss += r * r
	}
	return math.Sqrt(ss / float64(len(xs)))
}
