package features

import (
	"fmt"
	"math"
)

// Windowed feature derivation. Every function is pure: it reads one
// ts-ascending column and returns a freshly allocated column of the same
// length. NaN is the undefined marker for cells with no defined value (lag
// warm-up rows, single-observation standard deviations); the frame's global
// FillNaN pass replaces them after the full feature set is assembled.

// Lag returns x shifted forward by lag rows. The first lag rows are NaN.
func Lag(x []float64, lag int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		if i < lag {
			out[i] = math.NaN()
		} else {
			out[i] = x[i-lag]
		}
	}
	return out
}

// RollingMean returns the trailing-window mean with a minimum of one
// observation, so partial windows at the start of the batch are allowed.
func RollingMean(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= window {
			sum -= x[i-window]
		}
		count := i + 1
		if count > window {
			count = window
		}
		out[i] = sum / float64(count)
	}
	return out
}

// RollingStd returns the trailing-window sample standard deviation (n-1
// denominator) with partial windows allowed. A single-observation window has
// no defined deviation and yields NaN.
func RollingStd(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < 2 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for j := lo; j <= i; j++ {
			sum += x[j]
		}
		mean := sum / float64(n)
		var ss float64
		for j := lo; j <= i; j++ {
			d := x[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// EMA returns the exponential moving average with smoothing factor alpha:
// ema[0] = x[0], ema[i] = alpha*x[i] + (1-alpha)*ema[i-1].
func EMA(x []float64, alpha float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Slope returns, per row, the least-squares line slope over the trailing
// window fitted against index positions 0..window-1. Rows with fewer than
// window preceding observations emit 0 rather than NaN.
func Slope(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window < 2 {
		return out
	}

	// x-axis sums for positions 0..window-1 are constant.
	w := float64(window)
	sumX := w * (w - 1) / 2
	sumX2 := (w - 1) * w * (2*w - 1) / 6
	denom := w*sumX2 - sumX*sumX

	for i := window - 1; i < len(x); i++ {
		var sumY, sumXY float64
		for j := 0; j < window; j++ {
			y := x[i-window+1+j]
			sumY += y
			sumXY += float64(j) * y
		}
		out[i] = (w*sumXY - sumX*sumY) / denom
	}
	return out
}

// burstEpsilon keeps the burstiness ratio defined over all-zero windows.
const burstEpsilon = 1e-6

// Burstiness returns the ratio of the trailing-window maximum to the
// trailing-window mean, capturing the spikiness of throughput metrics.
// Partial windows are allowed.
func Burstiness(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	means := RollingMean(x, window)
	for i := range x {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		max := x[lo]
		for j := lo + 1; j <= i; j++ {
			if x[j] > max {
				max = x[j]
			}
		}
		out[i] = max / (means[i] + burstEpsilon)
	}
	return out
}

// Windows bundles the configured window sizes and applies the derivations to
// every requested column of a frame, appending derived columns in a stable
// order. Columns absent from the frame are skipped.
type Windows struct {
	Short      int
	Long       int
	LagPeriods []int
}

// AddLags appends one shifted column per configured lag period.
func (w *Windows) AddLags(f *Frame, columns []string) {
	for _, col := range columns {
		if !f.Has(col) {
			continue
		}
		x := f.Column(col)
		for _, lag := range w.LagPeriods {
			f.Add(fmt.Sprintf("%s_lag%d", col, lag), Lag(x, lag))
		}
	}
}

// AddRollingStats appends mean and standard deviation over the short and
// long windows.
func (w *Windows) AddRollingStats(f *Frame, columns []string) {
	for _, col := range columns {
		if !f.Has(col) {
			continue
		}
		x := f.Column(col)
		f.Add(col+"_rmean_s", RollingMean(x, w.Short))
		f.Add(col+"_rstd_s", RollingStd(x, w.Short))
		f.Add(col+"_rmean_l", RollingMean(x, w.Long))
		f.Add(col+"_rstd_l", RollingStd(x, w.Long))
	}
}

// AddEMA appends one exponential moving average per smoothing factor.
func (w *Windows) AddEMA(f *Frame, columns []string, alphas []float64) {
	for _, col := range columns {
		if !f.Has(col) {
			continue
		}
		x := f.Column(col)
		for _, alpha := range alphas {
			f.Add(fmt.Sprintf("%s_ema%d", col, int(alpha*10)), EMA(x, alpha))
		}
	}
}

// AddSlope appends the trailing-window least-squares slope.
func (w *Windows) AddSlope(f *Frame, columns []string, window int) {
	for _, col := range columns {
		if !f.Has(col) {
			continue
		}
		f.Add(col+"_slope", Slope(f.Column(col), window))
	}
}

// AddBurstiness appends the max/mean burst ratio for throughput columns.
func (w *Windows) AddBurstiness(f *Frame, columns []string, window int) {
	for _, col := range columns {
		if !f.Has(col) {
			continue
		}
		f.Add(col+"_burst", Burstiness(f.Column(col), window))
	}
}
