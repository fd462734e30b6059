package detect

import (
	"math"
	"sort"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
)

// Calibrate picks the score threshold that flags approximately targetFPR of
// the validation scores. Scores are assumed lower = more anomalous, so the
// threshold is the targetFPR*100-th percentile: anything below it is flagged.
func Calibrate(valScores []float64, targetFPR float64) (float64, error) {
	if len(valScores) == 0 {
		return 0, faults.Dataf("calibration requires at least one validation score")
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		return 0, faults.Configf("target FPR must be in (0,1), got %g", targetFPR)
	}
	return percentile(valScores, targetFPR*100), nil
}

// Classify flags each score strictly below the threshold.
func Classify(scores []float64, threshold float64) []bool {
	flags := make([]bool, len(scores))
	for i, s := range scores {
		flags[i] = s < threshold
	}
	return flags
}

// Rates computes the false-positive and true-positive rates of predictions
// against ground-truth labels. A rate with no members in its denominator is 0.
func Rates(predicted, actual []bool) (fpr, tpr float64) {
	var fp, tn, tp, fn int
	for i := range predicted {
		switch {
		case actual[i] && predicted[i]:
			tp++
		case actual[i] && !predicted[i]:
			fn++
		case !actual[i] && predicted[i]:
			fp++
		default:
			tn++
		}
	}
	if fp+tn > 0 {
		fpr = float64(fp) / float64(fp+tn)
	}
	if tp+fn > 0 {
		tpr = float64(tp) / float64(tp+fn)
	}
	return fpr, tpr
}

// PrecisionRecall computes precision and recall of predictions against
// ground-truth labels. Empty denominators yield 0.
func PrecisionRecall(predicted, actual []bool) (precision, recall float64) {
	var tp, fp, fn int
	for i := range predicted {
		switch {
		case actual[i] && predicted[i]:
			tp++
		case !actual[i] && predicted[i]:
			fp++
		case actual[i] && !predicted[i]:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	return precision, recall
}

// percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks, matching numpy's default.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
