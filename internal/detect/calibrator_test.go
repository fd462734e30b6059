package detect

import (
	"math"
	"math/rand"
	"testing"
)

func TestCalibrate_AchievesTargetFPR(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	scores := make([]float64, 2000)
	for i := range scores {
		scores[i] = rng.NormFloat64()
	}

	threshold, err := Calibrate(scores, 0.05)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	flagged := 0
	for _, flag := range Classify(scores, threshold) {
		if flag {
			flagged++
		}
	}
	rate := float64(flagged) / float64(len(scores))
	if math.Abs(rate-0.05) > 0.02 {
		t.Errorf("flagged rate %v, want 0.05 +/- 0.02", rate)
	}
}

func TestCalibrate_Errors(t *testing.T) {
	if _, err := Calibrate(nil, 0.05); err == nil {
		t.Error("empty scores should fail")
	}
	if _, err := Calibrate([]float64{1, 2}, 0); err == nil {
		t.Error("zero FPR should fail")
	}
	if _, err := Calibrate([]float64{1, 2}, 1); err == nil {
		t.Error("FPR of 1 should fail")
	}
}

func TestClassify_StrictlyBelow(t *testing.T) {
	flags := Classify([]float64{-2, -1, -1, 0}, -1)
	want := []bool{true, false, false, false}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("flags[%d] = %v, want %v", i, flags[i], want[i])
		}
	}
}

func TestRates(t *testing.T) {
	predicted := []bool{true, true, false, false, true}
	actual := []bool{true, false, true, false, false}

	fpr, tpr := Rates(predicted, actual)

	// 2 false positives of 3 negatives, 1 true positive of 2 positives.
	if math.Abs(fpr-2.0/3.0) > 1e-9 {
		t.Errorf("fpr = %v, want 2/3", fpr)
	}
	if math.Abs(tpr-0.5) > 1e-9 {
		t.Errorf("tpr = %v, want 0.5", tpr)
	}
}

func TestPrecisionRecall(t *testing.T) {
	predicted := []bool{true, true, true, false}
	actual := []bool{true, false, true, true}

	precision, recall := PrecisionRecall(predicted, actual)

	if math.Abs(precision-2.0/3.0) > 1e-9 {
		t.Errorf("precision = %v, want 2/3", precision)
	}
	if math.Abs(recall-2.0/3.0) > 1e-9 {
		t.Errorf("recall = %v, want 2/3", recall)
	}
}

func TestPrecisionRecall_EmptyDenominators(t *testing.T) {
	precision, recall := PrecisionRecall([]bool{false, false}, []bool{false, false})
	if precision != 0 || recall != 0 {
		t.Errorf("expected zeros, got precision=%v recall=%v", precision, recall)
	}
}

func TestPercentile_Interpolates(t *testing.T) {
	values := []float64{0, 10, 20, 30, 40}
	if got := percentile(values, 50); got != 20 {
		t.Errorf("median = %v, want 20", got)
	}
	// Rank 0.05*(5-1) = 0.2 → between 0 and 10.
	if got := percentile(values, 5); math.Abs(got-2) > 1e-9 {
		t.Errorf("p5 = %v, want 2", got)
	}
}
