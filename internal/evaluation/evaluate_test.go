package evaluation

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/detect"
	"github.com/hostwatch/hostwatch-ai/internal/features"
	"github.com/hostwatch/hostwatch-ai/internal/store"
)

func TestEvaluator_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end evaluation in short mode")
	}

	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "eval.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	detector := detect.NewDetector(detect.Options{
		Algo:                "isolation_forest",
		Forest:              detect.ForestParams{NumTrees: 100, SubSampleSize: 256, MaxDepth: 12, Seed: 42},
		TargetFPR:           0.05,
		ValSplit:            0.2,
		Features:            features.DefaultParams(),
		DisplayPctThreshold: 80,
		DisplayBPSThreshold: 1e7,
	}, s, s, zap.NewNop())

	evaluator := NewEvaluator(detector, s, zap.NewNop())
	report, err := evaluator.Run(ctx, Params{
		TrainSamples:    1000,
		TestSamples:     200,
		Contamination:   0.1,
		AnomalyTypes:    []string{AnomalyCPUSpike},
		IntervalSeconds: 1,
		StartTS:         1_000_000_000,
		Seed:            42,
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if report.TrainSamples != 1000 {
		t.Errorf("train samples = %d, want 1000", report.TrainSamples)
	}
	if report.TestSamples != 200 {
		t.Errorf("test samples = %d, want 200", report.TestSamples)
	}
	if report.Injected != 20 {
		t.Errorf("injected = %d, want 20", report.Injected)
	}

	// The detector must flag something without flagging everything.
	if report.Flagged == 0 {
		t.Error("no anomalies flagged on contaminated data")
	}
	if report.Flagged == report.TestSamples {
		t.Error("every test sample flagged")
	}

	// CPU spikes to 90-100% against a ~30% baseline should be separable.
	if report.Recall == 0 {
		t.Error("recall is zero; injected spikes were missed entirely")
	}
	if report.AUC <= 0.5 {
		t.Errorf("AUC = %v, want > 0.5", report.AUC)
	}
	if report.FPR > 0.3 {
		t.Errorf("FPR = %v, unreasonably high", report.FPR)
	}

	// Flagging runs at a calibrated nonzero FPR, so flagged rows are not a
	// pure subset of the injected ones. The scores themselves must still
	// rank spikes as clearly more anomalous than clean rows.
	gen := NewGenerator("eval", 43)
	test, labels, err := gen.InjectAnomalies(
		gen.GenerateBaseline(200, 1_000_000_000+1000, 1), []string{AnomalyCPUSpike}, 0.1)
	if err != nil {
		t.Fatalf("inject anomalies: %v", err)
	}
	results, err := detector.DetectSamples(test)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	var spikeSum, cleanSum float64
	var spikeN, cleanN int
	for i, r := range results {
		if labels[i] {
			spikeSum += r.Score
			spikeN++
		} else {
			cleanSum += r.Score
			cleanN++
		}
	}
	if spikeSum/float64(spikeN) >= cleanSum/float64(cleanN) {
		t.Errorf("mean spike score %v not below mean clean score %v",
			spikeSum/float64(spikeN), cleanSum/float64(cleanN))
	}
}
