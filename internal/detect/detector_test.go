package detect

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
	"github.com/hostwatch/hostwatch-ai/internal/features"
	"github.com/hostwatch/hostwatch-ai/internal/store"
)

const testStartTS = 1_700_000_000

func testOptions() Options {
	return Options{
		Algo:                "isolation_forest",
		Forest:              ForestParams{NumTrees: 50, SubSampleSize: 128, MaxDepth: 10, Seed: 42},
		TargetFPR:           0.05,
		ValSplit:            0.2,
		Features:            features.DefaultParams(),
		DisplayPctThreshold: 80,
		DisplayBPSThreshold: 1e7,
	}
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func baselineSamples(n int, startTS int64, seed int64) []store.Sample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]store.Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = store.Sample{
			TS:           startTS + int64(i),
			Host:         "test",
			CPUPct:       30 + rng.NormFloat64()*5,
			MemPct:       40 + rng.NormFloat64()*3,
			SwapPct:      5 + rng.NormFloat64(),
			DiskReadBPS:  1e5 * (1 + rng.Float64()),
			DiskWriteBPS: 2e5 * (1 + rng.Float64()),
			NetUpBPS:     1e6 * (1 + rng.Float64()),
			NetDownBPS:   5e6 * (1 + rng.Float64()),
			ProcCount:    200,
		}
	}
	return samples
}

func TestDetector_DetectBeforeTrain(t *testing.T) {
	s := testStore(t)
	d := NewDetector(testOptions(), s, s, zap.NewNop())

	if d.Trained() {
		t.Fatal("fresh detector should be untrained")
	}
	_, err := d.Detect(context.Background(), 0, testStartTS, "test")
	if !faults.IsState(err) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestDetector_TrainEmptyWindow(t *testing.T) {
	s := testStore(t)
	d := NewDetector(testOptions(), s, s, zap.NewNop())

	_, err := d.Train(context.Background(), 0, 100, "test")
	if !faults.IsData(err) {
		t.Fatalf("expected data error, got %v", err)
	}
	if d.Trained() {
		t.Fatal("failed training must not mark detector as trained")
	}
}

func TestDetector_TrainDetectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	d := NewDetector(testOptions(), s, s, zap.NewNop())

	baseline := baselineSamples(1000, testStartTS, 1)
	if _, err := s.WriteSamples(ctx, baseline); err != nil {
		t.Fatalf("write baseline: %v", err)
	}

	report, err := d.Train(ctx, testStartTS, testStartTS+999, "test")
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if !d.Trained() {
		t.Fatal("detector should be trained")
	}
	if report.TrainSamples != 800 || report.ValSamples != 200 {
		t.Errorf("split = %d/%d, want 800/200", report.TrainSamples, report.ValSamples)
	}
	if report.Features == 0 {
		t.Error("report should count feature columns")
	}

	// Empty detection window is empty output, not an error.
	results, err := d.Detect(ctx, testStartTS+5000, testStartTS+6000, "test")
	if err != nil {
		t.Fatalf("Detect on empty window failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}

	results, err = d.Detect(ctx, testStartTS, testStartTS+999, "test")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(results) != 1000 {
		t.Fatalf("got %d results, want 1000", len(results))
	}

	// Normal data at the calibrated 5% FPR: some rows flag, most do not.
	flagged := 0
	for _, r := range results {
		if r.IsAnomaly {
			flagged++
		}
	}
	if flagged == len(results) {
		t.Error("all rows flagged on baseline data")
	}
}

func TestDetector_ArtifactsRestoreAcrossRestart(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	d := NewDetector(testOptions(), s, s, zap.NewNop())
	baseline := baselineSamples(1000, testStartTS, 2)
	if _, err := s.WriteSamples(ctx, baseline); err != nil {
		t.Fatalf("write baseline: %v", err)
	}
	if _, err := d.Train(ctx, testStartTS, testStartTS+999, "test"); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	want, err := d.Detect(ctx, testStartTS, testStartTS+99, "test")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// Fresh detector over the same store, as after a process restart.
	restored := NewDetector(testOptions(), s, s, zap.NewNop())
	ok, err := restored.LoadArtifacts(ctx)
	if err != nil {
		t.Fatalf("LoadArtifacts failed: %v", err)
	}
	if !ok {
		t.Fatal("artifacts should exist after training")
	}
	if restored.Threshold() != d.Threshold() {
		t.Errorf("restored threshold %v != %v", restored.Threshold(), d.Threshold())
	}

	got, err := restored.Detect(ctx, testStartTS, testStartTS+99, "test")
	if err != nil {
		t.Fatalf("restored Detect failed: %v", err)
	}
	for i := range want {
		if want[i].Score != got[i].Score {
			t.Fatalf("restored score[%d] = %v, want %v", i, got[i].Score, want[i].Score)
		}
	}
}

// failingArtifactStore refuses transactional saves, simulating a full disk
// mid-retrain.
type failingArtifactStore struct {
	store.Store
}

func (f *failingArtifactStore) SaveModels(ctx context.Context, recs ...*store.ModelRecord) error {
	return errors.New("disk full")
}

func TestDetector_FailedPersistLeavesPreviousArtifacts(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	baseline := baselineSamples(1000, testStartTS, 3)
	if _, err := s.WriteSamples(ctx, baseline); err != nil {
		t.Fatalf("write baseline: %v", err)
	}

	first := NewDetector(testOptions(), s, s, zap.NewNop())
	if _, err := first.Train(ctx, testStartTS, testStartTS+999, "test"); err != nil {
		t.Fatalf("initial Train failed: %v", err)
	}
	wantThreshold := first.Threshold()
	want, err := first.Detect(ctx, testStartTS, testStartTS+99, "test")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// Retrain against a store that fails the artifact save.
	d := NewDetector(testOptions(), s, &failingArtifactStore{Store: s}, zap.NewNop())
	if ok, err := d.LoadArtifacts(ctx); err != nil || !ok {
		t.Fatalf("LoadArtifacts = %v, %v", ok, err)
	}
	if _, err := d.Train(ctx, testStartTS, testStartTS+999, "test"); err == nil {
		t.Fatal("Train should fail when artifact persistence fails")
	}

	// The serving model is unchanged.
	if d.Threshold() != wantThreshold {
		t.Errorf("threshold changed after failed persist: %v != %v", d.Threshold(), wantThreshold)
	}
	got, err := d.Detect(ctx, testStartTS, testStartTS+99, "test")
	if err != nil {
		t.Fatalf("Detect after failed persist: %v", err)
	}
	for i := range want {
		if want[i].Score != got[i].Score {
			t.Fatalf("score[%d] changed after failed persist: %v != %v", i, got[i].Score, want[i].Score)
		}
	}

	// The store still holds the previous matched pair.
	pipelineRec, err := s.LoadModel(ctx, "feature_pipeline")
	if err != nil || pipelineRec == nil {
		t.Fatalf("load pipeline record: %v, %v", pipelineRec, err)
	}
	scorerRec, err := s.LoadModel(ctx, "isolation_forest")
	if err != nil || scorerRec == nil {
		t.Fatalf("load scorer record: %v, %v", scorerRec, err)
	}
	if pipelineRec.Version != scorerRec.Version {
		t.Errorf("persisted set is mixed: pipeline %s, scorer %s", pipelineRec.Version, scorerRec.Version)
	}

	restored := NewDetector(testOptions(), s, s, zap.NewNop())
	if ok, err := restored.LoadArtifacts(ctx); err != nil || !ok {
		t.Fatalf("restore after failed retrain = %v, %v", ok, err)
	}
	if restored.Threshold() != wantThreshold {
		t.Errorf("restored threshold %v, want %v", restored.Threshold(), wantThreshold)
	}
}

func TestDetector_LoadArtifactsRejectsMixedVersions(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	baseline := baselineSamples(1000, testStartTS, 4)
	if _, err := s.WriteSamples(ctx, baseline); err != nil {
		t.Fatalf("write baseline: %v", err)
	}
	d := NewDetector(testOptions(), s, s, zap.NewNop())
	if _, err := d.Train(ctx, testStartTS, testStartTS+999, "test"); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// Rewrite the scorer record under a different version, as a partial
	// overwrite from an interrupted process would.
	scorerRec, err := s.LoadModel(ctx, "isolation_forest")
	if err != nil || scorerRec == nil {
		t.Fatalf("load scorer record: %v, %v", scorerRec, err)
	}
	scorerRec.Version = "other-training-run"
	if err := s.SaveModel(ctx, scorerRec); err != nil {
		t.Fatalf("rewrite scorer record: %v", err)
	}

	restored := NewDetector(testOptions(), s, s, zap.NewNop())
	ok, err := restored.LoadArtifacts(ctx)
	if ok {
		t.Error("mixed-version artifact set must not be restored")
	}
	if !faults.IsState(err) {
		t.Errorf("expected state error, got %v", err)
	}
}

// explodingScorer fails every call, standing in for a scorer runtime failure.
type explodingScorer struct{}

func (explodingScorer) Name() string                                  { return "exploding" }
func (explodingScorer) Fit(X [][]float64) error                       { return errors.New("boom") }
func (explodingScorer) ScoreSamples(X [][]float64) ([]float64, error) { return nil, errors.New("boom") }
func (explodingScorer) IsFitted() bool                                { return true }

func TestDetector_ScorerFailureIsComputeError(t *testing.T) {
	rows := baselineSamples(50, testStartTS, 5)
	pipeline := features.NewPipeline(features.DefaultParams())
	if _, err := pipeline.FitTransform(features.FrameFromSamples(rows)); err != nil {
		t.Fatalf("fit pipeline: %v", err)
	}

	d := NewDetector(testOptions(), nil, nil, zap.NewNop())
	d.current.Store(&artifact{
		pipeline:  pipeline,
		scorer:    explodingScorer{},
		threshold: -0.5,
		version:   "test",
	})

	_, err := d.DetectSamples(rows)
	if !faults.IsCompute(err) {
		t.Fatalf("expected compute error, got %v", err)
	}
}

func TestDetector_LoadArtifactsWhenNonePersisted(t *testing.T) {
	s := testStore(t)
	d := NewDetector(testOptions(), s, s, zap.NewNop())

	ok, err := d.LoadArtifacts(context.Background())
	if err != nil {
		t.Fatalf("LoadArtifacts failed: %v", err)
	}
	if ok {
		t.Error("no artifacts should be found in an empty store")
	}
}

func TestDetector_ExtractEvents(t *testing.T) {
	d := NewDetector(testOptions(), nil, nil, zap.NewNop())

	results := []Result{
		{
			Sample:    store.Sample{TS: 100, CPUPct: 95, MemPct: 50},
			Score:     -0.8,
			IsAnomaly: true,
		},
		{
			Sample:    store.Sample{TS: 101, CPUPct: 30, MemPct: 40},
			Score:     -0.3,
			IsAnomaly: false,
		},
		{
			Sample:    store.Sample{TS: 102, CPUPct: 40, NetDownBPS: 5e7},
			Score:     -0.7,
			IsAnomaly: true,
		},
		{
			Sample:    store.Sample{TS: 103, CPUPct: 35, MemPct: 45},
			Score:     -0.65,
			IsAnomaly: true,
		},
	}

	events := d.ExtractEvents(results)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	if events[0].MetricTags != "cpu_pct" {
		t.Errorf("tags = %q, want cpu_pct", events[0].MetricTags)
	}
	if !strings.Contains(events[0].Explanation, "high CPU (95.0%)") {
		t.Errorf("explanation %q should mention high CPU", events[0].Explanation)
	}

	if events[1].MetricTags != "net_down_bps" {
		t.Errorf("tags = %q, want net_down_bps", events[1].MetricTags)
	}

	if events[2].MetricTags != "general" {
		t.Errorf("tags = %q, want general", events[2].MetricTags)
	}
	if !strings.Contains(events[2].Explanation, "unusual pattern detected") {
		t.Errorf("explanation %q should fall back to generic text", events[2].Explanation)
	}
}
