package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
	"github.com/hostwatch/hostwatch-ai/internal/features"
	"github.com/hostwatch/hostwatch-ai/internal/store"
)

const pipelineArtifactName = "feature_pipeline"

// Options tunes detector behavior.
type Options struct {
	Algo   string
	Forest ForestParams

	TargetFPR float64
	ValSplit  float64

	Features features.Params

	// Display thresholds used only to tag and explain events.
	DisplayPctThreshold float64
	DisplayBPSThreshold float64
}

// TrainReport summarizes one training run.
type TrainReport struct {
	TrainSamples int     `json:"train_samples"`
	ValSamples   int     `json:"val_samples"`
	Threshold    float64 `json:"threshold"`
	Features     int     `json:"features"`
	Version      string  `json:"version"`
}

// Result pairs one sample with its anomaly score and flag.
type Result struct {
	Sample    store.Sample
	Score     float64
	IsAnomaly bool
}

// artifact is the immutable unit the detector serves from. Training builds a
// fresh one and swaps it in atomically only after persistence succeeds, so
// concurrent Detect calls always see a consistent pipeline/scorer/threshold
// triple and a failed training run never degrades a working detector.
type artifact struct {
	pipeline  *features.Pipeline
	scorer    Scorer
	threshold float64
	version   string
}

// Detector coordinates feature transformation, model training, scoring, and
// event extraction.
type Detector struct {
	opts    Options
	samples store.SampleStore
	models  store.ArtifactStore
	logger  *zap.Logger

	current atomic.Pointer[artifact]
}

// NewDetector creates an untrained detector. Call LoadArtifacts to restore a
// previously persisted model, or Train to build one.
func NewDetector(opts Options, samples store.SampleStore, models store.ArtifactStore, logger *zap.Logger) *Detector {
	return &Detector{
		opts:    opts,
		samples: samples,
		models:  models,
		logger:  logger,
	}
}

// Trained reports whether the detector currently serves a fitted model.
func (d *Detector) Trained() bool { return d.current.Load() != nil }

// Threshold returns the active calibrated threshold, or 0 when untrained.
func (d *Detector) Threshold() float64 {
	if art := d.current.Load(); art != nil {
		return art.threshold
	}
	return 0
}

// Train fits a new pipeline and scorer on samples from [start, end],
// calibrates the threshold on a chronological validation tail, persists the
// artifacts, and only then swaps them in as the serving model.
func (d *Detector) Train(ctx context.Context, start, end int64, host string) (*TrainReport, error) {
	began := time.Now()

	rows, err := d.samples.ReadSamples(ctx, start, end, host)
	if err != nil {
		return nil, fmt.Errorf("read training samples: %w", err)
	}
	if len(rows) == 0 {
		return nil, faults.Dataf("no training data in window [%d, %d]", start, end)
	}

	// Chronological split: the most recent tail is validation, so the
	// calibrated threshold reflects scores on data the model never saw.
	splitIdx := int(float64(len(rows)) * (1 - d.opts.ValSplit))
	if splitIdx <= 0 || splitIdx >= len(rows) {
		return nil, faults.Dataf("training window of %d samples too small for validation split %g", len(rows), d.opts.ValSplit)
	}
	trainRows, valRows := rows[:splitIdx], rows[splitIdx:]

	pipeline := features.NewPipeline(d.opts.Features)
	XTrain, err := pipeline.FitTransform(features.FrameFromSamples(trainRows))
	if err != nil {
		return nil, err
	}
	XVal, err := pipeline.Transform(features.FrameFromSamples(valRows))
	if err != nil {
		return nil, err
	}

	scorer, err := NewScorer(d.opts.Algo, d.opts.Forest)
	if err != nil {
		return nil, err
	}
	if err := scorer.Fit(XTrain); err != nil {
		return nil, faults.Computef(err, "fit %s", scorer.Name())
	}

	valScores, err := scorer.ScoreSamples(XVal)
	if err != nil {
		return nil, faults.Computef(err, "score validation samples")
	}
	threshold, err := Calibrate(valScores, d.opts.TargetFPR)
	if err != nil {
		return nil, err
	}

	version := uuid.NewString()
	art := &artifact{
		pipeline:  pipeline,
		scorer:    scorer,
		threshold: threshold,
		version:   version,
	}
	if err := d.persist(ctx, art); err != nil {
		return nil, fmt.Errorf("persist artifacts: %w", err)
	}
	d.current.Store(art)

	report := &TrainReport{
		TrainSamples: len(trainRows),
		ValSamples:   len(valRows),
		Threshold:    threshold,
		Features:     len(pipeline.Schema()),
		Version:      version,
	}
	d.logger.Info("trained anomaly detector",
		zap.Int("train_samples", report.TrainSamples),
		zap.Int("val_samples", report.ValSamples),
		zap.Float64("threshold", report.Threshold),
		zap.Int("features", report.Features),
		zap.String("version", version),
		zap.Duration("elapsed", time.Since(began)),
	)
	return report, nil
}

// Detect scores stored samples from [start, end]. An empty window yields an
// empty result, not an error.
func (d *Detector) Detect(ctx context.Context, start, end int64, host string) ([]Result, error) {
	rows, err := d.samples.ReadSamples(ctx, start, end, host)
	if err != nil {
		return nil, fmt.Errorf("read detection samples: %w", err)
	}
	return d.DetectSamples(rows)
}

// DetectSamples scores an in-memory batch against the serving model.
func (d *Detector) DetectSamples(rows []store.Sample) ([]Result, error) {
	art := d.current.Load()
	if art == nil {
		return nil, faults.Statef("detector not trained")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	X, err := art.pipeline.Transform(features.FrameFromSamples(rows))
	if err != nil {
		return nil, err
	}
	scores, err := art.scorer.ScoreSamples(X)
	if err != nil {
		return nil, faults.Computef(err, "score detection samples")
	}

	results := make([]Result, len(rows))
	for i := range rows {
		results[i] = Result{
			Sample:    rows[i],
			Score:     scores[i],
			IsAnomaly: scores[i] < art.threshold,
		}
	}
	return results, nil
}

// ExtractEvents converts the flagged rows of a detection batch into event
// records with metric tags and a human-readable explanation.
func (d *Detector) ExtractEvents(results []Result) []*store.EventRecord {
	var events []*store.EventRecord
	for _, r := range results {
		if !r.IsAnomaly {
			continue
		}
		events = append(events, &store.EventRecord{
			TS:          r.Sample.TS,
			Type:        "anomaly",
			Score:       r.Score,
			MetricTags:  d.tagMetrics(r.Sample),
			Explanation: d.explain(r.Sample, r.Score),
		})
	}
	return events
}

// tagMetrics names the metrics most likely responsible for an anomaly:
// saturated percentage metrics first, heavy throughput second, "general"
// when nothing stands out.
func (d *Detector) tagMetrics(s store.Sample) string {
	var tags []string
	if s.CPUPct > d.opts.DisplayPctThreshold {
		tags = append(tags, "cpu_pct")
	}
	if s.MemPct > d.opts.DisplayPctThreshold {
		tags = append(tags, "mem_pct")
	}
	if s.SwapPct > d.opts.DisplayPctThreshold {
		tags = append(tags, "swap_pct")
	}
	if len(tags) == 0 {
		for _, m := range []struct {
			name string
			v    float64
		}{
			{"disk_read_bps", s.DiskReadBPS},
			{"disk_write_bps", s.DiskWriteBPS},
			{"net_up_bps", s.NetUpBPS},
			{"net_down_bps", s.NetDownBPS},
		} {
			if m.v > d.opts.DisplayBPSThreshold {
				tags = append(tags, m.name)
			}
		}
	}
	if len(tags) == 0 {
		return "general"
	}
	return strings.Join(tags, ",")
}

func (d *Detector) explain(s store.Sample, score float64) string {
	var parts []string
	if s.CPUPct > d.opts.DisplayPctThreshold {
		parts = append(parts, fmt.Sprintf("high CPU (%.1f%%)", s.CPUPct))
	}
	if s.MemPct > d.opts.DisplayPctThreshold {
		parts = append(parts, fmt.Sprintf("high memory (%.1f%%)", s.MemPct))
	}
	if s.DiskWriteBPS > d.opts.DisplayBPSThreshold {
		parts = append(parts, fmt.Sprintf("high disk write (%.1f MB/s)", s.DiskWriteBPS/1e6))
	}
	if s.NetDownBPS > d.opts.DisplayBPSThreshold {
		parts = append(parts, fmt.Sprintf("high network download (%.1f MB/s)", s.NetDownBPS/1e6))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Anomaly score %.3f: unusual pattern detected", score)
	}
	return fmt.Sprintf("Anomaly score %.3f: %s", score, strings.Join(parts, ", "))
}

// artifactMeta is the JSON metadata stored alongside the scorer blob.
type artifactMeta struct {
	Threshold float64      `json:"threshold"`
	TargetFPR float64      `json:"target_fpr"`
	Forest    ForestParams `json:"forest"`
}

// persist writes the pipeline and scorer as one transactional set. A partial
// write would leave a pipeline from one training run against a scorer from
// another, so both records go through a single SaveModels call.
func (d *Detector) persist(ctx context.Context, art *artifact) error {
	pipelineBlob, err := art.pipeline.GobEncode()
	if err != nil {
		return fmt.Errorf("encode pipeline: %w", err)
	}

	forest, ok := art.scorer.(*IsolationForest)
	if !ok {
		return faults.Statef("cannot persist scorer %q", art.scorer.Name())
	}
	scorerBlob, err := encodeForest(forest)
	if err != nil {
		return fmt.Errorf("encode scorer: %w", err)
	}
	meta, err := json.Marshal(artifactMeta{
		Threshold: art.threshold,
		TargetFPR: d.opts.TargetFPR,
		Forest:    forest.Params,
	})
	if err != nil {
		return err
	}

	trainedAt := time.Now().UTC()
	return d.models.SaveModels(ctx,
		&store.ModelRecord{
			Name:      pipelineArtifactName,
			Algo:      "feature_pipeline",
			Version:   art.version,
			TrainedAt: trainedAt,
			Blob:      pipelineBlob,
		},
		&store.ModelRecord{
			Name:      art.scorer.Name(),
			Algo:      art.scorer.Name(),
			Version:   art.version,
			TrainedAt: trainedAt,
			Meta:      string(meta),
			Blob:      scorerBlob,
		},
	)
}

// LoadArtifacts restores the serving model from the artifact store. It
// returns false with no error when no persisted model exists yet.
func (d *Detector) LoadArtifacts(ctx context.Context) (bool, error) {
	scorerRec, err := d.models.LoadModel(ctx, d.opts.Algo)
	if err != nil {
		return false, err
	}
	pipelineRec, err := d.models.LoadModel(ctx, pipelineArtifactName)
	if err != nil {
		return false, err
	}
	if scorerRec == nil || pipelineRec == nil {
		return false, nil
	}
	// The pipeline's schema and the scorer's trees only fit together when
	// they came from the same training run.
	if scorerRec.Version != pipelineRec.Version {
		return false, faults.Statef("artifact version mismatch: pipeline %s, scorer %s",
			pipelineRec.Version, scorerRec.Version)
	}

	var meta artifactMeta
	if err := json.Unmarshal([]byte(scorerRec.Meta), &meta); err != nil {
		return false, faults.Dataf("decode artifact metadata: %v", err)
	}

	pipeline := &features.Pipeline{}
	if err := pipeline.GobDecode(pipelineRec.Blob); err != nil {
		return false, faults.Dataf("decode pipeline artifact: %v", err)
	}
	forest, err := decodeForest(scorerRec.Blob)
	if err != nil {
		return false, faults.Dataf("decode scorer artifact: %v", err)
	}

	d.current.Store(&artifact{
		pipeline:  pipeline,
		scorer:    forest,
		threshold: meta.Threshold,
		version:   scorerRec.Version,
	})
	d.logger.Info("loaded persisted detector artifacts",
		zap.String("version", scorerRec.Version),
		zap.Float64("threshold", meta.Threshold),
		zap.Time("trained_at", scorerRec.TrainedAt),
	)
	return true, nil
}
