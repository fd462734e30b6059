// Package service wires the sampling, detection, and alerting loops into a
// single long-running process.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/alerts"
	"github.com/hostwatch/hostwatch-ai/internal/config"
	"github.com/hostwatch/hostwatch-ai/internal/detect"
	"github.com/hostwatch/hostwatch-ai/internal/faults"
	"github.com/hostwatch/hostwatch-ai/internal/features"
	"github.com/hostwatch/hostwatch-ai/internal/forecast"
	"github.com/hostwatch/hostwatch-ai/internal/ingest"
	"github.com/hostwatch/hostwatch-ai/internal/metrics"
	"github.com/hostwatch/hostwatch-ai/internal/store"
)

// pruneInterval is how often retention pruning runs.
const pruneInterval = 1 * time.Hour

// Service owns the background loops: metric sampling, periodic detection,
// scheduled retraining, and retention pruning, plus the health/metrics
// HTTP endpoints.
type Service struct {
	cfg    *config.Config
	logger *zap.Logger

	db         store.Store
	sampler    *ingest.Sampler
	writer     *ingest.BatchWriter
	detector   *detect.Detector
	forecaster *forecast.Forecaster
	engine     *alerts.Engine
	notifier   alerts.Notifier

	httpServer *http.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.RWMutex
	running bool
}

// New assembles a service from already-constructed components.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	db store.Store,
	sampler *ingest.Sampler,
	writer *ingest.BatchWriter,
	detector *detect.Detector,
	engine *alerts.Engine,
	notifier alerts.Notifier,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		sampler:    sampler,
		writer:     writer,
		detector:   detector,
		forecaster: forecast.NewForecaster(cfg.Forecast.Window),
		engine:     engine,
		notifier:   notifier,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches all background loops and the HTTP server.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return faults.Statef("service already running")
	}
	s.running = true
	s.mu.Unlock()

	s.writer.Start(s.ctx)

	s.wg.Add(1)
	go s.sampleLoop()

	s.wg.Add(1)
	go s.detectLoop()

	s.wg.Add(1)
	go s.retrainLoop()

	s.wg.Add(1)
	go s.pruneLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http server listening", zap.Int("port", s.cfg.Server.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	s.logger.Info("service started",
		zap.String("host", s.cfg.Host),
		zap.Float64("sample_rate_seconds", s.cfg.Sampling.RateSeconds),
		zap.Int("detect_interval_seconds", s.cfg.Anomaly.DetectIntervalSeconds),
		zap.Bool("detector_trained", s.detector.Trained()),
	)
	return nil
}

// Stop shuts everything down: HTTP server first, then the loops, then the
// writer so queued samples still flush.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return faults.Statef("service not running")
	}
	s.running = false
	s.mu.Unlock()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http shutdown error", zap.Error(err))
		}
	}

	s.cancel()
	s.wg.Wait()
	s.writer.Stop()

	s.logger.Info("service stopped")
	return nil
}

func (s *Service) sampleLoop() {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.Sampling.RateSeconds * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			sample := s.sampler.Sample(s.ctx)
			if s.writer.Enqueue(sample) {
				metrics.SamplesIngested.Inc()
			} else {
				metrics.SamplesDropped.Inc()
			}
		}
	}
}

func (s *Service) detectLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.cfg.Anomaly.DetectIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runDetection()
		}
	}
}

// runDetection scores the trailing detection window, persists any anomaly
// events, and pushes the latest sample through the rule engine.
func (s *Service) runDetection() {
	if !s.detector.Trained() {
		metrics.DetectionRuns.WithLabelValues("skipped").Inc()
		return
	}

	end := time.Now().UTC().Unix()
	start := end - int64(s.cfg.Anomaly.DetectWindowSeconds)

	results, err := s.detector.Detect(s.ctx, start, end, s.cfg.Host)
	if err != nil {
		metrics.DetectionRuns.WithLabelValues("error").Inc()
		s.logger.Error("detection failed", zap.Error(err))
		return
	}
	metrics.DetectionRuns.WithLabelValues("ok").Inc()
	if len(results) == 0 {
		return
	}

	for _, ev := range s.detector.ExtractEvents(results) {
		metrics.AnomaliesFlagged.Inc()
		if _, err := s.db.WriteEvent(s.ctx, ev); err != nil {
			s.logger.Error("write event failed", zap.Error(err))
		}
	}

	latest := results[len(results)-1]
	metrics.DetectionScore.Set(latest.Score)

	obs := s.buildObservation(results)
	for _, alert := range s.engine.Evaluate(obs) {
		metrics.AlertsFired.WithLabelValues(alert.Rule, alert.Severity).Inc()
		if err := s.notifier.Notify(alert); err != nil {
			s.logger.Error("notify failed", zap.String("rule", alert.Rule), zap.Error(err))
		}
	}
}

// buildObservation assembles the rule engine input from the newest result
// plus threshold projections over the whole detection window.
func (s *Service) buildObservation(results []detect.Result) alerts.Observation {
	latest := results[len(results)-1]

	timestamps := make([]int64, len(results))
	cpu := make([]float64, len(results))
	memPct := make([]float64, len(results))
	for i, r := range results {
		timestamps[i] = r.Sample.TS
		cpu[i] = r.Sample.CPUPct
		memPct[i] = r.Sample.MemPct
	}

	forecasts := make(map[string]forecast.Projection)
	if proj, err := s.forecaster.Project(features.ColCPUPct, timestamps, cpu, s.cfg.Thresholds.CPUPct); err == nil {
		forecasts[features.ColCPUPct] = proj
	}
	if proj, err := s.forecaster.Project(features.ColMemPct, timestamps, memPct, s.cfg.Thresholds.MemPct); err == nil {
		forecasts[features.ColMemPct] = proj
	}

	obs := alerts.Observation{
		TS:   latest.Sample.TS,
		Host: latest.Sample.Host,
		Metrics: map[string]float64{
			features.ColCPUPct:       latest.Sample.CPUPct,
			features.ColMemPct:       latest.Sample.MemPct,
			features.ColSwapPct:      latest.Sample.SwapPct,
			features.ColDiskReadBPS:  latest.Sample.DiskReadBPS,
			features.ColDiskWriteBPS: latest.Sample.DiskWriteBPS,
			features.ColNetUpBPS:     latest.Sample.NetUpBPS,
			features.ColNetDownBPS:   latest.Sample.NetDownBPS,
			features.ColProcCount:    float64(latest.Sample.ProcCount),
		},
		IsAnomaly: latest.IsAnomaly,
		Score:     latest.Score,
		Forecasts: forecasts,
	}
	if latest.Sample.CPUTemp != nil {
		obs.Metrics[features.ColCPUTemp] = *latest.Sample.CPUTemp
	}
	return obs
}

func (s *Service) retrainLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.cfg.Anomaly.RetrainIntervalHours) * time.Hour)
	defer ticker.Stop()

	// An untrained detector gets a first training attempt shortly after
	// start, once the sampler has had a chance to accumulate data.
	var warmup <-chan time.Time
	if !s.detector.Trained() {
		warmup = time.After(time.Duration(s.cfg.Anomaly.DetectIntervalSeconds) * time.Second)
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-warmup:
			s.runTraining()
		case <-ticker.C:
			s.runTraining()
		}
	}
}

func (s *Service) runTraining() {
	end := time.Now().UTC().Unix()
	start := end - int64(s.cfg.Anomaly.BaselineWindowHours)*3600

	began := time.Now()
	report, err := s.detector.Train(s.ctx, start, end, s.cfg.Host)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		if faults.IsData(err) {
			// Not enough baseline yet. Normal on a fresh install.
			s.logger.Warn("training skipped", zap.Error(err))
		} else {
			s.logger.Error("training failed", zap.Error(err))
		}
		return
	}
	metrics.TrainingRuns.WithLabelValues("ok").Inc()
	metrics.TrainingDuration.Observe(time.Since(began).Seconds())
	metrics.CalibratedThreshold.Set(report.Threshold)
}

func (s *Service) pruneLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.db.PruneSamples(s.ctx, s.cfg.Storage.RetentionDays)
			if err != nil {
				s.logger.Error("prune failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				metrics.SamplesPruned.Add(float64(removed))
				s.logger.Info("pruned old samples", zap.Int64("removed", removed))
			}
		}
	}
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Service) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"trained": s.detector.Trained(),
		"writer":  s.writer.Stats(),
	})
}
