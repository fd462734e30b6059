package main

// Package main is the entry point for the hostwatch-ai agent.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Open the SQLite store and run migrations
//   - Restore persisted detector artifacts when they exist
//   - Register the default alert rules and notifiers
//   - Start the sampling/detection/retraining loops
//   - Serve health and Prometheus metrics endpoints
//   - Implement graceful shutdown with context cancellation

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/alerts"
	"github.com/hostwatch/hostwatch-ai/internal/config"
	"github.com/hostwatch/hostwatch-ai/internal/detect"
	"github.com/hostwatch/hostwatch-ai/internal/features"
	"github.com/hostwatch/hostwatch-ai/internal/ingest"
	"github.com/hostwatch/hostwatch-ai/internal/logging"
	"github.com/hostwatch/hostwatch-ai/internal/service"
	"github.com/hostwatch/hostwatch-ai/internal/store"
)

// flushInterval is how often the batch writer flushes a partial batch.
const flushInterval = 1 * time.Second

func main() {
	configPath := flag.String("config", "/etc/hostwatch/config.yaml", "path to config file")
	flag.Parse()

	ctx := context.Background()

	manager := config.NewManager(*configPath)
	if err := manager.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := manager.Validate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := manager.Get(ctx)

	logger, err := logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	detector := detect.NewDetector(detectorOptions(cfg), db, db, logger)
	restored, err := detector.LoadArtifacts(ctx)
	if err != nil {
		logger.Warn("could not restore detector artifacts", zap.Error(err))
	} else if restored {
		logger.Info("restored detector artifacts")
	}

	engine := alerts.NewEngine(cfg.Alerts.CooldownSeconds, logger)
	if err := engine.RegisterDefaults(alerts.DefaultThresholds{
		CPUPct:       cfg.Thresholds.CPUPct,
		MemPct:       cfg.Thresholds.MemPct,
		SwapPct:      cfg.Thresholds.SwapPct,
		HorizonHours: cfg.Forecast.HorizonHours,
	}); err != nil {
		logger.Fatal("failed to register alert rules", zap.Error(err))
	}

	notifier := buildNotifier(cfg, logger)

	sampler := ingest.NewSampler(cfg.Host, logger)
	writer := ingest.NewBatchWriter(db, cfg.Sampling.BatchSize, cfg.Sampling.MaxQueueSize, flushInterval, logger)

	svc := service.New(cfg, logger, db, sampler, writer, detector, engine, notifier)
	if err := svc.Start(); err != nil {
		logger.Fatal("failed to start service", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal")

	if err := svc.Stop(); err != nil {
		logger.Error("error stopping service", zap.Error(err))
		os.Exit(1)
	}
}

func detectorOptions(cfg *config.Config) detect.Options {
	params := features.DefaultParams()
	params.ShortWindow = cfg.Anomaly.ShortWindow
	params.LongWindow = cfg.Anomaly.LongWindow
	params.SlopeWindow = cfg.Anomaly.SlopeWindow
	params.BurstWindow = cfg.Anomaly.BurstWindow
	params.LagPeriods = cfg.Anomaly.LagPeriods
	params.EMAAlphas = cfg.Anomaly.EMAAlphas

	return detect.Options{
		Algo: cfg.Anomaly.Algo,
		Forest: detect.ForestParams{
			NumTrees:      cfg.Anomaly.NumTrees,
			SubSampleSize: cfg.Anomaly.SubSampleSize,
			MaxDepth:      cfg.Anomaly.MaxDepth,
			Seed:          cfg.Anomaly.RandomState,
		},
		TargetFPR:           cfg.Anomaly.TargetFPR,
		ValSplit:            cfg.Anomaly.ValSplit,
		Features:            params,
		DisplayPctThreshold: cfg.Anomaly.DisplayPctThreshold,
		DisplayBPSThreshold: cfg.Anomaly.DisplayBPSThreshold,
	}
}

func buildNotifier(cfg *config.Config, logger *zap.Logger) alerts.Notifier {
	notifiers := alerts.MultiNotifier{
		alerts.NewConsoleNotifier(os.Stderr, cfg.Alerts.EnableSound),
	}
	if cfg.Alerts.NATSURL != "" {
		natsNotifier, err := alerts.NewNATSNotifier(cfg.Alerts.NATSURL, cfg.Alerts.NATSSubject, logger)
		if err != nil {
			logger.Warn("NATS notifier disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, natsNotifier)
		}
	}
	return notifiers
}
