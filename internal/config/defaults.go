package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Host = "" // resolved to os.Hostname at startup

	// Sampling defaults
	cfg.Sampling.RateSeconds = 1.0
	cfg.Sampling.BatchSize = 100
	cfg.Sampling.MaxQueueSize = 10000

	// Storage defaults
	cfg.Storage.DBPath = "/var/lib/hostwatch/hostwatch.db"
	cfg.Storage.RetentionDays = 30

	// Anomaly defaults
	cfg.Anomaly.Algo = "isolation_forest"
	cfg.Anomaly.NumTrees = 100
	cfg.Anomaly.SubSampleSize = 256
	cfg.Anomaly.MaxDepth = 12
	cfg.Anomaly.RandomState = 42
	cfg.Anomaly.TargetFPR = 0.05
	cfg.Anomaly.ValSplit = 0.2
	cfg.Anomaly.ShortWindow = 5
	cfg.Anomaly.LongWindow = 30
	cfg.Anomaly.SlopeWindow = 10
	cfg.Anomaly.BurstWindow = 10
	cfg.Anomaly.LagPeriods = []int{1, 2, 3, 5}
	cfg.Anomaly.EMAAlphas = []float64{0.1, 0.3}
	cfg.Anomaly.BaselineWindowHours = 24 * 7
	cfg.Anomaly.RetrainIntervalHours = 24
	cfg.Anomaly.DetectIntervalSeconds = 60
	cfg.Anomaly.DetectWindowSeconds = 300
	cfg.Anomaly.DisplayPctThreshold = 80.0
	cfg.Anomaly.DisplayBPSThreshold = 1e7 // 10 MB/s

	// Forecast defaults
	cfg.Forecast.HorizonHours = 72
	cfg.Forecast.Window = 60

	// Threshold defaults
	cfg.Thresholds.CPUPct = 90.0
	cfg.Thresholds.MemPct = 90.0
	cfg.Thresholds.SwapPct = 80.0

	// Alert defaults
	cfg.Alerts.CooldownSeconds = 60
	cfg.Alerts.EnableSound = false
	cfg.Alerts.NATSURL = ""
	cfg.Alerts.NATSSubject = "hostwatch.alerts"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.FilePath = "logs/hostwatch.log"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 10
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	// Server defaults
	cfg.Server.Port = 9090

	return cfg
}
