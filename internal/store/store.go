package store

import (
	"context"
	"time"
)

// Store is the main persistence interface for hostwatch-ai: raw metric
// samples, versioned model artifacts, and anomaly/forecast events.
type Store interface {
	SampleStore
	ArtifactStore
	EventStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// ─── Sample store ─────────────────────────────────────────────────────────────

// Sample is one periodic host-metric observation. CPUTemp is optional: not
// every platform exposes a temperature sensor.
type Sample struct {
	TS           int64    `json:"ts"` // seconds since epoch
	Host         string   `json:"host"`
	CPUPct       float64  `json:"cpu_pct"`
	MemPct       float64  `json:"mem_pct"`
	SwapPct      float64  `json:"swap_pct"`
	DiskReadBPS  float64  `json:"disk_read_bps"`
	DiskWriteBPS float64  `json:"disk_write_bps"`
	NetUpBPS     float64  `json:"net_up_bps"`
	NetDownBPS   float64  `json:"net_down_bps"`
	ProcCount    int64    `json:"proc_count"`
	CPUTemp      *float64 `json:"cpu_temp,omitempty"`
}

// SampleStore persists and retrieves raw metric samples.
type SampleStore interface {
	// WriteSamples batch-inserts samples, returning the number of rows written.
	WriteSamples(ctx context.Context, samples []Sample) (int, error)

	// ReadSamples returns samples with start <= ts <= end in ascending ts
	// order, optionally filtered by host (empty host means all hosts).
	ReadSamples(ctx context.Context, start, end int64, host string) ([]Sample, error)

	// PruneSamples deletes samples older than the retention window and
	// returns the number of rows removed.
	PruneSamples(ctx context.Context, retentionDays int) (int64, error)
}

// ─── Artifact store ───────────────────────────────────────────────────────────

// ModelRecord is a versioned, serialized model artifact. The blob is opaque
// to the store; callers own encoding and decoding.
type ModelRecord struct {
	Name      string    `json:"name"`
	Algo      string    `json:"algo"`
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Meta      string    `json:"meta"` // JSON metadata, may be empty
	Blob      []byte    `json:"-"`
}

// ArtifactStore persists fitted model state across restarts. SaveModel
// replaces the previous row for the same name wholesale.
type ArtifactStore interface {
	SaveModel(ctx context.Context, rec *ModelRecord) error

	// SaveModels upserts a set of records in one transaction: either every
	// record replaces its predecessor or none does. A trained model and its
	// feature pipeline are only usable as a matched pair, so a partial
	// overwrite must never be observable.
	SaveModels(ctx context.Context, recs ...*ModelRecord) error

	// LoadModel returns nil, nil when no artifact with that name exists.
	LoadModel(ctx context.Context, name string) (*ModelRecord, error)
}

// ─── Event store ──────────────────────────────────────────────────────────────

// EventRecord is a persisted anomaly or forecast event.
type EventRecord struct {
	ID          int64   `json:"id"`
	TS          int64   `json:"ts"`
	Type        string  `json:"type"` // "anomaly", "forecast"
	Score       float64 `json:"score"`
	MetricTags  string  `json:"metric_tags"` // comma-separated contributing metrics
	Explanation string  `json:"explanation"`
}

// EventStore persists detection events.
type EventStore interface {
	// WriteEvent inserts an event and returns its ID.
	WriteEvent(ctx context.Context, rec *EventRecord) (int64, error)

	// ReadEvents returns events with start <= ts <= end in descending ts
	// order, optionally filtered by type (empty means all types).
	ReadEvents(ctx context.Context, start, end int64, eventType string) ([]*EventRecord, error)
}
