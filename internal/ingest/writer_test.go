package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/store"
)

// recordingStore captures writes for assertions.
type recordingStore struct {
	mu      sync.Mutex
	batches [][]store.Sample
}

func (r *recordingStore) WriteSamples(ctx context.Context, samples []store.Sample) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make([]store.Sample, len(samples))
	copy(batch, samples)
	r.batches = append(r.batches, batch)
	return len(samples), nil
}

func (r *recordingStore) ReadSamples(ctx context.Context, start, end int64, host string) ([]store.Sample, error) {
	return nil, nil
}

func (r *recordingStore) PruneSamples(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

func (r *recordingStore) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestBatchWriter_FlushesFullBatches(t *testing.T) {
	rec := &recordingStore{}
	w := NewBatchWriter(rec, 10, 100, time.Hour, zap.NewNop())
	w.Start(context.Background())

	for i := 0; i < 25; i++ {
		if !w.Enqueue(store.Sample{TS: int64(i), Host: "test"}) {
			t.Fatalf("enqueue %d dropped unexpectedly", i)
		}
	}
	w.Stop()

	if got := rec.total(); got != 25 {
		t.Errorf("wrote %d samples, want 25", got)
	}

	stats := w.Stats()
	if stats.Written != 25 {
		t.Errorf("stats.Written = %d, want 25", stats.Written)
	}
	if stats.Dropped != 0 {
		t.Errorf("stats.Dropped = %d, want 0", stats.Dropped)
	}
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	rec := &recordingStore{}
	w := NewBatchWriter(rec, 100, 100, time.Hour, zap.NewNop())
	w.Start(context.Background())

	// Fewer samples than a batch: only Stop's final flush writes them.
	for i := 0; i < 7; i++ {
		w.Enqueue(store.Sample{TS: int64(i), Host: "test"})
	}
	w.Stop()

	if got := rec.total(); got != 7 {
		t.Errorf("wrote %d samples, want 7", got)
	}
}

func TestBatchWriter_StopAfterContextCancel(t *testing.T) {
	rec := &recordingStore{}
	w := NewBatchWriter(rec, 100, 100, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	for i := 0; i < 7; i++ {
		w.Enqueue(store.Sample{TS: int64(i), Host: "test"})
	}

	// Shutdown order in the service cancels the loop context before Stop.
	// The drain flush must still persist everything queued.
	cancel()
	w.Stop()

	if got := rec.total(); got != 7 {
		t.Errorf("wrote %d samples after canceled-context stop, want 7", got)
	}
}

func TestBatchWriter_DropsUnderBackpressure(t *testing.T) {
	rec := &recordingStore{}
	// Never start the loop, so the queue stays full once it fills.
	w := NewBatchWriter(rec, 10, 5, time.Hour, zap.NewNop())

	accepted := 0
	for i := 0; i < 10; i++ {
		if w.Enqueue(store.Sample{TS: int64(i)}) {
			accepted++
		}
	}
	if accepted != 5 {
		t.Errorf("accepted %d samples, want 5", accepted)
	}
	if w.Stats().Dropped != 5 {
		t.Errorf("dropped = %d, want 5", w.Stats().Dropped)
	}
}
