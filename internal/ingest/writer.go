package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/store"
)

// shutdownFlushTimeout bounds the drain flush that runs after the loop
// context has already been canceled.
const shutdownFlushTimeout = 10 * time.Second

// WriterStats is a snapshot of writer counters.
type WriterStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Queued  int   `json:"queued"`
}

// BatchWriter accumulates samples on a bounded queue and flushes them to the
// store in batches, either when a batch fills or on the flush interval.
// Under backpressure new samples are dropped rather than blocking the
// sampling loop.
type BatchWriter struct {
	samples       store.SampleStore
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration

	queue   chan store.Sample
	written atomic.Int64
	dropped atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewBatchWriter creates a writer flushing batches of batchSize with a
// bounded queue of maxQueueSize.
func NewBatchWriter(samples store.SampleStore, batchSize, maxQueueSize int, flushInterval time.Duration, logger *zap.Logger) *BatchWriter {
	return &BatchWriter{
		samples:       samples,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		queue:         make(chan store.Sample, maxQueueSize),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop. It runs until Stop is called.
func (w *BatchWriter) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.loop(ctx)
	})
}

// Stop closes the queue and waits for the final flush to complete.
func (w *BatchWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.queue)
		<-w.done
		w.logger.Info("batch writer stopped",
			zap.Int64("written", w.written.Load()),
			zap.Int64("dropped", w.dropped.Load()),
		)
	})
}

// Enqueue queues a sample for writing. Returns false when the queue is full
// and the sample was dropped.
func (w *BatchWriter) Enqueue(sample store.Sample) bool {
	select {
	case w.queue <- sample:
		return true
	default:
		n := w.dropped.Add(1)
		if n%1000 == 0 {
			w.logger.Warn("write queue full", zap.Int64("dropped_total", n))
		}
		return false
	}
}

// Stats returns current counters.
func (w *BatchWriter) Stats() WriterStats {
	return WriterStats{
		Written: w.written.Load(),
		Dropped: w.dropped.Load(),
		Queued:  len(w.queue),
	}
}

func (w *BatchWriter) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]store.Sample, 0, w.batchSize)
	for {
		select {
		case sample, ok := <-w.queue:
			if !ok {
				w.flush(ctx, batch)
				return
			}
			batch = append(batch, sample)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *BatchWriter) flush(ctx context.Context, batch []store.Sample) {
	if len(batch) == 0 {
		return
	}
	// Stop is usually called after the loop context is canceled; queued
	// samples still have to reach the store, so the drain gets its own
	// bounded context.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
	}
	start := time.Now()
	n, err := w.samples.WriteSamples(ctx, batch)
	if err != nil {
		w.logger.Error("batch write failed", zap.Int("samples", len(batch)), zap.Error(err))
		return
	}
	w.written.Add(int64(n))

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		w.logger.Warn("slow batch write", zap.Int("samples", n), zap.Duration("elapsed", elapsed))
	} else {
		w.logger.Debug("wrote batch", zap.Int("samples", n), zap.Duration("elapsed", elapsed))
	}
}
