package writer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"approval-ledger/pkg/cache"
	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/metrics"
	"approval-ledger/pkg/store"

	"go.uber.org/zap"
)

// AsyncWriter fills one cache layer in the background so that cache
// warm-up never adds latency to a read. Writes go through a bounded queue
// drained by a fixed worker pool; when the queue stays full for
// MaxWaitTime the write is dropped and counted.
type AsyncWriter struct {
	layer      cache.CacheLayer
	queue      chan writeOp
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	config     AsyncWriterConfig
	metrics    metrics.MetricsCollector
	logger     *logging.Logger
	layerName  string

	// Statistics (accessed atomically)
	droppedWrites int64
	totalWrites   int64
	failedWrites  int64
	skippedWrites int64
	pending       int64

	metricsTicker *time.Ticker
	metricsStop   chan struct{}
}

type writeOp struct {
	key   string
	doc   store.Document
	ttl   time.Duration
	valid func() bool
}

// AsyncWriterConfig configures the async writer behavior.
type AsyncWriterConfig struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is how long Write blocks on a full queue before
	// dropping (default: 10ms)
	MaxWaitTime time.Duration

	// WriteTimeout bounds each Set on the layer (default: 1s)
	WriteTimeout time.Duration

	// MetricsInterval is how often queue depth is reported (default: 5s)
	MetricsInterval time.Duration
}

// NewAsyncWriter creates a writer that reports to metricsCollector, which may be nil.
// The writer starts processing immediately and must be closed with Close().
func NewAsyncWriter(layer cache.CacheLayer, config AsyncWriterConfig, metricsCollector metrics.MetricsCollector) *AsyncWriter {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime <= 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = time.Second
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &AsyncWriter{
		layer:         layer,
		queue:         make(chan writeOp, config.QueueSize),
		ctx:           ctx,
		cancelFunc:    cancel,
		config:        config,
		metrics:       metrics.OrNoOp(metricsCollector),
		logger:        logging.Global().Named("writer").Named(layer.Name()),
		layerName:     layer.Name(),
		metricsTicker: time.NewTicker(config.MetricsInterval),
		metricsStop:   make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}

	go w.reportMetrics()

	return w
}

// Write enqueues doc for key. valid, when non-nil, is checked before and
// again after the layer write: a write that went stale while queued is
// skipped, and one that went stale while in flight is deleted from the
// layer again. Returns ErrQueueFull if the write was dropped.
func (w *AsyncWriter) Write(ctx context.Context, key string, doc store.Document, ttl time.Duration, valid func() bool) error {
	select {
	case <-w.ctx.Done():
		return ErrWriterClosed
	default:
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	op := writeOp{key: key, doc: doc.Clone(), ttl: ttl, valid: valid}

	timer := time.NewTimer(w.config.MaxWaitTime)
	defer timer.Stop()

	atomic.AddInt64(&w.pending, 1)
	select {
	case w.queue <- op:
		atomic.AddInt64(&w.totalWrites, 1)
		return nil
	case <-timer.C:
		atomic.AddInt64(&w.pending, -1)
		atomic.AddInt64(&w.droppedWrites, 1)
		w.metrics.RecordWriteDropped(w.layerName)
		return ErrQueueFull
	case <-ctx.Done():
		atomic.AddInt64(&w.pending, -1)
		return ctx.Err()
	case <-w.ctx.Done():
		atomic.AddInt64(&w.pending, -1)
		return ErrWriterClosed
	}
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()

	for {
		select {
		case op := <-w.queue:
			w.process(op)
		case <-w.ctx.Done():
			// drain what is already queued
			for {
				select {
				case op := <-w.queue:
					w.process(op)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter) process(op writeOp) {
	defer atomic.AddInt64(&w.pending, -1)

	if op.valid != nil && !op.valid() {
		atomic.AddInt64(&w.skippedWrites, 1)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := w.layer.Set(ctx, op.key, op.doc, op.ttl)
	duration := time.Since(start)

	w.metrics.RecordAsyncWrite(w.layerName, err == nil, duration)

	if err != nil {
		atomic.AddInt64(&w.failedWrites, 1)
		w.logger.Debug("cache warm-up failed",
			zap.String("key", op.key),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}

	// An invalidation that ran during Set may have deleted the key before
	// the old document landed.
	if op.valid != nil && !op.valid() {
		atomic.AddInt64(&w.skippedWrites, 1)
		delCtx, delCancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
		defer delCancel()
		if err := w.layer.Delete(delCtx, op.key); err != nil {
			w.logger.Warn("failed to evict stale warm-up",
				zap.String("key", op.key),
				zap.Error(err),
			)
		}
	}
}

// Flush waits until every accepted write has been processed or timeout elapses.
func (w *AsyncWriter) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if atomic.LoadInt64(&w.pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops accepting writes, processes what is queued and waits for
// the workers. It is safe to call more than once.
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.metricsStop)
		w.metricsTicker.Stop()
		w.cancelFunc()
		w.wg.Wait()
	})
	return nil
}

func (w *AsyncWriter) reportMetrics() {
	for {
		select {
		case <-w.metricsTicker.C:
			w.metrics.RecordQueueDepth(w.layerName, len(w.queue))
		case <-w.metricsStop:
			return
		}
	}
}

// Stats returns current statistics about the async writer.
func (w *AsyncWriter) Stats() AsyncWriterStats {
	return AsyncWriterStats{
		QueueDepth:    len(w.queue),
		DroppedWrites: atomic.LoadInt64(&w.droppedWrites),
		TotalWrites:   atomic.LoadInt64(&w.totalWrites),
		FailedWrites:  atomic.LoadInt64(&w.failedWrites),
		SkippedWrites: atomic.LoadInt64(&w.skippedWrites),
	}
}
