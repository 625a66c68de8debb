package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OverdueMarker flags invoices whose due date has passed. It examines up to
// batchSize candidates after afterID and returns the last id it examined, or 0
// when none were left.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time, afterID int64, batchSize int) (marked int, lastID int64, err error)
}

// OverdueWorkerConfig holds configuration for the overdue sweep
type OverdueWorkerConfig struct {
	Interval     time.Duration
	BatchSize    int
	SweepTimeout time.Duration
}

// DefaultOverdueWorkerConfig returns default configuration
func DefaultOverdueWorkerConfig() OverdueWorkerConfig {
	return OverdueWorkerConfig{
		Interval:     time.Hour,
		BatchSize:    200,
		SweepTimeout: 2 * time.Minute,
	}
}

// OverdueWorker periodically moves unpaid invoices past their due date to overdue
type OverdueWorker struct {
	config OverdueWorkerConfig
	marker OverdueMarker
	logger *zap.Logger
	now    func() time.Time

	mu          sync.RWMutex
	cancel      context.CancelFunc
	done        chan struct{}
	isRunning   bool
	lastSweep   time.Time
	markedTotal int
	lastError   error
}

// NewOverdueWorker creates a new overdue worker
func NewOverdueWorker(config OverdueWorkerConfig, marker OverdueMarker, logger *zap.Logger) *OverdueWorker {
	defaults := DefaultOverdueWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = defaults.SweepTimeout
	}
	return &OverdueWorker{config: config, marker: marker, logger: logger, now: time.Now}
}

// Start runs one sweep immediately and then one per interval
func (w *OverdueWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("overdue worker already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("OverdueWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *OverdueWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("OverdueWorker stopped", zap.Int("marked_total", w.MarkedTotal()))
	return nil
}

func (w *OverdueWorker) Name() string {
	return "OverdueWorker"
}

func (w *OverdueWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep marks every overdue invoice as of now, walking candidates by id so
// invoices that fail to save cannot hold back the rest
func (w *OverdueWorker) Sweep(ctx context.Context) int {
	sweepCtx, cancel := context.WithTimeout(ctx, w.config.SweepTimeout)
	defer cancel()

	asOf := w.now()
	marked := 0
	var cursor int64
	var err error
	for {
		var n int
		var last int64
		n, last, err = w.marker.MarkOverdue(sweepCtx, asOf, cursor, w.config.BatchSize)
		marked += n
		if err != nil || last <= cursor {
			break
		}
		cursor = last
	}

	w.mu.Lock()
	w.lastSweep = w.now()
	w.markedTotal += marked
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Overdue sweep failed", zap.Error(err), zap.Int("marked", marked))
		return marked
	}
	if marked > 0 {
		w.logger.Info("Invoices marked overdue", zap.Int("count", marked))
	}
	return marked
}

// MarkedTotal returns how many invoices this worker has marked since start
func (w *OverdueWorker) MarkedTotal() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.markedTotal
}

// LastError returns the error from the most recent sweep
func (w *OverdueWorker) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}
