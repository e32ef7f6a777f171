package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"literature-flow/application/ports"
	pkgerrors "literature-flow/pkg/errors"
	"literature-flow/pkg/observability"

	"go.uber.org/zap"
)

// Default write-behind settings
const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 10 * time.Second
)

// WriteJob is one best-effort write against an external service
type WriteJob struct {
	Name string
	Run  func(ctx context.Context) error
}

// RemoteWriter runs background writes one at a time in the order they were
// enqueued. Local state never waits on it and a failed write is never retried
// or rolled back; it is logged, counted and reported to the notifier.
type RemoteWriter struct {
	jobs     chan WriteJob
	done     chan struct{}
	timeout  time.Duration
	notifier ports.Notifier
	logger   *zap.Logger
	metrics  *observability.Collector

	mu     sync.RWMutex
	closed bool
}

// NewRemoteWriter starts the worker goroutine
func NewRemoteWriter(queueSize int, timeout time.Duration, notifier ports.Notifier, logger *zap.Logger, metrics *observability.Collector) *RemoteWriter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &RemoteWriter{
		jobs:     make(chan WriteJob, queueSize),
		done:     make(chan struct{}),
		timeout:  timeout,
		notifier: notifier,
		logger:   logger.Named("remote_writer"),
		metrics:  metrics,
	}
	go w.run()
	return w
}

// Enqueue schedules a job without blocking. It reports false when the job was
// dropped because the writer is closed or the queue is full.
func (w *RemoteWriter) Enqueue(job WriteJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Warn("Write dropped after close", zap.String("operation", job.Name))
		w.metrics.RecordDropped()
		return false
	}

	select {
	case w.jobs <- job:
		w.metrics.SetQueueDepth(len(w.jobs))
		return true
	default:
		w.logger.Warn("Write queue full, dropping write",
			zap.String("operation", job.Name),
			zap.Int("capacity", cap(w.jobs)),
		)
		w.metrics.RecordDropped()
		w.notify(job.Name, "change could not be saved: too many pending writes")
		return false
	}
}

func (w *RemoteWriter) run() {
	defer close(w.done)
	for job := range w.jobs {
		w.metrics.SetQueueDepth(len(w.jobs))
		w.execute(job)
	}
}

func (w *RemoteWriter) execute(job WriteJob) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, job)
	w.metrics.RecordRemoteWrite(job.Name, err)

	switch {
	case pkgerrors.IsUnavailable(err):
		// breaker open or throttled
		w.logger.Warn("Background write skipped, service unavailable",
			zap.String("operation", job.Name),
			zap.Error(err),
		)
		w.notify(job.Name, "change not saved, storage is unavailable: "+err.Error())
		return
	case err != nil:
		w.logger.Error("Background write failed",
			zap.String("operation", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		w.notify(job.Name, err.Error())
		return
	}
	w.logger.Debug("Background write completed",
		zap.String("operation", job.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (w *RemoteWriter) notify(operation, message string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(ports.Notice{Operation: operation, Message: message})
}

// Close stops accepting jobs and waits for the queued ones to finish
func (w *RemoteWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func safeRun(ctx context.Context, job WriteJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.NewInternalError(fmt.Sprintf("write %s panicked: %v", job.Name, r))
		}
	}()
	return job.Run(ctx)
}
