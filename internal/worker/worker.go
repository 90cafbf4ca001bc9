// Package worker implements the long-running queue consumer: a
// single-threaded cooperative loop that polls for jobs, dispatches warmup
// and job messages, and manages its own warm-pool retention and graceful
// shutdown.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fourTheorem/podwhisperer/internal/worker/domain"
)

// Defaults for the loop's lifecycle knobs.
const (
	DefaultGracePeriod   = 5 * time.Second
	DefaultMaxEmptyPolls = 3
)

// Queue is the durable queue boundary the loop consumes.
type Queue interface {
	Poll(ctx context.Context) ([]domain.QueueMessage, error)
	Delete(ctx context.Context, receipt string) error
}

// JobPipeline runs one job to completion or failure.
type JobPipeline interface {
	Run(ctx context.Context, req domain.JobRequest) (*domain.JobResult, error)
}

// FailureReporter emits failure outcomes to the execution coordinator.
// Success callbacks are the pipeline's responsibility.
type FailureReporter interface {
	Failure(ctx context.Context, callbackID, errorType, errorMessage string) error
}

// Config holds worker loop configuration.
type Config struct {
	Logger        *slog.Logger
	Queue         Queue
	Pipeline      JobPipeline
	Reporter      FailureReporter
	State         *State
	JobTimeout    time.Duration
	GracePeriod   time.Duration
	MaxEmptyPolls int
}

// Worker is the top-level loop. Exactly one job pipeline runs at a time;
// horizontal throughput comes from running more worker processes.
type Worker struct {
	logger   *slog.Logger
	queue    Queue
	pipeline JobPipeline
	reporter FailureReporter
	state    *State
	warmup   *WarmupTracker
	workerID string

	jobTimeout    time.Duration
	gracePeriod   time.Duration
	maxEmptyPolls int

	now          func() time.Time
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	// activeJob is closed when the in-flight job finishes. Only the loop
	// goroutine touches it.
	activeJob chan struct{}
}

// NewWorker creates a worker instance.
func NewWorker(cfg *Config) *Worker {
	workerID := uuid.NewString()

	gracePeriod := cfg.GracePeriod
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	maxEmptyPolls := cfg.MaxEmptyPolls
	if maxEmptyPolls <= 0 {
		maxEmptyPolls = DefaultMaxEmptyPolls
	}

	logger := cfg.Logger.With(slog.String("worker_id", workerID))

	return &Worker{
		logger:        logger,
		queue:         cfg.Queue,
		pipeline:      cfg.Pipeline,
		reporter:      cfg.Reporter,
		state:         cfg.State,
		warmup:        NewWarmupTracker(cfg.State, logger),
		workerID:      workerID,
		jobTimeout:    cfg.JobTimeout,
		gracePeriod:   gracePeriod,
		maxEmptyPolls: maxEmptyPolls,
		now:           time.Now,
		shutdownCh:    make(chan struct{}),
	}
}

// RequestShutdown marks the worker for graceful shutdown. Safe to call
// from a signal handler goroutine; it never blocks.
func (w *Worker) RequestShutdown() {
	w.state.RequestShutdown()
	w.shutdownOnce.Do(func() {
		close(w.shutdownCh)
	})
}

// Run executes the polling loop until shutdown is requested or the
// empty-poll threshold triggers the cost-saving automatic shutdown. It
// returns nil for both clean and grace-period-forced exits; only a queue
// transport failure is fatal.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting worker loop",
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Duration("grace_period", w.gracePeriod),
		slog.Int("max_empty_polls", w.maxEmptyPolls),
	)

poll:
	for !w.state.ShutdownRequested() {
		msgs, err := w.queue.Poll(ctx)
		if err != nil {
			return fmt.Errorf("queue poll failed: %w", err)
		}

		if len(msgs) == 0 {
			if w.handleEmptyPoll() {
				break poll
			}
			continue
		}

		w.state.ResetEmptyPolls()
		w.logger.Info("Received messages", slog.Int("count", len(msgs)))

		for _, msg := range msgs {
			if w.state.ShutdownRequested() {
				w.logger.Info("Shutdown requested, stopping message processing")
				break poll
			}
			w.handleMessage(ctx, msg)
		}
	}

	w.drain()
	w.logger.Info("Shutdown complete")
	return nil
}

// handleEmptyPoll bumps the counter and reports whether the loop should
// terminate. While warmup is active the threshold never triggers.
func (w *Worker) handleEmptyPoll() bool {
	n := w.state.IncrementEmptyPolls()
	w.logger.Info("No messages received",
		slog.Int("empty_poll", n),
		slog.Int("max_empty_polls", w.maxEmptyPolls),
	)

	now := w.now()
	if w.warmup.IsActive(now) {
		w.logger.Info("Warmup active, staying alive",
			slog.Duration("remaining", w.warmup.Until().Sub(now)),
		)
		return false
	}

	if n >= w.maxEmptyPolls {
		w.logger.Info("Reached consecutive empty poll limit, shutting down to save costs",
			slog.Int("empty_polls", n),
		)
		return true
	}
	return false
}

// handleMessage dispatches one message: warmup messages are acknowledged
// immediately, anything else becomes a job.
func (w *Worker) handleMessage(ctx context.Context, msg domain.QueueMessage) {
	logger := w.logger.With(slog.String("message_id", msg.ID))
	logger.Info("Processing message")

	var env domain.Envelope
	if len(msg.Body) > 0 {
		if err := json.Unmarshal(msg.Body, &env); err != nil {
			// Not deleted: the queue redelivers it after the visibility
			// timeout.
			logger.Error("Failed to parse message body, leaving for redelivery",
				slog.String("error", err.Error()),
			)
			return
		}
	}

	if w.warmup.HandleMessage(env) {
		if err := w.queue.Delete(ctx, msg.Receipt); err != nil {
			logger.Error("Failed to acknowledge warmup message",
				slog.String("error", err.Error()),
			)
			return
		}
		logger.Info("Warmup message acknowledged, worker will stay warm")
		return
	}

	w.dispatchJob(ctx, msg, domain.JobRequest{
		S3Key:      env.S3Key,
		CallbackID: env.CallbackID,
	}, logger)
}

// dispatchJob runs the pipeline for one message and blocks until it
// finishes or shutdown is requested. On shutdown the job keeps running;
// drain bounds how long the process waits for it.
func (w *Worker) dispatchJob(ctx context.Context, msg domain.QueueMessage, req domain.JobRequest, logger *slog.Logger) {
	w.state.SetJobInProgress(true)
	done := make(chan struct{})
	w.activeJob = done

	go func() {
		defer close(done)
		defer w.state.SetJobInProgress(false)
		w.runJob(ctx, msg, req, logger)
	}()

	select {
	case <-done:
		w.activeJob = nil
	case <-w.shutdownCh:
		logger.Info("Shutdown requested while job in flight")
	}
}

// runJob executes the pipeline and settles the message: delete exactly
// once on success, leave for redelivery on failure (plus one failure
// callback when the job carries a callback id).
func (w *Worker) runJob(ctx context.Context, msg domain.QueueMessage, req domain.JobRequest, logger *slog.Logger) {
	logger.Info("Running job", slog.String("s3_key", req.S3Key))
	start := w.now()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, err := w.pipeline.Run(jobCtx, req)
	if err != nil {
		logger.Error("Job failed",
			slog.String("error_kind", domain.ErrorKind(err)),
			slog.String("error", err.Error()),
		)

		if req.CallbackID != "" {
			if cbErr := w.reporter.Failure(ctx, req.CallbackID, domain.ErrorKind(err), err.Error()); cbErr != nil {
				logger.Error("Failed to send failure callback",
					slog.String("callback_id", req.CallbackID),
					slog.String("error", cbErr.Error()),
				)
			}
		}
		return
	}

	logger.Info("Job done",
		slog.String("raw_transcript_key", result.RawTranscriptKey),
		slog.Duration("elapsed_wall", w.now().Sub(start)),
	)

	if err := w.queue.Delete(ctx, msg.Receipt); err != nil {
		// The job succeeded; redelivery after the visibility timeout will
		// reprocess it (at-least-once).
		logger.Error("Failed to delete message after successful job",
			slog.String("error", err.Error()),
		)
	}
}

// drain waits for an in-flight job to finish, bounded by the grace period.
// After the grace period the process exits even if the job is still
// running (orphaned execution).
func (w *Worker) drain() {
	w.logger.Info("Exiting worker loop")

	done := w.activeJob
	if done == nil || !w.state.JobInProgress() {
		w.logger.Info("No job in progress, shutting down immediately")
		return
	}

	w.logger.Info("Job in progress, waiting for completion",
		slog.Duration("grace_period", w.gracePeriod),
	)
	start := w.now()

	select {
	case <-done:
		w.logger.Info("Job completed within grace period, shutting down cleanly",
			slog.Duration("waited", w.now().Sub(start)),
		)
	case <-time.After(w.gracePeriod):
		w.logger.Warn("Grace period expired, forcing shutdown")
	}
}
