package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuilabs/minami/internal/metrics"
	"github.com/yuilabs/minami/internal/repository"
)

// Worker polls the jobs table and runs registered handlers.
type Worker struct {
	db       *sql.DB
	queries  *repository.Queries
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a Worker. Start it with Start and stop it with Stop.
func New(db *sql.DB, queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		db:       db,
		queries:  queries,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger.With("component", "worker"),
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a job handler. Call before Start.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("registered job handler", "job_type", jobType)
}

// Start recovers stale jobs left by a crashed process, then launches the
// configured number of polling goroutines.
func (w *Worker) Start(ctx context.Context) {
	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("failed to recover stale jobs", "error", err)
	}

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("worker started", "concurrency", w.config.Concurrency, "handlers", len(w.handlers))
}

// Stop signals all goroutines and waits up to ShutdownTimeout for them.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("worker shutdown timeout exceeded, some jobs may still be running")
	}
}

func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	count, err := w.queries.RecoverStaleJobs(ctx, w.config.StaleJobThreshold.Seconds())
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}

	if count > 0 {
		w.logger.Warn("recovered stale jobs", "count", count, "threshold", w.config.StaleJobThreshold)
	}

	return nil
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for {
				err := w.processNextJob(ctx, logger)
				if errors.Is(err, sql.ErrNoRows) {
					break
				}
				if err != nil {
					logger.Error("failed to process job", "error", err)
					break
				}
				select {
				case <-w.stopCh:
					return
				default:
				}
			}
		}
	}
}

// processNextJob dequeues and runs a single job. Returns sql.ErrNoRows when
// the queue is empty.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := w.queries.WithTx(tx)

	job, err := qtx.DequeueJob(ctx)
	if err != nil {
		return err
	}

	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job started: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dequeue: %w", err)
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Info("processing job")

	start := time.Now()
	if err := w.executeJob(ctx, job); err != nil {
		logger.Error("job failed", "error", err)
		w.markJobFailed(ctx, job, err, logger)
		return nil
	}

	if err := w.queries.UpdateJobCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("update job completed: %w", err)
	}
	metrics.JobCompleted(job.JobType, time.Since(start))
	logger.Info("job completed", "duration", time.Since(start))

	return nil
}

func (w *Worker) executeJob(ctx context.Context, job repository.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type: %s", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}

// markJobFailed reschedules the job with backoff, or marks it failed when
// the error is permanent or the attempts are used up.
func (w *Worker) markJobFailed(ctx context.Context, job repository.Job, jobErr error, logger *slog.Logger) {
	permanent := IsPermanent(jobErr)

	status, err := w.queries.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           job.ID,
		Permanent:    permanent,
		ErrorMessage: sql.NullString{String: jobErr.Error(), Valid: true},
	})
	if err != nil {
		logger.Error("failed to mark job as failed", "error", err)
		return
	}

	if status == "failed" {
		metrics.JobFailed(job.JobType)
		logger.Warn("job will not be retried", "permanent", permanent)
		return
	}
	metrics.JobRetried(job.JobType)
}

// Stats returns the number of jobs per status.
func (w *Worker) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := w.queries.CountJobsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}
