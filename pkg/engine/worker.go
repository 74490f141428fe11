package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/ratelimit"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store"
	"github.com/rowforge/rowforge/pkg/stringutil"
)

// maxRowRetryDelay caps the exponential backoff between in-place
// attempts for a transient row failure.
const maxRowRetryDelay = 30 * time.Second

// maxErrorSummaryLen bounds the persisted error summary to a single
// readable line.
const maxErrorSummaryLen = 500

// worker executes exactly one job at a time: it iterates rows in
// ascending index order from the job's checkpoint, invokes the row
// processor through the shared rate limiter, coalesces checkpoint
// writes, and honors pause/cancel signals at row boundaries.
type worker struct {
	id        int
	cfg       Config
	store     store.Store
	limiter   *ratelimit.Limiter
	accessor  source.Accessor
	processor source.RowProcessor
	log       zerolog.Logger
}

// run owns j from the transition into running until a terminal, paused,
// or shutdown exit. On shutdown the job is left running at a consistent
// checkpoint for restart-time recovery.
func (w *worker) run(ctx context.Context, j *job.Job, ctl *control) {
	logger := w.log.With().
		Str("job_id", j.ID.String()).
		Str("case", j.Case.String()).
		Logger()

	// Store writes must survive shutdown: a cancelled pool context still
	// needs the final checkpoint persisted.
	storeCtx := context.WithoutCancel(ctx)

	// A manual retry re-enters running with a fresh failure budget and a
	// cleared error summary.
	var beginOpts []store.UpdateOption
	if j.Status == job.StatusFailed {
		beginOpts = append(beginOpts, store.ClearError(), store.WithFailedRows(0))
		j.FailedRows = 0
		j.ErrorSummary = ""
	}
	if err := w.store.UpdateStatus(storeCtx, j.ID, job.StatusRunning, beginOpts...); err != nil {
		logger.Error().Err(err).Msg("Failed to take job ownership")
		return
	}
	j.Status = job.StatusRunning

	total := j.Source.RowCount
	cp := j.Checkpoint
	failed := j.FailedRows
	lastPersisted := cp
	lastFlush := time.Now()

	logger.Info().Int("checkpoint", cp).Int("row_count", total).Msg("Job started")

	flush := func() {
		if cp == lastPersisted {
			return
		}
		err := w.store.UpdateStatus(storeCtx, j.ID, job.StatusRunning,
			store.WithCheckpoint(cp), store.WithFailedRows(failed))
		if err != nil {
			logger.Error().Err(err).Int("checkpoint", cp).Msg("Checkpoint write failed")
			return
		}
		lastPersisted = cp
		lastFlush = time.Now()
	}

	finish := func(next job.Status, extra ...store.UpdateOption) {
		opts := append([]store.UpdateOption{
			store.WithCheckpoint(cp),
			store.WithFailedRows(failed),
		}, extra...)
		if err := w.store.UpdateStatus(storeCtx, j.ID, next, opts...); err != nil {
			logger.Error().Err(err).Str("status", next.String()).Msg("Final status write failed")
			return
		}
		logger.Info().
			Str("status", next.String()).
			Int("checkpoint", cp).
			Int("failed_rows", failed).
			Msg("Job finished")
	}

	for cp < total {
		// Control flags are observed only at row boundaries: a row is
		// either fully processed or not attempted, never half done.
		switch ctl.check() {
		case actionCancel:
			finish(job.StatusCancelled)
			return
		case actionPause:
			finish(job.StatusPaused)
			return
		}

		if err := w.limiter.Acquire(ctx, j.Case.ProviderClass()); err != nil {
			// Shutdown while waiting for a permit: leave the job
			// running at its last consistent checkpoint.
			flush()
			logger.Info().Int("checkpoint", cp).Msg("Shutdown while rate limited, job left for recovery")
			return
		}

		if err := w.processRow(ctx, j, cp); err != nil {
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				flush()
				logger.Info().Int("checkpoint", cp).Msg("Shutdown mid-row, job left for recovery")
				return
			}
			failed++
			logger.Warn().Err(err).Int("row", cp).Int("failed_rows", failed).Msg("Row failed")
			if failed > w.cfg.FailureBudget {
				cp++ // the failing row was attempted; progress reflects it
				finish(job.StatusFailed, store.WithErrorSummary(stringutil.Ellipsis(err.Error(), maxErrorSummaryLen)))
				return
			}
		}
		cp++

		if cp-lastPersisted >= w.cfg.CheckpointRows || time.Since(lastFlush) >= w.cfg.CheckpointInterval {
			flush()
		}
		if ctx.Err() != nil {
			flush()
			logger.Info().Int("checkpoint", cp).Msg("Shutdown at row boundary, job left for recovery")
			return
		}
	}

	finish(job.StatusCompleted)
}

// processRow runs one row through read -> process -> write-back, with
// capped exponential backoff for transient failures. The returned error
// is always a classified *job.RowError.
func (w *worker) processRow(ctx context.Context, j *job.Job, idx int) error {
	delay := w.cfg.RowRetryBase
	var lastErr *job.RowError

	for attempt := 0; ; attempt++ {
		err := w.attemptRow(ctx, j, idx)
		if err == nil {
			return nil
		}

		re := job.ClassifyRowError(idx, err)
		if re.Kind == job.RowErrorPermanent {
			return re
		}
		lastErr = re
		if attempt >= w.cfg.RowRetryMax {
			return lastErr
		}

		w.log.Debug().
			Str("job_id", j.ID.String()).
			Int("row", idx).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Err(re.Err).
			Msg("Retrying transient row failure")

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRowRetryDelay {
			delay = maxRowRetryDelay
		}
	}
}

// attemptRow is a single bounded pass over one row.
func (w *worker) attemptRow(ctx context.Context, j *job.Job, idx int) error {
	rowCtx, cancel := context.WithTimeout(ctx, w.cfg.RowTimeout)
	defer cancel()

	row, err := w.accessor.ReadRow(rowCtx, j.Source, idx)
	if err != nil {
		return err
	}
	fields, err := w.processor.Process(rowCtx, row, j.Case)
	if err != nil {
		return err
	}
	return w.accessor.WriteRow(rowCtx, j.Source, idx, fields)
}
