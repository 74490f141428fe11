package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/queue"
	"github.com/rowforge/rowforge/pkg/ratelimit"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store"
)

// orphanErrorSummary is recorded on running jobs found at startup when
// the recovery policy is fail.
const orphanErrorSummary = "worker died before completing the job"

// Stats is a point-in-time snapshot of engine activity.
type Stats struct {
	QueueDepth    int            `json:"queue_depth"`
	ActiveWorkers int            `json:"active_workers"`
	WorkerCount   int            `json:"worker_count"`
	Dispatched    int64          `json:"dispatched"`
	ByStatus      map[string]int `json:"by_status"`
}

// Manager is the single entry point for job control: it owns the queue,
// the worker pool, and the per-job pause/cancel signals. All public
// methods are safe for concurrent use; conflicting control calls for
// the same job are serialized against the store's transition check, so
// one wins and the others fail with an invalid-transition error.
type Manager struct {
	cfg       Config
	store     store.Store
	limiter   *ratelimit.Limiter
	accessor  source.Accessor
	processor source.RowProcessor
	queue     *queue.Queue
	pool      *pool
	log       zerolog.Logger

	mu         sync.Mutex
	controls   map[uuid.UUID]*control
	active     int
	dispatched int64
	started    bool

	cancel context.CancelFunc
}

// New assembles a manager. Start must be called before jobs execute;
// Submit works beforehand but jobs only wait in the store and queue.
func New(cfg Config, st store.Store, limiter *ratelimit.Limiter, accessor source.Accessor, processor source.RowProcessor, log zerolog.Logger) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:       cfg,
		store:     st,
		limiter:   limiter,
		accessor:  accessor,
		processor: processor,
		queue:     queue.New(),
		log:       log.With().Str("component", "engine").Logger(),
		controls:  make(map[uuid.UUID]*control),
	}
	m.pool = newPool(cfg.Concurrency, m.queue, m.dispatch, m.log)
	return m
}

// Start recovers jobs interrupted by a previous run and launches the
// worker pool. Pending jobs are re-enqueued; jobs stuck in running are
// handled per the configured recovery policy.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("engine already started")
	}
	m.started = true
	m.mu.Unlock()

	if err := m.recover(ctx); err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.pool.start(runCtx)

	m.log.Info().
		Int("workers", m.cfg.Concurrency).
		Str("recovery", string(m.cfg.Recovery)).
		Msg("Engine started")
	return nil
}

// recover re-enqueues work left behind by a previous process: pending
// jobs always, orphaned running jobs per policy.
func (m *Manager) recover(ctx context.Context) error {
	orphans, err := m.store.ListByStatus(ctx, job.StatusRunning)
	if err != nil {
		return err
	}
	for _, j := range orphans {
		switch m.cfg.Recovery {
		case RecoveryFail:
			err := m.store.UpdateStatus(ctx, j.ID, job.StatusFailed,
				store.WithErrorSummary(orphanErrorSummary))
			if err != nil {
				return err
			}
			m.log.Warn().Str("job_id", j.ID.String()).Msg("Orphaned job marked failed")
		default:
			if err := m.queue.Push(j.ID, j.Priority); err != nil {
				return err
			}
			m.log.Info().
				Str("job_id", j.ID.String()).
				Int("checkpoint", j.Checkpoint).
				Msg("Orphaned job re-enqueued from checkpoint")
		}
	}

	pending, err := m.store.ListByStatus(ctx, job.StatusPending)
	if err != nil {
		return err
	}
	for _, j := range pending {
		if err := m.queue.Push(j.ID, j.Priority); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		m.log.Info().Int("count", len(pending)).Msg("Pending jobs re-enqueued")
	}
	return nil
}

// Stop shuts the engine down gracefully: no new jobs are dequeued, and
// in-flight workers finish their current row and persist a checkpoint
// before exiting. Jobs still mid-flight stay running in the store and
// are recovered on the next start. Stop returns once all workers exit
// or ctx expires.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	m.mu.Unlock()

	m.log.Info().Msg("Engine stopping")
	m.queue.Close()
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.pool.wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info().Msg("Engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown: %w", ctx.Err())
	}
}

// Submit validates and persists a new job, then makes it eligible for
// execution. The returned id is stable across restarts.
func (m *Manager) Submit(ctx context.Context, src job.SourceDescriptor, ct job.CaseType, priority int) (uuid.UUID, error) {
	if !ct.Valid() {
		return uuid.Nil, fmt.Errorf("unknown case type %q", ct)
	}
	if err := src.Validate(); err != nil {
		return uuid.Nil, err
	}

	j := job.New(src, ct, priority)
	if err := m.store.Create(ctx, j); err != nil {
		return uuid.Nil, fmt.Errorf("persist job: %w", err)
	}
	if err := m.queue.Push(j.ID, j.Priority); err != nil {
		// The job is durably pending; the next start re-enqueues it.
		m.log.Warn().Str("job_id", j.ID.String()).Err(err).Msg("Job persisted but not enqueued")
	}

	m.log.Info().
		Str("job_id", j.ID.String()).
		Str("case", ct.String()).
		Int("priority", priority).
		Int("row_count", src.RowCount).
		Msg("Job submitted")
	return j.ID, nil
}

// Pause asks the job's worker to stop at the next row boundary. Only a
// running job can be paused.
func (m *Manager) Pause(ctx context.Context, id uuid.UUID) error {
	if ctl, owned := m.owner(id); owned {
		ctl.requestPause()
		m.log.Info().Str("job_id", id.String()).Msg("Pause requested")
		return nil
	}
	// No live worker owns the job, so the pause is a plain store
	// transition; it fails for anything not running.
	return m.store.UpdateStatus(ctx, id, job.StatusPaused)
}

// Resume makes a paused job eligible again. Execution restarts from the
// persisted checkpoint; already-processed rows are never re-run.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID) error {
	j, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status != job.StatusPaused {
		return &job.InvalidTransitionError{ID: id, From: j.Status, To: job.StatusRunning}
	}
	if err := m.queue.Push(id, j.Priority); err != nil {
		return err
	}
	m.log.Info().Str("job_id", id.String()).Int("checkpoint", j.Checkpoint).Msg("Job resumed")
	return nil
}

// Cancel permanently stops a job. A running job cancels at its next row
// boundary; a pending or paused job cancels immediately.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	if ctl, owned := m.owner(id); owned {
		ctl.requestCancel()
		m.log.Info().Str("job_id", id.String()).Msg("Cancel requested")
		return nil
	}
	// A cancelled pending job may still sit in the queue; dispatch
	// checks the store before running and skips it.
	if err := m.store.UpdateStatus(ctx, id, job.StatusCancelled); err != nil {
		return err
	}
	m.log.Info().Str("job_id", id.String()).Msg("Job cancelled")
	return nil
}

// Retry re-enqueues a failed job. The failure budget and error summary
// reset when a worker picks it up; the checkpoint is preserved, so only
// unprocessed rows run.
func (m *Manager) Retry(ctx context.Context, id uuid.UUID) error {
	j, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status != job.StatusFailed {
		return &job.InvalidTransitionError{ID: id, From: j.Status, To: job.StatusRunning}
	}
	if err := m.queue.Push(id, j.Priority); err != nil {
		return err
	}
	m.log.Info().Str("job_id", id.String()).Int("checkpoint", j.Checkpoint).Msg("Job retry enqueued")
	return nil
}

// GetStatus returns a read-only snapshot of one job.
func (m *Manager) GetStatus(ctx context.Context, id uuid.UUID) (job.View, error) {
	j, err := m.store.Get(ctx, id)
	if err != nil {
		return job.View{}, err
	}
	return j.Snapshot(), nil
}

// ListJobs returns snapshots of jobs matching the filter, oldest first.
func (m *Manager) ListJobs(ctx context.Context, f store.Filter) ([]job.View, error) {
	jobs, err := m.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	views := make([]job.View, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.Snapshot())
	}
	return views, nil
}

// Stats reports queue depth, worker activity, and job counts by status.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	jobs, err := m.store.List(ctx, store.Filter{})
	if err != nil {
		return Stats{}, err
	}
	byStatus := make(map[string]int)
	for _, j := range jobs {
		byStatus[j.Status.String()]++
	}

	m.mu.Lock()
	active := m.active
	dispatched := m.dispatched
	m.mu.Unlock()

	return Stats{
		QueueDepth:    m.queue.Len(),
		ActiveWorkers: active,
		WorkerCount:   m.cfg.Concurrency,
		Dispatched:    dispatched,
		ByStatus:      byStatus,
	}, nil
}

// dispatch runs one dequeued job id on the calling pool goroutine. The
// store is re-checked at pickup: an id may have been cancelled while
// queued, or be a stale duplicate from resume/retry races.
func (m *Manager) dispatch(ctx context.Context, workerID int, id uuid.UUID) {
	j, err := m.store.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		m.log.Error().Err(err).Str("job_id", id.String()).Msg("Dequeued job not loadable")
		return
	}
	if !runnable(j.Status) {
		m.log.Debug().
			Str("job_id", id.String()).
			Str("status", j.Status.String()).
			Msg("Dequeued job no longer runnable, skipping")
		return
	}

	ctl := &control{}
	m.mu.Lock()
	if _, exists := m.controls[id]; exists {
		// Another worker already owns this job.
		m.mu.Unlock()
		return
	}
	m.controls[id] = ctl
	m.active++
	m.dispatched++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.controls, id)
		m.active--
		m.mu.Unlock()
	}()

	w := &worker{
		id:        workerID,
		cfg:       m.cfg,
		store:     m.store,
		limiter:   m.limiter,
		accessor:  m.accessor,
		processor: m.processor,
		log:       m.log.With().Int("worker_id", workerID).Logger(),
	}
	w.run(ctx, j, ctl)
}

// owner returns the control handle for a job currently owned by a live
// worker.
func (m *Manager) owner(id uuid.UUID) (*control, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctl, ok := m.controls[id]
	return ctl, ok
}

// runnable reports whether a job in the given state may be handed to a
// worker. Running is included for orphans recovered after a crash.
func runnable(s job.Status) bool {
	return s == job.StatusRunning || s.CanTransition(job.StatusRunning)
}
