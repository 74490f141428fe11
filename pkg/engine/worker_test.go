package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/ratelimit"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store"
	"github.com/rowforge/rowforge/pkg/store/memory"
)

func testLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.New(nil, ratelimit.ClassConfig{Rate: 10000, Burst: 100})
	require.NoError(t, err)
	return l
}

func testConfig() Config {
	return Config{
		Concurrency:        1,
		CheckpointRows:     2,
		CheckpointInterval: time.Hour,
		RowTimeout:         time.Second,
		RowRetryMax:        0,
		RowRetryBase:       time.Millisecond,
		FailureBudget:      0,
		Recovery:           RecoveryResume,
	}.withDefaults()
}

func testDescriptor(rows int) job.SourceDescriptor {
	return job.SourceDescriptor{
		SheetID:   "sheet-1",
		SheetName: "Companies",
		StartRow:  2,
		RowCount:  rows,
	}
}

// fakeAccessor serves synthetic rows and records write-backs.
type fakeAccessor struct {
	mu     sync.Mutex
	writes map[int]source.EnrichedFields
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{writes: make(map[int]source.EnrichedFields)}
}

func (a *fakeAccessor) ReadRow(ctx context.Context, src job.SourceDescriptor, index int) (source.Row, error) {
	return source.Row{
		Index:  index,
		Values: map[string]string{"company": fmt.Sprintf("company-%d", index)},
	}, nil
}

func (a *fakeAccessor) WriteRow(ctx context.Context, src job.SourceDescriptor, index int, fields source.EnrichedFields) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes[index] = fields
	return nil
}

func (a *fakeAccessor) writeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.writes)
}

// scriptProcessor succeeds by default, consuming one scripted error per
// call for indices that have any, and counting every call per index.
type scriptProcessor struct {
	mu     sync.Mutex
	errs   map[int][]error
	calls  map[int]int
	onCall func(row source.Row)
}

func newScriptProcessor() *scriptProcessor {
	return &scriptProcessor{
		errs:  make(map[int][]error),
		calls: make(map[int]int),
	}
}

func (p *scriptProcessor) failWith(index int, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[index] = append(p.errs[index], errs...)
}

func (p *scriptProcessor) Process(ctx context.Context, row source.Row, caseType job.CaseType) (source.EnrichedFields, error) {
	p.mu.Lock()
	p.calls[row.Index]++
	var err error
	if pending := p.errs[row.Index]; len(pending) > 0 {
		err = pending[0]
		p.errs[row.Index] = pending[1:]
	}
	hook := p.onCall
	p.mu.Unlock()

	if hook != nil {
		hook(row)
	}
	if err != nil {
		return nil, err
	}
	return source.EnrichedFields{"category": "test"}, nil
}

func (p *scriptProcessor) callCount(index int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[index]
}

func newTestWorker(t *testing.T, cfg Config, st store.Store, proc source.RowProcessor) (*worker, *fakeAccessor) {
	t.Helper()
	acc := newFakeAccessor()
	return &worker{
		id:        0,
		cfg:       cfg,
		store:     st,
		limiter:   testLimiter(t),
		accessor:  acc,
		processor: proc,
		log:       zerolog.Nop(),
	}, acc
}

func createJob(t *testing.T, st store.Store, rows int) *job.Job {
	t.Helper()
	j := job.New(testDescriptor(rows), job.CaseKeyword, 0)
	require.NoError(t, st.Create(context.Background(), j))
	return j
}

func TestWorkerRunsJobToCompletion(t *testing.T) {
	st := memory.New()
	proc := newScriptProcessor()
	w, acc := newTestWorker(t, testConfig(), st, proc)
	j := createJob(t, st, 5)

	w.run(context.Background(), j, &control{})

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, 5, got.Checkpoint)
	require.Equal(t, 0, got.FailedRows)
	require.Equal(t, 1, got.Attempts)
	require.False(t, got.StartedAt.IsZero())
	require.False(t, got.CompletedAt.IsZero())
	require.Equal(t, 5, acc.writeCount())
	for i := 0; i < 5; i++ {
		require.Equal(t, 1, proc.callCount(i), "row %d", i)
	}
}

func TestWorkerFailureBudgetExhaustion(t *testing.T) {
	st := memory.New()
	proc := newScriptProcessor()
	proc.failWith(3, job.PermanentRowError(3, errors.New("malformed row")))
	proc.failWith(7, job.PermanentRowError(7, errors.New("malformed row")))

	cfg := testConfig()
	cfg.FailureBudget = 1
	w, _ := newTestWorker(t, cfg, st, proc)
	j := createJob(t, st, 10)

	w.run(context.Background(), j, &control{})

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, got.Status)
	// The second failing row breaks the budget; progress covers it.
	require.Equal(t, 8, got.Checkpoint)
	require.Equal(t, 2, got.FailedRows)
	require.Contains(t, got.ErrorSummary, "row 7")
	require.Zero(t, proc.callCount(8))
}

func TestWorkerSkipsFailedRowWithinBudget(t *testing.T) {
	st := memory.New()
	proc := newScriptProcessor()
	proc.failWith(1, job.PermanentRowError(1, errors.New("no website column")))

	cfg := testConfig()
	cfg.FailureBudget = 3
	w, acc := newTestWorker(t, cfg, st, proc)
	j := createJob(t, st, 4)

	w.run(context.Background(), j, &control{})

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, 4, got.Checkpoint)
	require.Equal(t, 1, got.FailedRows)
	require.Empty(t, got.ErrorSummary)
	require.Equal(t, 3, acc.writeCount())
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	st := memory.New()
	proc := newScriptProcessor()
	proc.failWith(2,
		job.TransientRowError(2, errors.New("provider throttled")),
		job.TransientRowError(2, errors.New("provider throttled")),
	)

	cfg := testConfig()
	cfg.RowRetryMax = 3
	w, _ := newTestWorker(t, cfg, st, proc)
	j := createJob(t, st, 4)

	w.run(context.Background(), j, &control{})

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, 0, got.FailedRows)
	require.Equal(t, 3, proc.callCount(2))
}

func TestWorkerTransientExhaustionCountsAgainstBudget(t *testing.T) {
	st := memory.New()
	proc := newScriptProcessor()
	proc.failWith(0,
		job.TransientRowError(0, errors.New("connection reset")),
		job.TransientRowError(0, errors.New("connection reset")),
	)

	cfg := testConfig()
	cfg.RowRetryMax = 1
	cfg.FailureBudget = 0
	w, _ := newTestWorker(t, cfg, st, proc)
	j := createJob(t, st, 3)

	w.run(context.Background(), j, &control{})

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, got.Status)
	require.Equal(t, 1, got.Checkpoint)
	require.Equal(t, 1, got.FailedRows)
	require.Equal(t, 2, proc.callCount(0))
}

func TestWorkerRowTimeoutIsTransient(t *testing.T) {
	st := memory.New()

	// The first call overruns the row deadline; the retry is fast.
	var mu sync.Mutex
	stall := true
	proc := source.ProcessorFunc(func(ctx context.Context, row source.Row, ct job.CaseType) (source.EnrichedFields, error) {
		mu.Lock()
		s := stall
		stall = false
		mu.Unlock()
		if s {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return source.EnrichedFields{"category": "test"}, nil
	})

	cfg := testConfig()
	cfg.RowTimeout = 10 * time.Millisecond
	cfg.RowRetryMax = 2
	w, _ := newTestWorker(t, cfg, st, proc)
	j := createJob(t, st, 1)

	w.run(context.Background(), j, &control{})

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, 1, got.Checkpoint)
	require.Equal(t, 0, got.FailedRows)
}

func TestWorkerPausesAtRowBoundary(t *testing.T) {
	st := memory.New()
	ctl := &control{}
	proc := newScriptProcessor()
	proc.onCall = func(row source.Row) {
		if row.Index == 0 {
			ctl.requestPause()
		}
	}
	w, _ := newTestWorker(t, testConfig(), st, proc)
	j := createJob(t, st, 5)

	w.run(context.Background(), j, ctl)

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusPaused, got.Status)
	require.Equal(t, 1, got.Checkpoint)
	require.Equal(t, 1, proc.callCount(0))
	require.Zero(t, proc.callCount(1))
}

func TestWorkerCancelWinsOverPause(t *testing.T) {
	st := memory.New()
	ctl := &control{}
	ctl.requestPause()
	ctl.requestCancel()

	proc := newScriptProcessor()
	w, _ := newTestWorker(t, testConfig(), st, proc)
	j := createJob(t, st, 5)

	w.run(context.Background(), j, ctl)

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCancelled, got.Status)
	require.Equal(t, 0, got.Checkpoint)
	require.Zero(t, proc.callCount(0))
}

func TestWorkerShutdownLeavesJobRunning(t *testing.T) {
	st := memory.New()
	ctx, cancel := context.WithCancel(context.Background())

	proc := newScriptProcessor()
	proc.onCall = func(row source.Row) {
		if row.Index == 2 {
			cancel()
		}
	}
	blocking := source.ProcessorFunc(func(pctx context.Context, row source.Row, ct job.CaseType) (source.EnrichedFields, error) {
		proc.onCall(row)
		if err := pctx.Err(); err != nil {
			return nil, err
		}
		return source.EnrichedFields{"category": "test"}, nil
	})

	w, _ := newTestWorker(t, testConfig(), st, blocking)
	j := createJob(t, st, 10)

	w.run(ctx, j, &control{})

	got, err := st.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusRunning, got.Status)
	require.Equal(t, 2, got.Checkpoint)
}

func TestWorkerRetryEntryResetsFailureState(t *testing.T) {
	st := memory.New()
	j := createJob(t, st, 6)

	ctx := context.Background()
	require.NoError(t, st.UpdateStatus(ctx, j.ID, job.StatusRunning))
	require.NoError(t, st.UpdateStatus(ctx, j.ID, job.StatusFailed,
		store.WithCheckpoint(4),
		store.WithFailedRows(2),
		store.WithErrorSummary("row 3: permanent error: malformed row")))

	failed, err := st.Get(ctx, j.ID)
	require.NoError(t, err)

	proc := newScriptProcessor()
	w, _ := newTestWorker(t, testConfig(), st, proc)
	w.run(ctx, failed, &control{})

	got, err := st.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, 6, got.Checkpoint)
	require.Equal(t, 0, got.FailedRows)
	require.Empty(t, got.ErrorSummary)
	require.Equal(t, 2, got.Attempts)
	// Only rows past the checkpoint run again.
	require.Zero(t, proc.callCount(3))
	require.Equal(t, 1, proc.callCount(4))
	require.Equal(t, 1, proc.callCount(5))
}
