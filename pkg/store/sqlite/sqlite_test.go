package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newJob(priority int) *job.Job {
	return job.New(job.SourceDescriptor{
		SheetID:   "wb.xlsx",
		SheetName: "Leads",
		StartRow:  2,
		RowCount:  50,
	}, job.CaseScrape, priority)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir)
	require.NoError(t, err)

	j := newJob(7)
	require.NoError(t, s.Create(ctx, j))
	require.NoError(t, s.UpdateStatus(ctx, j.ID, job.StatusRunning, store.WithCheckpoint(12)))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, dir)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, err := s2.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusRunning, got.Status)
	require.Equal(t, 12, got.Checkpoint)
	require.Equal(t, 7, got.Priority)
	require.Equal(t, job.CaseScrape, got.Case)
	require.Equal(t, j.Source, got.Source)
	require.Equal(t, 1, got.Attempts)
	require.False(t, got.StartedAt.IsZero())
}

func TestDataDirLockRejectsSecondProcess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = Open(ctx, dir)
	require.ErrorIs(t, err, store.ErrLocked)
}

func TestUpdateStatusSemanticsMatchMemory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	j := newJob(0)
	require.NoError(t, s.Create(ctx, j))

	err := s.UpdateStatus(ctx, j.ID, job.StatusPaused)
	require.True(t, job.IsInvalidTransition(err))

	require.NoError(t, s.UpdateStatus(ctx, j.ID, job.StatusRunning))
	require.NoError(t, s.UpdateStatus(ctx, j.ID, job.StatusFailed,
		store.WithCheckpoint(30), store.WithFailedRows(3),
		store.WithErrorSummary("row 29: permanent error: bad input")))

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, got.Status)
	require.Equal(t, 3, got.FailedRows)
	require.Contains(t, got.ErrorSummary, "row 29")
	require.False(t, got.CompletedAt.IsZero())

	// Manual retry: failed -> running, budget and summary reset.
	require.NoError(t, s.UpdateStatus(ctx, j.ID, job.StatusRunning,
		store.ClearError(), store.WithFailedRows(0)))
	got, err = s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Empty(t, got.ErrorSummary)
	require.Equal(t, 30, got.Checkpoint)
	require.Equal(t, 2, got.Attempts)
}

func TestListByStatusOrdering(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, second := newJob(1), newJob(9)
	require.NoError(t, s.Create(ctx, first))
	require.NoError(t, s.Create(ctx, second))
	require.Less(t, first.Seq, second.Seq)

	pending, err := s.ListByStatus(ctx, job.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)

	limited, err := s.List(ctx, store.Filter{Status: job.StatusPending, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestCreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	j := newJob(0)
	require.NoError(t, s.Create(ctx, j))
	require.ErrorIs(t, s.Create(ctx, j), store.ErrAlreadyExists)
}
