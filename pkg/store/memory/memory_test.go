package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/store"
)

func newJob(priority int) *job.Job {
	return job.New(job.SourceDescriptor{
		SheetID:   "wb.xlsx",
		SheetName: "Leads",
		StartRow:  2,
		RowCount:  20,
	}, job.CaseKeyword, priority)
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	j := newJob(3)
	require.NoError(t, s.Create(ctx, j))
	require.Equal(t, int64(1), j.Seq)

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, j.ID, got.ID)
	require.Equal(t, job.StatusPending, got.Status)
	require.Equal(t, 3, got.Priority)

	// Mutating the returned copy must not leak into the store.
	got.Checkpoint = 99
	again, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, 0, again.Checkpoint)
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()

	j := newJob(0)
	require.NoError(t, s.Create(ctx, j))
	require.ErrorIs(t, s.Create(ctx, j), store.ErrAlreadyExists)
}

func TestGetUnknown(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), uuid.New())
	require.True(t, job.IsNotFound(err))
}

func TestUpdateStatusEnforcesStateMachine(t *testing.T) {
	ctx := context.Background()
	s := New()

	j := newJob(0)
	require.NoError(t, s.Create(ctx, j))

	err := s.UpdateStatus(ctx, j.ID, job.StatusCompleted)
	require.True(t, job.IsInvalidTransition(err))

	require.NoError(t, s.UpdateStatus(ctx, j.ID, job.StatusRunning))
	require.NoError(t, s.UpdateStatus(ctx, j.ID, job.StatusCompleted, store.WithCheckpoint(20)))

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, 20, got.Checkpoint)
	require.False(t, got.CompletedAt.IsZero())
}

func TestUpdateStatusUnknown(t *testing.T) {
	s := New()
	err := s.UpdateStatus(context.Background(), uuid.New(), job.StatusRunning)
	require.True(t, job.IsNotFound(err))
}

func TestRejectedUpdateLeavesRecordIntact(t *testing.T) {
	ctx := context.Background()
	s := New()

	j := newJob(0)
	require.NoError(t, s.Create(ctx, j))
	require.NoError(t, s.UpdateStatus(ctx, j.ID, job.StatusRunning, store.WithCheckpoint(5)))

	// Legal transition but illegal checkpoint regression: nothing changes.
	err := s.UpdateStatus(ctx, j.ID, job.StatusPaused, store.WithCheckpoint(2))
	require.Error(t, err)

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusRunning, got.Status)
	require.Equal(t, 5, got.Checkpoint)
}

func TestListOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, b, c := newJob(0), newJob(0), newJob(0)
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))
	require.NoError(t, s.Create(ctx, c))
	require.NoError(t, s.UpdateStatus(ctx, b.ID, job.StatusRunning))

	pending, err := s.ListByStatus(ctx, job.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, a.ID, pending[0].ID, "list is oldest first")
	require.Equal(t, c.ID, pending[1].ID)

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	limited, err := s.List(ctx, store.Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, a.ID, limited[0].ID)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Create(ctx, newJob(0)), store.ErrClosed)
	_, err := s.List(ctx, store.Filter{})
	require.ErrorIs(t, err, store.ErrClosed)
}
