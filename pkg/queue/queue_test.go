package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrdering(t *testing.T) {
	q := New()
	ctx := context.Background()

	low, high, mid := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, q.Push(low, 1))
	require.NoError(t, q.Push(high, 9))
	require.NoError(t, q.Push(mid, 5))
	require.Equal(t, 3, q.Len())

	for _, want := range []uuid.UUID{high, mid, low} {
		got, ok := q.Pop(ctx)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	require.Equal(t, 0, q.Len())
}

func TestEqualPriorityIsFIFO(t *testing.T) {
	q := New()
	ctx := context.Background()

	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, q.Push(ids[i], 3))
	}
	for _, want := range ids {
		got, ok := q.Pop(ctx)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	id := uuid.New()

	done := make(chan uuid.UUID, 1)
	go func() {
		got, ok := q.Pop(context.Background())
		if ok {
			done <- got
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(id, 0))

	select {
	case got := <-done:
		require.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("Pop did not observe the push")
	}
}

func TestPopReturnsOnContextCancel(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not observe context cancellation")
	}
}

func TestCloseReleasesBlockedPoppers(t *testing.T) {
	q := New()

	var wg sync.WaitGroup
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Pop(context.Background())
			results <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(results)

	for ok := range results {
		require.False(t, ok)
	}
}

func TestClosedQueueDrainsThenSignals(t *testing.T) {
	q := New()
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, q.Push(id, 0))
	q.Close()

	require.ErrorIs(t, q.Push(uuid.New(), 0), ErrClosed)

	got, ok := q.Pop(ctx)
	require.True(t, ok, "items queued before close are still delivered")
	require.Equal(t, id, got)

	_, ok = q.Pop(ctx)
	require.False(t, ok, "closed and empty returns the closed indicator")
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q := New()
	ctx := context.Background()

	const producers, perProducer = 4, 50
	var pushWG sync.WaitGroup
	for p := 0; p < producers; p++ {
		pushWG.Add(1)
		go func(prio int) {
			defer pushWG.Done()
			for i := 0; i < perProducer; i++ {
				require.NoError(t, q.Push(uuid.New(), prio))
			}
		}(p)
	}

	seen := make(chan uuid.UUID, producers*perProducer)
	var popWG sync.WaitGroup
	for c := 0; c < 3; c++ {
		popWG.Add(1)
		go func() {
			defer popWG.Done()
			for {
				id, ok := q.Pop(ctx)
				if !ok {
					return
				}
				seen <- id
			}
		}()
	}

	pushWG.Wait()
	q.Close()
	popWG.Wait()
	close(seen)

	unique := map[uuid.UUID]bool{}
	for id := range seen {
		require.False(t, unique[id], "each id delivered exactly once")
		unique[id] = true
	}
	require.Len(t, unique, producers*perProducer)
}
