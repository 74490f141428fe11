// Package queue provides the thread-safe FIFO-with-priority queue of job
// ids awaiting a free worker. It is a pure data structure: scheduling
// policy lives here, concurrency of execution lives in the worker pool.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("queue is closed")

type item struct {
	id       uuid.UUID
	priority int
	seq      uint64 // enqueue order, breaks priority ties FIFO
}

type items []item

func (h items) Len() int { return len(h) }

func (h items) Less(a, b int) bool {
	if h[a].priority != h[b].priority {
		return h[a].priority > h[b].priority
	}
	return h[a].seq < h[b].seq
}

func (h items) Swap(a, b int) { h[a], h[b] = h[b], h[a] }

func (h *items) Push(x any) { *h = append(*h, x.(item)) }

func (h *items) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue orders job ids by priority (higher first), FIFO within a
// priority. Safe for concurrent multi-producer/multi-consumer use.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   items
	seq    uint64
	closed bool
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a job id. Re-enqueues after pause/resume go through the
// same path as fresh submissions, preserving the job's priority.
func (q *Queue) Push(id uuid.UUID, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.seq++
	heap.Push(&q.heap, item{id: id, priority: priority, seq: q.seq})
	q.cond.Signal()
	return nil
}

// Pop blocks until an item is available, the queue is closed and
// drained, or ctx is done. ok is false only when no item was returned,
// letting workers exit cleanly during shutdown instead of blocking
// forever.
func (q *Queue) Pop(ctx context.Context) (id uuid.UUID, ok bool) {
	// Wake any waiter when the caller's context ends.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if ctx.Err() != nil {
			return uuid.Nil, false
		}
		if q.heap.Len() > 0 {
			it := heap.Pop(&q.heap).(item)
			return it.id, true
		}
		if q.closed {
			return uuid.Nil, false
		}
		q.cond.Wait()
	}
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Close rejects further pushes and releases blocked Pop callers once the
// queue drains. Closing twice is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
