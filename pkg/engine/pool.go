package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rowforge/rowforge/pkg/queue"
)

// dispatchFunc hands a dequeued job id to its executor. The pool stays
// concurrency-pure: it knows how many goroutines pull from the queue,
// not what running a job means.
type dispatchFunc func(ctx context.Context, workerID int, id uuid.UUID)

// pool is the fixed-size set of worker goroutines pulling ready jobs
// from the shared queue.
type pool struct {
	size     int
	queue    *queue.Queue
	dispatch dispatchFunc
	log      zerolog.Logger

	wg sync.WaitGroup
}

func newPool(size int, q *queue.Queue, dispatch dispatchFunc, log zerolog.Logger) *pool {
	return &pool{size: size, queue: q, dispatch: dispatch, log: log}
}

// start launches the worker goroutines. Each loops Pop -> dispatch until
// the queue closes or ctx is cancelled.
func (p *pool) start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			p.log.Debug().Int("worker_id", workerID).Msg("Worker started")
			for {
				id, ok := p.queue.Pop(ctx)
				if !ok {
					p.log.Debug().Int("worker_id", workerID).Msg("Worker stopping")
					return
				}
				p.dispatch(ctx, workerID, id)
			}
		}(i)
	}
}

// wait blocks until every worker goroutine has exited.
func (p *pool) wait() {
	p.wg.Wait()
}
