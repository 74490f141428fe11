// Package memory provides an in-process Store used by tests and by
// ephemeral single-run deployments that do not need restart recovery.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/store"
)

func init() {
	store.Register("memory", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return New(), nil
	})
}

// Store keeps job records in a map guarded by a RWMutex. Jobs are cloned
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*job.Job
	seq    int64
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{jobs: make(map[uuid.UUID]*job.Job)}
}

func (s *Store) Create(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if _, dup := s.jobs[j.ID]; dup {
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, j.ID)
	}
	s.seq++
	j.Seq = s.seq
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, &job.NotFoundError{ID: id}
	}
	return j.Clone(), nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, next job.Status, opts ...store.UpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	j, ok := s.jobs[id]
	if !ok {
		return &job.NotFoundError{ID: id}
	}

	// Apply against a copy so a rejected transition leaves the record
	// untouched.
	cp := j.Clone()
	if err := store.ApplyTransition(cp, next, store.BuildUpdate(opts)); err != nil {
		return err
	}
	s.jobs[id] = cp
	return nil
}

func (s *Store) ListByStatus(ctx context.Context, status job.Status) ([]*job.Job, error) {
	return s.List(ctx, store.Filter{Status: status})
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
