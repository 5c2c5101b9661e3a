package runstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// MemoryStore is an in-memory implementation of the Store interface,
// the default for tests and single-instance deployments.
type MemoryStore struct {
	runs map[string]structs.RunState
	mu   sync.RWMutex
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]structs.RunState),
	}
}

// SaveRun saves a run to memory.
func (s *MemoryStore) SaveRun(ctx context.Context, run structs.RunState) error {
	return withContextError(ctx, func() error {
		if run.ID == "" {
			return errors.NewValidationError("id", "run id is required")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.runs[run.ID] = run
		return nil
	})
}

// GetRun retrieves a run from memory.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (structs.RunState, error) {
	return withContext(ctx, func() (structs.RunState, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		run, ok := s.runs[id]
		if !ok {
			return structs.RunState{}, fmt.Errorf("%w: id=%s", errors.ErrRunNotFound, id)
		}
		return run, nil
	})
}

// DeleteRun removes a run from memory. Deleting an unknown id is a
// no-op.
func (s *MemoryStore) DeleteRun(ctx context.Context, id string) error {
	return withContextError(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.runs, id)
		return nil
	})
}

// ClearTerminal removes finished and blocked runs.
func (s *MemoryStore) ClearTerminal(ctx context.Context) error {
	return withContextError(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, run := range s.runs {
			if run.Terminal {
				delete(s.runs, id)
			}
		}
		return nil
	})
}
