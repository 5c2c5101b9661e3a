package runstore

import (
	"context"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// Store persists live runs between stepper transitions. The stepper is
// pure; the store is the boundary where a run survives the gap between
// two HTTP requests.
type Store interface {
	// SaveRun saves a run state, overwriting any previous state for the
	// same id.
	SaveRun(ctx context.Context, run structs.RunState) error

	// GetRun retrieves a run by id.
	GetRun(ctx context.Context, id string) (structs.RunState, error)

	// DeleteRun discards a run, e.g. on abandonment.
	DeleteRun(ctx context.Context, id string) error
}

// withContext is a standalone generic helper function.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return fn()
	}
}

// withContextError handles context cancellation for operations that only return an error.
func withContextError(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}
