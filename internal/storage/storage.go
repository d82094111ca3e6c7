package storage

import (
	"context"

	"inboxpilot/internal/models"
)

// DraftStore persists per-thread draft conversation state. The core
// only ever reads, replaces, or clears whole states keyed by thread id;
// the storage medium behind the port is interchangeable.
type DraftStore interface {
	// Get returns the state for a thread, or nil when none exists.
	Get(ctx context.Context, threadID string) (*models.DraftState, error)

	// Replace stores the state, overwriting any previous one.
	Replace(ctx context.Context, state *models.DraftState) error

	// Clear removes a thread's state. Clearing an absent state is a
	// no-op.
	Clear(ctx context.Context, threadID string) error

	Close() error
}
