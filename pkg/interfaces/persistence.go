// Package interfaces defines the contracts between the session store and
// its supporting components, enabling mock-based testing without cycles.
package interfaces

import (
	"context"

	"pollboard/pkg/types"
)

// SnapshotStore is the durable slot: a key-value holder for serialized
// session snapshots. The store writes through after every mutation and
// reads exactly once, at construction.
type SnapshotStore interface {
	// Save serializes the snapshot under the key, replacing any previous
	// value. Timestamps must round-trip through Load unchanged.
	Save(ctx context.Context, key string, snapshot *types.Snapshot) error

	// Load returns the snapshot stored under the key, or
	// ErrSnapshotNotFound when the slot is empty.
	Load(ctx context.Context, key string) (*types.Snapshot, error)

	// Clear erases the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context, key string) error

	// HealthCheck validates that the slot is usable.
	HealthCheck(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
