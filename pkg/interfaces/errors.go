package interfaces

import "errors"

// ErrSnapshotNotFound is returned by SnapshotStore.Load when nothing has
// been persisted under the requested key.
var ErrSnapshotNotFound = errors.New("snapshot not found")
