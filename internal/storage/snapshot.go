package storage

import (
	"context"
	"errors"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
)

// ErrNotFound is returned by Load when no snapshot has ever been saved.
// Callers treat it the same as an empty snapshot.
var ErrNotFound = errors.New("no snapshot present")

// ErrCorrupt is returned by Load when a snapshot exists but cannot be decoded.
var ErrCorrupt = errors.New("snapshot unreadable")

// Snapshot is the full durable state of the progress store: every pending
// sample and every committed record. Samples keep user_id and video_id as
// separate fields and the composite key is rebuilt on load, so identifiers
// containing any separator character round-trip safely.
type Snapshot struct {
	Pending   []*v1.Sample            `json:"pending"`
	Committed []*v1.CommittedProgress `json:"committed"`
}

// Snapshotter persists and restores the full store state as two named
// durable records, one per collection.
//
// Contract: Save replaces both records in full; a crash mid-save must leave
// the previously saved snapshot readable. The store serializes calls, so
// implementations never see concurrent saves.
type Snapshotter interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}
