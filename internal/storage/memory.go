package storage

import (
	"context"
	"sync"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
)

// MemorySnapshotter keeps the last saved snapshot in memory.
// Useful for testing and development; state does not survive a restart.
type MemorySnapshotter struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewMemorySnapshotter creates an empty in-memory snapshotter.
func NewMemorySnapshotter() *MemorySnapshotter {
	return &MemorySnapshotter{}
}

func (m *MemorySnapshotter) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Store a copy so later store mutations can't reach the saved state.
	m.snap = copySnapshot(snap)
	return nil
}

func (m *MemorySnapshotter) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap == nil {
		return nil, ErrNotFound
	}
	return copySnapshot(m.snap), nil
}

func copySnapshot(snap *Snapshot) *Snapshot {
	out := &Snapshot{
		Pending:   make([]*v1.Sample, 0, len(snap.Pending)),
		Committed: make([]*v1.CommittedProgress, 0, len(snap.Committed)),
	}
	for _, s := range snap.Pending {
		cp := *s
		out.Pending = append(out.Pending, &cp)
	}
	for _, c := range snap.Committed {
		cp := *c
		out.Committed = append(out.Committed, &cp)
	}
	return out
}
