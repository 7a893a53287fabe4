package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
	"github.com/playhead-lab/playhead/internal/core/progress"
	"github.com/playhead-lab/playhead/internal/storage"
)

// Stats is a read-only diagnostic snapshot of the store's collections.
type Stats struct {
	PendingKeys    int `json:"pending_keys"`
	PendingSamples int `json:"pending_samples"`
	CommittedKeys  int `json:"committed_keys"`
}

// Store owns the pending-sample queue and the committed-progress table.
// Nothing else mutates either collection.
//
// All public operations serialize on one mutex. The mutex covers the merge's
// entire scan-and-clear pass, so a sample enqueued while a merge is running
// is either appended before the scan (and consumed by it) or after the clear
// (and picked up by the next pass). The persistence write also happens under
// the mutex, which totally orders durable writes.
type Store struct {
	mu          sync.Mutex
	queue       map[progress.Key][]*v1.Sample
	committed   map[progress.Key]*v1.CommittedProgress
	snapshotter storage.Snapshotter
	nowFn       func() time.Time
}

// Open constructs a store and restores whatever state the snapshotter holds.
// A missing snapshot and an empty one are treated identically. An unreadable
// snapshot is logged and replaced with empty collections; startup never fails
// on corrupt state.
func Open(ctx context.Context, snapshotter storage.Snapshotter) *Store {
	if snapshotter == nil {
		panic("progress: snapshotter must not be nil")
	}
	s := &Store{
		queue:       make(map[progress.Key][]*v1.Sample),
		committed:   make(map[progress.Key]*v1.CommittedProgress),
		snapshotter: snapshotter,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
	s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) {
	snap, err := s.snapshotter.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Info("No prior progress state, starting empty")
		} else {
			slog.Warn("Progress state unreadable, starting empty", "error", err)
		}
		return
	}

	for _, sample := range snap.Pending {
		key := progress.Key{UserID: sample.UserID, VideoID: sample.VideoID}
		s.queue[key] = append(s.queue[key], sample)
	}
	for _, rec := range snap.Committed {
		key := progress.Key{UserID: rec.UserID, VideoID: rec.VideoID}
		s.committed[key] = rec
	}

	slog.Info("Restored progress state",
		"pending_samples", len(snap.Pending),
		"committed_keys", len(snap.Committed),
	)
}

// Enqueue validates the input, constructs a sample with a server-assigned ID
// and creation timestamp, appends it to its key's bucket and persists the new
// state. Validation failures reject before any mutation.
//
// On persistence failure the sample has already been accepted in memory: the
// stored sample is returned alongside the error, and the caller must treat
// the write as "maybe durable, maybe not" rather than a clean failure.
func (s *Store) Enqueue(ctx context.Context, userID, videoID string, seconds decimal.Decimal) (*v1.Sample, error) {
	req := v1.SampleRequest{UserID: userID, VideoID: videoID, ProgressSeconds: seconds}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sample := &v1.Sample{
		ID:              uuid.NewString(),
		UserID:          userID,
		VideoID:         videoID,
		ProgressSeconds: seconds,
		CreatedAt:       s.nowFn(),
	}
	key := progress.Key{UserID: userID, VideoID: videoID}
	s.queue[key] = append(s.queue[key], sample)

	if err := s.persistLocked(ctx); err != nil {
		return sample, fmt.Errorf("persist after enqueue: %w", err)
	}
	return sample, nil
}

// Committed returns a copy of the committed record for a key. Absence is a
// normal result (ok=false), never an error. Pure read: the queue is never
// touched and nothing is persisted.
func (s *Store) Committed(userID, videoID string) (*v1.CommittedProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.committed[progress.Key{UserID: userID, VideoID: videoID}]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// RunMerge folds every pending bucket into the committed table, clears the
// consumed buckets and persists the result. Safe to run at any cadence and
// redundantly: a second pass with no intervening enqueue raises nothing.
//
// On persistence failure the in-memory state has already advanced; the
// result is returned alongside the error.
func (s *Store) RunMerge(ctx context.Context) (progress.MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raised, result := progress.Merge(s.queue, s.committed, s.nowFn())
	for key, rec := range raised {
		s.committed[key] = rec
	}

	// Consume every processed bucket, raised or not. The mutex is held for
	// the whole pass, so the queue holds exactly the scanned set.
	s.queue = make(map[progress.Key][]*v1.Sample)

	if err := s.persistLocked(ctx); err != nil {
		return result, fmt.Errorf("persist after merge: %w", err)
	}
	return result, nil
}

// Stats returns a diagnostic snapshot of both collections.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		PendingKeys:   len(s.queue),
		CommittedKeys: len(s.committed),
	}
	for _, bucket := range s.queue {
		st.PendingSamples += len(bucket)
	}
	return st
}

// Reset clears both collections and persists the empty state.
// Test/bootstrap hook only; not registered on any route.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = make(map[progress.Key][]*v1.Sample)
	s.committed = make(map[progress.Key]*v1.CommittedProgress)

	if err := s.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist after reset: %w", err)
	}
	return nil
}

// persistLocked serializes both collections in full and writes them through
// the snapshotter. Caller must hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	snap := &storage.Snapshot{
		Pending:   make([]*v1.Sample, 0),
		Committed: make([]*v1.CommittedProgress, 0, len(s.committed)),
	}
	for _, bucket := range s.queue {
		snap.Pending = append(snap.Pending, bucket...)
	}
	for _, rec := range s.committed {
		cp := *rec
		snap.Committed = append(snap.Committed, &cp)
	}
	return s.snapshotter.Save(ctx, snap)
}
