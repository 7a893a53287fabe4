package progress

import (
	"time"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
)

// Merge folds pending sample buckets into the committed table and returns the
// records to create or raise. For each key with at least one sample the
// candidate is the maximum progress across its bucket; the committed value is
// raised iff the candidate exceeds it (or no record exists yet).
//
// Max-then-raise makes the pass idempotent and order-independent: duplicated
// or out-of-order samples simply fail to raise the maximum and are harmlessly
// consumed. That is the deliberate mitigation for at-least-once, unordered
// sample delivery; no explicit deduplication step exists or should be added.
//
// Merge is pure: neither input map is mutated. The caller applies the raised
// records and clears the consumed buckets.
func Merge(
	queue map[Key][]*v1.Sample,
	committed map[Key]*v1.CommittedProgress,
	now time.Time,
) (map[Key]*v1.CommittedProgress, MergeResult) {
	raised := make(map[Key]*v1.CommittedProgress)
	var result MergeResult

	for key, bucket := range queue {
		if len(bucket) == 0 {
			continue
		}
		result.ScannedKeys++

		candidate := bucket[0].ProgressSeconds
		for _, s := range bucket[1:] {
			if s.ProgressSeconds.GreaterThan(candidate) {
				candidate = s.ProgressSeconds
			}
		}

		if current, ok := committed[key]; ok && !candidate.GreaterThan(current.FurthestSeconds) {
			// Lower or equal candidate: committed value stands, bucket is
			// still consumed by the caller.
			continue
		}

		raised[key] = &v1.CommittedProgress{
			UserID:          key.UserID,
			VideoID:         key.VideoID,
			FurthestSeconds: candidate,
			UpdatedAt:       now,
		}
		result.RaisedKeys++
	}

	return raised, result
}
