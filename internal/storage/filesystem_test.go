package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
)

func testSnapshot() *Snapshot {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	return &Snapshot{
		Pending: []*v1.Sample{
			{
				ID:              "sample-1",
				UserID:          "user-1",
				VideoID:         "video-1",
				ProgressSeconds: decimal.RequireFromString("12.5"),
				CreatedAt:       now,
			},
		},
		Committed: []*v1.CommittedProgress{
			{
				UserID:          "user-1",
				VideoID:         "video-2",
				FurthestSeconds: decimal.NewFromInt(300),
				UpdatedAt:       now,
			},
		},
	}
}

func TestFileSystemSnapshotter_RoundTrip(t *testing.T) {
	fs, err := NewFileSystemSnapshotter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	in := testSnapshot()
	require.NoError(t, fs.Save(ctx, in))

	out, err := fs.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out.Pending, 1)
	require.Len(t, out.Committed, 1)
	require.Equal(t, "sample-1", out.Pending[0].ID)
	require.True(t, out.Pending[0].ProgressSeconds.Equal(decimal.RequireFromString("12.5")))
	require.True(t, out.Committed[0].FurthestSeconds.Equal(decimal.NewFromInt(300)))
	require.Equal(t, in.Committed[0].UpdatedAt, out.Committed[0].UpdatedAt)
}

func TestFileSystemSnapshotter_LoadWithoutSnapshot(t *testing.T) {
	fs, err := NewFileSystemSnapshotter(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileSystemSnapshotter_SaveReplacesPreviousState(t *testing.T) {
	fs, err := NewFileSystemSnapshotter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, testSnapshot()))
	require.NoError(t, fs.Save(ctx, &Snapshot{})) // full replacement, not a merge

	out, err := fs.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, out.Pending)
	require.Empty(t, out.Committed)
}

func TestFileSystemSnapshotter_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileSystemSnapshotter(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, testSnapshot()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "committed_progress.json"), []byte("{not json"), 0o644))

	_, err = fs.Load(ctx)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFileSystemSnapshotter_MissingFileIsEmptyCollection(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileSystemSnapshotter(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, testSnapshot()))
	require.NoError(t, os.Remove(filepath.Join(dir, "pending_samples.json")))

	out, err := fs.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, out.Pending)
	require.Len(t, out.Committed, 1)
}

func TestFileSystemSnapshotter_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileSystemSnapshotter(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), testSnapshot()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestMemorySnapshotter_RoundTripAndIsolation(t *testing.T) {
	m := NewMemorySnapshotter()
	ctx := context.Background()

	_, err := m.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	in := testSnapshot()
	require.NoError(t, m.Save(ctx, in))

	// Mutating the saved-in snapshot must not reach the stored copy.
	in.Committed[0].FurthestSeconds = decimal.NewFromInt(999)

	out, err := m.Load(ctx)
	require.NoError(t, err)
	require.True(t, out.Committed[0].FurthestSeconds.Equal(decimal.NewFromInt(300)))
}
