package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
)

// The two named durable records. Each file holds one full collection.
const (
	pendingFile   = "pending_samples.json"
	committedFile = "committed_progress.json"
)

// FileSystemSnapshotter persists both collections as JSON files in a data
// directory. Writes go through a temp file + rename, so a torn write never
// clobbers the previous snapshot. This is the default backend.
type FileSystemSnapshotter struct {
	dataDir string
}

// NewFileSystemSnapshotter creates the data directory if needed.
func NewFileSystemSnapshotter(dataDir string) (*FileSystemSnapshotter, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileSystemSnapshotter{dataDir: dataDir}, nil
}

// Save writes both records in full. The pending record is written first; the
// store's lock totally orders Save calls, so the two files always describe
// states at most one mutation apart.
func (f *FileSystemSnapshotter) Save(ctx context.Context, snap *Snapshot) error {
	pending := snap.Pending
	if pending == nil {
		pending = []*v1.Sample{}
	}
	committed := snap.Committed
	if committed == nil {
		committed = []*v1.CommittedProgress{}
	}

	if err := f.writeRecord(pendingFile, pending); err != nil {
		return err
	}
	return f.writeRecord(committedFile, committed)
}

// Load reads both records. A missing file counts as an empty collection;
// both missing means no snapshot was ever saved. Any decode failure marks
// the whole snapshot unreadable.
func (f *FileSystemSnapshotter) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	pendingOK, err := readRecord(filepath.Join(f.dataDir, pendingFile), &snap.Pending)
	if err != nil {
		return nil, err
	}
	committedOK, err := readRecord(filepath.Join(f.dataDir, committedFile), &snap.Committed)
	if err != nil {
		return nil, err
	}

	if !pendingOK && !committedOK {
		return nil, ErrNotFound
	}
	return snap, nil
}

func (f *FileSystemSnapshotter) writeRecord(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(f.dataDir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(f.dataDir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// readRecord reports whether the file existed. Decode failures wrap
// ErrCorrupt so the store can fall back to empty state.
func readRecord(path string, out interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	return true, nil
}
