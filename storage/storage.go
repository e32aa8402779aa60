package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	"taskboard-api/domain"
)

const snapshotFile = "tasks.json"

// Store owns the canonical board snapshot: the reference sets plus the task
// collection, persisted as one versionless JSON document. All writes are
// serialized behind a single mutex because the backing representation is a
// whole-collection snapshot, not per-row.
type Store struct {
	path string

	mu   sync.Mutex
	snap *domain.Snapshot
}

// NewStore loads the snapshot from dir, materializing the default seed
// snapshot on first boot. A malformed snapshot is an error; the caller must
// treat it as fatal rather than guess at intent.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{path: filepath.Join(dir, snapshotFile)}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.snap = domain.DefaultSnapshot()
		if err := writeJSONAtomic(s.path, s.snap); err != nil {
			return nil, fmt.Errorf("seed snapshot: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap := &domain.Snapshot{}
	if err := sonic.ConfigStd.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("malformed snapshot %s: %w", s.path, err)
	}
	s.snap = snap
	return s, nil
}

// Snapshot returns a deep copy of the current board state.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Commit runs the mutator against a scratch copy of the most recently
// persisted snapshot, persists the result atomically and swaps it in. A
// mutator error aborts with nothing written; a persistence error likewise
// leaves the in-memory state untouched.
func (s *Store) Commit(mutate func(*domain.Snapshot) (*domain.Task, error)) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := s.snap.Clone()
	task, err := mutate(scratch)
	if err != nil {
		return nil, err
	}
	if err := writeJSONAtomic(s.path, scratch); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	s.snap = scratch
	return task, nil
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename so a
// crash mid-write can never leave a truncated document behind.
func writeJSONAtomic(path string, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
