package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/micro-nova/defect-tally/internal/models"
)

const countsFileName = "counts.csv"

// CSVStore keeps the snapshot as one CSV record in <dir>/counts.csv.
// Every write goes to a temp file that is synced and renamed over the target.
type CSVStore struct {
	mu   sync.Mutex
	path string
}

// NewCSVStore creates a store for the counts file in dataDir.
func NewCSVStore(dataDir string) *CSVStore {
	return &CSVStore{
		path: filepath.Join(dataDir, countsFileName),
	}
}

// Path returns the file path used by this store.
func (s *CSVStore) Path() string { return s.path }

// EnsureExists writes a row of n zeros if the counts file does not exist.
func (s *CSVStore) EnsureExists(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return &models.StorageUnavailableError{Path: s.path, Err: err}
	}
	if err := s.writeAtomic(make(models.Snapshot, n)); err != nil {
		return &models.StorageUnavailableError{Path: s.path, Err: err}
	}
	slog.Info("config: created counts file", "path", s.path, "counters", n)
	return nil
}

// Load reads the counts file. A missing or empty file yields a nil snapshot.
// Malformed fields fall back to 0 and are logged, not returned.
func (s *CSVStore) Load() (models.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &models.StorageUnavailableError{Path: s.path, Err: err}
	}

	snap, perr := DecodeSnapshot(data)
	if perr != nil {
		perr.Path = s.path
		if snap == nil {
			slog.Warn("config: unreadable counts file, using defaults", "path", s.path, "err", perr)
			return nil, nil
		}
		slog.Warn("config: malformed counts fields, using 0", "path", s.path, "err", perr)
	}
	return snap, nil
}

// Save replaces the counts file with snap.
func (s *CSVStore) Save(snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAtomic(snap); err != nil {
		return &models.WriteFailure{Path: s.path, Err: err}
	}
	return nil
}

func (s *CSVStore) writeAtomic(snap models.Snapshot) error {
	data := EncodeSnapshot(snap)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	// Write to temp file, sync, then rename (atomic on POSIX)
	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

var _ Store = (*CSVStore)(nil)
