package config

import (
	"sync"

	"github.com/micro-nova/defect-tally/internal/models"
)

// MemStore is an in-memory Store for tests that never writes to disk.
type MemStore struct {
	mu    sync.Mutex
	snap  models.Snapshot
	saves int
}

// NewMemStore returns a new in-memory store with nothing saved.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// EnsureExists stores n zero counts if nothing has been saved yet.
func (m *MemStore) EnsureExists(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		m.snap = make(models.Snapshot, n)
	}
	return nil
}

// Load returns a copy of the stored snapshot, or nil if none has been saved.
func (m *MemStore) Load() (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone(), nil
}

// Save stores a copy of snap in memory.
func (m *MemStore) Save(snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Path returns ":memory:" to indicate this is an in-memory store.
func (m *MemStore) Path() string { return ":memory:" }

// Ensure MemStore implements config.Store
var _ Store = (*MemStore)(nil)
