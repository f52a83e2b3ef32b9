// Package counters holds the in-memory defect counter set. Every read and
// write of the counts goes through one RWMutex; nothing in this package does
// I/O, so callers can persist a Snapshot without holding the lock.
package counters

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/micro-nova/defect-tally/internal/models"
)

// Store is a fixed-size ordered set of named counters.
type Store struct {
	mu     sync.RWMutex
	names  []string
	counts []int
}

// New creates a store with one zeroed counter per name. Names must be
// non-empty and unique; their order is the on-disk column order.
func New(names []string) (*Store, error) {
	if len(names) == 0 {
		return nil, errors.New("counters: at least one counter name is required")
	}
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return nil, fmt.Errorf("counters: name at index %d is empty", i)
		}
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("counters: duplicate name %q", n)
		}
		seen[n] = struct{}{}
	}
	return &Store{
		names:  slices.Clone(names),
		counts: make([]int, len(names)),
	}, nil
}

// Len returns the number of counters. It never changes.
func (s *Store) Len() int { return len(s.names) }

// Names returns the counter names in order.
func (s *Store) Names() []string { return slices.Clone(s.names) }

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.counts) {
		return &models.OutOfRangeError{Index: index, Len: len(s.counts)}
	}
	return nil
}

// Increment adds one to the counter at index and returns the new count.
func (s *Store) Increment(index int) (int, error) {
	if err := s.checkIndex(index); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[index]++
	return s.counts[index], nil
}

// ResetAll sets every counter to zero. Any confirmation belongs to the caller.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counts)
}

// ResetOne sets the counter at index to zero.
func (s *Store) ResetOne(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[index] = 0
	return nil
}

// Snapshot returns a copy of all counts taken under the read lock.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(models.Snapshot(s.counts))
}

// Counters returns (name, count) pairs from one consistent instant.
func (s *Store) Counters() []models.Counter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Counter, len(s.counts))
	for i, c := range s.counts {
		out[i] = models.Counter{Name: s.names[i], Count: c}
	}
	return out
}

// LoadFrom replaces all counts with snap, matched by position. A nil snap
// means there was no persisted state and leaves every count at zero. Missing
// trailing values become zero, extra values are ignored and negative values
// are clamped to zero.
//
// LoadFrom is meant for initialization, before concurrent use begins.
func (s *Store) LoadFrom(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counts)
	if snap == nil {
		return
	}
	if len(snap) != len(s.counts) {
		slog.Debug("counters: persisted length differs from counter set",
			"persisted", len(snap), "counters", len(s.counts))
	}
	for i := range s.counts {
		if i < len(snap) && snap[i] > 0 {
			s.counts[i] = snap[i]
		}
	}
}
