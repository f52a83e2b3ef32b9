// Package config handles the counts file, the daemon settings file and the
// data directory that holds them.
package config

import "github.com/micro-nova/defect-tally/internal/models"

// Store is the interface for persisting counter snapshots.
type Store interface {
	// EnsureExists creates the resource with n zero counts if it is absent.
	// It never overwrites existing data.
	EnsureExists(n int) error

	// Load returns the persisted snapshot, or nil if nothing has been saved.
	Load() (models.Snapshot, error)

	// Save fully replaces the persisted snapshot. A concurrent Load sees
	// either the old or the new content, never a mix.
	Save(snap models.Snapshot) error

	// Path returns the file path used by this store.
	Path() string
}
