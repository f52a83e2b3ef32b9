//go:build !unix

package config

import (
	"errors"
	"os"
)

// ErrLocked is returned when another process already owns the data directory.
var ErrLocked = errors.New("data directory is locked by another process")

// DirLock is a no-op on platforms without flock.
type DirLock struct{}

// LockDir only ensures dir exists.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DirLock{}, nil
}

// Unlock is a no-op.
func (l *DirLock) Unlock() error { return nil }
