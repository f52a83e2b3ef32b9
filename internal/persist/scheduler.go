// Package persist moves counter snapshots between the counter store and
// stable storage, either after every mutation or from a background ticker,
// and always once more on shutdown.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/micro-nova/defect-tally/internal/config"
	"github.com/micro-nova/defect-tally/internal/models"
)

// SnapshotSource is the read side of the counter store.
type SnapshotSource interface {
	Snapshot() models.Snapshot
}

// Options configures a Scheduler.
type Options struct {
	Policy   models.Policy
	Interval time.Duration // periodic policy only; defaults to config.DefaultInterval
}

// Scheduler owns every write to the counts file.
type Scheduler struct {
	store  config.Store
	source SnapshotSource
	opts   Options

	// saveMu keeps snapshot+write pairs in order so an older snapshot can
	// never land on disk after a newer one.
	saveMu sync.Mutex
	dirty  atomic.Bool
	saves  atomic.Int64

	// life is held shared by foreground saves and exclusively by Stop.
	life    sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	warnEvery rate.Sometimes
}

// New creates a scheduler that reads from source and writes to store.
func New(store config.Store, source SnapshotSource, opts Options) *Scheduler {
	if opts.Policy == "" {
		opts.Policy = models.PolicyPeriodic
	}
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultInterval
	}
	return &Scheduler{
		store:     store,
		source:    source,
		opts:      opts,
		warnEvery: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// Policy returns the configured save policy.
func (s *Scheduler) Policy() models.Policy { return s.opts.Policy }

// Saves returns the number of successful writes so far.
func (s *Scheduler) Saves() int64 { return s.saves.Load() }

// Dirty reports whether memory is ahead of the last successful write.
func (s *Scheduler) Dirty() bool { return s.dirty.Load() }

// EnsureStorageExists creates the counts file with n zeros if it is missing.
// Failure is logged; the daemon keeps running on in-memory defaults.
func (s *Scheduler) EnsureStorageExists(n int) {
	if err := s.store.EnsureExists(n); err != nil {
		slog.Warn("persist: cannot create counts file, continuing in memory",
			"path", s.store.Path(), "err", err)
	}
}

// Load returns the persisted snapshot, or nil when there is none or it
// cannot be read.
func (s *Scheduler) Load() models.Snapshot {
	snap, err := s.store.Load()
	if err != nil {
		slog.Warn("persist: cannot load counts, starting from zero",
			"path", s.store.Path(), "err", err)
		return nil
	}
	if snap == nil {
		slog.Info("persist: no saved counts, starting from zero", "path", s.store.Path())
	}
	return snap
}

// Save writes snap. On failure the scheduler is marked dirty so the next
// tick or the final flush tries again.
func (s *Scheduler) Save(snap models.Snapshot) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.write(snap)
}

// write must be called with saveMu held.
func (s *Scheduler) write(snap models.Snapshot) error {
	if err := s.store.Save(snap); err != nil {
		s.dirty.Store(true)
		s.warnEvery.Do(func() {
			slog.Warn("persist: save failed, counts kept in memory",
				"path", s.store.Path(), "err", err)
		})
		return err
	}
	s.saves.Add(1)
	slog.Debug("persist: saved counts", "path", s.store.Path())
	return nil
}

// flush snapshots the source and writes it. The store lock is only held for
// the copy; the write happens after it is released.
func (s *Scheduler) flush() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.dirty.Store(false)
	return s.write(s.source.Snapshot())
}

// Flush saves the current counts now. It does nothing once Stop has begun.
func (s *Scheduler) Flush() error {
	s.life.RLock()
	defer s.life.RUnlock()
	if s.stopped {
		return nil
	}
	return s.flush()
}

// Notify records that the counts changed. Under the immediate policy it saves
// before returning; under the periodic policy the next tick writes it.
func (s *Scheduler) Notify() {
	if s.opts.Policy == models.PolicyImmediate {
		_ = s.Flush()
		return
	}
	s.dirty.Store(true)
}

// Start launches the background save loop for the periodic policy. It is a
// no-op for the immediate policy, after Stop, or if already running.
func (s *Scheduler) Start(ctx context.Context) {
	if s.opts.Policy != models.PolicyPeriodic {
		return
	}
	s.life.Lock()
	defer s.life.Unlock()
	if s.stopped || s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	slog.Info("persist: periodic save started", "interval", s.opts.Interval)
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Save on every tick, not only when dirty, so a counts file that
			// was edited or truncated behind our back is rewritten.
			_ = s.flush()
		}
	}
}

// Stop cancels the background loop, waits for it to exit, then performs the
// final save. No save starts after Stop returns. Calling Stop again is a
// no-op that returns nil.
func (s *Scheduler) Stop() error {
	s.life.Lock()
	if s.stopped {
		s.life.Unlock()
		return nil
	}
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.life.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if err := s.flush(); err != nil {
		slog.Error("persist: final save failed", "path", s.store.Path(), "err", err)
		return err
	}
	slog.Info("persist: final save complete", "path", s.store.Path(), "saves", s.Saves())
	return nil
}
