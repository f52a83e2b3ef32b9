// Package controller is the surface a UI talks to. It wires the counter
// store to the persistence scheduler and the event bus so every mutation is
// saved (per policy) and broadcast.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/micro-nova/defect-tally/internal/counters"
	"github.com/micro-nova/defect-tally/internal/events"
	"github.com/micro-nova/defect-tally/internal/models"
	"github.com/micro-nova/defect-tally/internal/persist"
)

var (
	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("controller: already initialized")
	// ErrNotInitialized is returned by mutations before Initialize.
	ErrNotInitialized = errors.New("controller: not initialized")
	// ErrShutDown is returned by mutations once Shutdown has been called.
	ErrShutDown = errors.New("controller: shut down")
)

// Controller owns the lifecycle of the counter set.
type Controller struct {
	store *counters.Store
	sched *persist.Scheduler
	bus   *events.Bus

	// mu orders mutation+publish pairs so subscribers see updates in order.
	mu          sync.Mutex
	initialized bool
	shutdown    bool
}

// New creates a Controller. bus may be nil when nothing subscribes.
func New(store *counters.Store, sched *persist.Scheduler, bus *events.Bus) *Controller {
	return &Controller{
		store: store,
		sched: sched,
		bus:   bus,
	}
}

// Initialize creates the counts file if needed, loads it into the store and
// starts background saving. It must be called once before any mutation.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return ErrAlreadyInitialized
	}

	c.sched.EnsureStorageExists(c.store.Len())
	c.store.LoadFrom(c.sched.Load())
	c.sched.Start(ctx)
	c.initialized = true

	slog.Info("controller: counters loaded",
		"counters", c.store.Len(),
		"policy", c.sched.Policy(),
	)
	return nil
}

// Increment adds one to the counter at index and returns its new count.
func (c *Controller) Increment(index int) (int, error) {
	var n int
	err := c.apply(func() error {
		var err error
		n, err = c.store.Increment(index)
		return err
	})
	if err != nil {
		return 0, err
	}
	slog.Debug("controller: incremented", "index", index, "count", n)
	return n, nil
}

// ResetAll zeroes every counter. The caller is responsible for confirmation.
func (c *Controller) ResetAll() error {
	err := c.apply(func() error {
		c.store.ResetAll()
		return nil
	})
	if err == nil {
		slog.Info("controller: all counters reset")
	}
	return err
}

// ResetOne zeroes a single counter.
func (c *Controller) ResetOne(index int) error {
	err := c.apply(func() error { return c.store.ResetOne(index) })
	if err == nil {
		slog.Info("controller: counter reset", "index", index)
	}
	return err
}

// CurrentCounts returns the (name, count) pairs for rendering.
func (c *Controller) CurrentCounts() []models.Counter {
	return c.store.Counters()
}

// Shutdown stops background saving and writes the final snapshot. Mutations
// that started before it are in that snapshot; later ones get ErrShutDown.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
	return c.sched.Stop()
}

// apply runs fn, publishes the result and hands it to the scheduler. The
// scheduler is notified after mu is released so a slow immediate save does
// not hold up other mutations.
func (c *Controller) apply(fn func() error) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrShutDown
	}
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.bus != nil {
		c.bus.Publish(c.store.Counters())
	}
	c.mu.Unlock()

	c.sched.Notify()
	return nil
}
