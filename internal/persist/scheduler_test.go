package persist_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/micro-nova/defect-tally/internal/config"
	"github.com/micro-nova/defect-tally/internal/counters"
	"github.com/micro-nova/defect-tally/internal/models"
	"github.com/micro-nova/defect-tally/internal/persist"
)

// flakyStore wraps a MemStore and fails Save while failing is set.
type flakyStore struct {
	*config.MemStore
	mu      sync.Mutex
	failing bool
	inSave  int
	maxSave int
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyStore) Save(snap models.Snapshot) error {
	f.mu.Lock()
	f.inSave++
	if f.inSave > f.maxSave {
		f.maxSave = f.inSave
	}
	failing := f.failing
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inSave--
		f.mu.Unlock()
	}()
	if failing {
		return &models.WriteFailure{Path: f.Path(), Err: errDiskFull}
	}
	time.Sleep(100 * time.Microsecond)
	return f.MemStore.Save(snap)
}

func newCounters(t *testing.T) *counters.Store {
	t.Helper()
	s, err := counters.New(models.DefaultNames())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func loaded(t *testing.T, st config.Store) models.Snapshot {
	t.Helper()
	snap, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return snap
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDefaults(t *testing.T) {
	s := persist.New(config.NewMemStore(), newCounters(t), persist.Options{})
	if s.Policy() != models.PolicyPeriodic {
		t.Errorf("default policy = %q, want periodic", s.Policy())
	}
}

func TestImmediatePolicySavesOnEveryNotify(t *testing.T) {
	mem := config.NewMemStore()
	ctr := newCounters(t)
	s := persist.New(mem, ctr, persist.Options{Policy: models.PolicyImmediate})
	s.Start(context.Background()) // no-op for immediate

	for i := 1; i <= 3; i++ {
		_, _ = ctr.Increment(0)
		s.Notify()
		if got := loaded(t, mem); got[0] != i {
			t.Fatalf("after %d increments persisted[0] = %d", i, got[0])
		}
	}
	if s.Saves() != 3 {
		t.Errorf("Saves() = %d, want 3", s.Saves())
	}
}

func TestPeriodicPolicySavesOnTick(t *testing.T) {
	mem := config.NewMemStore()
	ctr := newCounters(t)
	s := persist.New(mem, ctr, persist.Options{Policy: models.PolicyPeriodic, Interval: 10 * time.Millisecond})

	_, _ = ctr.Increment(4)
	s.Notify()
	if mem.Saves() != 0 {
		t.Fatalf("periodic Notify saved synchronously")
	}

	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return mem.Saves() >= 1 })
	if got := loaded(t, mem); got[4] != 1 {
		t.Errorf("persisted[4] = %d, want 1", got[4])
	}
	if s.Dirty() {
		t.Errorf("scheduler still dirty after a successful tick")
	}
}

func TestPeriodicPolicySavesEveryTick(t *testing.T) {
	mem := config.NewMemStore()
	s := persist.New(mem, newCounters(t), persist.Options{Interval: 5 * time.Millisecond})
	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return mem.Saves() >= 3 })
	if got := loaded(t, mem); !got.Equal(make(models.Snapshot, 12)) {
		t.Errorf("persisted = %v, want 12 zeros", got)
	}
}

func TestPeriodicPolicyRepairsEditedFile(t *testing.T) {
	store := config.NewCSVStore(t.TempDir())
	ctr := newCounters(t)
	_, _ = ctr.Increment(6)
	s := persist.New(store, ctr, persist.Options{Interval: 5 * time.Millisecond})
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	// Someone truncates the file with nothing changed in memory.
	if err := os.WriteFile(store.Path(), []byte("0,x"), 0644); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool {
		snap, err := store.Load()
		return err == nil && len(snap) == 12 && snap[6] == 1
	})
}

func TestStopPerformsFinalSave(t *testing.T) {
	mem := config.NewMemStore()
	ctr := newCounters(t)
	s := persist.New(mem, ctr, persist.Options{Interval: time.Hour})
	s.Start(context.Background())

	for i := 0; i < 7; i++ {
		_, _ = ctr.Increment(11)
		s.Notify()
	}
	if mem.Saves() != 0 {
		t.Fatalf("saved before the first tick")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := loaded(t, mem); got[11] != 7 {
		t.Errorf("persisted[11] = %d after Stop, want 7", got[11])
	}
}

func TestNoSavesAfterStop(t *testing.T) {
	for _, policy := range []models.Policy{models.PolicyImmediate, models.PolicyPeriodic} {
		t.Run(string(policy), func(t *testing.T) {
			mem := config.NewMemStore()
			ctr := newCounters(t)
			s := persist.New(mem, ctr, persist.Options{Policy: policy, Interval: time.Millisecond})
			s.Start(context.Background())

			if err := s.Stop(); err != nil {
				t.Fatal(err)
			}
			after := mem.Saves()

			_, _ = ctr.Increment(0)
			s.Notify()
			_ = s.Flush()
			s.Start(context.Background())
			time.Sleep(20 * time.Millisecond)

			if mem.Saves() != after {
				t.Errorf("saves went from %d to %d after Stop", after, mem.Saves())
			}
			if err := s.Stop(); err != nil {
				t.Errorf("second Stop: %v", err)
			}
		})
	}
}

func TestStopWaitsForInFlightImmediateSave(t *testing.T) {
	flaky := &flakyStore{MemStore: config.NewMemStore()}
	ctr := newCounters(t)
	s := persist.New(flaky, ctr, persist.Options{Policy: models.PolicyImmediate})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, _ = ctr.Increment(index)
				s.Notify()
			}
		}(w)
	}
	wg.Wait()
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	flaky.mu.Lock()
	maxSave := flaky.maxSave
	flaky.mu.Unlock()
	if maxSave != 1 {
		t.Errorf("observed %d concurrent saves, want 1", maxSave)
	}
	if got := loaded(t, flaky); !got.Equal(ctr.Snapshot()) {
		t.Errorf("persisted %v, in memory %v", got, ctr.Snapshot())
	}
}

func TestFailedSaveStaysDirtyAndRetries(t *testing.T) {
	flaky := &flakyStore{MemStore: config.NewMemStore(), failing: true}
	ctr := newCounters(t)
	s := persist.New(flaky, ctr, persist.Options{Interval: 5 * time.Millisecond})
	s.Start(context.Background())
	defer s.Stop()

	_, _ = ctr.Increment(2)
	s.Notify()
	time.Sleep(30 * time.Millisecond)
	if !s.Dirty() {
		t.Fatal("scheduler not dirty while saves fail")
	}
	if flaky.Saves() != 0 {
		t.Fatal("failing store recorded a save")
	}

	flaky.setFailing(false)
	waitFor(t, func() bool { return flaky.Saves() >= 1 })
	if got := loaded(t, flaky); got[2] != 1 {
		t.Errorf("persisted[2] = %d after recovery, want 1", got[2])
	}
}

func TestSaveErrorIsReturnedButContained(t *testing.T) {
	flaky := &flakyStore{MemStore: config.NewMemStore(), failing: true}
	s := persist.New(flaky, newCounters(t), persist.Options{Policy: models.PolicyImmediate})

	err := s.Save(models.Snapshot{1})
	if !errors.Is(err, models.ErrWriteFailure) || !errors.Is(err, errDiskFull) {
		t.Errorf("Save err = %v, want WriteFailure wrapping disk full", err)
	}
	s.Notify() // must not panic or block

	if err := s.Stop(); !errors.Is(err, models.ErrWriteFailure) {
		t.Errorf("Stop err = %v, want ErrWriteFailure", err)
	}
}

func TestLoadAndEnsureStorageExists(t *testing.T) {
	store := config.NewCSVStore(t.TempDir())
	s := persist.New(store, newCounters(t), persist.Options{})

	if snap := s.Load(); snap != nil {
		t.Errorf("Load() before EnsureStorageExists = %v, want nil", snap)
	}
	s.EnsureStorageExists(12)
	if snap := s.Load(); !snap.Equal(make(models.Snapshot, 12)) {
		t.Errorf("Load() = %v, want 12 zeros", snap)
	}
}

func TestRoundTripThroughCSVStore(t *testing.T) {
	store := config.NewCSVStore(t.TempDir())
	s := persist.New(store, newCounters(t), persist.Options{})
	want := models.Snapshot{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 0, 42}
	for i := 0; i < 2; i++ {
		if err := s.Save(want); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Load(); !got.Equal(want) {
		t.Errorf("Load(Save(s)) = %v, want %v", got, want)
	}
}
