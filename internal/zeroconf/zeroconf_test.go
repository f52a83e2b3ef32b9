package zeroconf_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/micro-nova/defect-tally/internal/zeroconf"
)

func TestTXT(t *testing.T) {
	svc := zeroconf.New("tally-test", 8080, 12)
	txt := svc.TXT()
	for _, want := range []string{"app=defect-tally", "counters=12", "path=/api/counters"} {
		if !slices.Contains(txt, want) {
			t.Errorf("TXT() = %v, missing %q", txt, want)
		}
	}
}

// TestStart_Cancel starts the service and cancels the context within 1 second.
// It verifies that Start returns without blocking.
func TestStart_Cancel(t *testing.T) {
	svc := zeroconf.New("tally-test", 18080, 12)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	select {
	case err := <-done:
		// mDNS may be unavailable in the test environment; what matters is
		// that Start returned.
		if err != nil {
			t.Logf("Start returned error (may be expected in CI): %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return within 3 seconds after context cancellation")
	}
}
