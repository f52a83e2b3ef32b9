// Package zeroconf advertises the counter API as an mDNS/DNS-SD service so
// shop-floor terminals can find it on the LAN without a fixed address.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_http._tcp"

// Service manages mDNS service registration.
type Service struct {
	name     string // instance name, usually the hostname
	port     int
	counters int
}

// New creates a Service that will advertise the API on port.
func New(name string, port, counters int) *Service {
	return &Service{
		name:     name,
		port:     port,
		counters: counters,
	}
}

// TXT returns the TXT records published with the service.
func (s *Service) TXT() []string {
	return []string{
		"app=defect-tally",
		"path=/api/counters",
		"counters=" + strconv.Itoa(s.counters),
	}
}

// Start registers the mDNS service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	txt := s.TXT()
	server, err := zeroconf.Register(
		s.name,      // instance name
		serviceType, // service type
		"local.",    // domain
		s.port,      // port
		txt,         // TXT records
		nil,         // ifaces; nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"port", s.port,
		"txt", txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}
