// Command defect-tally is the defect counter daemon. It keeps a fixed set of
// named counters, persists them to counts.csv in the data directory and
// serves them to a UI over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/micro-nova/defect-tally/internal/api"
	"github.com/micro-nova/defect-tally/internal/config"
	"github.com/micro-nova/defect-tally/internal/controller"
	"github.com/micro-nova/defect-tally/internal/counters"
	"github.com/micro-nova/defect-tally/internal/events"
	"github.com/micro-nova/defect-tally/internal/models"
	"github.com/micro-nova/defect-tally/internal/persist"
	"github.com/micro-nova/defect-tally/internal/zeroconf"
)

func main() {
	var (
		dataDir  = flag.String("data-dir", "", "directory holding counts.csv (default: ~/.local/share/defect-tally)")
		cfgPath  = flag.String("config", "", "YAML settings file (default: <data-dir>/defect-tally.yaml)")
		addr     = flag.String("addr", "", "HTTP listen address (overrides settings)")
		policy   = flag.String("policy", "", "save policy: immediate or periodic (overrides settings)")
		interval = flag.Duration("interval", 0, "periodic save interval (overrides settings)")
		mdns     = flag.Bool("mdns", false, "advertise the API over mDNS")
		logFile  = flag.String("log-file", "", "write logs to this file with rotation instead of stderr")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Resolve data directory
	if *dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot determine home directory:", err)
			os.Exit(1)
		}
		*dataDir = filepath.Join(home, ".local", "share", "defect-tally")
	}
	if *cfgPath == "" {
		*cfgPath = filepath.Join(*dataDir, "defect-tally.yaml")
	}

	settings, err := config.LoadSettings(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "settings:", err)
		os.Exit(1)
	}
	// Flags override the settings file.
	if *addr != "" {
		settings.Addr = *addr
	}
	if *policy != "" {
		settings.Policy = models.Policy(*policy)
	}
	if *interval > 0 {
		settings.Interval = *interval
	}
	if *mdns {
		settings.MDNS = true
	}
	if *logFile != "" {
		settings.LogFile = *logFile
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "settings:", err)
		os.Exit(1)
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logOut := newLogWriter(settings.LogFile)
	defer logOut.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel})))

	lock, err := config.LockDir(*dataDir)
	if err != nil {
		slog.Error("cannot lock data directory", "path", *dataDir, "err", err)
		os.Exit(1)
	}
	defer lock.Unlock()

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctr, err := counters.New(settings.Names)
	if err != nil {
		slog.Error("invalid counter names", "err", err)
		os.Exit(1)
	}
	store := config.NewCSVStore(*dataDir)
	sched := persist.New(store, ctr, persist.Options{
		Policy:   settings.Policy,
		Interval: settings.Interval,
	})
	bus := events.NewBus()
	ctrl := controller.New(ctr, sched, bus)
	if err := ctrl.Initialize(ctx); err != nil {
		slog.Error("controller initialization failed", "err", err)
		os.Exit(1)
	}

	// Rewrite the counts file if someone deletes it while we run.
	watcher, err := config.WatchRemoval(store.Path(), func() {
		if err := sched.Flush(); err == nil {
			slog.Info("restored counts file", "path", store.Path())
		}
	})
	if err != nil {
		slog.Warn("cannot watch counts file", "err", err)
	}

	if settings.MDNS {
		host, _ := os.Hostname()
		zc := zeroconf.New(host, listenPort(settings.Addr), ctr.Len())
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	srv := newServer(ctx, settings.Addr, api.NewRouter(ctrl, bus))

	go func() {
		slog.Info("defect-tally listening",
			"addr", settings.Addr,
			"data", *dataDir,
			"counters", ctr.Len(),
			"policy", settings.Policy,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	// Stop taking requests before the final save. Open SSE streams have
	// already ended with ctx.
	bus.Close()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	if err := ctrl.Shutdown(); err != nil {
		slog.Warn("final save failed", "err", err)
	}

	slog.Info("shutdown complete")
}

// newServer builds the HTTP server. Request contexts derive from ctx, so
// long-lived SSE handlers return as soon as ctx is cancelled and Shutdown
// does not wait on them.
func newServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// newLogWriter returns stderr, or a rotating file when path is set.
func newLogWriter(path string) io.WriteCloser {
	if path == "" {
		return nopCloser{os.Stderr}
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		LocalTime:  true,
	}
}

// listenPort extracts the port from a listen address, defaulting to 80.
func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 80
	}
	return port
}
