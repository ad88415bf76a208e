// Command queueview is a live terminal viewer for the in-memory mail queue
// of a mailgun-compatible mock server. It mirrors the queue over the
// server's websocket and sends webhook and remove actions back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aeolun/queueview/pkg/client"
	"github.com/aeolun/queueview/pkg/client/ui"
	"github.com/aeolun/queueview/pkg/config"
	"github.com/aeolun/queueview/pkg/logging"
	"github.com/aeolun/queueview/pkg/replica"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "queueview: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath, "Path to config file")
	origin := flag.String("origin", "", "Queue server origin, e.g. http://localhost:8080 (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	headless := flag.Bool("headless", false, "Log queue changes instead of starting the terminal UI")
	flag.Parse()

	if err := config.LoadEnvFile(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *origin != "" {
		cfg.Viewer.Origin = *origin
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	if *headless {
		cfg.Viewer.Headless = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the UI; interactive runs log to a file
	var logger zerolog.Logger
	if cfg.Viewer.Headless {
		logger = logging.New("queueview", cfg.Logging.Level, os.Stderr)
	} else {
		logPath, err := cfg.GetLogPath()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		var closer io.Closer
		logger, closer, err = logging.NewFile("queueview", cfg.Logging.Level, logPath)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer closer.Close()
	}

	statePath, err := cfg.GetStatePath()
	if err != nil {
		return err
	}
	state, err := client.OpenState(statePath)
	if err != nil {
		return err
	}
	defer state.Close()

	if last, err := state.GetLastConnection(); err == nil && last != nil {
		logger.Debug().
			Str("addr", last.Address).
			Time("at", last.LastSuccessAt).
			Int64("count", last.ConnectCount).
			Msg("last successful connection")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := client.NewMetrics(reg)
	if cfg.Metrics.ListenAddr != "" {
		startMetricsServer(cfg.Metrics.ListenAddr, reg, logger)
	}

	rep := replica.New()
	conn, err := client.NewConnection(cfg.Viewer.Origin, rep)
	if err != nil {
		return err
	}
	conn.SetLogger(logger)
	conn.SetMetrics(metrics)
	conn.SetHistory(state)
	conn.SetReconnectInterval(cfg.ReconnectInterval())
	defer conn.Close()

	logger.Info().
		Str("origin", cfg.Viewer.Origin).
		Str("addr", conn.GetAddress()).
		Dur("reconnect_interval", cfg.ReconnectInterval()).
		Msg("starting viewer")

	if prev, err := state.GetConnection(conn.GetAddress()); err != nil {
		logger.Warn().Err(err).Msg("failed to read connection history")
	} else if prev == nil {
		logger.Info().Str("addr", conn.GetAddress()).Msg("first connection to this server")
	} else {
		logger.Info().
			Str("addr", prev.Address).
			Time("last_success", prev.LastSuccessAt).
			Int64("connects", prev.ConnectCount).
			Msg("known server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.Enabled {
		notifier := client.NewNotifier(rep)
		notifier.SetLogger(logger)
		go notifier.Run(ctx)
	}

	if cfg.Viewer.Headless {
		// Subscribe before the first dial so the initial sync is logged
		changes, unsubscribe := rep.Subscribe()
		defer unsubscribe()
		go conn.Run(ctx)
		return runHeadless(ctx, rep, changes, logger)
	}

	// The UI must subscribe before the first dial as well
	model := ui.NewModel(conn, state, logger)
	go conn.Run(ctx)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

// runHeadless logs every replica change until ctx is cancelled
func runHeadless(ctx context.Context, rep *replica.Replica, changes <-chan replica.Change, logger zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			ev := logger.Info().
				Str("change", c.Kind.String()).
				Uint64("version", c.Version).
				Int("queued", rep.Len())
			if c.ID != "" {
				ev = ev.Str("id", c.ID)
				if rec, ok := rep.Get(c.ID); ok {
					s := rec.Summary()
					ev = ev.Strs("to", s.To).Str("subject", s.Subject)
				}
			}
			ev.Msg("queue changed")
		}
	}
}

// startMetricsServer exposes /metrics and /health. Internal use only.
func startMetricsServer(addr string, reg *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening (/metrics, /health)")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}
