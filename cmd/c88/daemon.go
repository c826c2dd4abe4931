package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/server"
	"github.com/j-veylop/credits-dashboard-tui/internal/services"
	"github.com/j-veylop/credits-dashboard-tui/internal/version"
)

const shutdownTimeout = 10 * time.Second

func daemonCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the reset scheduler without the dashboard",
		Long: `Run credit polling and the reset scheduler headless. Logs go to stderr.

When METRICS_ADDR or --metrics-addr is set, /health, /status and /metrics
are served on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			logger.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg.MetricsAddr, func(ctx context.Context) (*services.Manager, error) {
				return services.NewManager(ctx, cfg)
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address of the HTTP endpoint (overrides METRICS_ADDR)")
	return cmd
}

func runDaemon(ctx context.Context, metricsAddr string, newManager func(context.Context) (*services.Manager, error)) error {
	mgr, err := newManager(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("error closing services", "error", err)
		}
	}()

	// Drain events so the log carries what the dashboard would show.
	events, _ := mgr.Subscribe()
	go logEvents(events)

	var srv *server.Server
	if metricsAddr != "" {
		srv = server.New(metricsAddr, mgr)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("metrics server listening", "addr", metricsAddr)
	}

	mgr.Start()
	logger.Info("daemon started", "version", version.GetVersion())

	<-ctx.Done()
	logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
	return nil
}

func logEvents(events <-chan services.ServiceEvent) {
	for event := range events {
		switch e := event.(type) {
		case services.SchedulerPassEvent:
			if e.Err != nil {
				logger.Warn("scheduler pass failed", "window", e.Window, "trigger", e.Trigger, "error", e.Err)
				continue
			}
			logger.Info("scheduler pass", "run_id", e.RunID, "window", e.Window, "trigger", e.Trigger,
				"tasks", e.Tasks, "skips", len(e.Skips))
		case services.ResetCompletedEvent:
			var failed int
			for _, r := range e.Results {
				if r.Err != nil {
					failed++
				}
			}
			logger.Info("resets finished", "window", e.Window, "total", len(e.Results), "failed", failed, "manual", e.Manual)
		case services.ErrorEvent:
			logger.Warn("service error", "service", e.Service, "error", e.Error)
		}
	}
}
