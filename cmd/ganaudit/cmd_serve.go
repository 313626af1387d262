package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ganaudit/internal/config"
	"ganaudit/internal/logging"
	"ganaudit/internal/mcp"
	"ganaudit/internal/orchestrator"
)

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit engine over stdio (MCP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagStateDir)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Addr = metricsAddr
			}

			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Enabled {
				go serveMetrics(cfg.Metrics.Addr)
			}
			go watchConfig(ctx, cfg.Path())
			go runSessionGC(ctx, eng.orch, cfg)

			server := mcp.NewServer(eng.orch, os.Stdout)
			logger.Info("serving MCP over stdio",
				zap.String("stateDir", cfg.StateDir),
				zap.Bool("metrics", cfg.Metrics.Enabled))
			return server.Serve(ctx, os.Stdin)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")
	return cmd
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}

// watchConfig reloads the logging configuration when config.yaml changes.
// Queue and completion bounds apply to newly built engines only; logging
// levels apply immediately.
func watchConfig(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name != path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := logging.ReloadConfig(); err != nil {
				logger.Warn("config reload failed", zap.Error(err))
				continue
			}
			logger.Info("configuration reloaded", zap.String("path", path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// runSessionGC collects stale session journals on the configured interval.
func runSessionGC(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config) {
	ticker := time.NewTicker(cfg.Store.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := orch.Store().GCOlderThan(cfg.Store.MaxSessionAge)
			if removed > 0 {
				logger.Info("session gc", zap.Int("removed", removed))
			}
		}
	}
}
