// Package main implements the schoolcache maintenance tool. It opens the
// configured store, runs one-shot maintenance commands, or serves periodic
// cleanup with Prometheus metrics and a health endpoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/schoolcache/cache"
	"github.com/c360/schoolcache/config"
	"github.com/c360/schoolcache/health"
	"github.com/c360/schoolcache/kvstore"
	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/reachability"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "schoolcache"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cliCfg, err := parseFlags(args, stderr)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		return nil
	}

	logger := setupLogger(stderr, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	if cliCfg.Command == cmdValidate {
		_, _ = fmt.Fprintln(stdout, cfg.String())
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	b, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		if err := b.close(closeCtx); err != nil {
			logger.Warn("Store close failed", "error", err)
		}
	}()

	registry := metric.NewMetricsRegistry()
	reach := reachability.New(true,
		reachability.WithLogger(logger),
		reachability.WithMetrics(registry.CoreMetrics()))
	if b.nats != nil {
		detach := reachability.FromNATS(reach, b.nats)
		defer detach()
	}

	m, err := cache.NewManager(
		kvstore.Instrument(b.store, registry.CoreMetrics()),
		managerOptions(cfg, logger, registry, reach)...,
	)
	if err != nil {
		return fmt.Errorf("create cache manager: %w", err)
	}
	defer m.Close()

	switch cliCfg.Command {
	case cmdStats:
		return printJSON(stdout, struct {
			cache.Stats
			Counters cache.StatsSummary `json:"counters"`
		}{m.GetStats(ctx), m.Counters()})
	case cmdCleanup:
		return printJSON(stdout, m.CleanupExpired(ctx))
	case cmdClearUser:
		return printJSON(stdout, map[string]any{"user": cliCfg.UserID, "removed": m.ClearUserCache(ctx, cliCfg.UserID)})
	case cmdClearAll:
		return printJSON(stdout, map[string]any{"removed": m.ClearAll(ctx)})
	}

	monitor := health.NewMonitor()
	monitor.Register("cache", m.Health)
	if b.nats != nil {
		client := b.nats
		monitor.Register("nats", func(context.Context) health.Status {
			if client.IsHealthy() {
				return health.NewHealthy("nats", client.Status().String())
			}
			return health.NewUnhealthy("nats", client.Status().String())
		})
	}

	return runWithSignalHandling(ctx, cfg, m, registry, monitor, cliCfg.ShutdownTimeout)
}

// loadConfig loads defaults, the optional file and SCHOOLCACHE_* overrides.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if err := config.ValidateFile(path); err != nil {
			return nil, fmt.Errorf("invalid configuration file: %w", err)
		}
	}

	loader := config.NewLoader()
	loader.EnableValidation(true)
	if path != "" {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func managerOptions(
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	reach *reachability.Monitor,
) []cache.Option {
	return []cache.Option{
		cache.WithLogger(logger),
		cache.WithNamespace(cfg.Cache.Namespace),
		cache.WithSchemaVersion(cfg.Cache.SchemaVersion),
		cache.WithReachability(reach),
		cache.WithMetrics(registry, appName),
		cache.WithMaintenanceInterval(cfg.Cache.MaintenanceInterval.Std()),
		cache.WithCleanupOnStart(cfg.Cache.CleanupOnStart),
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runWithSignalHandling starts maintenance and the metrics server, then blocks
// until SIGINT or SIGTERM.
func runWithSignalHandling(
	ctx context.Context,
	cfg *config.Config,
	m *cache.Manager,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := m.Start(signalCtx); err != nil {
		return fmt.Errorf("start cache maintenance: %w", err)
	}

	var srv *metric.Server
	if cfg.Metrics.Enabled {
		srv = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry,
			func(ctx context.Context) (any, bool) {
				status := monitor.Check(ctx, appName)
				return status, !status.IsUnhealthy()
			})
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		slog.Info("Metrics server listening", "address", srv.Address())
	}

	slog.Info("schoolcache started",
		"namespace", cfg.Cache.Namespace,
		"store", cfg.Store.Kind,
		"maintenance_interval", cfg.Cache.MaintenanceInterval.Std())

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if srv != nil {
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	if err := m.Close(); err != nil {
		return fmt.Errorf("stop cache maintenance: %w", err)
	}

	slog.Info("schoolcache shutdown complete")
	return nil
}
