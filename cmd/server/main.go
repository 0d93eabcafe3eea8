// precog - fail-open login risk scoring over HTTP
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mbd888/precog/internal/config"
	"github.com/mbd888/precog/internal/logging"
	"github.com/mbd888/precog/internal/metrics"
	"github.com/mbd888/precog/internal/server"
	"github.com/mbd888/precog/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Bootstrap logger until the configured one is known
	logger := logging.New("info", "text")

	logger.Info("starting precog",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat)

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"api_url", cfg.APIURL,
		"api_version", cfg.APIVersion,
		"config_file", cfg.ConfigFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := traces.Init(ctx, cfg.OTLPEndpoint, Version, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		// The server owns the process lifetime; stop the rest when it returns.
		defer cancel()
		return srv.Run(gctx)
	})

	g.Go(func() error {
		metrics.StartRuntimeCollector(gctx, 15*time.Second)
		return nil
	})

	if cfg.ConfigFile != "" {
		w := config.NewWatcher(cfg.ConfigFile, logger)
		w.OnChange(func(next *config.Config) {
			_ = srv.Reload(next)
		})
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
