package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/pebbl-go/internal/config"
	"github.com/yndnr/pebbl-go/internal/infra/buildinfo"
	"github.com/yndnr/pebbl-go/internal/infra/shutdown"
	"github.com/yndnr/pebbl-go/internal/node"
	"github.com/yndnr/pebbl-go/internal/server/httpserver"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
	"github.com/yndnr/pebbl-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		rank        = flag.Int("rank", -1, "Process rank (overrides comm.rank)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("pebbl-node " + buildinfo.String())
		return nil
	}

	overrides := map[string]any{}
	if *rank >= 0 {
		overrides["comm.rank"] = *rank
	}
	cfg, err := config.Load(*configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	reg := metric.Global()

	nd, err := node.New(cfg, node.WithLogger(log), node.WithMetrics(reg))
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	var httpServer *httpserver.Server
	if cfg.Comm.ListenAddr != "" {
		routes := &httpserver.RouterConfig{
			Rank:    cfg.Comm.Rank,
			Logger:  log,
			Metrics: metric.HandlerFor(reg),
		}
		if path, h, ok := nd.Handler(); ok {
			routes.TransportPath, routes.Transport = path, h
		}
		httpServer = httpserver.New(cfg.Comm.ListenAddr, httpserver.NewRouter(routes))
		go func() {
			log.Info("HTTP server listening", "addr", cfg.Comm.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server error", "error", err)
				shutdownHandler.Trigger("http server: " + err.Error())
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runErr error
	finished := make(chan struct{})
	// Hooks run in reverse order: the search stops and returns before the
	// transport closes, and the listener goes last so peers can still
	// deliver while the search winds down.
	if httpServer != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down HTTP server")
			return httpServer.Shutdown(ctx)
		})
	}
	shutdownHandler.OnShutdown(func(context.Context) error {
		return nd.Close()
	})
	shutdownHandler.OnShutdown(func(hookCtx context.Context) error {
		cancel()
		select {
		case <-finished:
			return nil
		case <-hookCtx.Done():
			return fmt.Errorf("search did not stop: %w", hookCtx.Err())
		}
	})

	go func() {
		defer close(finished)
		res, err := nd.Run(ctx)
		switch {
		case err != nil:
			runErr = err
			shutdownHandler.Trigger("search failed")
		case res.Aborted:
			shutdownHandler.Trigger(fmt.Sprintf("abort at checkpoint %d", res.Last))
		default:
			shutdownHandler.Trigger("search complete")
		}
	}()

	log.Info("pebbl-node started",
		"version", buildinfo.Get().Version,
		"rank", cfg.Comm.Rank,
		"processes", cfg.Size(),
		"config", *configFile)

	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
	}

	log.Info("pebbl-node stopped", "reason", shutdownHandler.Reason())
	select {
	case <-finished:
	default:
		return errors.New("search still running after shutdown")
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
