package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pebbl-go/internal/infra/shutdown"
	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
	"github.com/yndnr/pebbl-go/internal/telemetry/metric"
)

// WatchCommand reports checkpoint generations as they complete.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "report each completed checkpoint generation",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "expected",
				Usage: "number of processes per generation (0: infer from deletions)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve prometheus metrics on this address",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
			},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg := logger.DefaultConfig()
	cfg.Level = c.String("log-level")
	cfg.Output = c.App.ErrWriter
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}

	reg := metric.NewRegistry()
	w, err := checkpoint.NewWatcher(g.Dir, g.Problem,
		checkpoint.WithExpected(c.Int("expected")),
		checkpoint.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	w.OnComplete(func(gen checkpoint.Generation) {
		reg.CheckpointGenerations.Inc()
		fmt.Fprintf(c.App.Writer, "%s checkpoint %d complete: %d files\n",
			time.Now().Format(time.RFC3339), gen.Number, len(gen.Ranks))
	})

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	sd := shutdown.NewHandler(5 * time.Second)
	sd.OnShutdown(func(context.Context) error {
		cancel()
		return nil
	})

	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metric.HandlerFor(reg))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		sd.OnShutdown(srv.Shutdown)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "addr", addr, "error", err)
				sd.Trigger("metrics server failed")
			}
		}()
		log.Info("serving metrics", "addr", addr)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- w.Run(ctx)
		sd.Trigger("watcher stopped")
	}()
	if err := sd.Wait(); err != nil {
		log.Warn("shutdown hooks failed", "error", err)
	}
	return <-errc
}
