package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/config"
	"github.com/BearBump/CrewTrack/internal/telemetry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("track-worker stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, "crewtrack-worker")
	if err != nil {
		return errors.Wrap(err, "set up tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	httpOpts := workerHTTPOpts{
		httpAddr:    cfg.CrewTrack.WorkerHTTPAddr,
		swaggerPath: os.Getenv("workerSwaggerPath"),
	}

	return RunTrackWorker(ctx, cfg, defaultWorkerFactories(), httpOpts)
}
