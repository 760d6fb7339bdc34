package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"catalogai/internal/app"
	"catalogai/internal/config"
	"catalogai/internal/logger"
)

func main() {
	log := logger.New(os.Stdout, slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("app exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			slog.Warn("failed to close dependencies", "error", err)
		}
	}()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, log)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	if cfg.EnableIngestWorker {
		consumer, err := a.StartIngestWorker(cfg)
		if err != nil {
			return err
		}
		defer func() {
			consumer.Stop()
			<-consumer.StopChan
		}()
	}

	if !cfg.EnableAPI {
		slog.Info("api disabled, running ingest worker only")
		<-ctx.Done()
		return nil
	}
	return a.Run(ctx)
}
