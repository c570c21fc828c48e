package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskctl/supervisor/internal/bootstrap"
	"github.com/taskctl/supervisor/internal/config"
	"github.com/taskctl/supervisor/internal/supervisor"
	"github.com/taskctl/supervisor/pkg/observability"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loggerProvider, logger, err := observability.InitLogger(ctx, "supervisord", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			slog.ErrorContext(ctx, "error shutting down logger provider", "error", err)
		}
	}()
	slog.SetDefault(logger)

	opts := []supervisor.Option{
		supervisor.WithLogger(logger),
		supervisor.WithDefaultMaxAttempts(cfg.DefaultMaxAttempts),
		supervisor.WithMaxTerminalPerSlot(cfg.MaxTerminalPerSlot),
	}
	if cfg.RunnerID != "" {
		opts = append(opts, supervisor.WithRunnerID(cfg.RunnerID))
	}

	sup := supervisor.New(opts...)

	if cfg.TasksFile != "" {
		specs, err := bootstrap.LoadTasksFile(cfg.TasksFile)
		if err != nil {
			slog.ErrorContext(ctx, "error loading bootstrap tasks file", "error", err)
		}
		for _, spec := range specs {
			id, err := sup.Submit(spec)
			if err != nil {
				slog.ErrorContext(ctx, "failed to submit bootstrap task", "slot", spec.Slot, "error", err)
				continue
			}
			slog.InfoContext(ctx, "submitted bootstrap task", "task_id", string(id), "slot", spec.Slot)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.InfoContext(ctx, "supervisord started")
	<-sigChan
	slog.InfoContext(ctx, "received shutdown signal, draining tasks")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "shutdown did not complete cleanly", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "supervisord exited")
}
