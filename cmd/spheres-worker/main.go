package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spheres/internal/config"
	"spheres/internal/db"
	"spheres/internal/logs"
	"spheres/internal/vault"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger, closeLog, err := logs.New(logs.Options{Level: cfg.LogLevel, Console: os.Stdout, JSON: cfg.LogJSON})
	if err != nil {
		slog.Error("init logger", "err", err)
		os.Exit(1)
	}
	defer closeLog()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := vault.NewPgRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}
	svc := vault.NewService(repo, cfg.MaxBlobBytes, logger)

	if cfg.WorkerOnce {
		if _, err := svc.PruneEmpty(ctx, cfg.PruneAfter); err != nil {
			logger.Error("prune failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.PruneEvery)
	defer ticker.Stop()

	logger.Info("worker started", "prune_every", cfg.PruneEvery.String(), "prune_after", cfg.PruneAfter.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			n, err := svc.PruneEmpty(ctx, cfg.PruneAfter)
			if err != nil {
				logger.Error("prune failed", "err", err)
				continue
			}
			logger.Debug("prune pass complete", "removed", n)
		}
	}
}
