package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spheres/internal/api"
	"spheres/internal/config"
	"spheres/internal/db"
	"spheres/internal/logs"
	"spheres/internal/stage"
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

	catalog, err := stage.Load(cfg.StageCatalog)
	if err != nil {
		logger.Error("stage catalog invalid", "err", err, "path", cfg.StageCatalog)
		os.Exit(1)
	}

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
	vaultSvc := vault.NewService(repo, cfg.MaxBlobBytes, logger)

	server := api.New(cfg, logger, catalog, vaultSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("spheres vault listening", "addr", cfg.Addr, "stages", catalog.Count())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
