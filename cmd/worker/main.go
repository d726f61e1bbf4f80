package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storyboard/internal/bootstrap"
	"storyboard/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("process", "worker").Logger()
	if cfg.StoreDriver != "postgres" {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("worker: STORE_DRIVER=postgres is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: startup failed")
	}
	defer rt.Close()

	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	pool, err := rt.Workers(host)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: pool failed")
	}

	go rt.Pipeline.RunReconciler(ctx, cfg.Pipeline.ReconcileInterval)

	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
