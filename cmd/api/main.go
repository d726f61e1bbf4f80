package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storyboard/internal/bootstrap"
	"storyboard/internal/http/handlers"
	httpapi "storyboard/internal/http/httpapi"
	"storyboard/internal/infra"
	"storyboard/internal/infra/geoip"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: startup failed")
	}
	defer rt.Close()

	if rt.Postgres() {
		go rt.ListenFeed(ctx)
	} else {
		// Without a database there is no separate worker process.
		pool, err := rt.Workers("api")
		if err != nil {
			logger.Fatal().Err(err).Msg("api: worker pool failed")
		}
		go func() { _ = pool.Run(ctx) }()
		go rt.Pipeline.RunReconciler(ctx, cfg.Pipeline.ReconcileInterval)
		logger.Warn().Msg("api: memory store, running workers in process")
	}

	app := &handlers.App{
		Pipeline: rt.Pipeline,
		Ledger:   rt.Ledger,
		Jobs:     rt.Queue,
		Hub:      rt.Hub,
		Logger:   logger,
	}
	opts := httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       rt.StaticDir,
		Logger:          logger,
	}
	geo, err := geoip.Open(cfg.GeoIPPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	} else if geo != nil {
		defer geo.Close()
		opts.GeoIP = geo
	}
	router := httpapi.NewRouter(app, opts)

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
