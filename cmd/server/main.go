package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"popdash/internal/api"
	"popdash/internal/config"
	"popdash/internal/engine"
	"popdash/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stdout,
	})

	cache := engine.NewCache(engine.FileLoader(cfg.Data.Path))
	pipeline := engine.Pipeline{
		DensityThreshold:  cfg.Pipeline.DensityThreshold,
		TrendDefaultCount: cfg.Pipeline.TrendDefaultCount,
	}

	// The API is live immediately and answers 503 until the dataset is loaded.
	h := api.NewHandler(cache, pipeline, cfg.Pipeline.DefaultTopN)
	e := api.NewServer(h, api.ServerOptions{CORSOrigins: cfg.Server.CORSOrigins})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Info().Str("path", cfg.Data.Path).Msg("loading dataset in background")
		t0 := time.Now()

		ds, err := cache.Get(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logging.Fatal().Err(err).Msg("dataset load failed")
		}
		logging.Info().
			Int("rows", ds.Len()).
			Dur("elapsed", time.Since(t0)).
			Msg("dataset ready")
	}()

	go func() {
		logging.Info().Str("addr", cfg.Server.Addr()).Msg("server listening")
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}
