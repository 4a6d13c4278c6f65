package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exoplanet-classifier/internal/cfg"
	"exoplanet-classifier/internal/metrics"
	"exoplanet-classifier/internal/ml"
	"exoplanet-classifier/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mw := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	// The service keeps answering without a bundle; predictions then
	// report "model not loaded" until the next restart.
	var predictor *ml.Predictor
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Str("path", c.DataPath).Msg("storage unavailable, serving without a model")
		predictor = ml.NewUnavailable(err, ml.WithMetrics(mw))
	} else {
		predictor = ml.Load(store, c.BundleKey,
			ml.WithMetrics(mw),
			ml.WithCacheSize(c.CacheSize),
			ml.WithDriftWindow(c.DriftWindow, 0),
		)
		// The bundle is fully decoded in memory; the file lock is not needed
		// while serving and would block the trainer.
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close storage")
		}
	}

	server := ml.NewModelServer(predictor, c.ServerPort, registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("model server failed")
		}
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown model server")
	}
}
