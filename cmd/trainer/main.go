package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exoplanet-classifier/internal/cfg"
	"exoplanet-classifier/internal/metrics"
	"exoplanet-classifier/internal/model"
	"exoplanet-classifier/internal/source"
	"exoplanet-classifier/internal/storage"
	"exoplanet-classifier/internal/trainer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

func main() {
	var (
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		csvPath    = flag.String("csv", "", "Train from a local CSV file instead of the remote archive")
		history    = flag.Int("history", 0, "Print the last N training runs and exit")
		importance = flag.Int("importance-repeats", 5, "Shuffles per feature for permutation importance (0 disables)")
		quiet      = flag.Bool("quiet", false, "Disable the progress bar")
	)
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

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("storage initialization failed")
	}

	if *history > 0 {
		err = printHistory(store, *history)
		store.Close()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read run history")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, c, store, *csvPath, *importance, *quiet)
	stop()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close storage")
	}
	os.Exit(code)
}

func run(ctx context.Context, c cfg.Settings, store *storage.Store, csvPath string, importance int, quiet bool) int {
	s, err := c.Schema()
	if err != nil {
		log.Error().Err(err).Msg("invalid schema")
		return 1
	}

	var src source.Source = source.NewHTTP(c.SourceURL, c.SourceTimeout)
	if csvPath != "" {
		src = source.FileSource{Path: csvPath}
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)

	forestOpts := []model.RandomForestOption{
		model.WithNEstimators(c.NEstimators),
		model.WithMaxDepth(c.MaxDepth),
		model.WithMinSamplesLeaf(c.MinSamplesLeaf),
		model.WithSeed(c.Seed),
	}
	if !quiet {
		bar := progressbar.NewOptions(c.NEstimators,
			progressbar.OptionSetDescription("fitting trees"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
		forestOpts = append(forestOpts, model.WithProgress(func() { _ = bar.Add(1) }))
	}

	t, err := trainer.New(src, store, trainer.Config{
		Schema:            s,
		BundleKey:         c.BundleKey,
		TestRatio:         c.TestRatio,
		Seed:              c.Seed,
		RejectDegenerate:  c.RejectDegenerate,
		ImportanceRepeats: importance,
		NewClassifier: func() model.Classifier {
			return model.NewRandomForest(forestOpts...)
		},
	},
		trainer.WithMetrics(metrics.NewWrapper(m)),
		trainer.WithRunRecorder(store),
	)
	if err != nil {
		log.Error().Err(err).Msg("trainer setup failed")
		return 1
	}

	log.Info().
		Str("source", src.String()).
		Str("data_path", c.DataPath).
		Str("bundle_key", c.BundleKey).
		Int("n_estimators", c.NEstimators).
		Msg("starting training run")

	report, runErr := t.Run(ctx)

	if c.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(c.MetricsTextfile, registry); err != nil {
			log.Warn().Err(err).Str("path", c.MetricsTextfile).Msg("failed to write metrics textfile")
		}
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("training failed, previous bundle left untouched")
		return 1
	}

	fmt.Print(report.String())
	log.Info().
		Str("run_id", report.RunID).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Float64("accuracy", report.Evaluation.Accuracy).
		Msg("training complete")
	return 0
}

func printHistory(store *storage.Store, n int) error {
	runs, err := store.LatestRuns(n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no training runs recorded")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %8s  %8s  %8s  %8s\n", "run id", "finished", "rows", "test", "accuracy", "macro f1")
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %8d  %8d  %8.4f  %8.4f\n",
			r.RunID, r.FinishedAt.UTC().Format(time.DateTime), r.Cleaned, r.TestRows, r.Accuracy, r.MacroF1)
	}
	return nil
}
