// Command inspect_data prints what the artifact store holds: the bundle
// under a key (schema, label map, scaler, metadata) and recent runs.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"exoplanet-classifier/internal/bundle"
	"exoplanet-classifier/internal/common"
	"exoplanet-classifier/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath = flag.String("data", common.DefaultDataPath, "Data directory path")
		key      = flag.String("key", common.DefaultBundleKey, "Bundle key")
		runs     = flag.Int("runs", 5, "Number of recent runs to list")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	b, err := bundle.Load(store, *key)
	if err != nil {
		fmt.Printf("\nBundle %q: %v\n", *key, err)
	} else {
		printBundle(*key, b)
	}

	records, err := store.LatestRuns(*runs)
	if err != nil {
		log.Error().Err(err).Msg("failed to read runs")
		return
	}
	fmt.Printf("\nRecent runs (%d):\n", len(records))
	for _, r := range records {
		fmt.Printf("  %s  %s  cleaned=%d train=%d test=%d accuracy=%.4f macro_f1=%.4f\n",
			r.FinishedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Cleaned, r.TrainRows, r.TestRows, r.Accuracy, r.MacroF1)
	}
}

func printBundle(key string, b *bundle.Bundle) {
	md := b.Metadata
	fmt.Printf("\nBundle %q (format v%d)\n", key, b.FormatVersion)
	fmt.Printf("  Run:        %s\n", md.RunID)
	fmt.Printf("  Trained at: %s\n", md.TrainedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Rows:       train=%d test=%d\n", md.TrainRows, md.TestRows)
	fmt.Printf("  Accuracy:   %.4f\n", md.Accuracy)

	fmt.Println("\n  Class mapping:")
	for i, label := range b.Labels.Classes {
		fmt.Printf("    %d -> %s\n", i, label)
	}

	fmt.Println("\n  Features (mean / scale):")
	for i, f := range b.Schema.Features {
		marker := ""
		if slices.Contains(b.Scaler.Degenerate, i) {
			marker = "  (constant in training data)"
		}
		fmt.Printf("    %2d %-16s %14.4f %14.4f%s\n", i, f, b.Scaler.Mean[i], b.Scaler.Scale[i], marker)
	}

	if len(md.Params) > 0 {
		fmt.Println("\n  Parameters:")
		keys := make([]string, 0, len(md.Params))
		for k := range md.Params {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Printf("    %-20s %v\n", k, md.Params[k])
		}
	}
}
