// Command generate_sample_data writes a synthetic cumulative KOI table in
// the archive's CSV layout, for offline training with `trainer -csv`.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"exoplanet-classifier/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// profile describes the feature distribution of one disposition.
type profile struct {
	label     string
	weight    float64
	logPeriod [2]float64 // mean, stddev of ln(days)
	logDepth  [2]float64 // ppm
	logPrad   [2]float64 // earth radii
	snr       [2]float64
	flagRate  float64
}

var profiles = []profile{
	{common.LabelConfirmed, 0.29, [2]float64{2.5, 1.0}, [2]float64{6.0, 1.0}, [2]float64{0.9, 0.6}, [2]float64{60, 40}, 0.01},
	{common.LabelCandidate, 0.21, [2]float64{3.5, 1.3}, [2]float64{5.5, 1.4}, [2]float64{1.1, 0.8}, [2]float64{25, 20}, 0.05},
	{common.LabelFalsePositive, 0.50, [2]float64{2.0, 1.8}, [2]float64{7.5, 2.0}, [2]float64{2.5, 1.5}, [2]float64{120, 150}, 0.45},
}

func main() {
	var (
		out       = flag.String("out", "koi_sample.csv", "Output CSV path")
		rows      = flag.Int("rows", 2000, "Number of objects to generate")
		seed      = flag.Int64("seed", 42, "Random seed")
		missing   = flag.Float64("missing", 0.03, "Fraction of cells left empty")
		unlabeled = flag.Float64("undispositioned", 0.01, "Fraction of rows with an unknown disposition")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create output")
	}

	counts, err := generate(f, *rows, *seed, *missing, *unlabeled)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate sample data")
	}

	log.Info().Str("path", *out).Int("rows", *rows).Interface("dispositions", counts).Msg("sample data written")
}

func generate(f *os.File, n int, seed int64, missing, unlabeled float64) (map[string]int, error) {
	rnd := rand.New(rand.NewSource(seed))

	// The archive prefixes its exports with commented provenance lines
	if _, err := fmt.Fprintf(f, "# Synthetic cumulative KOI table\n# seed=%d rows=%d\n", seed, n); err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	header := append([]string{"kepid", "kepoi_name", common.TargetDisposition, "koi_score"}, common.DefaultFeatures()...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		p := pick(rnd)
		label := p.label
		if rnd.Float64() < unlabeled {
			label = "NOT DISPOSITIONED"
		}
		counts[label]++

		period := math.Exp(normal(rnd, p.logPeriod))
		depth := math.Exp(normal(rnd, p.logDepth))
		prad := math.Exp(normal(rnd, p.logPrad))
		// Equilibrium temperature falls with orbital distance
		teq := 1400 * math.Pow(period, -1.0/3) * (0.9 + 0.2*rnd.Float64())
		duration := 1.5 * math.Pow(period, 1.0/3) * (0.7 + 0.6*rnd.Float64())
		snr := math.Max(1, normal(rnd, p.snr))

		values := []float64{
			period, duration, depth, prad, teq, snr,
			falsePositiveFlag(rnd, p.flagRate),
			falsePositiveFlag(rnd, p.flagRate),
			falsePositiveFlag(rnd, p.flagRate),
			falsePositiveFlag(rnd, p.flagRate/3),
		}

		record := []string{
			strconv.Itoa(10000000 + i),
			fmt.Sprintf("K%05d.01", i+1),
			label,
			strconv.FormatFloat(rnd.Float64(), 'f', 3, 64),
		}
		for _, v := range values {
			if rnd.Float64() < missing {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(v, 'g', 6, 64))
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return counts, w.Error()
}

func pick(rnd *rand.Rand) profile {
	r := rnd.Float64()
	for _, p := range profiles {
		if r < p.weight {
			return p
		}
		r -= p.weight
	}
	return profiles[len(profiles)-1]
}

func normal(rnd *rand.Rand, dist [2]float64) float64 {
	return dist[0] + dist[1]*rnd.NormFloat64()
}

func falsePositiveFlag(rnd *rand.Rand, rate float64) float64 {
	if rnd.Float64() < rate {
		return 1
	}
	return 0
}
