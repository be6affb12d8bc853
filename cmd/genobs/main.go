// Command genobs generates observation fixtures for the file observation
// source and the validate command. It uses the actual synthetic generator
// and detector so fixtures match engine behavior.
//
// Usage:
//
//	go run ./cmd/genobs \
//	  -region xuancheng -hours 240 -seed 42 \
//	  -start 2024-07-01T00:00:00Z -scenario heavy_rain \
//	  -out fixtures/xuancheng.json \
//	  -candidates-out fixtures/xuancheng.candidates.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/detect"
	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/synthetic"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	region := flag.String("region", "xuancheng", "region name written into the fixture")
	hours := flag.Int("hours", 240, "number of hourly samples")
	seed := flag.Int64("seed", 42, "generator seed")
	start := flag.String("start", "2024-07-01T00:00:00Z", "first sample timestamp (RFC 3339)")
	scenario := flag.String("scenario", "calm",
		"episode overlay: calm, typhoon, heavy_rain, heat_wave, cold_snap, blizzard")
	out := flag.String("out", "", "output path for the fixture JSON")
	candidatesOut := flag.String("candidates-out", "", "optional output path for the detector's candidate set")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *hours < 1 {
		return fmt.Errorf("-hours must be at least 1")
	}

	startTS, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parsing -start: %w", err)
	}
	sc, err := synthetic.ParseScenario(*scenario)
	if err != nil {
		return err
	}

	series := synthetic.NewGenerator(*seed).Series(*region, startTS, *hours)
	series = synthetic.Overlay(series, sc)

	if err := writeJSON(*out, series); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	candidates := detect.NewDetector(detect.DefaultRules()).Detect(series, nil)
	if *candidatesOut != "" {
		if err := writeJSON(*candidatesOut, candidates); err != nil {
			return fmt.Errorf("writing candidates: %w", err)
		}
		log.Printf("wrote candidates: %s", *candidatesOut)
	}

	printStats(series, candidates)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(series domain.ObservationSeries, candidates []domain.Candidate) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Region: %s\n", series.Region)
	fmt.Printf("Samples: %d\n", len(series.Samples))
	if len(series.Samples) > 0 {
		fmt.Printf("First: %s\n", series.Samples[0].Timestamp.Format(time.RFC3339))
		fmt.Printf("Last:  %s\n", series.Samples[len(series.Samples)-1].Timestamp.Format(time.RFC3339))
	}

	for _, param := range []string{
		domain.ParamTemperature,
		domain.ParamWindSpeed,
		domain.ParamPressure,
		domain.ParamPrecipitationRate,
		domain.ParamSnowfall,
	} {
		lo, hi, mean := summarize(series, param)
		fmt.Printf("%-20s min=%.1f max=%.1f mean=%.1f\n", param, lo, hi, mean)
	}

	fmt.Printf("Candidates: %d\n", len(candidates))
	for _, c := range candidates {
		fmt.Printf("  %s %s..%s severity=%.1f\n",
			c.Type,
			c.WindowStart.Format(time.RFC3339), c.WindowEnd.Format(time.RFC3339),
			c.SeverityScore)
	}
}

func summarize(series domain.ObservationSeries, param string) (lo, hi, mean float64) {
	if len(series.Samples) == 0 {
		return 0, 0, 0
	}
	lo = series.Samples[0].Value(param)
	hi = lo
	sum := 0.0
	for _, s := range series.Samples {
		v := s.Value(param)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}
	return lo, hi, sum / float64(len(series.Samples))
}
