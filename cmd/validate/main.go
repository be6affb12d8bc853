// Command validate checks observation fixtures and the active detection
// configuration: fixtures must parse and stay within physical ranges, the
// detector must reproduce each fixture's recorded candidate set, and the
// configured thresholds must be able to fire at all within the fixtures.
//
// Usage:
//
//	go run ./cmd/validate -fixture-dir fixtures
//
// Candidate sets are looked up beside each fixture as
// <region>.candidates.json, as written by genobs -candidates-out.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/config"
	"github.com/couchcryptid/forecast-fusion-service/internal/detect"
	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// fixture is one region's observation file plus its optional recorded
// candidate set.
type fixture struct {
	region        string
	path          string
	series        domain.ObservationSeries
	parseErr      error
	candidates    []domain.Candidate
	hasCandidates bool
	candidatesErr error
}

func main() {
	fixtureDir := flag.String("fixture-dir", "", "directory containing genobs fixtures")
	flag.Parse()

	if *fixtureDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixtureDir); code != 0 {
		os.Exit(code)
	}
}

func run(fixtureDir string) int {
	fmt.Println("=== Forecast Fusion Fixture Validation ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	fixtures, err := loadFixtures(fixtureDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixtures: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateIntegrity(fixtures),
		validateReproducibility(fixtures, cfg.Thresholds),
		validateThresholds(fixtures, cfg.Thresholds),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	withCandidates := 0
	for _, f := range fixtures {
		if f.hasCandidates {
			withCandidates++
		}
	}
	fmt.Printf("Fixtures: %d (%d with recorded candidates)\n", len(fixtures), withCandidates)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadFixtures(dir string) ([]fixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var fixtures []fixture
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".candidates.json") {
			continue
		}

		f := fixture{
			region: strings.TrimSuffix(name, ".json"),
			path:   filepath.Join(dir, name),
		}
		f.series, f.parseErr = loadJSON[domain.ObservationSeries](f.path)

		candPath := filepath.Join(dir, f.region+".candidates.json")
		if _, err := os.Stat(candPath); err == nil {
			f.hasCandidates = true
			f.candidates, f.candidatesErr = loadJSON[[]domain.Candidate](candPath)
		}
		fixtures = append(fixtures, f)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixtures in %s", dir)
	}
	sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].region < fixtures[j].region })
	return fixtures, nil
}

func loadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// ── Phase 1: Fixture Integrity ──
// Fixtures must parse, carry strictly increasing timestamps, and stay
// inside physical parameter ranges.

func validateIntegrity(fixtures []fixture) *phase {
	p := &phase{name: "Phase 1: Fixture Integrity"}

	for _, f := range fixtures {
		if f.parseErr != nil {
			p.errorf("%s: parse: %v", f.region, f.parseErr)
			continue
		}
		if err := f.series.Validate(); err != nil {
			p.errorf("%s: %v", f.region, err)
			continue
		}
		for i, s := range f.series.Samples {
			checkRange(p, f.region, i, "temperature", s.Temperature, -60, 60)
			checkRange(p, f.region, i, "humidity", s.Humidity, 0, 100)
			checkRange(p, f.region, i, "pressure", s.Pressure, 850, 1100)
			checkRange(p, f.region, i, "wind_speed", s.WindSpeed, 0, 120)
			checkRange(p, f.region, i, "precipitation_rate", s.PrecipitationRate, 0, 400)
			checkRange(p, f.region, i, "snowfall", s.Snowfall, 0, 200)
			checkRange(p, f.region, i, "cloud_cover", s.CloudCover, 0, 100)
			checkRange(p, f.region, i, "visibility", s.Visibility, 0, 100)
		}
	}
	return p
}

func checkRange(p *phase, region string, idx int, name string, v, lo, hi float64) {
	if v < lo || v > hi {
		p.errorf("%s sample %d: %s %.1f outside [%.0f, %.0f]", region, idx, name, v, lo, hi)
	}
}

// ── Phase 2: Detection Reproducibility ──
// Re-runs the detector with the active thresholds over each fixture and
// compares against the recorded candidate set.

func validateReproducibility(fixtures []fixture, rules detect.Rules) *phase {
	p := &phase{name: "Phase 2: Detection Reproducibility"}
	detector := detect.NewDetector(rules)

	for _, f := range fixtures {
		if f.parseErr != nil {
			continue // already reported in phase 1
		}
		if !f.hasCandidates {
			continue
		}
		if f.candidatesErr != nil {
			p.errorf("%s: parse candidates: %v", f.region, f.candidatesErr)
			continue
		}

		got := detector.Detect(f.series, nil)
		if len(got) != len(f.candidates) {
			p.errorf("%s: detector yields %d candidates, recorded file has %d", f.region, len(got), len(f.candidates))
			continue
		}
		for i := range got {
			compareCandidate(p, f.region, i, got[i], f.candidates[i])
		}
	}
	return p
}

func compareCandidate(p *phase, region string, idx int, got, want domain.Candidate) {
	if got.Type != want.Type {
		p.errorf("%s candidate %d: type %s, recorded %s", region, idx, got.Type, want.Type)
	}
	if !got.WindowStart.Equal(want.WindowStart) || !got.WindowEnd.Equal(want.WindowEnd) {
		p.errorf("%s candidate %d: window %s..%s, recorded %s..%s", region, idx,
			got.WindowStart.Format(time.RFC3339), got.WindowEnd.Format(time.RFC3339),
			want.WindowStart.Format(time.RFC3339), want.WindowEnd.Format(time.RFC3339))
	}
	if got.SeverityScore != want.SeverityScore {
		p.errorf("%s candidate %d: severity %.2f, recorded %.2f", region, idx, got.SeverityScore, want.SeverityScore)
	}
	for name, v := range want.TriggeringValues {
		if got.TriggeringValues[name] != v {
			p.errorf("%s candidate %d: %s %.2f, recorded %.2f", region, idx, name, got.TriggeringValues[name], v)
		}
	}
}

// ── Phase 3: Threshold Sanity ──
// The active rules must be internally valid and actually reachable within
// the loaded fixtures' time spans.

func validateThresholds(fixtures []fixture, rules detect.Rules) *phase {
	p := &phase{name: "Phase 3: Threshold Sanity"}

	if err := rules.Validate(); err != nil {
		p.errorf("rules: %v", err)
	}
	if rules.Typhoon.MinWindSpeed <= 0 {
		p.errorf("typhoon: min_wind_speed must be positive")
	}
	if rules.Typhoon.MaxPressure >= 1013.25 {
		p.errorf("typhoon: max_pressure %.1f is at or above standard atmosphere", rules.Typhoon.MaxPressure)
	}
	if rules.HeavyRain.Threshold <= 0 {
		p.errorf("heavy_rain: threshold must be positive")
	}
	if rules.HeavySnow.Threshold <= 0 {
		p.errorf("heavy_snow: threshold must be positive")
	}

	span := longestSpan(fixtures)
	if span == 0 {
		return p
	}
	for _, r := range []struct {
		name   string
		minDur time.Duration
	}{
		{"heavy_rain", rules.HeavyRain.MinDuration},
		{"high_temp", rules.HighTemp.MinDuration},
		{"low_temp", rules.LowTemp.MinDuration},
		{"heavy_snow", rules.HeavySnow.MinDuration},
	} {
		if r.minDur > span {
			p.errorf("%s: min_duration %s exceeds the longest fixture span %s, rule can never fire",
				r.name, r.minDur, span)
		}
	}
	return p
}

func longestSpan(fixtures []fixture) time.Duration {
	var span time.Duration
	for _, f := range fixtures {
		if f.parseErr != nil {
			continue
		}
		if s := f.series.Span(); s > span {
			span = s
		}
	}
	return span
}
