package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/synthetic"
)

// SyntheticSource serves generated observation windows ending at the current
// hour. The window start seeds the generator, so repeated calls within the
// same hour return identical series.
type SyntheticSource struct {
	gen   *synthetic.Generator
	hours int
}

// NewSyntheticSource returns a source generating hours hourly samples per
// region.
func NewSyntheticSource(seed int64, hours int) *SyntheticSource {
	return &SyntheticSource{gen: synthetic.NewGenerator(seed), hours: hours}
}

// Observe implements ObservationSource.
func (s *SyntheticSource) Observe(ctx context.Context, region domain.Region) (domain.ObservationSeries, error) {
	if err := ctx.Err(); err != nil {
		return domain.ObservationSeries{}, err
	}
	end := domain.Now().UTC().Truncate(time.Hour)
	start := end.Add(-time.Duration(s.hours-1) * time.Hour)
	return s.gen.Series(region.Name, start, s.hours), nil
}

// FileSource serves fixture series written by genobs, one
// <region name>.json per file.
type FileSource struct {
	dir string
}

// NewFileSource returns a source reading fixtures from dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Observe implements ObservationSource. Missing or invalid fixtures wrap
// domain.ErrDataUnavailable.
func (f *FileSource) Observe(ctx context.Context, region domain.Region) (domain.ObservationSeries, error) {
	if err := ctx.Err(); err != nil {
		return domain.ObservationSeries{}, err
	}

	path := filepath.Join(f.dir, region.Name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ObservationSeries{}, fmt.Errorf("reading fixture %s: %v: %w", path, err, domain.ErrDataUnavailable)
	}

	var series domain.ObservationSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return domain.ObservationSeries{}, fmt.Errorf("parsing fixture %s: %v: %w", path, err, domain.ErrDataUnavailable)
	}
	// The filename is authoritative: fixtures are looked up by region, so a
	// stale region field inside the file must not leak into candidates.
	series.Region = region.Name
	if err := series.Validate(); err != nil {
		return domain.ObservationSeries{}, fmt.Errorf("fixture %s: %w", path, err)
	}
	return series, nil
}
