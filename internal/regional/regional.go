// Package regional reduces a gridded field inside a bounding box to summary
// statistics.
package regional

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/percentile"
)

// Summarizer computes regional statistics for a fixed set of percentile levels.
type Summarizer struct {
	levels   []float64
	sentinel *float64
}

// NewSummarizer validates levels. Grid values equal to sentinel, or NaN, are skipped.
func NewSummarizer(levels []float64, sentinel *float64) (*Summarizer, error) {
	if err := domain.ValidateLevels(levels); err != nil {
		return nil, err
	}
	l := make([]float64, len(levels))
	copy(l, levels)
	s := &Summarizer{levels: l}
	if sentinel != nil {
		v := *sentinel
		s.sentinel = &v
	}
	return s, nil
}

// Summarize selects the cells whose centres fall inside bbox and reports
// mean, population standard deviation, extremes and percentiles of their
// valid values.
func (s *Summarizer) Summarize(grid domain.Grid, bbox domain.BoundingBox) (domain.RegionalStats, error) {
	if err := grid.Validate(); err != nil {
		return domain.RegionalStats{}, err
	}
	if err := bbox.Validate(); err != nil {
		return domain.RegionalStats{}, err
	}

	matched, values := s.selectCells(grid, bbox)
	if len(values) == 0 {
		return domain.RegionalStats{}, &domain.EmptyRegionError{BBox: bbox, MatchedCells: matched}
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return domain.RegionalStats{}, fmt.Errorf("regional mean: %w", err)
	}
	std, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return domain.RegionalStats{}, fmt.Errorf("regional std: %w", err)
	}
	lo, err := stats.Min(values)
	if err != nil {
		return domain.RegionalStats{}, fmt.Errorf("regional min: %w", err)
	}
	hi, err := stats.Max(values)
	if err != nil {
		return domain.RegionalStats{}, fmt.Errorf("regional max: %w", err)
	}

	sort.Float64s(values)
	result := domain.RegionalStats{
		BBox:        bbox,
		Units:       grid.Units,
		Mean:        mean,
		Std:         std,
		Min:         lo,
		Max:         hi,
		P10:         percentile.Quantile(values, 10),
		P50:         percentile.Quantile(values, 50),
		P90:         percentile.Quantile(values, 90),
		Percentiles: make([]domain.LevelValue, len(s.levels)),
		CellCount:   matched,
		ValidCount:  len(values),
	}
	for i, l := range s.levels {
		result.Percentiles[i] = domain.LevelValue{Level: l, Value: percentile.Quantile(values, l)}
	}
	return result, nil
}

// selectCells returns the number of cells inside bbox and the valid values among them.
func (s *Summarizer) selectCells(grid domain.Grid, bbox domain.BoundingBox) (int, []float64) {
	var (
		matched int
		values  []float64
	)
	for i, lat := range grid.Lats {
		for j, lon := range grid.Lons {
			if !bbox.Contains(lat, lon) {
				continue
			}
			matched++
			v := grid.Values[i][j]
			if domain.IsMissing(v, s.sentinel) {
				continue
			}
			values = append(values, v)
		}
	}
	return matched, values
}
