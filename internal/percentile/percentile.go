// Package percentile computes climatological percentile bands grouped by
// calendar month.
package percentile

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/series"
)

// Quantile returns the p-th percentile (0-100) of sorted data using linear
// interpolation between order statistics (Hyndman-Fan type 7):
// rank = p/100 * (n-1). It returns NaN for empty input.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := math.Floor(rank)
	hi := math.Ceil(rank)
	if lo == hi {
		return sorted[int(lo)]
	}
	frac := rank - lo
	return sorted[int(lo)] + frac*(sorted[int(hi)]-sorted[int(lo)])
}

// Quantiles sorts a copy of data once and evaluates every level.
func Quantiles(data []float64, levels []float64) []float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = Quantile(sorted, l)
	}
	return out
}

// Aggregator evaluates a fixed, ordered list of percentile levels.
type Aggregator struct {
	levels []float64
}

// NewAggregator validates levels: non-empty, strictly increasing, within (0, 100).
func NewAggregator(levels []float64) (*Aggregator, error) {
	if err := domain.ValidateLevels(levels); err != nil {
		return nil, err
	}
	l := make([]float64, len(levels))
	copy(l, levels)
	return &Aggregator{levels: l}, nil
}

// Levels returns a copy of the configured levels.
func (a *Aggregator) Levels() []float64 {
	out := make([]float64, len(a.levels))
	copy(out, a.levels)
	return out
}

// FromSeries groups the valid samples of a point series by calendar month.
func (a *Aggregator) FromSeries(s *series.Series) (domain.PercentileSet, error) {
	var byMonth [13][]float64
	times, values := s.Valid()
	for i, t := range times {
		m := int(t.Month())
		byMonth[m] = append(byMonth[m], values[i])
	}
	return a.build(byMonth, s.Units())
}

// FromCells pools the monthly values of every grid cell. Values that are NaN
// or equal the sentinel are dropped; month keys outside 1-12 are rejected.
func (a *Aggregator) FromCells(cells []domain.CellMonthValues, sentinel *float64, units string) (domain.PercentileSet, error) {
	var byMonth [13][]float64
	for ci, c := range cells {
		for m, vals := range c.ByMonth {
			if m < 1 || m > 12 {
				return domain.PercentileSet{}, domain.NewValidationError("cells", "cell %d has month key %d outside 1-12", ci, m)
			}
			for _, v := range vals {
				if domain.IsMissing(v, sentinel) {
					continue
				}
				byMonth[m] = append(byMonth[m], v)
			}
		}
	}
	return a.build(byMonth, units)
}

// build computes every month independently. A month without samples is
// recorded in MonthErrors; only a set with no data at all is an error.
func (a *Aggregator) build(byMonth [13][]float64, units string) (domain.PercentileSet, error) {
	set := domain.PercentileSet{
		Levels: a.Levels(),
		Units:  units,
	}
	for m := 1; m <= 12; m++ {
		vals := byMonth[m]
		if len(vals) == 0 {
			set.MonthErrors = append(set.MonthErrors, domain.InsufficientDataError{
				Scope: "percentile", Month: m, Count: 0, Required: 1,
			})
			continue
		}
		set.Months = append(set.Months, domain.MonthPercentiles{
			Month:  m,
			Count:  len(vals),
			Values: Quantiles(vals, a.levels),
		})
		set.MonthsWithData = append(set.MonthsWithData, m)
	}

	if len(set.Months) == 0 {
		return set, &domain.InsufficientDataError{Scope: "percentile", Count: 0, Required: 1}
	}
	return set, nil
}

// MonthErrors joins the per-month failures of a set, or returns nil when every
// month has data. Each joined error matches *domain.InsufficientDataError.
func MonthErrors(set domain.PercentileSet) error {
	errs := make([]error, 0, len(set.MonthErrors))
	for i := range set.MonthErrors {
		e := set.MonthErrors[i]
		errs = append(errs, &e)
	}
	return errors.Join(errs...)
}

// Lookup returns the value for a month and level, if present.
func Lookup(set domain.PercentileSet, month int, level float64) (float64, bool) {
	li := -1
	for i, l := range set.Levels {
		if l == level {
			li = i
			break
		}
	}
	if li < 0 {
		return 0, false
	}
	for _, mp := range set.Months {
		if mp.Month == month {
			return mp.Values[li], true
		}
	}
	return 0, false
}

// CheckMonotonic verifies that every month's values are non-decreasing in level.
func CheckMonotonic(set domain.PercentileSet) error {
	for _, mp := range set.Months {
		if len(mp.Values) != len(set.Levels) {
			return fmt.Errorf("month %d: %d values for %d levels", mp.Month, len(mp.Values), len(set.Levels))
		}
		for i := 1; i < len(mp.Values); i++ {
			if mp.Values[i] < mp.Values[i-1] {
				return fmt.Errorf("month %d: %s=%g below %s=%g", mp.Month,
					domain.FormatLevel(set.Levels[i]), mp.Values[i],
					domain.FormatLevel(set.Levels[i-1]), mp.Values[i-1])
			}
		}
	}
	return nil
}

// Climatology returns the mean of the valid samples in each calendar month
// that has data.
func Climatology(s *series.Series) (domain.Climatology, error) {
	var byMonth [13][]float64
	times, values := s.Valid()
	for i, t := range times {
		m := int(t.Month())
		byMonth[m] = append(byMonth[m], values[i])
	}

	c := domain.Climatology{Units: s.Units()}
	for m := 1; m <= 12; m++ {
		if len(byMonth[m]) == 0 {
			continue
		}
		mean, err := stats.Mean(byMonth[m])
		if err != nil {
			return domain.Climatology{}, fmt.Errorf("climatology month %d: %w", m, err)
		}
		c.Months = append(c.Months, m)
		c.Values = append(c.Values, mean)
		c.Counts = append(c.Counts, len(byMonth[m]))
	}
	if len(c.Months) == 0 {
		return c, &domain.InsufficientDataError{Scope: "climatology", Count: 0, Required: 1}
	}
	return c, nil
}
