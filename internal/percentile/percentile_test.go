package percentile

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		name string
		data []float64
		p    float64
		want float64
	}{
		{"median of even count", sorted, 50, 5.5},
		{"p10 interpolates", sorted, 10, 1.9},
		{"p90 interpolates", sorted, 90, 9.1},
		{"p0 is min", sorted, 0, 1},
		{"p100 is max", sorted, 100, 10},
		{"exact order statistic", []float64{10, 20, 30}, 50, 20},
		{"single value", []float64{42}, 99, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.data, tt.p), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(Quantile(nil, 50)))
}

func TestQuantiles_DoesNotMutateInput(t *testing.T) {
	data := []float64{5, 1, 3}
	got := Quantiles(data, []float64{50})
	assert.Equal(t, []float64{3}, got)
	assert.Equal(t, []float64{5, 1, 3}, data)
}

func TestNewAggregator_InvalidLevels(t *testing.T) {
	tests := []struct {
		name   string
		levels []float64
	}{
		{"empty", nil},
		{"zero", []float64{0, 50}},
		{"hundred", []float64{50, 100}},
		{"unsorted", []float64{50, 10}},
		{"duplicate", []float64{10, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAggregator(tt.levels)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

// yearsOfMonthlyData builds a monthly series whose value in month m of year y
// is 270 + m + y*0.1, so each month's samples are distinct and ordered by year.
func yearsOfMonthlyData(t *testing.T, years int) *series.Series {
	t.Helper()
	n := years * 12
	times := make([]time.Time, n)
	values := make([]float64, n)
	start := time.Date(1991, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range times {
		times[i] = start.AddDate(0, i, 0)
		values[i] = 270 + float64(times[i].Month()) + float64(i/12)*0.1
	}
	s, err := series.New(times, values, series.WithUnits("K"))
	require.NoError(t, err)
	return s
}

func TestFromSeries_AllMonths(t *testing.T) {
	agg, err := NewAggregator(domain.DefaultPercentileLevels)
	require.NoError(t, err)

	set, err := agg.FromSeries(yearsOfMonthlyData(t, 30))
	require.NoError(t, err)

	require.Len(t, set.Months, 12)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, set.MonthsWithData)
	assert.Empty(t, set.MonthErrors)
	assert.NoError(t, MonthErrors(set))
	assert.NoError(t, CheckMonotonic(set))
	assert.Equal(t, "K", set.Units)

	for _, mp := range set.Months {
		assert.Equal(t, 30, mp.Count)
		assert.Len(t, mp.Values, len(domain.DefaultPercentileLevels))
	}

	// July values are 277.0 .. 279.9; the median of 30 evenly spaced values is 278.45.
	median, ok := Lookup(set, 7, 50)
	require.True(t, ok)
	assert.InDelta(t, 278.45, median, 1e-9)
}

func TestFromSeries_SingleSamplePerMonth(t *testing.T) {
	agg, err := NewAggregator([]float64{10, 50, 90})
	require.NoError(t, err)

	set, err := agg.FromSeries(yearsOfMonthlyData(t, 1))
	require.NoError(t, err)
	for _, mp := range set.Months {
		want := 270 + float64(mp.Month)
		assert.Equal(t, []float64{want, want, want}, mp.Values, "month %d", mp.Month)
	}
}

func TestFromSeries_MissingMonth(t *testing.T) {
	times := []time.Time{
		time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	s, err := series.New(times, []float64{1, math.NaN(), 3, 5})
	require.NoError(t, err)

	agg, err := NewAggregator([]float64{50})
	require.NoError(t, err)
	set, err := agg.FromSeries(s)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, set.MonthsWithData)
	require.Len(t, set.MonthErrors, 10)
	assert.Equal(t, 2, set.MonthErrors[0].Month)

	joined := MonthErrors(set)
	require.Error(t, joined)
	assert.ErrorIs(t, joined, domain.ErrInsufficientData)
	var ierr *domain.InsufficientDataError
	require.True(t, errors.As(joined, &ierr))
	assert.Equal(t, 2, ierr.Month)

	jan, ok := Lookup(set, 1, 50)
	require.True(t, ok)
	assert.Equal(t, 3.0, jan)
	_, ok = Lookup(set, 2, 50)
	assert.False(t, ok)
	_, ok = Lookup(set, 1, 75)
	assert.False(t, ok)
}

func TestFromSeries_NoData(t *testing.T) {
	s, err := series.New(nil, nil)
	require.NoError(t, err)

	agg, err := NewAggregator([]float64{50})
	require.NoError(t, err)
	set, err := agg.FromSeries(s)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Len(t, set.MonthErrors, 12)
}

func TestFromCells(t *testing.T) {
	sentinel := -999.0
	cells := []domain.CellMonthValues{
		{Lat: 10, Lon: 20, ByMonth: map[int][]float64{1: {1, 2}, 6: {10}}},
		{Lat: 10, Lon: 21, ByMonth: map[int][]float64{1: {3, -999, math.NaN()}}},
	}
	agg, err := NewAggregator([]float64{50})
	require.NoError(t, err)

	set, err := agg.FromCells(cells, &sentinel, "degC")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6}, set.MonthsWithData)
	assert.Equal(t, "degC", set.Units)
	require.Len(t, set.Months, 2)
	assert.Equal(t, 3, set.Months[0].Count)
	assert.Equal(t, []float64{2}, set.Months[0].Values)

	_, err = agg.FromCells([]domain.CellMonthValues{{ByMonth: map[int][]float64{13: {1}}}}, nil, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckMonotonic(t *testing.T) {
	set := domain.PercentileSet{
		Levels: []float64{10, 50},
		Months: []domain.MonthPercentiles{{Month: 4, Values: []float64{5, 4}}},
	}
	err := CheckMonotonic(set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month 4: p50=4 below p10=5")

	set.Months[0].Values = []float64{5}
	assert.Error(t, CheckMonotonic(set))
}

func TestClimatology(t *testing.T) {
	c, err := Climatology(yearsOfMonthlyData(t, 3))
	require.NoError(t, err)

	require.Len(t, c.Months, 12)
	assert.Equal(t, []int{3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3}, c.Counts)
	// January: 271.0, 271.1, 271.2.
	assert.InDelta(t, 271.1, c.Values[0], 1e-9)
	assert.Equal(t, "K", c.Units)

	empty, err := series.New(nil, nil)
	require.NoError(t, err)
	_, err = Climatology(empty)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
