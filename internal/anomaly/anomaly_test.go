package anomaly

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

// julySeries has one sample per July from 2001 to 2010 with values
// 290, 292, 290, 292, ... and a hot July 2010.
func julySeries(t *testing.T, last float64) *series.Series {
	t.Helper()
	var times []time.Time
	var values []float64
	for y := 2001; y <= 2010; y++ {
		times = append(times, time.Date(y, time.July, 1, 0, 0, 0, 0, time.UTC))
		v := 290.0
		if y%2 == 0 {
			v = 292
		}
		values = append(values, v)
	}
	values[len(values)-1] = last
	s, err := series.New(times, values, series.WithUnits("K"))
	require.NoError(t, err)
	return s
}

var ref = domain.ReferencePeriod{Start: 2001, End: 2008}

func TestCompute_Absolute(t *testing.T) {
	at := time.Date(2010, time.July, 15, 0, 0, 0, 0, time.UTC)
	got, err := Compute(julySeries(t, 294), at, domain.AnomalyAbsolute, ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2010, time.July, 1, 0, 0, 0, 0, time.UTC), got.Time)
	assert.Equal(t, 294.0, got.Observed)
	assert.InDelta(t, 291.0, got.ReferenceMean, 1e-12)
	assert.InDelta(t, 1.0, got.ReferenceStd, 1e-12)
	assert.InDelta(t, 3.0, got.Value, 1e-12)
	assert.InDelta(t, 3.0, got.ZScore, 1e-12)
	assert.Equal(t, "K", got.Units)
	assert.Equal(t, ref, got.ReferencePeriod)
	assert.Equal(t, domain.AnomalyClassification{Level: 3, Label: "much above normal"}, got.Classification)
}

func TestCompute_Standardized(t *testing.T) {
	at := time.Date(2010, time.July, 1, 0, 0, 0, 0, time.UTC)
	got, err := Compute(julySeries(t, 289.5), at, domain.AnomalyStandardized, ref)
	require.NoError(t, err)

	assert.InDelta(t, -1.5, got.Value, 1e-12)
	assert.Equal(t, "sigma", got.Units)
	assert.Equal(t, domain.AnomalyClassification{Level: -2, Label: "below normal"}, got.Classification)
}

func TestCompute_DefaultsToAbsoluteAndNormalPeriod(t *testing.T) {
	var times []time.Time
	var values []float64
	for y := 1991; y <= 2021; y++ {
		times = append(times, time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC))
		values = append(values, float64(y-1991))
	}
	s, err := series.New(times, values)
	require.NoError(t, err)

	got, err := Compute(s, time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), "", domain.ReferencePeriod{})
	require.NoError(t, err)
	assert.Equal(t, domain.AnomalyAbsolute, got.Type)
	assert.Equal(t, DefaultReferencePeriod, got.ReferencePeriod)
	// 1991-2020 values are 0..29 with mean 14.5; 2021 is 30.
	assert.InDelta(t, 15.5, got.Value, 1e-12)
}

func TestCompute_Errors(t *testing.T) {
	s := julySeries(t, 294)
	july2010 := time.Date(2010, time.July, 1, 0, 0, 0, 0, time.UTC)

	t.Run("unknown type", func(t *testing.T) {
		_, err := Compute(s, july2010, "relative", ref)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("inverted reference", func(t *testing.T) {
		_, err := Compute(s, july2010, domain.AnomalyAbsolute, domain.ReferencePeriod{Start: 2010, End: 2000})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("no observation in month", func(t *testing.T) {
		_, err := Compute(s, time.Date(2010, time.August, 1, 0, 0, 0, 0, time.UTC), domain.AnomalyAbsolute, ref)
		var ierr *domain.InsufficientDataError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, 8, ierr.Month)
	})

	t.Run("short reference", func(t *testing.T) {
		_, err := Compute(s, july2010, domain.AnomalyAbsolute, domain.ReferencePeriod{Start: 2001, End: 2001})
		var ierr *domain.InsufficientDataError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, 1, ierr.Count)
		assert.Equal(t, MinReferenceSamples, ierr.Required)
	})

	t.Run("flat reference cannot be standardized", func(t *testing.T) {
		flat := domain.ReferencePeriod{Start: 2001, End: 2003}
		_, err := Compute(s, july2010, domain.AnomalyStandardized, domain.ReferencePeriod{Start: 2002, End: 2002})
		assert.ErrorIs(t, err, domain.ErrInsufficientData)

		// 2001 and 2003 are both 290: std 0.
		times := []time.Time{
			time.Date(2001, 7, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2003, 7, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2010, 7, 1, 0, 0, 0, 0, time.UTC),
		}
		fs, err := series.New(times, []float64{290, 290, 291})
		require.NoError(t, err)

		_, err = Compute(fs, july2010, domain.AnomalyStandardized, flat)
		assert.ErrorIs(t, err, domain.ErrInsufficientData)

		abs, err := Compute(fs, july2010, domain.AnomalyAbsolute, flat)
		require.NoError(t, err)
		assert.Equal(t, 1.0, abs.Value)
		assert.Equal(t, 3, abs.Classification.Level)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		z     float64
		level int
		label string
	}{
		{0, 0, "near normal"},
		{0.49, 0, "near normal"},
		{-0.49, 0, "near normal"},
		{0.5, 1, "slightly above normal"},
		{-0.99, -1, "slightly below normal"},
		{1, 2, "above normal"},
		{-1.5, -2, "below normal"},
		{2, 3, "much above normal"},
		{-7, -3, "much below normal"},
		{math.Inf(1), 3, "much above normal"},
	}
	for _, tt := range tests {
		got := Classify(tt.z)
		assert.Equal(t, tt.level, got.Level, "z=%v", tt.z)
		assert.Equal(t, tt.label, got.Label, "z=%v", tt.z)
	}
}
