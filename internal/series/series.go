// Package series provides the immutable time series that every analysis
// starts from.
package series

import (
	"strings"
	"time"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
)

const secondsPerDay = 24 * 60 * 60

// Series is an ordered, immutable sequence of (timestamp, value) pairs for one
// location and variable. Timestamps are strictly increasing.
type Series struct {
	times    []time.Time
	values   []float64
	missing  []bool
	variable string
	units    string
}

type settings struct {
	sentinel *float64
	mask     []bool
	variable string
	units    string
}

// Option configures New.
type Option func(*settings)

// WithSentinel marks values equal to v as missing.
func WithSentinel(v float64) Option {
	return func(s *settings) { s.sentinel = &v }
}

// WithMissing marks entries whose mask element is true as missing.
func WithMissing(mask []bool) Option {
	return func(s *settings) { s.mask = mask }
}

// WithVariable records the variable name, e.g. "2m_temperature".
func WithVariable(name string) Option {
	return func(s *settings) { s.variable = name }
}

// WithUnits records the physical units of the values, e.g. "K".
func WithUnits(units string) Option {
	return func(s *settings) { s.units = units }
}

// New copies times and values into a Series. NaN values are always missing.
func New(times []time.Time, values []float64, opts ...Option) (*Series, error) {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(times) != len(values) {
		return nil, domain.NewValidationError("values", "have %d values for %d timestamps", len(values), len(times))
	}
	if cfg.mask != nil && len(cfg.mask) != len(values) {
		return nil, domain.NewValidationError("missing", "mask has %d entries for %d values", len(cfg.mask), len(values))
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, domain.NewValidationError("times", "timestamp %d (%s) does not follow %s",
				i, times[i].Format(time.RFC3339), times[i-1].Format(time.RFC3339))
		}
	}

	s := &Series{
		times:    make([]time.Time, len(times)),
		values:   make([]float64, len(values)),
		missing:  make([]bool, len(values)),
		variable: cfg.variable,
		units:    cfg.units,
	}
	copy(s.times, times)
	copy(s.values, values)
	for i, v := range values {
		s.missing[i] = domain.IsMissing(v, cfg.sentinel) || (cfg.mask != nil && cfg.mask[i])
	}
	return s, nil
}

// FromSamples parses fetched samples. Dates may be "2006-01-02" or RFC 3339.
func FromSamples(samples []domain.Sample, sentinel *float64, opts ...Option) (*Series, error) {
	times := make([]time.Time, len(samples))
	values := make([]float64, len(samples))
	mask := make([]bool, len(samples))
	for i, smp := range samples {
		t, err := ParseTime(smp.Time)
		if err != nil {
			return nil, domain.NewValidationError("samples", "sample %d: %v", i, err)
		}
		times[i] = t
		values[i] = smp.Value
		mask[i] = smp.Missing
	}

	all := make([]Option, 0, len(opts)+2)
	all = append(all, WithMissing(mask))
	if sentinel != nil {
		all = append(all, WithSentinel(*sentinel))
	}
	all = append(all, opts...)
	return New(times, values, all...)
}

// ParseTime accepts an ISO-8601 calendar date or an RFC 3339 timestamp and
// returns it in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Len returns the number of samples, missing ones included.
func (s *Series) Len() int { return len(s.times) }

// At returns the i-th sample and whether it is missing.
func (s *Series) At(i int) (time.Time, float64, bool) {
	return s.times[i], s.values[i], s.missing[i]
}

// Times returns a copy of the timestamps.
func (s *Series) Times() []time.Time {
	out := make([]time.Time, len(s.times))
	copy(out, s.times)
	return out
}

// Values returns a copy of the values, missing entries included.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Valid returns the timestamps and values of the non-missing samples.
func (s *Series) Valid() ([]time.Time, []float64) {
	times := make([]time.Time, 0, len(s.times))
	values := make([]float64, 0, len(s.values))
	for i := range s.times {
		if s.missing[i] {
			continue
		}
		times = append(times, s.times[i])
		values = append(values, s.values[i])
	}
	return times, values
}

// ValidCount returns the number of non-missing samples.
func (s *Series) ValidCount() int {
	n := 0
	for _, m := range s.missing {
		if !m {
			n++
		}
	}
	return n
}

// Start returns the first timestamp, or the zero time for an empty series.
func (s *Series) Start() time.Time {
	if len(s.times) == 0 {
		return time.Time{}
	}
	return s.times[0]
}

// End returns the last timestamp, or the zero time for an empty series.
func (s *Series) End() time.Time {
	if len(s.times) == 0 {
		return time.Time{}
	}
	return s.times[len(s.times)-1]
}

// Variable returns the variable name, if known.
func (s *Series) Variable() string { return s.variable }

// Units returns the value units, if known.
func (s *Series) Units() string { return s.units }

// SliceByRange returns the samples within [start, end], inclusive on both ends.
// The result is empty when the range does not overlap the series.
func (s *Series) SliceByRange(start, end time.Time) *Series {
	out := &Series{variable: s.variable, units: s.units}
	if end.Before(start) {
		return out
	}
	for i, t := range s.times {
		if t.Before(start) || t.After(end) {
			continue
		}
		out.times = append(out.times, t)
		out.values = append(out.values, s.values[i])
		out.missing = append(out.missing, s.missing[i])
	}
	return out
}

// HasGaps reports whether any two adjacent samples are more than
// maxIntervalDays apart.
func (s *Series) HasGaps(maxIntervalDays float64) bool {
	for i := 1; i < len(s.times); i++ {
		if intervalDays(s.times[i-1], s.times[i]) > maxIntervalDays {
			return true
		}
	}
	return false
}

// Gaps lists every adjacent interval longer than maxIntervalDays.
func (s *Series) Gaps(maxIntervalDays float64) []domain.Gap {
	var gaps []domain.Gap
	for i := 1; i < len(s.times); i++ {
		if d := intervalDays(s.times[i-1], s.times[i]); d > maxIntervalDays {
			gaps = append(gaps, domain.Gap{From: s.times[i-1], To: s.times[i], Days: d})
		}
	}
	return gaps
}

func intervalDays(a, b time.Time) float64 {
	return b.Sub(a).Seconds() / secondsPerDay
}
