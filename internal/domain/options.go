package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// StepUnit is the calendar increment the animation cursor advances by.
type StepUnit string

const (
	StepDay   StepUnit = "day"
	StepMonth StepUnit = "month"
	StepYear  StepUnit = "year"
)

// ParseStepUnit accepts "day", "month" or "year" in any case.
func ParseStepUnit(s string) (StepUnit, error) {
	switch u := StepUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case StepDay, StepMonth, StepYear:
		return u, nil
	default:
		return "", NewValidationError("step_unit", "unknown unit %q", s)
	}
}

// AnimationState is a snapshot of the animation cursor.
type AnimationState struct {
	CurrentTime time.Time `json:"current_time"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Playing     bool      `json:"playing"`
	Speed       float64   `json:"speed"`
	StepUnit    StepUnit  `json:"step_unit"`
}

// DefaultPercentileLevels are the climatological bands shown by the front end.
var DefaultPercentileLevels = []float64{10, 25, 50, 75, 90, 95, 99}

// Options configures the analytics core.
type Options struct {
	SignificanceAlpha    float64
	PercentileLevels     []float64
	AnimationStepUnit    StepUnit
	MissingValueSentinel *float64
}

// DefaultOptions returns alpha 0.05, the default percentile levels, monthly
// animation steps and no missing-value sentinel.
func DefaultOptions() Options {
	levels := make([]float64, len(DefaultPercentileLevels))
	copy(levels, DefaultPercentileLevels)
	return Options{
		SignificanceAlpha: 0.05,
		PercentileLevels:  levels,
		AnimationStepUnit: StepMonth,
	}
}

// Validate checks every option.
func (o Options) Validate() error {
	if math.IsNaN(o.SignificanceAlpha) || o.SignificanceAlpha <= 0 || o.SignificanceAlpha >= 1 {
		return NewValidationError("significance_alpha", "%g outside (0, 1)", o.SignificanceAlpha)
	}
	if err := ValidateLevels(o.PercentileLevels); err != nil {
		return err
	}
	if _, err := ParseStepUnit(string(o.AnimationStepUnit)); err != nil {
		return err
	}
	if o.MissingValueSentinel != nil && math.IsNaN(*o.MissingValueSentinel) {
		return NewValidationError("missing_value_sentinel", "NaN is always treated as missing")
	}
	return nil
}

// ValidateLevels requires a non-empty, strictly increasing list within (0, 100).
func ValidateLevels(levels []float64) error {
	if len(levels) == 0 {
		return NewValidationError("percentile_levels", "at least one level is required")
	}
	for i, l := range levels {
		if math.IsNaN(l) || l <= 0 || l >= 100 {
			return NewValidationError("percentile_levels", "level %g outside (0, 100)", l)
		}
		if i > 0 && l <= levels[i-1] {
			return NewValidationError("percentile_levels", "levels must be strictly increasing, got %g after %g", l, levels[i-1])
		}
	}
	return nil
}

// IsMissing reports whether v is NaN or equals the sentinel.
func IsMissing(v float64, sentinel *float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return sentinel != nil && v == *sentinel
}

// FormatLevel renders a percentile level as a field name, e.g. 10 -> "p10", 2.5 -> "p2.5".
func FormatLevel(level float64) string {
	return fmt.Sprintf("p%g", level)
}
