// Package anomaly expresses an observation as a departure from its monthly
// reference climate.
package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/series"
)

// MinReferenceSamples is the fewest same-month reference samples a climate
// mean and spread are derived from.
const MinReferenceSamples = 2

// DefaultReferencePeriod is the WMO 1991-2020 climate normal.
var DefaultReferencePeriod = domain.ReferencePeriod{Start: 1991, End: 2020}

// Compute returns the anomaly of the observation in the calendar month of at
// (the valid sample nearest to at within that year and month) against the mean
// of the same calendar month over the reference years.
//
// A zero ref selects DefaultReferencePeriod. Standardized anomalies need a
// non-zero reference spread.
func Compute(s *series.Series, at time.Time, kind domain.AnomalyType, ref domain.ReferencePeriod) (domain.Anomaly, error) {
	if kind == "" {
		kind = domain.AnomalyAbsolute
	}
	if kind != domain.AnomalyAbsolute && kind != domain.AnomalyStandardized {
		return domain.Anomaly{}, domain.NewValidationError("anomaly_type", "unknown type %q", kind)
	}
	if ref == (domain.ReferencePeriod{}) {
		ref = DefaultReferencePeriod
	}
	if ref.Start > ref.End {
		return domain.Anomaly{}, domain.NewValidationError("reference_period", "start %d after end %d", ref.Start, ref.End)
	}

	at = at.UTC()
	month := at.Month()
	times, values := s.Valid()

	obsIdx := -1
	var reference []float64
	for i, t := range times {
		if t.Month() != month {
			continue
		}
		if y := t.Year(); y >= ref.Start && y <= ref.End {
			reference = append(reference, values[i])
		}
		if t.Year() == at.Year() && (obsIdx < 0 || absDuration(t.Sub(at)) < absDuration(times[obsIdx].Sub(at))) {
			obsIdx = i
		}
	}

	if obsIdx < 0 {
		return domain.Anomaly{}, &domain.InsufficientDataError{Scope: "anomaly", Month: int(month), Count: 0, Required: 1}
	}
	if len(reference) < MinReferenceSamples {
		return domain.Anomaly{}, &domain.InsufficientDataError{
			Scope: "anomaly reference", Month: int(month), Count: len(reference), Required: MinReferenceSamples,
		}
	}

	mean, err := stats.Mean(reference)
	if err != nil {
		return domain.Anomaly{}, fmt.Errorf("reference mean: %w", err)
	}
	std, err := stats.StandardDeviationPopulation(reference)
	if err != nil {
		return domain.Anomaly{}, fmt.Errorf("reference std: %w", err)
	}

	observed := values[obsIdx]
	diff := observed - mean
	z := zScore(diff, std)

	a := domain.Anomaly{
		Time:            times[obsIdx],
		Type:            kind,
		Units:           s.Units(),
		Observed:        observed,
		ReferenceMean:   mean,
		ReferenceStd:    std,
		ZScore:          z,
		ReferencePeriod: ref,
		Classification:  Classify(z),
	}
	switch kind {
	case domain.AnomalyStandardized:
		if std == 0 {
			return domain.Anomaly{}, &domain.InsufficientDataError{
				Scope: "standardized anomaly", Month: int(month), Count: len(reference), Required: MinReferenceSamples,
			}
		}
		a.Value = z
		a.Units = "sigma"
	default:
		a.Value = diff
	}
	return a, nil
}

// zScoreSaturated stands in for z when the reference has no spread but the
// observation differs from it.
const zScoreSaturated = 100.0

func zScore(diff, std float64) float64 {
	if std == 0 {
		if diff == 0 {
			return 0
		}
		return math.Copysign(zScoreSaturated, diff)
	}
	return diff / std
}

// Classify maps a standardized score to a signed severity level and label.
func Classify(z float64) domain.AnomalyClassification {
	abs := math.Abs(z)
	var level int
	var label string
	switch {
	case abs < 0.5:
		return domain.AnomalyClassification{Level: 0, Label: "near normal"}
	case abs < 1:
		level, label = 1, "slightly %s normal"
	case abs < 2:
		level, label = 2, "%s normal"
	default:
		level, label = 3, "much %s normal"
	}
	dir := "above"
	if z < 0 {
		level, dir = -level, "below"
	}
	return domain.AnomalyClassification{Level: level, Label: fmt.Sprintf(label, dir)}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
