// Package trend fits ordinary least-squares linear trends to time series and
// tests their significance against Student's t distribution.
package trend

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/series"
)

// MinSamples is the smallest number of valid samples a trend is fitted to.
// Two points leave no degrees of freedom for the residual error.
const MinSamples = 3

// daysPerJulianYear converts Julian day differences to fractional years.
const daysPerJulianYear = 365.25

// Estimator fits linear trends at a fixed significance level.
type Estimator struct {
	alpha float64
}

// NewEstimator creates an Estimator. alpha must lie in (0, 1).
func NewEstimator(alpha float64) (*Estimator, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha >= 1 {
		return nil, domain.NewValidationError("significance_alpha", "%g outside (0, 1)", alpha)
	}
	return &Estimator{alpha: alpha}, nil
}

// Alpha returns the significance level.
func (e *Estimator) Alpha() float64 { return e.alpha }

// Estimate fits value = intercept + slope*years over the valid samples of s,
// where years are measured from the first valid sample.
//
// The p-value is two-tailed with n-2 degrees of freedom. Constant input yields
// slope 0 and p-value 1 rather than a division by zero.
func (e *Estimator) Estimate(s *series.Series) (domain.TrendResult, error) {
	times, y := s.Valid()
	n := len(y)
	if n < MinSamples {
		return domain.TrendResult{}, &domain.InsufficientDataError{Scope: "trend", Count: n, Required: MinSamples}
	}

	x := FractionalYears(times)

	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	nf := float64(n)
	meanX, meanY := sumX/nf, sumY/nf

	// Centred second pass keeps Sxy accurate for values around 280 K.
	var sxx, sxy, syy float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	result := domain.TrendResult{
		SlopeUnits: domain.SlopeUnits(s.Units()),
		Alpha:      e.alpha,
		Period:     domain.YearPeriod{Start: times[0].Year(), End: times[n-1].Year()},
		N:          n,
	}

	if constant(y) {
		result.Intercept = y[0]
		result.PValue = 1
		return result, nil
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var sse float64
	for i := range x {
		r := y[i] - (intercept + slope*x[i])
		sse += r * r
	}
	df := nf - 2
	se := math.Sqrt(sse / df / sxx)

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	var pValue float64
	if se > 0 {
		pValue = math.Min(1, 2*dist.Survival(math.Abs(slope/se)))
	}
	margin := dist.Quantile(1-e.alpha/2) * se

	result.Slope = slope
	result.Intercept = intercept
	result.PValue = pValue
	result.Significant = pValue < e.alpha
	result.ConfidenceInterval = domain.ConfidenceInterval{Lower: slope - margin, Upper: slope + margin}
	result.RSquared = math.Max(0, 1-sse/syy)
	result.StdError = se
	return result, nil
}

// constant compares values directly; a centred sum of squares can be a few
// ulps above zero when the mean is not exactly representable.
func constant(y []float64) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

// FractionalYears converts timestamps to Julian years elapsed since the first one.
func FractionalYears(times []time.Time) []float64 {
	out := make([]float64, len(times))
	if len(times) == 0 {
		return out
	}
	jd0 := julian.TimeToJD(times[0])
	for i, t := range times {
		out[i] = (julian.TimeToJD(t) - jd0) / daysPerJulianYear
	}
	return out
}
