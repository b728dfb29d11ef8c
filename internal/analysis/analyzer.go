// Package analysis dispatches analysis requests to the statistical core and
// wraps the outcome for transport.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/couchcryptid/climate-analytics-service/internal/anomaly"
	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/observability"
	"github.com/couchcryptid/climate-analytics-service/internal/percentile"
	"github.com/couchcryptid/climate-analytics-service/internal/regional"
	"github.com/couchcryptid/climate-analytics-service/internal/series"
	"github.com/couchcryptid/climate-analytics-service/internal/trend"
)

// gapFactor flags intervals longer than this multiple of the median sampling interval.
const gapFactor = 1.5

// Service computes one analysis result per request.
type Service interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResult, error)
}

// Analyzer implements Service on top of the trend, percentile, regional and
// anomaly packages.
type Analyzer struct {
	opts       domain.Options
	estimator  *trend.Estimator
	aggregator *percentile.Aggregator
	summarizer *regional.Summarizer
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewAnalyzer validates opts and builds the statistical components.
func NewAnalyzer(opts domain.Options, logger *slog.Logger, metrics *observability.Metrics) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	est, err := trend.NewEstimator(opts.SignificanceAlpha)
	if err != nil {
		return nil, err
	}
	agg, err := percentile.NewAggregator(opts.PercentileLevels)
	if err != nil {
		return nil, err
	}
	sum, err := regional.NewSummarizer(opts.PercentileLevels, opts.MissingValueSentinel)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		opts:       opts,
		estimator:  est,
		aggregator: agg,
		summarizer: sum,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Analyze validates the shape of req and runs the requested computation.
//
// A request that names an unknown kind or omits the inputs its kind needs is
// rejected with a *domain.ValidationError. Failures that depend on the data
// itself (too few samples, an empty region, unordered timestamps) are
// reported in AnalysisResult.Error with a nil error.
func (a *Analyzer) Analyze(_ context.Context, req domain.AnalysisRequest) (domain.AnalysisResult, error) {
	if err := checkRequest(req); err != nil {
		a.metrics.AnalysisRequests.WithLabelValues(metricKind(req.Kind), "invalid").Inc()
		return domain.AnalysisResult{}, err
	}

	start := time.Now()
	res := domain.AnalysisResult{
		ID:        req.ID,
		Kind:      req.Kind,
		DatasetID: req.DatasetID,
		Location:  req.Location,
	}

	err := a.compute(req, &res)
	a.metrics.AnalysisDuration.WithLabelValues(req.Kind).Observe(time.Since(start).Seconds())
	res.ComputedAt = domain.Now()

	if err != nil {
		res.Error = domain.ClassifyError(err)
		a.metrics.AnalysisRequests.WithLabelValues(req.Kind, "no_result").Inc()
		a.logger.Info("analysis produced no result",
			"id", req.ID,
			"kind", req.Kind,
			"dataset_id", req.DatasetID,
			"error_kind", res.Error.Kind,
			"error", err,
		)
		return res, nil
	}

	a.metrics.AnalysisRequests.WithLabelValues(req.Kind, "success").Inc()
	a.logger.Debug("analysis complete", "id", req.ID, "kind", req.Kind, "duration", time.Since(start))
	return res, nil
}

func (a *Analyzer) compute(req domain.AnalysisRequest, res *domain.AnalysisResult) error {
	switch req.Kind {
	case domain.KindTrend:
		s, err := a.series(req)
		if err != nil {
			return err
		}
		tr, err := a.estimator.Estimate(s)
		if err != nil {
			return err
		}
		res.Trend = &tr
		res.Gaps = detectGaps(s)

	case domain.KindPercentiles:
		var (
			set domain.PercentileSet
			err error
		)
		if len(req.Cells) > 0 {
			a.metrics.SamplesAnalyzed.Add(float64(len(req.Cells)))
			set, err = a.aggregator.FromCells(req.Cells, a.opts.MissingValueSentinel, req.Units)
		} else {
			var s *series.Series
			if s, err = a.series(req); err != nil {
				return err
			}
			set, err = a.aggregator.FromSeries(s)
		}
		if err != nil {
			return err
		}
		res.Percentiles = &set

	case domain.KindClimatology:
		s, err := a.series(req)
		if err != nil {
			return err
		}
		c, err := percentile.Climatology(s)
		if err != nil {
			return err
		}
		res.Climatology = &c

	case domain.KindRegional:
		grid := *req.Grid
		if grid.Units == "" {
			grid.Units = req.Units
		}
		a.metrics.SamplesAnalyzed.Add(float64(len(grid.Lats) * len(grid.Lons)))
		rs, err := a.summarizer.Summarize(grid, *req.BBox)
		if err != nil {
			return err
		}
		res.Regional = &rs

	case domain.KindAnomaly:
		s, err := a.series(req)
		if err != nil {
			return err
		}
		at, err := series.ParseTime(req.At)
		if err != nil {
			return domain.NewValidationError("at", "%v", err)
		}
		var ref domain.ReferencePeriod
		if req.Reference != nil {
			ref = *req.Reference
		}
		an, err := anomaly.Compute(s, at, req.Anomaly, ref)
		if err != nil {
			return err
		}
		res.Anomaly = &an

	default:
		return fmt.Errorf("unhandled kind %q", req.Kind)
	}
	return nil
}

// series builds the point series of req, restricted to StartDate/EndDate when given.
func (a *Analyzer) series(req domain.AnalysisRequest) (*series.Series, error) {
	s, err := series.FromSamples(req.Samples, a.opts.MissingValueSentinel,
		series.WithUnits(req.Units), series.WithVariable(req.Variable))
	if err != nil {
		return nil, err
	}
	a.metrics.SamplesAnalyzed.Add(float64(s.Len()))

	if req.StartDate == "" && req.EndDate == "" {
		return s, nil
	}
	start, end := s.Start(), s.End()
	if req.StartDate != "" {
		if start, err = series.ParseTime(req.StartDate); err != nil {
			return nil, domain.NewValidationError("start_date", "%v", err)
		}
	}
	if req.EndDate != "" {
		if end, err = series.ParseTime(req.EndDate); err != nil {
			return nil, domain.NewValidationError("end_date", "%v", err)
		}
	}
	return s.SliceByRange(start, end), nil
}

// detectGaps reports intervals well beyond the typical sampling interval.
func detectGaps(s *series.Series) []domain.Gap {
	times := s.Times()
	if len(times) < 3 {
		return nil
	}
	intervals := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals[i-1] = times[i].Sub(times[i-1]).Hours() / 24
	}
	median, err := stats.Median(intervals)
	if err != nil {
		return nil
	}
	return s.Gaps(median * gapFactor)
}

func checkRequest(req domain.AnalysisRequest) error {
	switch req.Kind {
	case domain.KindTrend, domain.KindClimatology:
		if len(req.Samples) == 0 {
			return domain.NewValidationError("samples", "%s requires samples", req.Kind)
		}
	case domain.KindPercentiles:
		if len(req.Samples) == 0 && len(req.Cells) == 0 {
			return domain.NewValidationError("samples", "percentiles require samples or cells")
		}
	case domain.KindRegional:
		if req.Grid == nil {
			return domain.NewValidationError("grid", "regional requires a grid")
		}
		if req.BBox == nil {
			return domain.NewValidationError("bbox", "regional requires a bbox")
		}
	case domain.KindAnomaly:
		if len(req.Samples) == 0 {
			return domain.NewValidationError("samples", "anomaly requires samples")
		}
		if req.At == "" {
			return domain.NewValidationError("at", "anomaly requires a time")
		}
	case "":
		return domain.NewValidationError("kind", "kind is required")
	default:
		return domain.NewValidationError("kind", "unknown kind %q", req.Kind)
	}
	return nil
}

// metricKind keeps arbitrary client input out of label values.
func metricKind(kind string) string {
	switch kind {
	case domain.KindTrend, domain.KindPercentiles, domain.KindClimatology, domain.KindRegional, domain.KindAnomaly:
		return kind
	default:
		return "unknown"
	}
}

// IsRequestError reports whether err rejects the request itself rather than
// signalling an internal failure.
func IsRequestError(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}
