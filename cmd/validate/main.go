// Command validate runs a request fixture produced by cmd/genmock through the
// analyzer and checks the invariants every result must satisfy: trend
// confidence intervals bracket the slope and agree with an independent
// regression, percentiles are monotonic across levels for all twelve months,
// and regional summaries are ordered min <= p10 <= p50 <= p90 <= max.
//
// Usage:
//
//	go run ./cmd/validate -fixture data/mock/requests.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/climate-analytics-service/internal/analysis"
	"github.com/couchcryptid/climate-analytics-service/internal/anomaly"
	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/observability"
	"github.com/couchcryptid/climate-analytics-service/internal/percentile"
	"github.com/couchcryptid/climate-analytics-service/internal/series"
	"github.com/couchcryptid/climate-analytics-service/internal/trend"
)

// fixture mirrors the document written by cmd/genmock.
type fixture struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Seed        uint64                   `json:"seed"`
	Requests    []domain.AnalysisRequest `json:"requests"`
}

// analysed pairs a request with its result.
type analysed struct {
	req domain.AnalysisRequest
	res domain.AnalysisResult
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	checked int
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixturePath := flag.String("fixture", "", "path to the request fixture written by genmock")
	flag.Parse()

	if *fixturePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixturePath); code != 0 {
		os.Exit(code)
	}
}

func run(fixturePath string) int {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== Climate Analytics Invariant Validation ===")
	fmt.Println()

	fx, err := loadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	analyzer, err := analysis.NewAnalyzer(domain.DefaultOptions(), logger, observability.NewMetricsForTesting())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build analyzer: %v\n", err)
		return 1
	}

	results, execPhase := analyseAll(analyzer, fx.Requests)

	phases := []*phase{
		execPhase,
		validateTrends(results),
		validatePercentiles(results),
		validateClimatology(results),
		validateRegional(results),
		validateAnomalies(results),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %3d checked  %s\n", p.name, p.checked, status)
	}

	fmt.Println()
	fmt.Printf("Requests: %d (seed %d, generated %s)\n", len(fx.Requests), fx.Seed, fx.GeneratedAt.Format(time.RFC3339))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadFixture(path string) (fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fixture{}, err
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return fixture{}, err
	}
	if len(fx.Requests) == 0 {
		return fixture{}, fmt.Errorf("no requests in %s", path)
	}
	return fx, nil
}

// ── Phases ──

func analyseAll(analyzer *analysis.Analyzer, requests []domain.AnalysisRequest) ([]analysed, *phase) {
	p := &phase{name: "Phase 1: Every request produces a result"}
	out := make([]analysed, 0, len(requests))
	for _, req := range requests {
		p.checked++
		res, err := analyzer.Analyze(context.Background(), req)
		if err != nil {
			p.errorf("%s: rejected: %v", req.ID, err)
			continue
		}
		if res.Error != nil {
			p.errorf("%s: %s: %s", req.ID, res.Error.Kind, res.Error.Message)
			continue
		}
		if res.ID != req.ID || res.Kind != req.Kind {
			p.errorf("%s: result identity %s/%s does not match request", req.ID, res.ID, res.Kind)
		}
		out = append(out, analysed{req: req, res: res})
	}
	return out, p
}

func validateTrends(results []analysed) *phase {
	p := &phase{name: "Phase 2: Trend CI and regression agreement"}
	for _, a := range results {
		tr := a.res.Trend
		if tr == nil {
			continue
		}
		p.checked++
		ci := tr.ConfidenceInterval
		if ci.Lower > tr.Slope || tr.Slope > ci.Upper {
			p.errorf("%s: CI [%g, %g] does not bracket slope %g", a.req.ID, ci.Lower, ci.Upper, tr.Slope)
		}
		if tr.PValue < 0 || tr.PValue > 1 {
			p.errorf("%s: p-value %g outside [0, 1]", a.req.ID, tr.PValue)
		}
		if tr.Significant != (tr.PValue < tr.Alpha) {
			p.errorf("%s: significant=%t with p=%g alpha=%g", a.req.ID, tr.Significant, tr.PValue, tr.Alpha)
		}

		x, y, err := regressionInputs(a.req.Samples)
		if err != nil {
			p.errorf("%s: %v", a.req.ID, err)
			continue
		}
		_, beta := stat.LinearRegression(x, y, nil, false)
		if math.Abs(beta-tr.Slope) > 1e-9*math.Max(1, math.Abs(beta)) {
			p.errorf("%s: slope %g differs from reference regression %g", a.req.ID, tr.Slope, beta)
		}
	}
	return p
}

func regressionInputs(samples []domain.Sample) ([]float64, []float64, error) {
	times := make([]time.Time, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		t, err := series.ParseTime(s.Time)
		if err != nil {
			return nil, nil, fmt.Errorf("sample %d: %w", i, err)
		}
		times[i] = t
		y[i] = s.Value
	}
	return trend.FractionalYears(times), y, nil
}

func validatePercentiles(results []analysed) *phase {
	p := &phase{name: "Phase 3: Percentile monotonicity"}
	for _, a := range results {
		set := a.res.Percentiles
		if set == nil {
			continue
		}
		p.checked++
		if len(set.Months) != 12 {
			p.errorf("%s: %d months with percentiles, want 12", a.req.ID, len(set.Months))
		}
		if err := percentile.CheckMonotonic(*set); err != nil {
			p.errorf("%s: %v", a.req.ID, err)
		}
		if err := percentile.MonthErrors(*set); err != nil {
			p.errorf("%s: %v", a.req.ID, err)
		}
	}
	return p
}

func validateClimatology(results []analysed) *phase {
	p := &phase{name: "Phase 4: Climatology covers every month"}
	for _, a := range results {
		c := a.res.Climatology
		if c == nil {
			continue
		}
		p.checked++
		if len(c.Months) != 12 || len(c.Values) != 12 || len(c.Counts) != 12 {
			p.errorf("%s: %d months, %d values, %d counts", a.req.ID, len(c.Months), len(c.Values), len(c.Counts))
			continue
		}
		total := 0
		for _, n := range c.Counts {
			total += n
		}
		if total != len(a.req.Samples) {
			p.errorf("%s: counts sum to %d for %d samples", a.req.ID, total, len(a.req.Samples))
		}
	}
	return p
}

func validateRegional(results []analysed) *phase {
	p := &phase{name: "Phase 5: Regional ordering"}
	for _, a := range results {
		r := a.res.Regional
		if r == nil {
			continue
		}
		p.checked++
		ordered := []float64{r.Min, r.P10, r.P50, r.P90, r.Max}
		for i := 1; i < len(ordered); i++ {
			if ordered[i] < ordered[i-1] {
				p.errorf("%s: min/p10/p50/p90/max out of order: %v", a.req.ID, ordered)
				break
			}
		}
		if r.Mean < r.Min || r.Mean > r.Max {
			p.errorf("%s: mean %g outside [%g, %g]", a.req.ID, r.Mean, r.Min, r.Max)
		}
		if r.ValidCount > r.CellCount || r.ValidCount == 0 {
			p.errorf("%s: %d valid of %d cells", a.req.ID, r.ValidCount, r.CellCount)
		}
	}
	return p
}

func validateAnomalies(results []analysed) *phase {
	p := &phase{name: "Phase 6: Anomaly classification"}
	for _, a := range results {
		an := a.res.Anomaly
		if an == nil {
			continue
		}
		p.checked++
		if want := anomaly.Classify(an.ZScore); want != an.Classification {
			p.errorf("%s: z=%g classified %+v, want %+v", a.req.ID, an.ZScore, an.Classification, want)
		}
		if diff := an.Observed - an.ReferenceMean; an.ReferenceStd > 0 && math.Abs(diff/an.ReferenceStd-an.ZScore) > 1e-9 {
			p.errorf("%s: z=%g inconsistent with (%g - %g) / %g", a.req.ID, an.ZScore, an.Observed, an.ReferenceMean, an.ReferenceStd)
		}
	}
	return p
}
