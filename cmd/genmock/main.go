// Command genmock writes deterministic synthetic analysis requests: monthly
// temperature series with a seasonal cycle, a warming trend and Gaussian
// noise, plus a regional grid and per-cell monthly values. The output feeds
// cmd/validate and can seed the request topic.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/requests.json
//	go run ./cmd/genmock -out data/mock/requests.ndjson -ndjson
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
)

// Fixture is the file layout shared with cmd/validate.
type Fixture struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Seed        uint64                   `json:"seed"`
	Requests    []domain.AnalysisRequest `json:"requests"`
}

// station is a synthetic observation point.
type station struct {
	id        string
	loc       domain.Geo
	mean      float64 // annual mean, K
	amplitude float64 // half the seasonal range, K
	trend     float64 // K per year
}

var stations = []station{
	{id: "oslo", loc: domain.Geo{Lat: 59.91, Lon: 10.75}, mean: 279.4, amplitude: 10.5, trend: 0.045},
	{id: "madrid", loc: domain.Geo{Lat: 40.42, Lon: -3.70}, mean: 288.2, amplitude: 9.5, trend: 0.035},
	{id: "suva", loc: domain.Geo{Lat: -18.14, Lon: 178.44}, mean: 298.9, amplitude: 1.5, trend: 0.015},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the request fixture")
	ndjson := flag.Bool("ndjson", false, "write one request per line instead of a fixture document")
	seed := flag.Uint64("seed", 1991, "noise seed")
	years := flag.Int("years", 34, "years of monthly data per station, starting 1991")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *years < 1 {
		return fmt.Errorf("-years must be positive, got %d", *years)
	}

	// Fixed clock so regenerated fixtures are byte-identical.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	noise := distuv.Normal{Mu: 0, Sigma: 0.6, Src: rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)}
	requests := buildRequests(*years, noise)

	var err error
	if *ndjson {
		err = writeNDJSON(*out, requests)
	} else {
		err = writeJSON(*out, Fixture{GeneratedAt: domain.Now(), Seed: *seed, Requests: requests})
	}
	if err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d requests to %s", len(requests), *out)
	return nil
}

func buildRequests(years int, noise distuv.Normal) []domain.AnalysisRequest {
	lastYear := 1991 + years - 1
	var requests []domain.AnalysisRequest //nolint:prealloc // one per station and kind plus regional
	for _, st := range stations {
		samples := monthlySeries(st, years, noise)
		loc := st.loc
		base := domain.AnalysisRequest{
			DatasetID: "synthetic-t2m",
			Variable:  "2m_temperature",
			Units:     "K",
			Location:  &loc,
			Samples:   samples,
		}
		for _, kind := range []string{domain.KindTrend, domain.KindPercentiles, domain.KindClimatology} {
			req := base
			req.ID = st.id + "-" + kind
			req.Kind = kind
			requests = append(requests, req)
		}

		anomaly := base
		anomaly.ID = st.id + "-anomaly"
		anomaly.Kind = domain.KindAnomaly
		anomaly.At = fmt.Sprintf("%d-07-15", lastYear)
		anomaly.Anomaly = domain.AnomalyStandardized
		anomaly.Reference = &domain.ReferencePeriod{Start: 1991, End: min(2020, lastYear)}
		requests = append(requests, anomaly)
	}

	grid := regionalGrid(noise)
	requests = append(requests,
		domain.AnalysisRequest{
			ID:        "europe-regional",
			Kind:      domain.KindRegional,
			DatasetID: "synthetic-t2m",
			Variable:  "2m_temperature",
			Units:     "K",
			Grid:      &grid,
			BBox:      &domain.BoundingBox{West: -10, South: 36, East: 30, North: 70},
		},
		domain.AnalysisRequest{
			ID:        "pacific-regional",
			Kind:      domain.KindRegional,
			DatasetID: "synthetic-t2m",
			Units:     "K",
			Grid:      &grid,
			BBox:      &domain.BoundingBox{West: 170, South: -30, East: -170, North: 0},
		},
		domain.AnalysisRequest{
			ID:        "europe-cell-percentiles",
			Kind:      domain.KindPercentiles,
			DatasetID: "synthetic-t2m",
			Units:     "K",
			Cells:     cellMonthValues(years, noise),
		},
	)
	return requests
}

// monthlySeries returns mid-month samples with the seasonal peak in July for
// the northern hemisphere and January for the southern.
func monthlySeries(st station, years int, noise distuv.Normal) []domain.Sample {
	phase := 0.0
	if st.loc.Lat < 0 {
		phase = math.Pi
	}
	start := time.Date(1991, time.January, 15, 0, 0, 0, 0, time.UTC)
	samples := make([]domain.Sample, 0, years*12)
	for i := range years * 12 {
		t := start.AddDate(0, i, 0)
		x := float64(i) / 12
		seasonal := -st.amplitude * math.Cos(2*math.Pi*(float64(t.Month())-1)/12+phase)
		samples = append(samples, domain.Sample{
			Time:  t.Format(time.DateOnly),
			Value: round2(st.mean + seasonal + st.trend*x + noise.Rand()),
		})
	}
	return samples
}

// regionalGrid covers the globe at 10° with a latitude gradient.
func regionalGrid(noise distuv.Normal) domain.Grid {
	g := domain.Grid{Time: "2024-07-15", Variable: "2m_temperature", Units: "K"}
	for lat := -85.0; lat <= 85; lat += 10 {
		g.Lats = append(g.Lats, lat)
	}
	for lon := 5.0; lon < 360; lon += 10 {
		g.Lons = append(g.Lons, lon)
	}
	g.Values = make([][]float64, len(g.Lats))
	for i, lat := range g.Lats {
		row := make([]float64, len(g.Lons))
		for j := range row {
			row[j] = round2(300 - 0.45*math.Abs(lat) + noise.Rand())
		}
		g.Values[i] = row
	}
	return g
}

// cellMonthValues groups several years of values for a few European cells.
func cellMonthValues(years int, noise distuv.Normal) []domain.CellMonthValues {
	cells := []domain.Geo{{Lat: 45, Lon: 5}, {Lat: 45, Lon: 15}, {Lat: 55, Lon: 5}, {Lat: 55, Lon: 15}}
	out := make([]domain.CellMonthValues, 0, len(cells))
	for _, c := range cells {
		byMonth := make(map[int][]float64, 12)
		for m := 1; m <= 12; m++ {
			seasonal := -9 * math.Cos(2*math.Pi*float64(m-1)/12)
			for range years {
				byMonth[m] = append(byMonth[m], round2(300-0.45*c.Lat+seasonal+noise.Rand()))
			}
		}
		out = append(out, domain.CellMonthValues{Lat: c.Lat, Lon: c.Lon, ByMonth: byMonth})
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func writeNDJSON(path string, requests []domain.AnalysisRequest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, req := range requests {
		if err := enc.Encode(req); err != nil {
			return err
		}
	}
	return f.Close()
}
