package domain

import (
	"context"
	"time"
)

// Analysis kinds accepted on the request topic and the HTTP API.
const (
	KindTrend       = "trend"
	KindPercentiles = "percentiles"
	KindClimatology = "climatology"
	KindRegional    = "regional"
	KindAnomaly     = "anomaly"
)

// AnalysisRequest asks for one statistic over externally fetched data.
// Which inputs are required depends on Kind:
//
//	trend, percentiles, climatology: Samples (optionally StartDate/EndDate)
//	percentiles over a region:       Cells
//	regional:                        Grid and BBox
//	anomaly:                         Samples, At, Reference
type AnalysisRequest struct {
	ID        string            `json:"id,omitempty"`
	Kind      string            `json:"kind"`
	DatasetID string            `json:"dataset_id,omitempty"`
	Variable  string            `json:"variable,omitempty"`
	Units     string            `json:"units,omitempty"`
	Location  *Geo              `json:"location,omitempty"`
	Samples   []Sample          `json:"samples,omitempty"`
	StartDate string            `json:"start_date,omitempty"`
	EndDate   string            `json:"end_date,omitempty"`
	Cells     []CellMonthValues `json:"cells,omitempty"`
	Grid      *Grid             `json:"grid,omitempty"`
	BBox      *BoundingBox      `json:"bbox,omitempty"`
	At        string            `json:"at,omitempty"`
	Anomaly   AnomalyType       `json:"anomaly_type,omitempty"`
	Reference *ReferencePeriod  `json:"reference,omitempty"`
}

// Geo is a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AnalysisResult carries exactly one populated payload, or Error when the
// statistic could not be produced for the supplied data.
type AnalysisResult struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	DatasetID   string         `json:"dataset_id,omitempty"`
	Location    *Geo           `json:"location,omitempty"`
	Trend       *TrendResult   `json:"trend,omitempty"`
	Percentiles *PercentileSet `json:"percentiles,omitempty"`
	Climatology *Climatology   `json:"climatology,omitempty"`
	Regional    *RegionalStats `json:"regional,omitempty"`
	Anomaly     *Anomaly       `json:"anomaly,omitempty"`
	Gaps        []Gap          `json:"gaps,omitempty"`
	Error       *ResultError   `json:"error,omitempty"`
	ComputedAt  time.Time      `json:"computed_at"`
}

// RawEvent represents an unprocessed message from the request topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the result topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
