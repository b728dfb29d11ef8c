package domain

import "time"

// Sample is one point of a fetched time series. Time is an ISO-8601 date or
// RFC 3339 timestamp; Missing marks "no observation" independently of Value.
type Sample struct {
	Time    string  `json:"time"`
	Value   float64 `json:"value"`
	Missing bool    `json:"missing,omitempty"`
}

// Gap is an interval between adjacent samples that exceeds a threshold.
type Gap struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Days float64   `json:"days"`
}

// ConfidenceInterval bounds a slope estimate.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// YearPeriod is an inclusive range of calendar years.
type YearPeriod struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// TrendResult is a least-squares linear trend. Slope is in value units per
// year; Intercept is the fitted value at the first valid sample.
type TrendResult struct {
	Slope              float64            `json:"slope"`
	SlopeUnits         string             `json:"slope_units,omitempty"`
	Intercept          float64            `json:"intercept"`
	PValue             float64            `json:"p_value"`
	Significant        bool               `json:"significant"`
	Alpha              float64            `json:"alpha"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Period             YearPeriod         `json:"period"`
	RSquared           float64            `json:"r_squared"`
	StdError           float64            `json:"std_error"`
	N                  int                `json:"n"`
}

// MonthPercentiles holds the values for one calendar month, aligned with
// PercentileSet.Levels.
type MonthPercentiles struct {
	Month  int       `json:"month"`
	Count  int       `json:"count"`
	Values []float64 `json:"values"`
}

// PercentileSet holds climatological percentiles per calendar month. Months
// without valid samples are absent from Months and listed in MonthErrors.
type PercentileSet struct {
	Levels         []float64               `json:"levels"`
	Months         []MonthPercentiles      `json:"months"`
	MonthsWithData []int                   `json:"months_with_data"`
	MonthErrors    []InsufficientDataError `json:"month_errors,omitempty"`
	Units          string                  `json:"units,omitempty"`
}

// Climatology is the mean value per calendar month.
type Climatology struct {
	Months []int     `json:"months"`
	Values []float64 `json:"values"`
	Counts []int     `json:"counts"`
	Units  string    `json:"units,omitempty"`
}

// AnomalyType selects how an anomaly is expressed.
type AnomalyType string

const (
	AnomalyAbsolute     AnomalyType = "absolute"
	AnomalyStandardized AnomalyType = "standardized"
)

// ReferencePeriod is the inclusive span of years a climatology is built from.
type ReferencePeriod struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// AnomalyClassification is a signed severity level with a display label.
type AnomalyClassification struct {
	Level int    `json:"level"`
	Label string `json:"label"`
}

// Anomaly is the departure of one observation from its monthly reference climate.
type Anomaly struct {
	Time            time.Time             `json:"time"`
	Value           float64               `json:"value"`
	Type            AnomalyType           `json:"type"`
	Units           string                `json:"units,omitempty"`
	Observed        float64               `json:"observed"`
	ReferenceMean   float64               `json:"reference_mean"`
	ReferenceStd    float64               `json:"reference_std"`
	ZScore          float64               `json:"z_score"`
	ReferencePeriod ReferencePeriod       `json:"reference_period"`
	Classification  AnomalyClassification `json:"classification"`
}
