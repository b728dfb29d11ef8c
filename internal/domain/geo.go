package domain

import (
	"fmt"
	"math"
)

// BoundingBox is a WGS-84 lat/lon rectangle. West > East denotes a box that
// crosses the anti-meridian.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[W %g, S %g, E %g, N %g]", b.West, b.South, b.East, b.North)
}

// Validate checks coordinate ranges and edge ordering.
func (b BoundingBox) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
		lim  float64
	}{
		{"bbox.west", b.West, 180},
		{"bbox.east", b.East, 180},
		{"bbox.south", b.South, 90},
		{"bbox.north", b.North, 90},
	} {
		if math.IsNaN(c.v) || c.v < -c.lim || c.v > c.lim {
			return NewValidationError(c.name, "%g outside [-%g, %g]", c.v, c.lim, c.lim)
		}
	}
	if b.South >= b.North {
		return NewValidationError("bbox", "south %g must be less than north %g", b.South, b.North)
	}
	if b.West == b.East {
		return NewValidationError("bbox", "west and east are both %g", b.West)
	}
	return nil
}

// CrossesAntimeridian reports whether the box spans the ±180° seam.
func (b BoundingBox) CrossesAntimeridian() bool {
	return b.West > b.East
}

// Contains reports whether a cell centre falls inside the box, edges inclusive.
func (b BoundingBox) Contains(lat, lon float64) bool {
	if lat < b.South || lat > b.North {
		return false
	}
	lon = NormalizeLon(lon)
	if b.CrossesAntimeridian() {
		return lon >= b.West || lon <= b.East
	}
	return lon >= b.West && lon <= b.East
}

// NormalizeLon maps longitudes from 0..360 (or beyond) into [-180, 180].
// Values already in range are returned unchanged so that +180 stays +180.
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Grid is a regular lat/lon field where Values[i][j] belongs to Lats[i], Lons[j].
type Grid struct {
	Lats     []float64   `json:"lats"`
	Lons     []float64   `json:"lons"`
	Values   [][]float64 `json:"values"`
	Time     string      `json:"time,omitempty"`
	Variable string      `json:"variable,omitempty"`
	Units    string      `json:"units,omitempty"`
}

// Validate checks that the value matrix matches the coordinate axes.
func (g Grid) Validate() error {
	if len(g.Lats) == 0 || len(g.Lons) == 0 {
		return NewValidationError("grid", "empty axes: %d lats, %d lons", len(g.Lats), len(g.Lons))
	}
	if len(g.Values) != len(g.Lats) {
		return NewValidationError("grid.values", "%d rows for %d latitudes", len(g.Values), len(g.Lats))
	}
	for i, row := range g.Values {
		if len(row) != len(g.Lons) {
			return NewValidationError("grid.values", "row %d has %d columns for %d longitudes", i, len(row), len(g.Lons))
		}
	}
	return nil
}

// CellMonthValues holds one grid cell's samples grouped by calendar month (1-12).
type CellMonthValues struct {
	Lat     float64           `json:"lat"`
	Lon     float64           `json:"lon"`
	ByMonth map[int][]float64 `json:"by_month"`
}

// LevelValue pairs a percentile level with its value.
type LevelValue struct {
	Level float64 `json:"level"`
	Value float64 `json:"value"`
}

// RegionalStats summarises the valid cells of a grid inside a bounding box,
// in the grid's physical units.
type RegionalStats struct {
	BBox        BoundingBox  `json:"bbox"`
	Units       string       `json:"units,omitempty"`
	Mean        float64      `json:"mean"`
	Std         float64      `json:"std"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	P10         float64      `json:"p10"`
	P50         float64      `json:"p50"`
	P90         float64      `json:"p90"`
	Percentiles []LevelValue `json:"percentiles"`
	CellCount   int          `json:"cell_count"`
	ValidCount  int          `json:"valid_count"`
}
