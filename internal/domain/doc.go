// Package domain models climate analysis inputs and the display-ready
// results produced from them.
//
// # Data Source
//
// Point time series and gridded fields are fetched by an upstream data layer
// from reanalysis datasets (e.g. ERA5 2m temperature) and handed to this
// service either on the request topic or over HTTP. Nothing here performs I/O
// against the dataset store.
//
// # Conventions
//
// Time format:
//
//	Samples carry ISO-8601 dates ("2020-01-01") or RFC 3339 timestamps, always UTC.
//	Trend slopes are expressed per year; the x axis is fractional Julian years
//	(365.25 days) since the first valid sample.
//
// Missing values:
//
//	A sample is missing when its Missing flag is set, its value is NaN, or the
//	value equals the configured sentinel (Options.MissingValueSentinel). Missing
//	samples are excluded before any statistic is computed; zero is a real value.
//
// Units:
//
//	Values stay in the source variable's physical units (Kelvin for ERA5
//	temperature). The front end displays Celsius via [KelvinToCelsius].
//
// Calendar months:
//
//	Monthly groupings use 1 = January ... 12 = December and ignore the year.
//
// Bounding boxes:
//
//	{west, south, east, north} in degrees. A box with west > east crosses the
//	anti-meridian: a cell matches when lon >= west OR lon <= east. Grid
//	longitudes given as 0..360 are normalised with [NormalizeLon].
//
// # Errors
//
// Failures are typed ([ValidationError], [InsufficientDataError],
// [EmptyRegionError]) and also match the sentinels ErrValidation,
// ErrInsufficientData and ErrEmptyRegion through errors.Is. [ClassifyError]
// turns them into the [ResultError] payload published with results.
package domain
