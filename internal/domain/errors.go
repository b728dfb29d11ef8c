package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. Each typed error below reports itself as
// its sentinel, so callers can use either errors.Is or errors.As.
var (
	ErrValidation       = errors.New("validation failed")
	ErrInsufficientData = errors.New("insufficient data")
	ErrEmptyRegion      = errors.New("empty region")
)

// ValidationError reports malformed input: mismatched lengths, unordered
// timestamps, an invalid bounding box, a non-positive speed.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientDataError reports too few valid samples for a statistic.
// Month is 1-12 when the shortage is confined to one calendar month and 0 otherwise.
type InsufficientDataError struct {
	Scope    string `json:"scope"`
	Month    int    `json:"month,omitempty"`
	Count    int    `json:"count"`
	Required int    `json:"required"`
}

func (e *InsufficientDataError) Error() string {
	if e.Month > 0 {
		return fmt.Sprintf("insufficient data for %s in month %d: have %d valid samples, need %d",
			e.Scope, e.Month, e.Count, e.Required)
	}
	return fmt.Sprintf("insufficient data for %s: have %d valid samples, need %d",
		e.Scope, e.Count, e.Required)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// EmptyRegionError reports a spatial query that selected no usable cells.
// MatchedCells counts cells inside the box, all of which were missing.
type EmptyRegionError struct {
	BBox         BoundingBox
	MatchedCells int
}

func (e *EmptyRegionError) Error() string {
	if e.MatchedCells > 0 {
		return fmt.Sprintf("no valid data in region %s: %d matched cells are all missing",
			e.BBox, e.MatchedCells)
	}
	return fmt.Sprintf("no grid cells in region %s", e.BBox)
}

func (e *EmptyRegionError) Is(target error) bool { return target == ErrEmptyRegion }

// Error kinds carried by ResultError.
const (
	ErrorKindValidation       = "validation"
	ErrorKindInsufficientData = "insufficient_data"
	ErrorKindEmptyRegion      = "empty_region"
	ErrorKindInternal         = "internal"
)

// ResultError is the transport form of an analysis failure. It keeps enough
// context (month, sample count, bbox) to render a message without re-deriving it.
type ResultError struct {
	Kind     string       `json:"kind"`
	Message  string       `json:"message"`
	Field    string       `json:"field,omitempty"`
	Month    int          `json:"month,omitempty"`
	Count    int          `json:"count,omitempty"`
	Required int          `json:"required,omitempty"`
	BBox     *BoundingBox `json:"bbox,omitempty"`
}

// ClassifyError converts an analysis error into its transport form.
func ClassifyError(err error) *ResultError {
	if err == nil {
		return nil
	}

	var (
		verr *ValidationError
		ierr *InsufficientDataError
		eerr *EmptyRegionError
	)
	switch {
	case errors.As(err, &verr):
		return &ResultError{Kind: ErrorKindValidation, Message: err.Error(), Field: verr.Field}
	case errors.As(err, &ierr):
		return &ResultError{
			Kind:     ErrorKindInsufficientData,
			Message:  err.Error(),
			Month:    ierr.Month,
			Count:    ierr.Count,
			Required: ierr.Required,
		}
	case errors.As(err, &eerr):
		bbox := eerr.BBox
		return &ResultError{
			Kind:    ErrorKindEmptyRegion,
			Message: err.Error(),
			Count:   eerr.MatchedCells,
			BBox:    &bbox,
		}
	default:
		return &ResultError{Kind: ErrorKindInternal, Message: err.Error()}
	}
}
