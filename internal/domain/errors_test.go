package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsMatchSentinels(t *testing.T) {
	verr := NewValidationError("speed", "%g must be positive", 0.0)
	ierr := &InsufficientDataError{Scope: "trend", Count: 2, Required: 3}
	eerr := &EmptyRegionError{BBox: BoundingBox{West: 0, South: 0, East: 1, North: 1}}

	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", verr), ErrValidation)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", ierr), ErrInsufficientData)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", eerr), ErrEmptyRegion)
	assert.NotErrorIs(t, verr, ErrEmptyRegion)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation failed for speed: 0 must be positive",
		NewValidationError("speed", "%g must be positive", 0.0).Error())
	assert.Equal(t, "insufficient data for trend: have 2 valid samples, need 3",
		(&InsufficientDataError{Scope: "trend", Count: 2, Required: 3}).Error())
	assert.Equal(t, "insufficient data for percentile in month 2: have 0 valid samples, need 1",
		(&InsufficientDataError{Scope: "percentile", Month: 2, Count: 0, Required: 1}).Error())
	assert.Contains(t, (&EmptyRegionError{MatchedCells: 3}).Error(), "3 matched cells are all missing")
	assert.Contains(t, (&EmptyRegionError{}).Error(), "no grid cells in region")
}

func TestClassifyError(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))

	re := ClassifyError(fmt.Errorf("analyse: %w", NewValidationError("bbox", "inverted")))
	assert.Equal(t, ErrorKindValidation, re.Kind)
	assert.Equal(t, "bbox", re.Field)

	re = ClassifyError(&InsufficientDataError{Scope: "anomaly", Month: 7, Count: 1, Required: 2})
	assert.Equal(t, ErrorKindInsufficientData, re.Kind)
	assert.Equal(t, 7, re.Month)
	assert.Equal(t, 1, re.Count)
	assert.Equal(t, 2, re.Required)

	box := BoundingBox{West: 170, South: -10, East: -170, North: 10}
	re = ClassifyError(&EmptyRegionError{BBox: box, MatchedCells: 4})
	assert.Equal(t, ErrorKindEmptyRegion, re.Kind)
	assert.Equal(t, 4, re.Count)
	require.NotNil(t, re.BBox)
	assert.Equal(t, box, *re.BBox)

	re = ClassifyError(errors.New("boom"))
	assert.Equal(t, ErrorKindInternal, re.Kind)
	assert.Equal(t, "boom", re.Message)
}
