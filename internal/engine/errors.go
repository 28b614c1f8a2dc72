package engine

import (
	"errors"
	"fmt"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

// ErrUnknownView is returned when a query names a view that is not registered.
var ErrUnknownView = errors.New("unknown view")

// DataLoadError indicates a source table that is missing, malformed or lacks
// a required column. It is fatal at startup.
type DataLoadError struct {
	Path   string
	Row    int // 1-based data row, 0 when not row specific
	Column string
	cause  error
}

func (e *DataLoadError) Error() string {
	msg := "failed to load " + e.Path
	if e.Row > 0 {
		msg += fmt.Sprintf(" (row %d)", e.Row)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *DataLoadError) Unwrap() error { return e.cause }

func loadErr(path string, row int, column string, cause error) *DataLoadError {
	return &DataLoadError{Path: path, Row: row, Column: column, cause: cause}
}

// AggregationError indicates that an aggregation view could not be built
// from the loaded data. It is fatal at startup.
type AggregationError struct {
	View   string
	Column string
	cause  error
}

func (e *AggregationError) Error() string {
	msg := "failed to build view " + e.View
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *AggregationError) Unwrap() error { return e.cause }

// UnknownDimensionError is returned for a dimension name outside
// year, sport, season and country.
type UnknownDimensionError struct {
	Dimension string
}

func (e *UnknownDimensionError) Error() string {
	return fmt.Sprintf("unknown dimension %q", e.Dimension)
}

// InvalidSelectionError is returned when a selected value is not in the
// dimension index, or a selection field does not apply to the view.
type InvalidSelectionError struct {
	Dimension models.Dimension
	Value     string
	Reason    string
}

func (e *InvalidSelectionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid selection on %s: %s", e.Dimension, e.Reason)
	}
	return fmt.Sprintf("invalid selection %s=%q: %s", e.Dimension, e.Value, e.Reason)
}

// IsSelectionError reports whether err is a per-request selection problem
// that callers should recover from with an empty result.
func IsSelectionError(err error) bool {
	var ise *InvalidSelectionError
	var ude *UnknownDimensionError
	return errors.As(err, &ise) || errors.As(err, &ude)
}
