package domain

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns missing from a dataset header.
// Fatal: the load aborts without producing records.
type SchemaError struct {
	Dataset string
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema: %s missing required columns: %s",
		e.Dataset, e.Source, strings.Join(e.Missing, ", "))
}

// RowValidationError quarantines a single row: the row is excluded from the
// output and the error accumulates as a diagnostic. Never fatal on its own.
type RowValidationError struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e RowValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s:%d: field %s: %s", e.Source, e.Line, e.Field, e.Reason)
}

// LoadError reports a load whose surviving-row fraction fell below the
// configured minimum. Fatal: the build aborts instead of serving the remnant.
type LoadError struct {
	Dataset     string
	RowsSeen    int
	RowsLoaded  int
	MinFraction float64
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s load failed: %d of %d rows parsed (minimum fraction %.2f)",
		e.Dataset, e.RowsLoaded, e.RowsSeen, e.MinFraction)
}
