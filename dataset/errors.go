package dataset

import (
	"fmt"
	"strings"
)

// ConfigurationError reports invalid construction or split parameters.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// SchemaError reports a malformed input table: required columns that are
// missing, or a rejection rate above the configured threshold.
type SchemaError struct {
	Msg     string
	Missing []string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema error: %s (missing columns: %s)", e.Msg, strings.Join(e.Missing, ", "))
	}

	return "schema error: " + e.Msg
}

// ResolutionError reports that a sequence-derived attribute of a pMHC could
// not be resolved. Err is the underlying cause, often an
// *allele.AlleleNotFoundError.
type ResolutionError struct {
	PMHC      PMHCKey
	Attribute string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s for %s: %v", e.Attribute, e.PMHC, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IndexError reports a positional access outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for dataset of length %d", e.Index, e.Len)
}
