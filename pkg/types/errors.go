package types

import (
	"errors"
	"fmt"
)

// InvalidInputError reports a URL that could not be parsed into a Target.
// It is the only analysis-time error surfaced to callers; everything an
// extractor can get wrong degrades into its ExtractorStatus instead.
type InvalidInputError struct {
	Input  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

// IsInvalidInput reports whether err is (or wraps) an InvalidInputError.
func IsInvalidInput(err error) bool {
	var inputErr *InvalidInputError
	return errors.As(err, &inputErr)
}

// ExtractorUnavailableError marks a network or lookup failure inside an
// extractor. It is recorded as StatusUnavailable and never crosses the
// Analyze boundary.
type ExtractorUnavailableError struct {
	Source string
	Err    error
}

func (e *ExtractorUnavailableError) Error() string {
	return fmt.Sprintf("extractor %s unavailable: %v", e.Source, e.Err)
}

func (e *ExtractorUnavailableError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or invalid configuration value.
// Fatal at startup; the service refuses to run with a broken weight table.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
