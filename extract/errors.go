package extract

import (
	"errors"
	"fmt"
)

// Placeholder is the marker the extraction service emits for "I don't know".
const Placeholder = "..."

var (
	// ErrExtractionUnavailable is returned when the service cannot be
	// reached, answers with an error status, or exceeds the timeout.
	ErrExtractionUnavailable = errors.New("extraction service unavailable")

	// ErrExtractionFormat is returned when no usable JSON object can be
	// recovered from the service response.
	ErrExtractionFormat = errors.New("extraction response has no recoverable JSON object")

	// ErrPlaceholderValue is returned when the service answered a date field
	// with the placeholder marker.
	ErrPlaceholderValue = errors.New("extraction returned placeholder values")
)

// ExtractionUnavailableError wraps the transport-level failure.
type ExtractionUnavailableError struct {
	Service  string
	TimedOut bool
	Cause    error
}

func (e *ExtractionUnavailableError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("extraction service %s timed out: %v", e.Service, e.Cause)
	}
	return fmt.Sprintf("extraction service %s unavailable: %v", e.Service, e.Cause)
}

func (e *ExtractionUnavailableError) Unwrap() []error {
	return []error{ErrExtractionUnavailable, e.Cause}
}

// ExtractionFormatError carries the reason and a truncated copy of the raw
// response for logs.
type ExtractionFormatError struct {
	Reason string
	Raw    string
}

func (e *ExtractionFormatError) Error() string {
	return fmt.Sprintf("%v: %s", ErrExtractionFormat, e.Reason)
}

func (e *ExtractionFormatError) Unwrap() error {
	return ErrExtractionFormat
}

// PlaceholderValueError names the field that came back as the placeholder.
type PlaceholderValueError struct {
	Field string
}

func (e *PlaceholderValueError) Error() string {
	return fmt.Sprintf("%v: %s is %q", ErrPlaceholderValue, e.Field, Placeholder)
}

func (e *PlaceholderValueError) Unwrap() error {
	return ErrPlaceholderValue
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
