/*
errors.go - Error taxonomy for exit requests

PURPOSE:
  Every failure a caller can see, in one place. Sentinels work with
  errors.Is; structured types carry the context for errors.As and for the
  message shown to the student.

CATEGORIES:
  1. Input gate      - TooShortError
  2. Extraction      - ExtractionUnavailableError, ExtractionFormatError,
                       PlaceholderValueError (defined in extract/, aliased here)
  3. Resolution      - UnparseableDateError, InvalidRangeError
  4. Lifecycle       - AuthorizationError, ErrNotFound, ErrAlreadyDecided,
                       ErrInvalidDecision, ErrInvalidStatus

  Extraction errors are recovered one layer up: Submit falls back to
  pattern matching and only reports UnparseableDateError, with the
  extraction failure attached as its Cause.

SEE ALSO:
  - service.go: raises these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package exitreq

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/exit-engine/extract"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTooShort is returned when the request text is under MinTextLength.
	ErrTooShort = errors.New("request text too short")

	// ErrUnparseableDate is returned when a leave or return date could not
	// be resolved by extraction, fallback patterns or date parsing.
	ErrUnparseableDate = errors.New("could not resolve date")

	// ErrInvalidRange is returned when the return time precedes the leave time.
	ErrInvalidRange = errors.New("return time is before leave time")

	// ErrUnauthorized is returned when the identity may not perform an action.
	ErrUnauthorized = errors.New("not authorized")

	// ErrNotFound is returned when no request has the given ID.
	ErrNotFound = errors.New("exit request not found")

	// ErrAlreadyDecided is returned when deciding a request already in the
	// opposite terminal state.
	ErrAlreadyDecided = errors.New("exit request already decided")

	// ErrInvalidDecision is returned for a decision other than approved/rejected.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrInvalidStatus is returned for a list filter that is not a status.
	ErrInvalidStatus = errors.New("unknown status filter")

	ErrExtractionUnavailable = extract.ErrExtractionUnavailable
	ErrExtractionFormat      = extract.ErrExtractionFormat
	ErrPlaceholderValue      = extract.ErrPlaceholderValue
)

// Extraction failures are defined next to the orchestrator that raises them.
type (
	ExtractionUnavailableError = extract.ExtractionUnavailableError
	ExtractionFormatError      = extract.ExtractionFormatError
	PlaceholderValueError      = extract.PlaceholderValueError
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TooShortError reports the rejected length.
type TooShortError struct {
	Length int
	Min    int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("please describe your exit in more detail (got %d characters, need at least %d)", e.Length, e.Min)
}

func (e *TooShortError) Unwrap() error {
	return ErrTooShort
}

// SideBoth marks an UnparseableDateError covering leave and return.
const SideBoth extract.Side = "leave and return"

// UnparseableDateError names the side that could not be resolved and
// carries an example of phrasing that works.
type UnparseableDateError struct {
	Side    extract.Side
	Phrase  string // what was tried; empty when no phrase was found at all
	Example string
	Cause   error // extraction failure that forced the fallback path, if any
}

func (e *UnparseableDateError) Error() string {
	var b strings.Builder
	if e.Phrase == "" {
		fmt.Fprintf(&b, "could not find the %s date and time in your request", e.Side)
	} else {
		fmt.Fprintf(&b, "could not understand the %s date %q", e.Side, e.Phrase)
	}
	fmt.Fprintf(&b, ". Please write it like: %q", e.Example)
	return b.String()
}

func (e *UnparseableDateError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUnparseableDate}
	}
	return []error{ErrUnparseableDate, e.Cause}
}

// InvalidRangeError carries the inverted timestamps.
type InvalidRangeError struct {
	LeaveAt  time.Time
	ReturnAt time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("return time %s is before leave time %s",
		e.ReturnAt.Format("2006-01-02 15:04"), e.LeaveAt.Format("2006-01-02 15:04"))
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

// AuthorizationError names who tried what.
type AuthorizationError struct {
	RequesterID string
	Action      string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s is not allowed to %s", e.RequesterID, e.Action)
}

func (e *AuthorizationError) Unwrap() error {
	return ErrUnauthorized
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request itself and
// the student can fix it by rephrasing.
func IsClientError(err error) bool {
	return errors.Is(err, ErrTooShort) ||
		errors.Is(err, ErrUnparseableDate) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsNotFound returns true if the error indicates a missing request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden returns true if the identity lacks permission.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsConflict returns true if the request is already in another terminal state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyDecided)
}
