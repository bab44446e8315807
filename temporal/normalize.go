/*
Package temporal turns leave/return date phrases into absolute timestamps.

PURPOSE:
  The extraction service hands back strings. Sometimes they are exact
  ("2025-12-21T10:00:00"), sometimes they are whatever the student wrote
  ("24 december 2025 at 10 am", "tomorrow 6pm"). Normalize resolves both
  into a wall-clock timestamp in the reference zone.

RESOLUTION ORDER:
  1. Strict layouts (ISO date-time variants). Exact, and always wins.
  2. Natural-language parsing relative to the submission instant, with
     ambiguous dates resolved to the nearest future occurrence.
  3. Nothing. The caller treats a miss as a hard failure for that side.

NAIVE TIMESTAMPS:
  Results carry the reference location only so that wall-clock fields are
  stable. Offsets in the input are converted into the reference zone and
  then dropped; records are persisted without an offset.

SEE ALSO:
  - duration.go: day/hour arithmetic used by the rule engine
  - correct/: rewrites return_at after normalization
*/
package temporal

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	dps "github.com/markusmobius/go-dateparser"
)

// DefaultZone is the reference timezone of the hostel office.
const DefaultZone = "Asia/Kolkata"

// NaiveLayout is the persisted and prompted timestamp format.
const NaiveLayout = "2006-01-02T15:04:05"

// strictLayouts are tried in order. Fractional seconds are accepted by
// time.Parse after the seconds field even when the layout omits them.
var strictLayouts = []string{
	NaiveLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// offsetLayouts carry an explicit zone and are converted into the reference zone.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
}

// NaturalParser resolves loose natural-language date phrases.
type NaturalParser interface {
	ParseNatural(phrase string, ref time.Time, loc *time.Location) (time.Time, error)
}

// Normalizer converts date/time strings into naive timestamps in Location.
type Normalizer struct {
	Location *time.Location
	Natural  NaturalParser
}

// NewNormalizer creates a normalizer for the given zone backed by go-dateparser.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = MustLoadZone(DefaultZone)
	}
	return &Normalizer{Location: loc, Natural: DateParser{}}
}

// MustLoadZone loads a zone or panics. Zone data is embedded.
func MustLoadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("temporal: load zone %q: %v", name, err))
	}
	return loc
}

// Normalize returns the timestamp for s relative to ref, or false when
// neither the strict layouts nor the natural-language parser understand it.
func (n *Normalizer) Normalize(s string, ref time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := n.ParseStrict(s); ok {
		return t, true
	}

	if n.Natural == nil {
		return time.Time{}, false
	}

	t, err := n.Natural.ParseNatural(s, ref.In(n.Location), n.Location)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return n.Naive(t), true
}

// ParseStrict parses machine-readable ISO forms only.
func (n *Normalizer) ParseStrict(s string) (time.Time, bool) {
	for _, layout := range strictLayouts {
		if t, err := time.ParseInLocation(layout, s, n.Location); err == nil {
			return t, true
		}
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return n.Naive(t), true
		}
	}
	return time.Time{}, false
}

// Naive re-expresses t as wall-clock time in the reference zone, truncated
// to whole seconds.
func (n *Normalizer) Naive(t time.Time) time.Time {
	t = t.In(n.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, n.Location)
}

// Format renders a timestamp in NaiveLayout.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(NaiveLayout)
}

// =============================================================================
// NATURAL LANGUAGE - go-dateparser backend
// =============================================================================

// DateParser is the default NaturalParser.
type DateParser struct{}

// ParseNatural parses phrase with "prefer future" disambiguation.
func (DateParser) ParseNatural(phrase string, ref time.Time, loc *time.Location) (time.Time, error) {
	cfg := &dps.Configuration{
		CurrentTime:         ref,
		DefaultTimezone:     loc,
		PreferredDateSource: dps.Future,
	}

	dt, err := dps.Parse(cfg, phrase)
	if err != nil {
		return time.Time{}, err
	}
	if dt.Time.IsZero() {
		return time.Time{}, fmt.Errorf("no date found in %q", phrase)
	}
	return dt.Time, nil
}
