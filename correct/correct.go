/*
Package correct overrides the normalized return time using the student's own
wording.

PURPOSE:
  The extraction service is unreliable at relative-time arithmetic. After
  both timestamps are normalized, a fixed sequence of rules is matched
  against the lower-cased raw text and may rewrite return_at.

RULE ORDER:
  1. same-day      "same day" in the text or the return phrase:
                   return_at moves to leave_at's date, keeping its time.
  2. hours-offset  "after|in N hour(s)":  return_at = leave_at + N hours
  3. days-offset   "after|in N day(s)":   return_at = leave_at + N days

  Every matching rule overrides whatever came before it; the last match
  wins. Correct is pure: same input, same output, no shared state.
  Offsets above ten years are refused with OffsetRangeError instead of
  being added.

SUPPLEMENTS:
  Room category and emergency contact are filled from the text only when
  the extractor left them empty or "unknown". They never replace a value.

SEE ALSO:
  - temporal/: produces the leave_at/return_at this package rewrites
  - exitreq/service.go: the only caller
*/
package correct

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/warp/exit-engine/rules"
	"github.com/warp/exit-engine/temporal"
)

// Input is everything a rule may look at.
type Input struct {
	Text         string // raw request text, any case
	ReturnPhrase string // the phrase the return timestamp was normalized from
	LeaveAt      time.Time
	ReturnAt     time.Time
}

// Rule is one (predicate, override) pair. Override may refuse the input
// with an error; Apply stops at the first refusal.
type Rule struct {
	Name     string
	Matches  func(in Input) bool
	Override func(in Input, current time.Time) (time.Time, error)
}

// Result is the corrected return time plus the names of the rules that fired.
type Result struct {
	ReturnAt time.Time
	Applied  []string
}

// Offsets beyond this are refused rather than added.
const (
	MaxOffsetDays  = 3650
	MaxOffsetHours = MaxOffsetDays * 24
)

// ErrOffsetOutOfRange is returned when an "after N hours/days" offset is
// larger than MaxOffsetHours/MaxOffsetDays.
var ErrOffsetOutOfRange = errors.New("relative offset out of range")

// OffsetRangeError names the offending phrase.
type OffsetRangeError struct {
	Rule   string
	Phrase string
	Max    int
}

func (e *OffsetRangeError) Error() string {
	return fmt.Sprintf("%s: %q exceeds %d", e.Rule, e.Phrase, e.Max)
}

func (e *OffsetRangeError) Unwrap() error { return ErrOffsetOutOfRange }

var (
	hoursOffsetPattern = regexp.MustCompile(`\b(?:after|in)\s+(\d+)\s+hours?\b`)
	daysOffsetPattern  = regexp.MustCompile(`\b(?:after|in)\s+(\d+)\s+days?\b`)
)

// DefaultRules is the fixed rule sequence.
var DefaultRules = []Rule{
	{
		Name: "same-day",
		Matches: func(in Input) bool {
			return strings.Contains(lower(in.Text), "same day") ||
				strings.Contains(lower(in.ReturnPhrase), "same day")
		},
		Override: func(in Input, current time.Time) (time.Time, error) {
			return temporal.OnDateOf(current, in.LeaveAt), nil
		},
	},
	{
		Name: "hours-offset",
		Matches: func(in Input) bool {
			return hoursOffsetPattern.MatchString(lower(in.Text))
		},
		Override: func(in Input, _ time.Time) (time.Time, error) {
			n, err := offset("hours-offset", hoursOffsetPattern, in.Text, MaxOffsetHours)
			if err != nil {
				return time.Time{}, err
			}
			return in.LeaveAt.Add(time.Duration(n) * time.Hour), nil
		},
	},
	{
		Name: "days-offset",
		Matches: func(in Input) bool {
			return daysOffsetPattern.MatchString(lower(in.Text))
		},
		Override: func(in Input, _ time.Time) (time.Time, error) {
			n, err := offset("days-offset", daysOffsetPattern, in.Text, MaxOffsetDays)
			if err != nil {
				return time.Time{}, err
			}
			return in.LeaveAt.AddDate(0, 0, n), nil
		},
	},
}

// Correct applies DefaultRules.
func Correct(in Input) (Result, error) {
	return Apply(DefaultRules, in)
}

// Apply runs rules in order against in, threading the return time through.
func Apply(rules []Rule, in Input) (Result, error) {
	res := Result{ReturnAt: in.ReturnAt}
	if in.LeaveAt.IsZero() {
		return res, nil
	}

	for _, r := range rules {
		if !r.Matches(in) {
			continue
		}
		at, err := r.Override(in, res.ReturnAt)
		if err != nil {
			return Result{ReturnAt: in.ReturnAt}, err
		}
		res.ReturnAt = at
		res.Applied = append(res.Applied, r.Name)
	}
	return res, nil
}

// offset reads N from the first match of pattern. Digit runs too long for
// an int count as out of range too.
func offset(rule string, pattern *regexp.Regexp, text string, limit int) (int, error) {
	m := pattern.FindStringSubmatch(lower(text))
	if m == nil {
		return 0, fmt.Errorf("%s: no match", rule)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > limit {
		return 0, &OffsetRangeError{Rule: rule, Phrase: m[0], Max: limit}
	}
	return n, nil
}

func lower(s string) string {
	return strings.ToLower(s)
}

// ===== SUPPLEMENTS =====

var (
	seatPattern  = regexp.MustCompile(`(\d+)[\s-]?(?:seater|seat)`)
	phonePattern = regexp.MustCompile(`(\d{10,})`)
)

// MinContactDigits is the shortest digit run accepted as a phone number.
const MinContactDigits = 10

// SupplementRoom returns current unless it is unknown, in which case the
// room category is read from an "N seater" mention in text.
func SupplementRoom(current rules.RoomCategory, text string) rules.RoomCategory {
	if current != "" && current != rules.RoomUnknown {
		return current
	}

	m := seatPattern.FindStringSubmatch(lower(text))
	if m == nil {
		return rules.RoomUnknown
	}
	seats, err := strconv.Atoi(m[1])
	if err != nil {
		return rules.RoomUnknown
	}
	return rules.RoomFromSeats(seats)
}

// SupplementContact returns the digits of current when it has any, otherwise
// the first run of 10+ digits found in text after removing spaces and hyphens.
func SupplementContact(current, text string) string {
	if digits := DigitsOnly(current); digits != "" {
		return digits
	}

	compact := strings.NewReplacer(" ", "", "-", "").Replace(text)
	if m := phonePattern.FindString(compact); m != "" {
		return m
	}
	return ""
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
