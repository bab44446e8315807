package extract

import (
	"regexp"
	"strings"
)

// Side names which end of the absence a date belongs to.
type Side string

const (
	SideLeave  Side = "leave"
	SideReturn Side = "return"
)

// Example phrasings shown to the user when a side cannot be resolved.
const (
	LeaveExample    = "Leaving on 24 December 2025 at 10:00 AM"
	ReturnExample   = "Returning on 28 December 2025 at 2:00 PM"
	CombinedExample = "Leaving on 20 December 2025 at 10:00 AM and returning on 27 December 2025 at 6:00 PM."
)

// MinFieldLength is the shortest extracted date value taken at face value.
const MinFieldLength = 5

const datePhrase = `\s+(\d{1,2}\s+(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{4}(?:\s+at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm))?)`

var (
	leaveCuePattern  = regexp.MustCompile(`(?i)\b(?:leave|leaving|exit)(?:\s+on)?` + datePhrase)
	returnCuePattern = regexp.MustCompile(`(?i)\b(?:return|returning|come back|back)(?:\s+on)?` + datePhrase)
	onPhrasePattern  = regexp.MustCompile(`(?i)\bon` + datePhrase)
)

// Example returns the phrasing example for side.
func (s Side) Example() string {
	if s == SideReturn {
		return ReturnExample
	}
	return LeaveExample
}

// NeedsFallback reports whether an extracted date value is unusable:
// empty, the placeholder marker, or too short to be a date.
func NeedsFallback(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == Placeholder || len(v) < MinFieldLength
}

// FindDatePhrase looks for a cue-anchored "D Month YYYY [at H[:MM] am|pm]"
// phrase for side in text. The phrase is for the temporal normalizer; it
// is never a timestamp by itself.
//
// Side-specific cues win over a bare "on". With only "on" cues, leave takes
// the first phrase and return takes the last.
func FindDatePhrase(text string, side Side) (string, bool) {
	cue := leaveCuePattern
	if side == SideReturn {
		cue = returnCuePattern
	}
	if m := cue.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	all := onPhrasePattern.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return "", false
	}
	m := all[0]
	if side == SideReturn {
		m = all[len(all)-1]
	}
	return strings.TrimSpace(m[1]), true
}
