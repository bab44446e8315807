package extract

import (
	"regexp"
	"strings"
)

var (
	fencePattern         = regexp.MustCompile("```[A-Za-z0-9_-]*")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// StripFences removes markdown code-fence markers, keeping what was inside.
func StripFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}

// ObjectSpan locates the first '{' in s and scans forward counting brace
// depth until the matching '}'. It returns the half-open span [start, end)
// of that outermost object, or ok=false when there is no '{' or the object
// never closes. Braces inside JSON string literals do not count.
func ObjectSpan(s string) (start, end int, ok bool) {
	start = strings.IndexByte(s, '{')
	if start < 0 {
		return 0, 0, false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}

	return start, 0, false
}

// RepairTrailingCommas drops commas that directly precede '}' or ']'.
func RepairTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// ParseResponse recovers a Candidate from a raw service response: strip
// fences, take the first brace-balanced object, parse it, and on failure
// retry once after removing trailing commas.
func ParseResponse(raw string) (*Candidate, error) {
	cleaned := StripFences(raw)

	start, end, ok := ObjectSpan(cleaned)
	if !ok {
		reason := "no complete JSON object"
		if strings.IndexByte(cleaned, '{') < 0 {
			reason = "no JSON object"
		}
		return nil, &ExtractionFormatError{Reason: reason, Raw: truncate(raw, 300)}
	}
	span := cleaned[start:end]

	c, err := decodeCandidate([]byte(span))
	if err == nil {
		return c, nil
	}

	repaired := RepairTrailingCommas(span)
	c, rerr := decodeCandidate([]byte(repaired))
	if rerr != nil {
		return nil, &ExtractionFormatError{Reason: "invalid JSON: " + err.Error(), Raw: truncate(raw, 300)}
	}
	return c, nil
}
