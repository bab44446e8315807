package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Candidate is the structured object recovered from the extraction service.
// Every field is a string, possibly empty; nothing here is trusted yet.
type Candidate struct {
	Intent           string `json:"intent"`
	Reason           string `json:"reason"`
	LeaveDatetime    string `json:"leave_datetime"`
	ReturnDatetime   string `json:"return_datetime"`
	RoomType         string `json:"room_type"`
	EmergencyContact string `json:"emergency_contact"`
}

// decodeCandidate parses a JSON object into a Candidate. Models sometimes
// emit numbers (a phone number) or null where a string is expected, so
// values are coerced to strings instead of failing the decode.
func decodeCandidate(span []byte) (*Candidate, error) {
	dec := json.NewDecoder(bytes.NewReader(span))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}

	c := &Candidate{
		Intent:           stringField(fields, "intent"),
		Reason:           stringField(fields, "reason"),
		LeaveDatetime:    stringField(fields, "leave_datetime"),
		ReturnDatetime:   stringField(fields, "return_datetime"),
		RoomType:         stringField(fields, "room_type"),
		EmergencyContact: stringField(fields, "emergency_contact"),
	}
	return c, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}
