/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the exit request API, kept apart from exitreq.ExitRequest
  so the wire contract can evolve independently.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TIMESTAMPS:
  leave_at/return_at are naive "YYYY-MM-DDTHH:MM:SS" in the hostel zone,
  the same form the extraction service is asked for. created_at and
  decided_at are RFC3339 instants.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"strings"
	"time"

	"github.com/warp/exit-engine/exitreq"
	"github.com/warp/exit-engine/temporal"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SubmitExitRequest is the body of POST /api/hostel-exit. Older clients send
// the text as "description" or "reason".
type SubmitExitRequest struct {
	Text        string `json:"text"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// RawText returns the first non-empty text field.
func (r SubmitExitRequest) RawText() string {
	for _, s := range []string{r.Text, r.Description, r.Reason} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ExitRequestDTO represents an exit request in API responses.
type ExitRequestDTO struct {
	ID               string     `json:"id"`
	RequesterID      string     `json:"requester_id"`
	RawText          string     `json:"raw_text"`
	Reason           string     `json:"reason"`
	ExitType         string     `json:"exit_type"`
	LeaveAt          string     `json:"leave_at"`
	ReturnAt         string     `json:"return_at"`
	RoomCategory     string     `json:"room_category"`
	EmergencyContact string     `json:"emergency_contact"`
	RiskLevel        string     `json:"risk_level"`
	Fee              int64      `json:"fee"`
	Status           string     `json:"status"`
	DecidedBy        string     `json:"decided_by,omitempty"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// DateErrorDetails tells the client which side failed and how to phrase it.
type DateErrorDetails struct {
	Side    string `json:"side"`
	Phrase  string `json:"phrase,omitempty"`
	Example string `json:"example"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toExitRequestDTO(r exitreq.ExitRequest) ExitRequestDTO {
	return ExitRequestDTO{
		ID:               r.ID,
		RequesterID:      r.RequesterID,
		RawText:          r.RawText,
		Reason:           r.Reason,
		ExitType:         string(r.ExitType),
		LeaveAt:          temporal.Format(r.LeaveAt),
		ReturnAt:         temporal.Format(r.ReturnAt),
		RoomCategory:     string(r.RoomCategory),
		EmergencyContact: r.EmergencyContact,
		RiskLevel:        string(r.RiskLevel),
		Fee:              r.Fee,
		Status:           string(r.Status),
		DecidedBy:        r.DecidedBy,
		DecidedAt:        r.DecidedAt,
		CreatedAt:        r.CreatedAt,
	}
}

func toExitRequestDTOs(rs []exitreq.ExitRequest) []ExitRequestDTO {
	out := make([]ExitRequestDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toExitRequestDTO(r))
	}
	return out
}
