/*
Package exitreq is the exit request lifecycle: submission of free text,
derivation of the structured record, and the admin decision.

PURPOSE:
  Submit turns "Leaving tomorrow at 10am, back Sunday evening" into an
  ExitRequest with exact timestamps, an exit classification, a risk tier
  and a fee, or fails with an error the student can act on. Decide moves
  a pending request to approved or rejected.

STATE MACHINE:
  pending ──approve──▶ approved
     │
     └────reject───▶ rejected

  Both targets are terminal. Repeating the same decision is a no-op;
  the opposite decision fails with ErrAlreadyDecided.

SEE ALSO:
  - service.go: Submit, Decide, List, Get
  - store.go: persistence contract
  - extract/, temporal/, correct/, rules/: the derivation pipeline
*/
package exitreq

import (
	"time"

	"github.com/warp/exit-engine/rules"
)

// MinTextLength is the shortest request text sent to extraction.
const MinTextLength = 10

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is an admin verdict: StatusApproved or StatusRejected.
type Decision = Status

// Scope selects which requests List returns.
type Scope string

const (
	ScopeOwn Scope = "own"
	ScopeAll Scope = "all"
)

// RoleAdmin is the role allowed to decide and to list every request.
const RoleAdmin = "admin"

// Identity is the caller as established by the authentication layer.
type Identity struct {
	RequesterID string
	Role        string
}

// IsAdmin reports whether the identity may decide requests.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// ExitRequest is the structured, derived record of one absence.
// Every field except Status, DecidedBy and DecidedAt is fixed at creation.
type ExitRequest struct {
	ID               string
	RequesterID      string
	RawText          string
	Reason           string
	ExitType         rules.ExitType
	LeaveAt          time.Time // naive wall clock in the reference zone
	ReturnAt         time.Time
	RoomCategory     rules.RoomCategory
	EmergencyContact string
	RiskLevel        rules.RiskLevel
	Fee              int64
	Status           Status
	DecidedBy        string
	DecidedAt        *time.Time
	CreatedAt        time.Time
}
