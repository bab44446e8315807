/*
Package rules holds the deterministic business rules applied to an exit
request once its timestamps are final.

RULES:
  Risk:     no emergency contact → high; else elapsed days ≥ 30 → high,
            ≥ 7 → medium, otherwise low.
  Fee:      calendar days ≤ free days → 0; otherwise
            (days − free days) × per-day rate, 300 for 2-seater rooms and
            200 for everything else (including unknown).
  Classify: ≤ 24 hours → REGULAR_EXIT, otherwise HOSTEL_LEAVE.

All three are pure functions of their inputs. Thresholds and rates are
configurable; the package-level helpers use the hostel defaults.

SEE ALSO:
  - temporal/duration.go: ElapsedDays, CalendarDays, Hours
  - exitreq/service.go: applies the rules once per submission
*/
package rules

import "strings"

// RiskLevel is the derived risk tier of an absence.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ExitType classifies an absence by its length.
type ExitType string

const (
	RegularExit ExitType = "REGULAR_EXIT"
	HostelLeave ExitType = "HOSTEL_LEAVE"
)

// RoomCategory is the student's room type, which sets the fee rate.
type RoomCategory string

const (
	RoomTwoSeater  RoomCategory = "2_seater"
	RoomFourSeater RoomCategory = "4_seater"
	RoomUnknown    RoomCategory = "unknown"
)

// NormalizeRoom maps the spellings students and models use ("2-seater",
// "4 seater", "2_seat") onto a RoomCategory.
func NormalizeRoom(s string) RoomCategory {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)

	switch s {
	case "2seater", "2seat", "2":
		return RoomTwoSeater
	case "4seater", "4seat", "4":
		return RoomFourSeater
	default:
		return RoomUnknown
	}
}

// RoomFromSeats maps a seat count onto a RoomCategory.
func RoomFromSeats(seats int) RoomCategory {
	switch seats {
	case 2:
		return RoomTwoSeater
	case 4:
		return RoomFourSeater
	default:
		return RoomUnknown
	}
}
