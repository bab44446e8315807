package rules

import (
	"time"

	"github.com/warp/exit-engine/temporal"
)

// RegularExitMaxHours is the longest absence still counted as a regular exit.
const RegularExitMaxHours = 24

// Classify derives the exit type from the final timestamps. The extraction
// service's own intent guess is never consulted.
func Classify(leaveAt, returnAt time.Time) ExitType {
	if temporal.Hours(leaveAt, returnAt) <= RegularExitMaxHours {
		return RegularExit
	}
	return HostelLeave
}
