package rules

import (
	"strings"
	"time"

	"github.com/warp/exit-engine/temporal"
)

// RiskThresholds are the elapsed-day boundaries for medium and high risk.
type RiskThresholds struct {
	MediumDays int
	HighDays   int
}

// DefaultRiskThresholds returns the hostel office thresholds (7 and 30 days).
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{MediumDays: 7, HighDays: 30}
}

// Assess scores an absence. A missing contact is high risk whatever the
// duration. Zero timestamps skip the duration checks.
func (rt RiskThresholds) Assess(leaveAt, returnAt time.Time, emergencyContact string) RiskLevel {
	if strings.TrimSpace(emergencyContact) == "" {
		return RiskHigh
	}

	if !leaveAt.IsZero() && !returnAt.IsZero() {
		days := temporal.ElapsedDays(leaveAt, returnAt)
		if days >= rt.HighDays {
			return RiskHigh
		}
		if days >= rt.MediumDays {
			return RiskMedium
		}
	}

	return RiskLow
}

// AssessRisk scores an absence with the default thresholds.
func AssessRisk(leaveAt, returnAt time.Time, emergencyContact string) RiskLevel {
	return DefaultRiskThresholds().Assess(leaveAt, returnAt, emergencyContact)
}
