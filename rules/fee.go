package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/exit-engine/temporal"
)

// FeeSchedule prices the chargeable days of an absence.
type FeeSchedule struct {
	TwoSeaterPerDay decimal.Decimal
	DefaultPerDay   decimal.Decimal
	FreeDays        int
}

// DefaultFeeSchedule returns 300/day for 2-seater rooms, 200/day otherwise,
// with one free day.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		TwoSeaterPerDay: decimal.NewFromInt(300),
		DefaultPerDay:   decimal.NewFromInt(200),
		FreeDays:        1,
	}
}

// NewFeeSchedule parses decimal rate strings from configuration.
func NewFeeSchedule(twoSeaterPerDay, defaultPerDay string, freeDays int) (FeeSchedule, error) {
	two, err := decimal.NewFromString(twoSeaterPerDay)
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("invalid 2-seater rate %q: %w", twoSeaterPerDay, err)
	}
	def, err := decimal.NewFromString(defaultPerDay)
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("invalid default rate %q: %w", defaultPerDay, err)
	}
	if two.IsNegative() || def.IsNegative() || freeDays < 0 {
		return FeeSchedule{}, fmt.Errorf("fee schedule values must not be negative")
	}
	return FeeSchedule{TwoSeaterPerDay: two, DefaultPerDay: def, FreeDays: freeDays}, nil
}

// Rate returns the per-day rate for a room category.
func (fs FeeSchedule) Rate(room RoomCategory) decimal.Decimal {
	if room == RoomTwoSeater {
		return fs.TwoSeaterPerDay
	}
	return fs.DefaultPerDay
}

// ChargeableDays is the calendar-day count beyond the free allowance.
// Same-day and overnight absences (and inverted ranges) yield zero.
func (fs FeeSchedule) ChargeableDays(leaveAt, returnAt time.Time) int {
	if leaveAt.IsZero() || returnAt.IsZero() {
		return 0
	}
	total := temporal.CalendarDays(leaveAt, returnAt)
	if total <= fs.FreeDays {
		return 0
	}
	return total - fs.FreeDays
}

// Calculate returns the fee, rounded to a whole amount.
func (fs FeeSchedule) Calculate(leaveAt, returnAt time.Time, room RoomCategory) int64 {
	days := fs.ChargeableDays(leaveAt, returnAt)
	if days == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(days)).Mul(fs.Rate(room)).Round(0).IntPart()
}

// CalculateFee prices an absence with the default schedule.
func CalculateFee(leaveAt, returnAt time.Time, room RoomCategory) int64 {
	return DefaultFeeSchedule().Calculate(leaveAt, returnAt, room)
}
