package temporal

import (
	"math"
	"time"
)

// ElapsedDays is the whole number of 24h periods between leave and ret,
// floored (so 23h59m is 0 and -1h is -1).
func ElapsedDays(leave, ret time.Time) int {
	return int(math.Floor(ret.Sub(leave).Hours() / 24))
}

// CalendarDays is the difference between the calendar dates of ret and leave,
// ignoring time of day.
func CalendarDays(leave, ret time.Time) int {
	ly, lm, ld := leave.Date()
	ry, rm, rd := ret.Date()
	l := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	r := time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC)
	return int(r.Sub(l).Hours() / 24)
}

// Hours is the signed duration between leave and ret in hours.
func Hours(leave, ret time.Time) float64 {
	return ret.Sub(leave).Hours()
}

// OnDateOf keeps the time of day of t but moves it to the calendar date of day.
func OnDateOf(t, day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), day.Location())
}
