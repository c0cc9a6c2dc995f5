package util

import (
	"time"
)

var newYork *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// UTC keeps the process running; trading-hours enforcement is then
		// effectively disabled rather than crashing at startup.
		loc = time.UTC
	}
	newYork = loc
}

// InTradingHours reports whether t falls inside the regular US equity
// session: 9:30-16:00 America/New_York, Monday through Friday. Exchange
// holidays are not modeled; a holiday scan simply finds no fresh data.
func InTradingHours(t time.Time) bool {
	et := t.In(newYork)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	open := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, newYork)
	close := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, newYork)
	return !et.Before(open) && et.Before(close)
}

// ParseExpiry parses a YYYYMMDD option expiration.
func ParseExpiry(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}

// DTE returns whole days from now until the expiration, rounding up so an
// expiry later today still counts as one day.
func DTE(expiry, now time.Time) int {
	d := expiry.Sub(now)
	days := int(d.Hours() / 24)
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}
