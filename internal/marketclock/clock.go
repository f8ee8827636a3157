// Package marketclock answers "is this market open right now" for a fixed
// weekly schedule evaluated in the market's own time zone. It is pure state:
// a Schedule is configuration, never mutated at runtime.
package marketclock

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Schedule describes one market's trading week. Open and Close are minutes
// since midnight, local to Location, and both bounds are inclusive.
type Schedule struct {
	Market   string
	Open     int
	Close    int
	Days     map[time.Weekday]bool
	Location *time.Location
}

type marketSpec struct {
	name     string
	open     string
	close    string
	timezone string
}

// Exchange hours for the markets the dashboard offers.
var marketSpecs = map[string]marketSpec{
	"us": {name: "US Market (NASDAQ/NYSE)", open: "09:30", close: "16:00", timezone: "America/New_York"},
	"in": {name: "Indian Market (NSE/BSE)", open: "09:15", close: "15:30", timezone: "Asia/Kolkata"},
	"uk": {name: "UK Market (LSE)", open: "08:00", close: "16:30", timezone: "Europe/London"},
	"jp": {name: "Japanese Market (JPX)", open: "09:00", close: "15:00", timezone: "Asia/Tokyo"},
}

// Weekdays is the Monday-to-Friday trading week shared by the built-in markets.
func Weekdays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}

// ForMarket returns the schedule of one of the built-in markets: us, in, uk, jp.
func ForMarket(id string) (Schedule, error) {
	spec, ok := marketSpecs[id]
	if !ok {
		return Schedule{}, errors.Errorf("unknown market %q", id)
	}

	loc, err := time.LoadLocation(spec.timezone)
	if err != nil {
		return Schedule{}, errors.Wrapf(err, "load market time zone %s", spec.timezone)
	}

	open, err := ParseClock(spec.open)
	if err != nil {
		return Schedule{}, err
	}
	closeAt, err := ParseClock(spec.close)
	if err != nil {
		return Schedule{}, err
	}

	return Schedule{
		Market:   spec.name,
		Open:     open,
		Close:    closeAt,
		Days:     Weekdays(),
		Location: loc,
	}, nil
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, errors.Wrapf(err, "parse clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}

// IsOpen reports whether the market trades at the given instant.
func (s Schedule) IsOpen(now time.Time) bool {
	local := now.In(s.Location)
	if !s.Days[local.Weekday()] {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= s.Open && minute <= s.Close
}

// NextOpen returns the next opening instant at or after now. Callers only
// consult it while the market is closed; during trading hours it returns
// the following session's open.
func (s Schedule) NextOpen(now time.Time) time.Time {
	local := now.In(s.Location)
	minute := local.Hour()*60 + local.Minute()

	if s.Days[local.Weekday()] && minute < s.Open {
		return s.openOn(local)
	}
	for d := 1; d <= 7; d++ {
		candidate := local.AddDate(0, 0, d)
		if s.Days[candidate.Weekday()] {
			return s.openOn(candidate)
		}
	}
	// unreachable for any schedule with at least one trading day
	return s.openOn(local)
}

func (s Schedule) openOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), s.Open/60, s.Open%60, 0, 0, s.Location)
}
