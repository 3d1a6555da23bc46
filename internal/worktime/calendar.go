package worktime

import "time"

// Calendar resolves the current day and time of day in the location the
// organisation books its hours in.
type Calendar struct {
	location *time.Location
}

// NewCalendar returns a calendar for loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{location: loc}
}

// Location returns the configured location.
func (c *Calendar) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}

// Today returns the calendar day of now in the configured location.
func (c *Calendar) Today(now time.Time) time.Time {
	return Day(now.In(c.Location()))
}

// Clock returns the time of day of now in the configured location.
func (c *Calendar) Clock(now time.Time) ClockTime {
	return ClockTimeOf(now.In(c.Location()))
}
