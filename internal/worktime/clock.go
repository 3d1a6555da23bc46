// Package worktime holds the time arithmetic behind time entries and absences:
// the working hours calculation for a single day and the date range overlap
// predicate used when booking absences.
//
// Everything here is a pure function of its inputs and safe for concurrent use.
package worktime

import (
	"fmt"
	"time"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour

	// ClockLayout is the textual form of a ClockTime.
	ClockLayout = "HH:MM"
)

// ClockTime is a time of day with minute resolution, stored as minutes since midnight.
type ClockTime int

// FormatError reports a value that could not be parsed into a time of day or a date.
type FormatError struct {
	Field  string
	Value  string
	Layout string
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("worktime: invalid value %q, expected %s", e.Value, e.Layout)
	}
	return fmt.Sprintf("worktime: invalid %s %q, expected %s", e.Field, e.Value, e.Layout)
}

// NewClockTime builds a ClockTime from an hour and minute pair.
func NewClockTime(hour, minute int) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, &FormatError{Value: fmt.Sprintf("%d:%d", hour, minute), Layout: ClockLayout}
	}
	return ClockTime(hour*minutesPerHour + minute), nil
}

// MustClockTime is NewClockTime for constants known to be valid.
func MustClockTime(hour, minute int) ClockTime {
	c, err := NewClockTime(hour, minute)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseClockTime parses a strict HH:MM value. The field name is carried into
// the returned *FormatError so callers can point at the offending input.
func ParseClockTime(field, value string) (ClockTime, error) {
	fail := &FormatError{Field: field, Value: value, Layout: ClockLayout}
	if len(value) != 5 || value[2] != ':' {
		return 0, fail
	}
	hour, ok := twoDigits(value[0], value[1])
	if !ok {
		return 0, fail
	}
	minute, ok := twoDigits(value[3], value[4])
	if !ok {
		return 0, fail
	}
	c, err := NewClockTime(hour, minute)
	if err != nil {
		return 0, fail
	}
	return c, nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// ClockTimeOf returns the time of day of t in t's own location, truncated to the minute.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*minutesPerHour + t.Minute())
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / minutesPerHour }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % minutesPerHour }

// String formats the value as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Valid reports whether c lies within a single day.
func (c ClockTime) Valid() bool {
	return c >= 0 && c < minutesPerDay
}
