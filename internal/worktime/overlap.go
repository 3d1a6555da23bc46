package worktime

import (
	"errors"
	"time"
)

// DateLayout is the textual form of calendar dates.
const DateLayout = "2006-01-02"

// ErrInvertedRange is returned when a range ends before it starts.
var ErrInvertedRange = errors.New("worktime: end date before start date")

// DateRange is an inclusive span of whole days. Both bounds are UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both bounds to their calendar day and checks ordering.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, ErrInvertedRange
	}
	return r, nil
}

// Day returns the calendar day of t (in t's location) as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &FormatError{Field: field, Value: value, Layout: "YYYY-MM-DD"}
	}
	return t, nil
}

// FormatDate renders the calendar day of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// Overlaps reports whether the two ranges share at least one day. Ranges
// touching on a boundary day overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return !(r.End.Before(other.Start) || r.Start.After(other.End))
}

// Contains reports whether day falls within the range.
func (r DateRange) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the inclusive number of days covered.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// Clip returns the intersection of r and bounds, or false when they are disjoint.
func (r DateRange) Clip(bounds DateRange) (DateRange, bool) {
	if !r.Overlaps(bounds) {
		return DateRange{}, false
	}
	out := r
	if bounds.Start.After(out.Start) {
		out.Start = bounds.Start
	}
	if bounds.End.Before(out.End) {
		out.End = bounds.End
	}
	return out, true
}

// RangeRecord is an existing range tagged with the identifier of its owner record.
type RangeRecord struct {
	ID    string
	Range DateRange
}

// HasOverlap reports whether candidate overlaps any record other than the one
// identified by excludeID. An empty excludeID excludes nothing.
func HasOverlap(candidate DateRange, existing []RangeRecord, excludeID string) bool {
	for _, rec := range existing {
		if excludeID != "" && rec.ID == excludeID {
			continue
		}
		if candidate.Overlaps(rec.Range) {
			return true
		}
	}
	return false
}
