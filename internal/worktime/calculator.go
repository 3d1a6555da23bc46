package worktime

import (
	"fmt"
	"math"
	"slices"
)

// minuteEpsilon absorbs binary floating point error before truncating
// fractional hours to whole minutes, so 8.2 hours renders as 08:12.
const minuteEpsilon = 1e-9

// Interval is a span between two times of day.
type Interval struct {
	Start ClockTime
	End   ClockTime
}

// Minutes returns the elapsed minutes, or zero when End is not after Start.
func (i Interval) Minutes() int {
	if i.End > i.Start {
		return int(i.End - i.Start)
	}
	return 0
}

// BreakInterval is a span subtracted from the worked time.
type BreakInterval struct {
	Start ClockTime
	End   ClockTime
}

// Minutes returns the break length, or zero when End is not after Start.
func (b BreakInterval) Minutes() int {
	return Interval(b).Minutes()
}

// DayWorkRecord is the input of a single working hours computation.
type DayWorkRecord struct {
	Starts             []ClockTime
	Ends               []ClockTime
	Breaks             []BreakInterval
	PlannedHoursPerDay float64
}

// WorkingHours is the formatted result of Calculate.
type WorkingHours struct {
	ActualMinutes int
	Actual        string
	Planned       string
	Difference    string
}

// Calculate derives actual, planned and difference strings for one day.
//
// Starts and ends are sorted independently and paired by position; surplus
// starts (a running clock) contribute nothing. The total is not clamped, so
// breaks longer than the recorded work yield a negative actual value.
func Calculate(record DayWorkRecord) WorkingHours {
	total := WorkedMinutes(record)
	return WorkingHours{
		ActualMinutes: total,
		Actual:        FormatMinutes(total),
		Planned:       FormatPlannedHours(record.PlannedHoursPerDay),
		Difference:    FormatDifference(total, record.PlannedHoursPerDay),
	}
}

// WorkedMinutes returns the net worked minutes of the record.
func WorkedMinutes(record DayWorkRecord) int {
	total := 0
	for _, pair := range Pairs(record.Starts, record.Ends) {
		total += pair.Minutes()
	}
	for _, b := range record.Breaks {
		total -= b.Minutes()
	}
	return total
}

// Pairs sorts copies of starts and ends and pairs them by position.
func Pairs(starts, ends []ClockTime) []Interval {
	s := slices.Clone(starts)
	e := slices.Clone(ends)
	slices.Sort(s)
	slices.Sort(e)

	n := min(len(s), len(e))
	out := make([]Interval, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Interval{Start: s[i], End: e[i]})
	}
	return out
}

// FormatMinutes renders a minute count as HH:MM, prefixed with "-" when negative.
func FormatMinutes(total int) string {
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	return fmt.Sprintf("%s%02d:%02d", sign, total/minutesPerHour, total%minutesPerHour)
}

// FormatPlannedHours renders fractional hours as HH:MM with the minutes rounded toward zero.
func FormatPlannedHours(hours float64) string {
	return FormatMinutes(hoursToMinutes(hours))
}

// FormatDifference renders actual minus planned as a signed +HH:MM or -HH:MM.
func FormatDifference(actualMinutes int, plannedHours float64) string {
	diff := float64(actualMinutes)/minutesPerHour - plannedHours
	sign := "+"
	if diff < 0 {
		sign = "-"
	}
	return sign + FormatMinutes(hoursToMinutes(math.Abs(diff)))
}

func hoursToMinutes(hours float64) int {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0
	}
	negative := hours < 0
	if negative {
		hours = -hours
	}
	whole := math.Trunc(hours)
	minutes := int(math.Trunc((hours-whole)*minutesPerHour + minuteEpsilon))
	if minutes >= minutesPerHour {
		minutes = minutesPerHour - 1
	}
	total := int(whole)*minutesPerHour + minutes
	if negative {
		return -total
	}
	return total
}

// BreakInput is the textual form of a break as received from clients.
type BreakInput struct {
	Start string
	End   string
}

// ParseDayWorkRecord parses textual times into a DayWorkRecord. The first
// malformed value is reported as a *FormatError naming its position, for
// example "startTimes[1]" or "breaks[0].end".
func ParseDayWorkRecord(starts, ends []string, breaks []BreakInput, plannedHours float64) (DayWorkRecord, error) {
	record := DayWorkRecord{
		Starts:             make([]ClockTime, 0, len(starts)),
		Ends:               make([]ClockTime, 0, len(ends)),
		Breaks:             make([]BreakInterval, 0, len(breaks)),
		PlannedHoursPerDay: plannedHours,
	}
	for i, v := range starts {
		c, err := ParseClockTime(fmt.Sprintf("startTimes[%d]", i), v)
		if err != nil {
			return DayWorkRecord{}, err
		}
		record.Starts = append(record.Starts, c)
	}
	for i, v := range ends {
		c, err := ParseClockTime(fmt.Sprintf("endTimes[%d]", i), v)
		if err != nil {
			return DayWorkRecord{}, err
		}
		record.Ends = append(record.Ends, c)
	}
	for i, b := range breaks {
		start, err := ParseClockTime(fmt.Sprintf("breaks[%d].start", i), b.Start)
		if err != nil {
			return DayWorkRecord{}, err
		}
		end, err := ParseClockTime(fmt.Sprintf("breaks[%d].end", i), b.End)
		if err != nil {
			return DayWorkRecord{}, err
		}
		record.Breaks = append(record.Breaks, BreakInterval{Start: start, End: end})
	}
	return record, nil
}
