package testfixtures

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/timerecording/internal/worktime"
)

// Clock is a settable time source. Services read it through NowFunc while a
// test moves it to the instants a scenario needs, for example clocking in at
// 08:00 and out at 16:30 on the same workday.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns c.Now, or time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Current is Now for assertions that compare against the clock.
func (c *Clock) Current() time.Time {
	return c.Now()
}

// Advance moves the clock by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// At moves the clock to the wall time hhmm (HH:MM) on date (YYYY-MM-DD) in
// loc and returns the new instant. Malformed input panics.
func (c *Clock) At(date, hhmm string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	day := Date(date)
	wall, err := worktime.ParseClockTime("clock", hhmm)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: %v", err))
	}
	instant := time.Date(day.Year(), day.Month(), day.Day(), wall.Hour(), wall.Minute(), 0, 0, loc)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = instant
	return instant
}

// Today is the calendar date the clock shows in loc, as YYYY-MM-DD.
func (c *Clock) Today(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return worktime.FormatDate(c.Now().In(loc))
}
