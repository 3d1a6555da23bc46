package worktime

import (
	"errors"
	"testing"
	"time"
)

func TestParseClockTime(t *testing.T) {
	t.Parallel()

	valid := map[string]ClockTime{
		"00:00": 0,
		"08:05": 8*60 + 5,
		"23:59": 23*60 + 59,
	}
	for input, want := range valid {
		got, err := ParseClockTime("start", input)
		if err != nil {
			t.Fatalf("ParseClockTime(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseClockTime(%q) = %d, want %d", input, got, want)
		}
		if got.String() != input {
			t.Fatalf("expected %q to round trip, got %q", input, got.String())
		}
	}

	for _, input := range []string{"", "8:00", "24:00", "12:60", "12-30", "+1:00", "12:3a", " 12:30"} {
		_, err := ParseClockTime("start", input)
		var fErr *FormatError
		if !errors.As(err, &fErr) {
			t.Fatalf("ParseClockTime(%q) expected *FormatError, got %v", input, err)
		}
		if fErr.Field != "start" || fErr.Value != input {
			t.Fatalf("unexpected error details: %+v", fErr)
		}
	}
}

func TestCalendar(t *testing.T) {
	t.Parallel()

	zurich, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Skipf("time zone database unavailable: %v", err)
	}
	cal := NewCalendar(zurich)

	// 23:30 UTC on March 9 is already March 10 in Zurich.
	now := time.Date(2024, time.March, 9, 23, 30, 0, 0, time.UTC)
	if got := cal.Today(now); !got.Equal(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected today: %v", got)
	}
	if got := cal.Clock(now).String(); got != "00:30" {
		t.Fatalf("unexpected clock: %s", got)
	}

	var nilCal *Calendar
	if nilCal.Location() != time.UTC {
		t.Fatalf("nil calendar should default to UTC")
	}
}
