package testfixtures

import (
	"testing"
	"time"
)

func TestClockStartsAtReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected reference time, got %v", clock.Now())
	}
	if got := clock.Today(time.UTC); got != "2024-01-02" {
		t.Fatalf("expected 2024-01-02, got %s", got)
	}
}

func TestClockAtUsesWallTimeOfLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	clock := NewClock(time.Time{})
	instant := clock.At("2024-03-14", "23:30", berlin)
	if instant.UTC().Hour() != 22 {
		t.Fatalf("expected 22:30 UTC, got %v", instant.UTC())
	}
	if got := clock.Today(time.UTC); got != "2024-03-14" {
		t.Fatalf("expected UTC date 2024-03-14, got %s", got)
	}

	clock.Advance(45 * time.Minute)
	if got := clock.Today(berlin); got != "2024-03-15" {
		t.Fatalf("expected Berlin date to roll over, got %s", got)
	}
	if got := clock.Today(time.UTC); got != "2024-03-14" {
		t.Fatalf("expected UTC date unchanged, got %s", got)
	}
}

func TestClockNowFuncTracksChanges(t *testing.T) {
	clock := NewClock(time.Time{})
	now := clock.NowFunc()

	clock.At("2024-01-08", "08:00", nil)
	clock.Advance(8*time.Hour + 30*time.Minute)
	if got := now(); got.Hour() != 16 || got.Minute() != 30 {
		t.Fatalf("expected 16:30, got %v", got)
	}

	var nilClock *Clock
	if nilClock.NowFunc() == nil {
		t.Fatal("nil clock must fall back to time.Now")
	}
}
