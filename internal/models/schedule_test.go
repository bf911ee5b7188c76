package models

import (
	"testing"
	"time"
)

func TestToggleDayAddRemove(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) // Wednesday
	s := PostSchedule{Days: Weekdays{time.Monday}}

	s.ToggleDay(time.Friday, now)
	if !s.Days.Contains(time.Monday) || !s.Days.Contains(time.Friday) {
		t.Fatalf("Days = %v, want Monday and Friday", s.Days)
	}

	s.ToggleDay(time.Monday, now)
	if s.Days.Contains(time.Monday) {
		t.Fatalf("Days = %v, Monday should be removed", s.Days)
	}
}

func TestToggleDayNeverEmpty(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) // Wednesday

	s := PostSchedule{Days: Weekdays{time.Monday}}
	s.ToggleDay(time.Monday, now)

	if len(s.Days) != 1 || s.Days[0] != time.Wednesday {
		t.Errorf("Days = %v, want exactly {Wednesday}", s.Days)
	}
}

func TestToggleDayLastIsCurrent(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) // Wednesday

	// Removing the current weekday while it is the last one re-inserts it
	s := PostSchedule{Days: Weekdays{time.Wednesday}}
	s.ToggleDay(time.Wednesday, now)

	if len(s.Days) != 1 || s.Days[0] != time.Wednesday {
		t.Errorf("Days = %v, want exactly {Wednesday}", s.Days)
	}
}

func TestToggleDayKeepsSorted(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	s := PostSchedule{Days: Weekdays{time.Friday}}

	s.ToggleDay(time.Monday, now)
	s.ToggleDay(time.Sunday, now)

	want := Weekdays{time.Sunday, time.Monday, time.Friday}
	if len(s.Days) != len(want) {
		t.Fatalf("Days = %v, want %v", s.Days, want)
	}
	for i := range want {
		if s.Days[i] != want[i] {
			t.Fatalf("Days = %v, want %v", s.Days, want)
		}
	}
}

func TestValidMinute(t *testing.T) {
	for _, m := range AllowedMinutes {
		if !ValidMinute(m) {
			t.Errorf("ValidMinute(%d) = false", m)
		}
	}
	for _, m := range []int{1, 7, 20, 59} {
		if ValidMinute(m) {
			t.Errorf("ValidMinute(%d) = true", m)
		}
	}
}

func TestValidDuration(t *testing.T) {
	for _, h := range AllowedDurations {
		if !ValidDuration(h) {
			t.Errorf("ValidDuration(%d) = false", h)
		}
	}
	if ValidDuration(5) || ValidDuration(0) {
		t.Error("unexpected duration accepted")
	}
}
