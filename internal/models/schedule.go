package models

import (
	"database/sql/driver"
	"encoding/json"
	"sort"
	"time"
)

// AllowedMinutes are the minute marks a post may be scheduled at.
var AllowedMinutes = []int{0, 15, 30, 45}

// AllowedDurations are the selectable publication lifetimes, in hours.
var AllowedDurations = []int{6, 12, 24, 48, 72}

// Weekdays is a set of weekdays stored as a sorted JSON array
// (time.Weekday values, 0=Sunday).
type Weekdays []time.Weekday

func (w Weekdays) Value() (driver.Value, error) {
	return json.Marshal(w)
}

func (w *Weekdays) Scan(value interface{}) error {
	if value == nil {
		*w = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	}
	return nil
}

// Contains reports whether d is a member of the set.
func (w Weekdays) Contains(d time.Weekday) bool {
	for _, day := range w {
		if day == d {
			return true
		}
	}
	return false
}

// PostSchedule describes when a post runs and how long it stays up.
// Days is never empty: toggling off the last remaining day re-inserts
// the current weekday.
type PostSchedule struct {
	Hour          int      `json:"hour"`   // 0-23
	Minute        int      `json:"minute"` // one of AllowedMinutes
	Daily         bool     `json:"daily"`
	Days          Weekdays `json:"days"`
	DurationHours int      `json:"duration_hours"` // 0 means never retract
}

func (s PostSchedule) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PostSchedule) Scan(value interface{}) error {
	if value == nil {
		*s = PostSchedule{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return nil
}

// DefaultSchedule returns the schedule applied to a fresh draft.
func DefaultSchedule(hour, minute, durationHours int, daily bool, now time.Time) PostSchedule {
	return PostSchedule{
		Hour:          hour,
		Minute:        minute,
		Daily:         daily,
		Days:          Weekdays{now.Weekday()},
		DurationHours: durationHours,
	}
}

// ToggleDay adds or removes a weekday. Removing the last remaining day
// re-inserts now's weekday so the set never ends up empty.
func (s *PostSchedule) ToggleDay(d time.Weekday, now time.Time) {
	if s.Days.Contains(d) {
		days := make(Weekdays, 0, len(s.Days))
		for _, day := range s.Days {
			if day != d {
				days = append(days, day)
			}
		}
		if len(days) == 0 {
			days = Weekdays{now.Weekday()}
		}
		s.Days = days
		return
	}
	s.Days = append(s.Days, d)
	sort.Slice(s.Days, func(i, j int) bool { return s.Days[i] < s.Days[j] })
}

// Retracts reports whether published messages get deleted after a
// configured lifetime.
func (s PostSchedule) Retracts() bool {
	return s.DurationHours > 0
}

// Duration returns the publication lifetime.
func (s PostSchedule) Duration() time.Duration {
	return time.Duration(s.DurationHours) * time.Hour
}

// ValidMinute reports whether m is an allowed minute mark.
func ValidMinute(m int) bool {
	for _, allowed := range AllowedMinutes {
		if m == allowed {
			return true
		}
	}
	return false
}

// ValidDuration reports whether h is an allowed lifetime in hours.
func ValidDuration(h int) bool {
	for _, allowed := range AllowedDurations {
		if h == allowed {
			return true
		}
	}
	return false
}
