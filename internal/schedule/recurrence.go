// Package schedule computes when a post runs next.
package schedule

import (
	"time"

	"github.com/autopost-bot/internal/models"
)

// NextRun returns the next run time for s strictly after now. Pure and
// idempotent given the same now; callers must capture now once per
// scheduling decision.
func NextRun(s models.PostSchedule, now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	if s.Daily || len(s.Days) == 0 {
		// An empty day set is treated as daily; the draft builder
		// never produces one.
		return candidate
	}
	for !s.Days.Contains(candidate.Weekday()) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
