// Package schedule computes business-day-aware due dates for an ordered
// chain of workflow stages. Scheduling runs backward from a single project
// due date; recorded actual start timestamps override the projection once
// they exist. Everything here is a pure computation over values: callers
// persist the results, this package never touches storage.
package schedule

import (
	"time"
)

// StepSchedule is the scheduling view of one ordered workflow stage.
type StepSchedule struct {
	PlannedDurationDays int
	// ActualStart is the recorded start timestamp, zero when the stage has
	// not been started.
	ActualStart time.Time
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SubtractBusinessDays steps backward the given number of weekday units,
// skipping Saturdays and Sundays. A non-positive count returns the date
// unchanged (zero or negative durations cause no schedule slip).
func SubtractBusinessDays(d time.Time, days int) time.Time {
	r := DateOf(d)
	remaining := days
	for remaining > 0 {
		r = r.AddDate(0, 0, -1)
		if isBusinessDay(r) {
			remaining--
		}
	}
	return r
}

// BusinessDaysBetween counts the weekdays in (from, to]. It returns 0 when
// either bound is zero or the interval is empty or inverted.
func BusinessDaysBetween(from, to time.Time) int {
	start := DateOf(from)
	end := DateOf(to)
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0
	}
	count := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if isBusinessDay(d) {
			count++
		}
	}
	return count
}

// ComputeDueDates back-schedules planned due dates for the ordered stage
// chain from the project due date. The last stage is due on the project due
// date; each earlier stage is due when its successor is planned (or actually
// recorded) to start. A zero projectDue yields all-zero due dates: without
// an anchor there is nothing to project.
func ComputeDueDates(projectDue time.Time, steps []StepSchedule) []time.Time {
	dues := make([]time.Time, len(steps))
	if projectDue.IsZero() {
		return dues
	}

	nextStart := DateOf(projectDue)
	for i := len(steps) - 1; i >= 0; i-- {
		dues[i] = nextStart
		plannedStart := SubtractBusinessDays(dues[i], steps[i].PlannedDurationDays)
		if !steps[i].ActualStart.IsZero() {
			// ground truth beats projection once it exists
			nextStart = DateOf(steps[i].ActualStart)
		} else {
			nextStart = plannedStart
		}
	}
	return dues
}

// ActualDurationDays derives how many business days a completed stage took:
// from its own start timestamp, falling back to the previous stage's
// completion timestamp when the stage was never explicitly started. The
// second return is false while the duration cannot be derived yet.
func ActualDurationDays(start, previousCompleted, completed time.Time) (int, bool) {
	if completed.IsZero() {
		return 0, false
	}
	anchor := start
	if anchor.IsZero() {
		anchor = previousCompleted
	}
	if anchor.IsZero() {
		return 0, false
	}
	return BusinessDaysBetween(anchor, completed), true
}

func isBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
