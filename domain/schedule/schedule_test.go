package schedule_test

import (
	"time"

	"draftflow/domain/schedule"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("SubtractBusinessDays", func() {
	It("should skip weekends while stepping backward", func() {
		// 2025-11-14 is a Friday; 3 business days back is Tuesday the 11th
		Expect(schedule.SubtractBusinessDays(date(2025, 11, 14), 3)).To(Equal(date(2025, 11, 11)))
		// one business day back from Monday is the prior Friday
		Expect(schedule.SubtractBusinessDays(date(2025, 11, 17), 1)).To(Equal(date(2025, 11, 14)))
	})

	It("should never land on a weekend", func() {
		d := date(2025, 11, 3) // Monday
		for n := 1; n <= 14; n++ {
			r := schedule.SubtractBusinessDays(d, n)
			Expect(r.Weekday()).ToNot(Equal(time.Saturday))
			Expect(r.Weekday()).ToNot(Equal(time.Sunday))
		}
	})

	It("should return the date unchanged for zero or negative durations", func() {
		Expect(schedule.SubtractBusinessDays(date(2025, 11, 14), 0)).To(Equal(date(2025, 11, 14)))
		Expect(schedule.SubtractBusinessDays(date(2025, 11, 14), -2)).To(Equal(date(2025, 11, 14)))
	})

	It("should truncate timestamps to their calendar date", func() {
		ts := time.Date(2025, 11, 14, 16, 45, 30, 0, time.UTC)
		Expect(schedule.SubtractBusinessDays(ts, 1)).To(Equal(date(2025, 11, 13)))
	})
})

var _ = Describe("BusinessDaysBetween", func() {
	It("should count only weekdays in the interval", func() {
		// Tue 11th -> Fri 14th: Wed, Thu, Fri
		Expect(schedule.BusinessDaysBetween(date(2025, 11, 11), date(2025, 11, 14))).To(Equal(3))
		// Fri 14th -> Mon 17th crosses a weekend: just Monday
		Expect(schedule.BusinessDaysBetween(date(2025, 11, 14), date(2025, 11, 17))).To(Equal(1))
	})

	It("should return zero for empty, inverted or unset intervals", func() {
		Expect(schedule.BusinessDaysBetween(date(2025, 11, 14), date(2025, 11, 14))).To(Equal(0))
		Expect(schedule.BusinessDaysBetween(date(2025, 11, 17), date(2025, 11, 14))).To(Equal(0))
		Expect(schedule.BusinessDaysBetween(time.Time{}, date(2025, 11, 14))).To(Equal(0))
		Expect(schedule.BusinessDaysBetween(date(2025, 11, 14), time.Time{})).To(Equal(0))
	})
})

var _ = Describe("ComputeDueDates", func() {
	It("should anchor the last stage on the project due date and back-schedule the rest", func() {
		dues := schedule.ComputeDueDates(date(2025, 11, 14), []schedule.StepSchedule{
			{PlannedDurationDays: 2},
			{PlannedDurationDays: 3},
		})
		Expect(dues[1]).To(Equal(date(2025, 11, 14)))
		// 3 business days before Friday the 14th: Thu, Wed, Tue
		Expect(dues[0]).To(Equal(date(2025, 11, 11)))
	})

	It("should chain planned starts across more than two stages", func() {
		dues := schedule.ComputeDueDates(date(2025, 11, 14), []schedule.StepSchedule{
			{PlannedDurationDays: 1},
			{PlannedDurationDays: 1},
			{PlannedDurationDays: 1},
		})
		Expect(dues[2]).To(Equal(date(2025, 11, 14)))
		Expect(dues[1]).To(Equal(date(2025, 11, 13)))
		Expect(dues[0]).To(Equal(date(2025, 11, 12)))
	})

	It("should replace the projection with the successor's actual start once recorded", func() {
		dues := schedule.ComputeDueDates(date(2025, 11, 14), []schedule.StepSchedule{
			{PlannedDurationDays: 2},
			{PlannedDurationDays: 3, ActualStart: time.Date(2025, 11, 10, 9, 30, 0, 0, time.UTC)},
		})
		Expect(dues[1]).To(Equal(date(2025, 11, 14)))
		Expect(dues[0]).To(Equal(date(2025, 11, 10)))
	})

	It("should give a zero-duration stage the same due date as its successor", func() {
		dues := schedule.ComputeDueDates(date(2025, 11, 14), []schedule.StepSchedule{
			{PlannedDurationDays: 1},
			{PlannedDurationDays: 0},
		})
		Expect(dues[1]).To(Equal(date(2025, 11, 14)))
		Expect(dues[0]).To(Equal(date(2025, 11, 14)))
	})

	It("should compute nothing without a project due date", func() {
		dues := schedule.ComputeDueDates(time.Time{}, []schedule.StepSchedule{
			{PlannedDurationDays: 2},
			{PlannedDurationDays: 3},
		})
		Expect(dues).To(HaveLen(2))
		Expect(dues[0].IsZero()).To(BeTrue())
		Expect(dues[1].IsZero()).To(BeTrue())
	})
})

var _ = Describe("ActualDurationDays", func() {
	It("should count business days from the stage's own start", func() {
		d, ok := schedule.ActualDurationDays(date(2025, 11, 11), time.Time{}, date(2025, 11, 14))
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(3))
	})

	It("should fall back to the previous stage's completion when never started", func() {
		d, ok := schedule.ActualDurationDays(time.Time{}, date(2025, 11, 14), date(2025, 11, 17))
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(1))
	})

	It("should not derive a duration before completion or without any anchor", func() {
		_, ok := schedule.ActualDurationDays(date(2025, 11, 11), time.Time{}, time.Time{})
		Expect(ok).To(BeFalse())
		_, ok = schedule.ActualDurationDays(time.Time{}, time.Time{}, date(2025, 11, 14))
		Expect(ok).To(BeFalse())
	})
})
