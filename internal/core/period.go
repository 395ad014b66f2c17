package core

import "time"

// BillingPeriod is one credit card cycle. Start and End are inclusive.
type BillingPeriod struct {
	Start time.Time
	End   time.Time
	Due   time.Time
}

// Contains reports whether t falls inside the period.
func (p BillingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// CalculateBillingPeriod returns the cycle containing ref for a card closing on
// closingDay and due on dueDay. Days beyond a month's length clamp to its last
// day, evaluated per month. All instants are in ref's location.
//
// End is the closing day's last instant: this month's when ref has not passed
// it yet, next month's otherwise. Start is the first instant after the previous
// cycle's closing day. Due falls in End's month, or the month after when
// dueDay <= closingDay or the clamped due day would not follow the closing day.
func CalculateBillingPeriod(closingDay, dueDay int, ref time.Time) BillingPeriod {
	loc := ref.Location()
	closingDay = boundDay(closingDay)
	dueDay = boundDay(dueDay)

	year, month := ref.Year(), ref.Month()
	if ref.Day() > clampDay(year, month, closingDay, loc) {
		year, month = addMonths(year, month, 1, loc)
	}
	endDay := clampDay(year, month, closingDay, loc)
	end := endOfDay(year, month, endDay, loc)

	prevYear, prevMonth := addMonths(year, month, -1, loc)
	// Day overflow normalizes into the following month (Jan 31 + 1 = Feb 1).
	start := time.Date(prevYear, prevMonth, clampDay(prevYear, prevMonth, closingDay, loc)+1, 0, 0, 0, 0, loc)

	dueYear, dueMonth := year, month
	if dueDay <= closingDay || clampDay(year, month, dueDay, loc) <= endDay {
		dueYear, dueMonth = addMonths(year, month, 1, loc)
	}
	due := endOfDay(dueYear, dueMonth, clampDay(dueYear, dueMonth, dueDay, loc), loc)

	return BillingPeriod{Start: start, End: end, Due: due}
}

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func clampDay(year int, month time.Month, day int, loc *time.Location) int {
	if last := LastDayOfMonth(year, month, loc); day > last {
		return last
	}
	return day
}

func boundDay(day int) int {
	switch {
	case day < 1:
		return 1
	case day > 31:
		return 31
	}
	return day
}

func addMonths(year int, month time.Month, n int, loc *time.Location) (int, time.Month) {
	t := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, loc)
	return t.Year(), t.Month()
}

func endOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}
