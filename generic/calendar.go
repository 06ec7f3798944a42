package generic

import "time"

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a non-working day. Recurring holidays match the same month/day every year.
type Holiday struct {
	Date      TimePoint `json:"date"`
	Name      string    `json:"name"`
	Recurring bool      `json:"recurring"`
}

// Matches reports whether the holiday falls on date.
func (h Holiday) Matches(date TimePoint) bool {
	if h.Recurring {
		return h.Date.Month() == date.Month() && h.Date.Day() == date.Day()
	}
	return h.Date.Equal(date)
}

// HolidayCalendar provides holiday lookup.
type HolidayCalendar interface {
	IsHoliday(date TimePoint) bool
}

// HolidayList is the simplest HolidayCalendar: a linear scan over rules.
type HolidayList []Holiday

func (hl HolidayList) IsHoliday(date TimePoint) bool {
	for _, h := range hl {
		if h.Matches(date) {
			return true
		}
	}
	return false
}

// =============================================================================
// CALENDAR - Which days count as working days
// =============================================================================

// Calendar decides working days from a weekend set and an optional holiday calendar.
// The zero value treats Saturday and Sunday as the weekend and has no holidays.
type Calendar struct {
	Weekend  []time.Weekday
	Holidays HolidayCalendar
}

// DefaultWeekend is used when Calendar.Weekend is empty.
var DefaultWeekend = []time.Weekday{time.Saturday, time.Sunday}

func (c Calendar) IsWeekend(date TimePoint) bool {
	weekend := c.Weekend
	if len(weekend) == 0 {
		weekend = DefaultWeekend
	}
	wd := date.Weekday()
	for _, w := range weekend {
		if w == wd {
			return true
		}
	}
	return false
}

func (c Calendar) IsWorkingDay(date TimePoint) bool {
	if c.IsWeekend(date) {
		return false
	}
	if c.Holidays != nil && c.Holidays.IsHoliday(date) {
		return false
	}
	return true
}

// WorkingDaysInMonth counts working days in a calendar month.
func (c Calendar) WorkingDaysInMonth(year int, month time.Month) int {
	return c.WorkingDaysIn(Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)})
}

// WorkingDaysIn counts working days in [p.Start, p.End].
func (c Calendar) WorkingDaysIn(p Period) int {
	n := 0
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		if c.IsWorkingDay(d) {
			n++
		}
	}
	return n
}
