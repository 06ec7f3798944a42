package generic

import "fmt"

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive date range [Start, End]. Reports, lookback windows
// and leave years are all Periods.
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, start, end)
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// IsEmpty reports whether the period contains no days.
func (p Period) IsEmpty() bool {
	return p.End.Before(p.Start)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// ClipStart moves Start forward to notBefore if needed. The result may be empty.
func (p Period) ClipStart(notBefore TimePoint) Period {
	return Period{Start: MaxDate(p.Start, notBefore), End: p.End}
}

// =============================================================================
// PERIOD CONSTRUCTORS
// =============================================================================

// CalendarYear returns Jan 1 - Dec 31 of year.
func CalendarYear(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// TrailingMonths returns the window of n months ending the day before date.
// For date 2024-07-15 and n=6 this is [2024-01-15, 2024-07-14].
func TrailingMonths(date TimePoint, n int) Period {
	return Period{Start: date.AddMonths(-n), End: date.AddDays(-1)}
}
