/*
Package report aggregates valued time entries over a date range.

PURPOSE:
  Period totals for payroll review: pay, hours, sessions, leave days and
  manual adjustments, per employee and overall.

DAY RULES:
  Entries are grouped per (employee, date) and processed in (kind, id) order,
  so totals never depend on input order.

  Leave credit on one day is capped at 1.0. Two half days count as one full
  day; anything past the cap contributes nothing and is flagged Capped.

  Salaried (global) employees are paid one daily rate per day. The first work
  entry carries the work share (1 - leave credit); further work entries on
  the same day are detail only and flagged Deduplicated.

  Leave before the start date is shown with a zero amount and flagged
  PreStart. Other entries before the start date are dropped.

ROUNDING:
  Lines keep full precision. Totals are rounded to cents at output.

SEE ALSO:
  - valuation/entry.go: per-entry amounts
  - payment/calculator.go: daily rate
*/
package report

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/payment"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/valuation"
)

// =============================================================================
// TYPES
// =============================================================================

type Filters struct {
	EmployeeIDs     []generic.EmployeeID   `json:"employee_ids,omitempty"`
	Types           []staff.EmploymentType `json:"types,omitempty"`
	IncludeInactive bool                   `json:"include_inactive"`
}

func (f Filters) allows(emp staff.Employee) bool {
	if !f.IncludeInactive && !emp.IsActive {
		return false
	}
	if len(f.EmployeeIDs) > 0 && !contains(f.EmployeeIDs, emp.ID) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, emp.Type) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Adjustments splits manual corrections by sign. Debit is a positive magnitude.
type Adjustments struct {
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
	Net    decimal.Decimal `json:"net"`
}

func (a *Adjustments) add(amount decimal.Decimal) {
	if amount.IsNegative() {
		a.Debit = a.Debit.Add(amount.Neg())
	} else {
		a.Credit = a.Credit.Add(amount)
	}
	a.Net = a.Credit.Sub(a.Debit)
}

func (a Adjustments) rounded() Adjustments {
	return Adjustments{Credit: generic.RoundMoney(a.Credit), Debit: generic.RoundMoney(a.Debit), Net: generic.RoundMoney(a.Net)}
}

// Line is one entry's contribution.
type Line struct {
	EntryID          generic.EntryID   `json:"entry_id"`
	Date             generic.TimePoint `json:"date"`
	Kind             staff.EntryKind   `json:"kind"`
	Amount           decimal.Decimal   `json:"amount"`
	LeaveCredit      decimal.Decimal   `json:"leave_credit"`
	Reason           staff.Reason      `json:"reason,omitempty"`
	PreStart         bool              `json:"pre_start,omitempty"`
	Deduplicated     bool              `json:"deduplicated,omitempty"`
	UsedFallbackRate bool              `json:"used_fallback_rate,omitempty"`
	Capped           bool              `json:"capped,omitempty"`
}

type EmployeeTotals struct {
	EmployeeID    generic.EmployeeID   `json:"employee_id"`
	Name          string               `json:"name"`
	Type          staff.EmploymentType `json:"type"`
	TotalPay      decimal.Decimal      `json:"total_pay"`
	TotalHours    decimal.Decimal      `json:"total_hours"`
	TotalSessions int                  `json:"total_sessions"`
	LeaveDays     decimal.Decimal      `json:"leave_days"`
	PreStartLeave int                  `json:"pre_start_leave"`
	Adjustments   Adjustments          `json:"adjustments"`
	Lines         []Line               `json:"lines"`
}

// Warning is a degraded value inside the range.
type Warning struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Date       generic.TimePoint  `json:"date"`
	EntryID    generic.EntryID    `json:"entry_id"`
	Reason     staff.Reason       `json:"reason"`
}

type Totals struct {
	Range         generic.Period   `json:"range"`
	TotalPay      decimal.Decimal  `json:"total_pay"`
	TotalHours    decimal.Decimal  `json:"total_hours"`
	TotalSessions int              `json:"total_sessions"`
	LeaveDays     decimal.Decimal  `json:"leave_days"`
	PreStartLeave int              `json:"pre_start_leave"`
	Adjustments   Adjustments      `json:"adjustments"`
	PerEmployee   []EmployeeTotals `json:"per_employee"`
	Warnings      []Warning        `json:"warnings,omitempty"`
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	PayPolicy valuation.PayPolicy
	Calendar  generic.Calendar
}

func NewAggregator(pp valuation.PayPolicy, cal generic.Calendar) *Aggregator {
	return &Aggregator{PayPolicy: pp, Calendar: cal}
}

var one = decimal.NewFromInt(1)

// Aggregate totals the active entries of snap that fall inside rng.
func (a *Aggregator) Aggregate(snap *staff.Snapshot, rng generic.Period, filters Filters) (*Totals, error) {
	if rng.End.Before(rng.Start) {
		return nil, generic.ErrInvalidPeriod
	}
	resolver := valuation.FromSnapshot(a.PayPolicy, snap, a.Calendar)
	dayAgg := &dayAggregator{valuer: valuation.NewEntryValuer(resolver), calc: resolver.Calculator}

	totals := &Totals{
		Range:      rng,
		TotalPay:   decimal.Zero,
		TotalHours: decimal.Zero,
		LeaveDays:  decimal.Zero,
	}
	adj := Adjustments{Credit: decimal.Zero, Debit: decimal.Zero, Net: decimal.Zero}

	for _, id := range snap.EmployeeIDs() {
		emp, _ := snap.Employee(id)
		if !filters.allows(emp) {
			continue
		}
		et, warnings, err := dayAgg.employee(emp, snap.EntriesFor(id), rng)
		if err != nil {
			return nil, err
		}
		totals.TotalPay = totals.TotalPay.Add(et.TotalPay)
		totals.TotalHours = totals.TotalHours.Add(et.TotalHours)
		totals.TotalSessions += et.TotalSessions
		totals.LeaveDays = totals.LeaveDays.Add(et.LeaveDays)
		totals.PreStartLeave += et.PreStartLeave
		adj.Credit = adj.Credit.Add(et.Adjustments.Credit)
		adj.Debit = adj.Debit.Add(et.Adjustments.Debit)
		adj.Net = adj.Credit.Sub(adj.Debit)
		totals.Warnings = append(totals.Warnings, warnings...)

		et.TotalPay = generic.RoundMoney(et.TotalPay)
		et.Adjustments = et.Adjustments.rounded()
		totals.PerEmployee = append(totals.PerEmployee, et)
	}

	totals.TotalPay = generic.RoundMoney(totals.TotalPay)
	totals.Adjustments = adj.rounded()
	return totals, nil
}

// =============================================================================
// PER-DAY ACCUMULATION
// =============================================================================

type dayAggregator struct {
	valuer *valuation.EntryValuer
	calc   *payment.Calculator
}

func (d *dayAggregator) employee(emp staff.Employee, entries []staff.TimeEntry, rng generic.Period) (EmployeeTotals, []Warning, error) {
	et := EmployeeTotals{
		EmployeeID:  emp.ID,
		Name:        emp.Name,
		Type:        emp.Type,
		TotalPay:    decimal.Zero,
		TotalHours:  decimal.Zero,
		LeaveDays:   decimal.Zero,
		Adjustments: Adjustments{Credit: decimal.Zero, Debit: decimal.Zero, Net: decimal.Zero},
	}

	byDate := make(map[string][]staff.TimeEntry)
	var dates []generic.TimePoint
	for _, e := range entries {
		if !e.IsActive() || !rng.Contains(e.Date) {
			continue
		}
		key := e.Date.String()
		if _, ok := byDate[key]; !ok {
			dates = append(dates, e.Date)
		}
		byDate[key] = append(byDate[key], e)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var warnings []Warning
	for _, date := range dates {
		day := byDate[date.String()]
		sort.Slice(day, func(i, j int) bool {
			if day[i].Kind != day[j].Kind {
				return day[i].Kind < day[j].Kind
			}
			return day[i].ID < day[j].ID
		})

		lines, err := d.day(emp, date, day)
		if err != nil {
			return EmployeeTotals{}, nil, err
		}
		for i, l := range lines {
			if l.Kind == "" {
				continue
			}
			e := day[i]
			switch {
			case l.PreStart:
				et.PreStartLeave++
			case e.Kind == staff.KindAdjustment:
				et.Adjustments.add(l.Amount)
			case e.Kind == staff.KindHours:
				et.TotalHours = et.TotalHours.Add(e.Hours)
			case e.Kind == staff.KindSession:
				et.TotalSessions += e.Meetings
			}
			et.TotalPay = et.TotalPay.Add(l.Amount)
			et.LeaveDays = et.LeaveDays.Add(l.LeaveCredit)
			if l.Reason.Degraded() {
				warnings = append(warnings, Warning{EmployeeID: emp.ID, Date: date, EntryID: l.EntryID, Reason: l.Reason})
			}
			et.Lines = append(et.Lines, l)
		}
	}
	return et, warnings, nil
}

// day values the sorted entries of one date. The result is index-aligned with
// day; dropped entries come back as zero Lines with an empty Kind.
func (d *dayAggregator) day(emp staff.Employee, date generic.TimePoint, day []staff.TimeEntry) ([]Line, error) {
	lines := make([]Line, len(day))

	if !emp.EmployedOn(date) {
		for i, e := range day {
			if e.Kind == staff.KindLeave {
				lines[i] = Line{EntryID: e.ID, Date: date, Kind: e.Kind, Amount: decimal.Zero, LeaveCredit: decimal.Zero, Reason: staff.ReasonNotYetEmployed, PreStart: true}
			}
		}
		return lines, nil
	}

	// Leave first: the credit it claims decides the salaried work share.
	credit := decimal.Zero
	for i, e := range day {
		if e.Kind != staff.KindLeave {
			continue
		}
		line := Line{EntryID: e.ID, Date: date, Kind: e.Kind, Amount: decimal.Zero, LeaveCredit: decimal.Zero}
		want := e.LeaveCredit()
		granted := decimal.Min(want, decimal.Max(one.Sub(credit), decimal.Zero))
		credit = credit.Add(granted)
		line.LeaveCredit = granted
		line.Capped = granted.LessThan(want)

		if granted.IsPositive() {
			v, err := d.valuer.Value(e, emp)
			if err != nil {
				return nil, err
			}
			line.Amount = v.Amount.Mul(granted).Div(want)
			line.Reason = v.Reason
			line.UsedFallbackRate = v.UsedFallbackRate
		}
		lines[i] = line
	}

	workCarried := false
	for i, e := range day {
		if e.Kind == staff.KindLeave {
			continue
		}
		line := Line{EntryID: e.ID, Date: date, Kind: e.Kind, Amount: decimal.Zero, LeaveCredit: decimal.Zero}

		if emp.Type == staff.Global && e.Kind.IsWork() {
			if workCarried {
				line.Deduplicated = true
				line.Reason = staff.ReasonDeduplicated
				lines[i] = line
				continue
			}
			workCarried = true
			rate := d.calc.DailyRate(emp, date)
			share := decimal.Max(one.Sub(credit), decimal.Zero)
			line.Amount = rate.Amount.Mul(share)
			line.Reason = rate.Reason
			lines[i] = line
			continue
		}

		v, err := d.valuer.Value(e, emp)
		if err != nil {
			return nil, err
		}
		line.Amount = v.Amount
		line.Reason = v.Reason
		line.UsedFallbackRate = v.UsedFallbackRate
		lines[i] = line
	}
	return lines, nil
}
