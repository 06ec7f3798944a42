package valuation

import (
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/payment"
	"github.com/warp/staff-pay-engine/rates"
	"github.com/warp/staff-pay-engine/staff"
)

// EntrySource is satisfied by *staff.Snapshot.
type EntrySource interface {
	EntriesFor(employeeID generic.EmployeeID) []staff.TimeEntry
}

// WindowCalendar counts working days in a window. generic.Calendar implements it.
type WindowCalendar interface {
	WorkingDaysIn(p generic.Period) int
}

// Value is the outcome of valuing one full leave day.
type Value struct {
	Amount           decimal.Decimal `json:"amount"`
	UsedFallbackRate bool            `json:"used_fallback_rate"`
	Method           Method          `json:"method"`
	Reason           staff.Reason    `json:"reason,omitempty"`
	// WindowDays is the working-day divisor actually used (0 for fixed/fallback).
	WindowDays int `json:"window_days,omitempty"`
}

type Resolver struct {
	Policy     PayPolicy
	Employees  rates.EmployeeLookup
	History    EntrySource
	Calculator *payment.Calculator
	Calendar   WindowCalendar
}

// FromSnapshot wires a resolver over a snapshot.
func FromSnapshot(policy PayPolicy, snap *staff.Snapshot, cal generic.Calendar) *Resolver {
	return &Resolver{
		Policy:     policy,
		Employees:  snap,
		History:    snap,
		Calculator: payment.FromSnapshot(snap, cal),
		Calendar:   cal,
	}
}

// ValueLeaveDay values one full leave day for employeeID on date. The error
// is reserved for invalid data (unknown employment type on a history entry).
func (r *Resolver) ValueLeaveDay(employeeID generic.EmployeeID, date generic.TimePoint) (Value, error) {
	emp, ok := r.Employees.Employee(employeeID)
	if !ok {
		return Value{Amount: decimal.Zero, Method: r.Policy.DefaultMethod, Reason: staff.ReasonUnknownEmployee}, nil
	}
	if !emp.EmployedOn(date) {
		return Value{Amount: decimal.Zero, Method: r.Policy.DefaultMethod, Reason: staff.ReasonNotYetEmployed}, nil
	}

	switch r.Policy.DefaultMethod {
	case MethodFixed:
		return Value{Amount: r.Policy.FixedRateDefault, Method: MethodFixed}, nil
	case MethodAverage:
		return r.windowed(emp, date, MethodAverage, false)
	default:
		return r.windowed(emp, date, MethodLegal, r.Policy.Legal12MIfBetter)
	}
}

func (r *Resolver) windowed(emp staff.Employee, date generic.TimePoint, method Method, try12 bool) (Value, error) {
	best, found, err := r.average(emp, date, r.Policy.LookbackMonths)
	if err != nil {
		return Value{}, err
	}
	if try12 {
		alt, altFound, err := r.average(emp, date, 12)
		if err != nil {
			return Value{}, err
		}
		if altFound && (!found || alt.Amount.GreaterThan(best.Amount)) {
			best, found = alt, true
		}
	}
	if !found {
		return r.fallback(emp, date, method), nil
	}
	best.Method = method
	return best, nil
}

// average returns the average daily pay over the trailing window. found is
// false when the window has no qualifying entries or no working days.
func (r *Resolver) average(emp staff.Employee, date generic.TimePoint, months int) (Value, bool, error) {
	if months <= 0 {
		return Value{}, false, nil
	}
	window := generic.TrailingMonths(date, months).ClipStart(emp.StartDate)
	if window.IsEmpty() {
		return Value{}, false, nil
	}

	total := decimal.Zero
	qualifying := 0
	for _, e := range r.History.EntriesFor(emp.ID) {
		if !qualifies(e) || !window.Contains(e.Date) {
			continue
		}
		res, err := r.Calculator.Compute(e, emp)
		if err != nil {
			return Value{}, false, err
		}
		total = total.Add(res.Amount)
		qualifying++
	}
	if qualifying == 0 {
		return Value{}, false, nil
	}
	days := r.Calendar.WorkingDaysIn(window)
	if days <= 0 {
		return Value{}, false, nil
	}
	return Value{Amount: total.Div(decimal.NewFromInt(int64(days))), WindowDays: days}, true, nil
}

// qualifies: active, payable work history. Leave and adjustments are excluded.
func qualifies(e staff.TimeEntry) bool {
	return e.IsActive() && e.Payable && e.Kind.IsWork()
}

func (r *Resolver) fallback(emp staff.Employee, date generic.TimePoint, method Method) Value {
	res := r.Calculator.Rates.ResolveFor(emp, date, staff.GenericServiceID)
	v := Value{
		Amount:           res.Rate.Mul(r.Policy.StandardDayHours),
		UsedFallbackRate: true,
		Method:           method,
		Reason:           staff.ReasonFallbackRate,
	}
	if !res.Found() {
		v.Reason = res.Reason
	}
	return v
}
