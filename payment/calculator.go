/*
Package payment converts one time entry into money.

FORMULAS (by employment type × entry kind):
  hourly     hours        hours × rate (generic track)
  hourly     leave        not computed here: RequiresValuation (see valuation)
  global     hours        daily rate = monthly rate × scope / working days in month
  global     leave        override if positive, else daily rate × multiplier (unpaid → 0)
  instructor session      per_meeting: meetings × rate
                          per_student: meetings × students × rate
  instructor leave        NotApplicable (0)
  any        adjustment   stored signed value, no rate lookup

Missing rates are soft failures: amount 0 plus the resolver's reason code.
Amounts keep full precision; Result.Rounded() is for the boundary.

SEE ALSO:
  - rates/resolver.go: where the rate comes from
  - valuation/entry.go: routes hourly leave to the lookback valuation
*/
package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/rates"
	"github.com/warp/staff-pay-engine/staff"
)

// WorkingDays is the strategy behind the salaried daily rate. generic.Calendar
// implements it.
type WorkingDays interface {
	WorkingDaysInMonth(year int, month time.Month) int
}

// ServiceLookup is satisfied by *staff.Snapshot.
type ServiceLookup interface {
	Service(id generic.ServiceID) (staff.ServiceContext, bool)
}

// Result is the value of one entry. Zero amounts from missing data carry a Reason.
type Result struct {
	Amount        decimal.Decimal   `json:"amount"`
	Rate          decimal.Decimal   `json:"rate"`
	EffectiveDate generic.TimePoint `json:"effective_date,omitempty"`
	Reason        staff.Reason      `json:"reason,omitempty"`
}

// Rounded returns the result with Amount rounded for display or storage.
func (r Result) Rounded() Result {
	r.Amount = generic.RoundMoney(r.Amount)
	return r
}

func zero(reason staff.Reason) Result {
	return Result{Amount: decimal.Zero, Rate: decimal.Zero, Reason: reason}
}

type Calculator struct {
	Rates       *rates.Resolver
	Services    ServiceLookup
	WorkingDays WorkingDays
}

func NewCalculator(resolver *rates.Resolver, services ServiceLookup, wd WorkingDays) *Calculator {
	return &Calculator{Rates: resolver, Services: services, WorkingDays: wd}
}

// FromSnapshot wires a calculator over a snapshot with the given calendar.
func FromSnapshot(snap *staff.Snapshot, wd WorkingDays) *Calculator {
	return NewCalculator(rates.FromSnapshot(snap), snap, wd)
}

// Compute values one entry for emp. The only error is an unknown employment
// type or entry kind; everything else degrades to a zero amount with a reason.
func (c *Calculator) Compute(entry staff.TimeEntry, emp staff.Employee) (Result, error) {
	if entry.Kind == staff.KindAdjustment {
		return Result{Amount: entry.Adjustment, Rate: decimal.Zero}, nil
	}

	switch emp.Type {
	case staff.Hourly:
		return c.hourly(entry, emp)
	case staff.Global:
		return c.global(entry, emp)
	case staff.Instructor:
		return c.instructor(entry, emp)
	default:
		return Result{}, fmt.Errorf("%w: %q for employee %s", generic.ErrUnknownEmploymentType, emp.Type, emp.ID)
	}
}

func (c *Calculator) hourly(entry staff.TimeEntry, emp staff.Employee) (Result, error) {
	switch entry.Kind {
	case staff.KindHours:
		res := c.Rates.ResolveFor(emp, entry.Date, staff.GenericServiceID)
		return Result{
			Amount:        entry.Hours.Mul(res.Rate),
			Rate:          res.Rate,
			EffectiveDate: res.EffectiveDate,
			Reason:        res.Reason,
		}, nil
	case staff.KindLeave:
		return zero(staff.ReasonRequiresValuation), nil
	case staff.KindSession:
		return zero(staff.ReasonNotApplicable), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", generic.ErrUnknownEntryKind, entry.Kind)
	}
}

func (c *Calculator) global(entry staff.TimeEntry, emp staff.Employee) (Result, error) {
	switch entry.Kind {
	case staff.KindHours:
		return c.DailyRate(emp, entry.Date), nil
	case staff.KindLeave:
		if entry.Leave == nil || !entry.Leave.Payable() {
			return zero(staff.ReasonUnpaid), nil
		}
		if entry.HasOverride() {
			return Result{Amount: *entry.LeaveValueOverride, Rate: decimal.Zero, Reason: staff.ReasonOverride}, nil
		}
		day := c.DailyRate(emp, entry.Date)
		day.Amount = day.Amount.Mul(entry.Leave.Multiplier())
		return day, nil
	case staff.KindSession:
		return zero(staff.ReasonNotApplicable), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", generic.ErrUnknownEntryKind, entry.Kind)
	}
}

func (c *Calculator) instructor(entry staff.TimeEntry, emp staff.Employee) (Result, error) {
	switch entry.Kind {
	case staff.KindSession:
		return c.session(entry, emp), nil
	case staff.KindHours, staff.KindLeave:
		return zero(staff.ReasonNotApplicable), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", generic.ErrUnknownEntryKind, entry.Kind)
	}
}

func (c *Calculator) session(entry staff.TimeEntry, emp staff.Employee) Result {
	svc, ok := c.Services.Service(entry.ServiceID)
	if !ok {
		return zero(staff.ReasonUnknownService)
	}
	res := c.Rates.ResolveFor(emp, entry.Date, svc.ID)
	out := Result{Rate: res.Rate, EffectiveDate: res.EffectiveDate, Reason: res.Reason}

	meetings := decimal.NewFromInt(int64(entry.Meetings))
	switch svc.PaymentModel {
	case staff.PerStudent:
		out.Amount = meetings.Mul(decimal.NewFromInt(int64(entry.Students))).Mul(res.Rate)
	default:
		out.Amount = meetings.Mul(res.Rate)
	}
	return out
}

// DailyRate is monthlyRate × scope / working days in the date's month. Rate is
// the monthly rate the day was derived from.
func (c *Calculator) DailyRate(emp staff.Employee, date generic.TimePoint) Result {
	res := c.Rates.ResolveFor(emp, date, staff.GenericServiceID)
	if !res.Found() {
		return Result{Amount: decimal.Zero, Rate: res.Rate, Reason: res.Reason}
	}
	days := c.WorkingDays.WorkingDaysInMonth(date.Year(), date.Month())
	if days <= 0 {
		return Result{Amount: decimal.Zero, Rate: res.Rate, EffectiveDate: res.EffectiveDate, Reason: staff.ReasonNoWorkingDays}
	}
	amount := res.Rate.Mul(emp.Scope()).Div(decimal.NewFromInt(int64(days)))
	return Result{Amount: amount, Rate: res.Rate, EffectiveDate: res.EffectiveDate}
}
