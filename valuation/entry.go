package valuation

import (
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/payment"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// ENTRY VALUER - computeEntryAmount for any entry
// =============================================================================

// EntryValue is the amount for one entry plus what the caller needs to warn about.
type EntryValue struct {
	Amount           decimal.Decimal `json:"amount"`
	Rate             decimal.Decimal `json:"rate"`
	Reason           staff.Reason    `json:"reason,omitempty"`
	UsedFallbackRate bool            `json:"used_fallback_rate,omitempty"`
	Method           Method          `json:"method,omitempty"`
}

// Rounded returns the value with Amount rounded for display or storage.
func (v EntryValue) Rounded() EntryValue {
	v.Amount = generic.RoundMoney(v.Amount)
	return v
}

// NeedsConfirmation is true when the amount is a guess: a fallback rate, or a
// salaried leave day with no rate to derive it from.
func (v EntryValue) NeedsConfirmation() bool {
	return v.UsedFallbackRate || v.Reason == staff.ReasonNoRateDefined
}

// EntryValuer routes an entry to the payment calculator or to leave valuation.
type EntryValuer struct {
	Calculator *payment.Calculator
	Leave      *Resolver
}

func NewEntryValuer(leave *Resolver) *EntryValuer {
	return &EntryValuer{Calculator: leave.Calculator, Leave: leave}
}

// Value computes the full-precision amount of entry for emp.
func (v *EntryValuer) Value(entry staff.TimeEntry, emp staff.Employee) (EntryValue, error) {
	if emp.Type == staff.Hourly && entry.Kind == staff.KindLeave {
		return v.hourlyLeave(entry, emp)
	}
	res, err := v.Calculator.Compute(entry, emp)
	if err != nil {
		return EntryValue{}, err
	}
	return EntryValue{Amount: res.Amount, Rate: res.Rate, Reason: res.Reason}, nil
}

// hourlyLeave settles the subtype before the override: unpaid and
// system-funded days are zero whatever value was supplied.
func (v *EntryValuer) hourlyLeave(entry staff.TimeEntry, emp staff.Employee) (EntryValue, error) {
	if entry.Leave == nil {
		return EntryValue{Amount: decimal.Zero, Rate: decimal.Zero, Reason: staff.ReasonNotApplicable}, nil
	}
	switch entry.Leave.Subtype {
	case generic.CategoryUnpaid:
		return EntryValue{Amount: decimal.Zero, Rate: decimal.Zero, Reason: staff.ReasonUnpaid}, nil
	case generic.CategorySystemFunded:
		return EntryValue{Amount: decimal.Zero, Rate: decimal.Zero, Reason: staff.ReasonSystemFunded}, nil
	}
	if entry.HasOverride() {
		return EntryValue{Amount: *entry.LeaveValueOverride, Rate: decimal.Zero, Reason: staff.ReasonOverride}, nil
	}

	day, err := v.Leave.ValueLeaveDay(emp.ID, entry.Date)
	if err != nil {
		return EntryValue{}, err
	}
	return EntryValue{
		Amount:           day.Amount.Mul(entry.Leave.Multiplier()),
		Rate:             day.Amount,
		Reason:           day.Reason,
		UsedFallbackRate: day.UsedFallbackRate,
		Method:           day.Method,
	}, nil
}
