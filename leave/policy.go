/*
Package leave keeps the leave-balance ledger for employees.

PURPOSE:
  Answers "how many leave days does E have on date D" and "how was the debit
  for entry X categorized", and produces the ledger entries that the save
  pipeline writes next to each leave TimeEntry. Year-end reconciliation
  (grant, carryover, expiry) lives in reconcile.go.

BALANCE:
  balance(D) = InitialAllowanceDays + Σ deltas dated on or before D
  clipped to -NegativeFloorDays when AllowNegativeBalance is false.

  The clip is applied on read. Deltas are never altered, so replaying the
  ledger from scratch always matches a RunningBalance kept incrementally.

DEBITS BY SUBTYPE:
  employee_funded  -multiplier (1 or 0.5), zero on a policy holiday
  system_funded    0 (organization absorbs the day)
  unpaid           0

SEE ALSO:
  - generic/ledger.go: append-only storage
  - pipeline/: writes these entries in the same transaction as the entry
*/
package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
)

// =============================================================================
// POLICY
// =============================================================================

// Policy is the leave configuration. Every field has a documented default,
// see DefaultPolicy.
type Policy struct {
	// AllowHalfDay permits half-day segments. Default true.
	AllowHalfDay bool `json:"allow_half_day"`
	// AllowNegativeBalance disables the floor entirely. Default false.
	AllowNegativeBalance bool `json:"allow_negative_balance"`
	// NegativeFloorDays is how far below zero a balance may go when negatives
	// are not allowed. Default 0.
	NegativeFloorDays decimal.Decimal `json:"negative_floor_days"`
	// CarryoverEnabled moves year-end balance into the next year. Default true.
	CarryoverEnabled bool `json:"carryover_enabled"`
	// CarryoverMaxDays caps the carried amount. Zero means unlimited. Default 0.
	CarryoverMaxDays decimal.Decimal `json:"carryover_max_days"`
	// InitialAllowanceDays is added to every balance. Default 0.
	InitialAllowanceDays decimal.Decimal `json:"initial_allowance_days"`
	// HolidayRules are days on which leave debits nothing. Default none.
	HolidayRules []generic.Holiday `json:"holiday_rules"`
}

func DefaultPolicy() Policy {
	return Policy{
		AllowHalfDay:         true,
		AllowNegativeBalance: false,
		NegativeFloorDays:    decimal.Zero,
		CarryoverEnabled:     true,
		CarryoverMaxDays:     decimal.Zero,
		InitialAllowanceDays: decimal.Zero,
	}
}

// Floor is the lowest permitted balance when negatives are not allowed.
func (p Policy) Floor() decimal.Decimal {
	return p.NegativeFloorDays.Abs().Neg()
}

// Clip applies the negative floor to a raw balance.
func (p Policy) Clip(raw decimal.Decimal) decimal.Decimal {
	if p.AllowNegativeBalance {
		return raw
	}
	if floor := p.Floor(); raw.LessThan(floor) {
		return floor
	}
	return raw
}

// Holidays returns the holiday rules as a calendar.
func (p Policy) Holidays() generic.HolidayList {
	return generic.HolidayList(p.HolidayRules)
}

// IsHoliday reports whether date matches a holiday rule.
func (p Policy) IsHoliday(date generic.TimePoint) bool {
	return p.Holidays().IsHoliday(date)
}
