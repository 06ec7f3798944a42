package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// CONFLICT VALIDATOR
// =============================================================================

// validator collects offenses for one (employee, date) write.
type validator struct {
	emp      staff.Employee
	date     generic.TimePoint
	policy   leave.Policy
	offenses []Offense
}

func (v *validator) add(code Code, idx int, format string, args ...any) {
	v.offenses = append(v.offenses, Offense{
		EmployeeID: v.emp.ID,
		Date:       v.date,
		Code:       code,
		EntryIndex: idx,
		Message:    fmt.Sprintf(format, args...),
	})
}

// checkEmployee: active and already employed on the date.
func (v *validator) checkEmployee() {
	if !v.emp.IsActive {
		v.add(CodeInactiveEmployee, -1, "employee %s is inactive", v.emp.ID)
	}
	if !v.emp.EmployedOn(v.date) {
		v.add(CodeInvalidStartDate, -1, "%s precedes start date %s", v.date, v.emp.StartDate)
	}
}

// checkEntry validates one entry's payload.
func (v *validator) checkEntry(idx int, e staff.TimeEntry, services func(generic.ServiceID) bool) {
	if _, err := staff.ParseEntryKind(string(e.Kind)); err != nil {
		v.add(CodeUnknownEntryKind, idx, "unknown entry kind %q", e.Kind)
		return
	}
	switch e.Kind {
	case staff.KindHours:
		if e.Hours.IsNegative() {
			v.add(CodeInvalidAmount, idx, "negative hours %s", e.Hours)
		}
	case staff.KindSession:
		if e.Meetings < 0 || e.Students < 0 {
			v.add(CodeInvalidAmount, idx, "negative meetings/students (%d/%d)", e.Meetings, e.Students)
		}
		if !services(e.ServiceID) {
			v.add(CodeUnknownService, idx, "unknown service %q", e.ServiceID)
		}
	case staff.KindLeave:
		if e.Leave == nil {
			v.add(CodeInvalidAmount, idx, "leave entry without a leave segment")
			return
		}
		if err := e.Leave.Validate(); err != nil {
			v.add(CodeInvalidAmount, idx, "%v", err)
			return
		}
		if e.Leave.IsHalf() && !v.policy.AllowHalfDay {
			v.add(CodeHalfDayNotAllowed, idx, "half-day leave is disabled by policy")
		}
	}
	if e.LeaveValueOverride == nil {
		return
	}
	switch {
	case !e.LeaveValueOverride.IsPositive():
		v.add(CodeInvalidAmount, idx, "leave value override must be positive, got %s", e.LeaveValueOverride)
	case !v.valuedLeave(e):
		v.add(CodeInvalidAmount, idx, "leave value override on an entry that is never paid")
	}
}

// valuedLeave reports whether e is leave that carries a value for this
// employee: payable leave, and for hourly staff employee-funded only.
func (v *validator) valuedLeave(e staff.TimeEntry) bool {
	if !e.IsLeave() || !e.Leave.Payable() {
		return false
	}
	switch v.emp.Type {
	case staff.Hourly:
		return e.Leave.Subtype == generic.CategoryEmployeeFunded
	case staff.Global:
		return true
	}
	return false
}

// checkDay validates the day as it would look after the write: entries that
// stay plus entries that arrive.
func (v *validator) checkDay(staying, incoming []staff.TimeEntry) {
	day := append(append([]staff.TimeEntry{}, staying...), incoming...)

	var (
		hasWork       bool
		credit        = decimal.Zero
		payableCredit = decimal.Zero
		unpairedLeave bool
	)
	for _, e := range day {
		if e.Kind.IsWork() {
			hasWork = true
		}
		if !e.IsLeave() {
			continue
		}
		credit = credit.Add(e.LeaveCredit())
		if e.Leave.Payable() {
			payableCredit = payableCredit.Add(e.LeaveCredit())
			if !e.Leave.PairedWithWork() {
				unpairedLeave = true
			}
		}
	}

	if credit.GreaterThan(decimal.NewFromInt(1)) {
		v.add(CodeLeaveCreditExceeded, -1, "leave on %s totals %s days", v.date, credit)
	}
	if hasWork && (unpairedLeave || payableCredit.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		v.add(CodeLeaveWorkConflict, -1, "%s has both paid leave and work on %s", v.emp.ID, v.date)
	}
}

// checkEntrySet rejects restoring an entry while another active entry holds
// its employee|date|kind key. A key has at most one active set.
func (v *validator) checkEntrySet(active []staff.TimeEntry, restored staff.TimeEntry) {
	key := restored.IdempotencyKey()
	for _, e := range active {
		if e.ID != restored.ID && e.IdempotencyKey() == key {
			v.add(CodeEntrySetExists, -1, "%s already has active %s entries (%s); save the day again instead", v.date, e.Kind, e.ID)
			return
		}
	}
}

// checkBalance rejects employee-funded debits that would cross the floor.
func (v *validator) checkBalance(ledger, pending []generic.LedgerEntry, incoming []staff.TimeEntry) {
	debit := decimal.Zero
	for _, e := range incoming {
		if e.IsLeave() && e.Leave.Validate() == nil {
			debit = debit.Add(leave.Debit(v.policy, e))
		}
	}
	if err := leave.CheckDebit(v.policy, v.emp.ID, ledger, pending, v.date, debit); err != nil {
		v.add(CodeInsufficientBalance, -1, "%v", err)
	}
}

func (v *validator) rejection() *RejectionError {
	if len(v.offenses) == 0 {
		return nil
	}
	return &RejectionError{Offenses: v.offenses}
}

// splitDay separates the active entries on a date into those a write replaces
// (same kind as an incoming entry) and those that stay.
func splitDay(active []staff.TimeEntry, incoming []staff.TimeEntry) (replaced, staying []staff.TimeEntry) {
	kinds := make(map[staff.EntryKind]bool)
	for _, e := range incoming {
		kinds[e.Kind] = true
	}
	for _, e := range active {
		if kinds[e.Kind] {
			replaced = append(replaced, e)
		} else {
			staying = append(staying, e)
		}
	}
	return replaced, staying
}
