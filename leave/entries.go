package leave

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/staff"
)

// NewLedgerEntryID generates ids for ledger entries. Tests may replace it.
var NewLedgerEntryID = func() generic.LedgerEntryID {
	return generic.LedgerEntryID(uuid.NewString())
}

// =============================================================================
// IDEMPOTENCY KEYS
// =============================================================================

// ConsumptionKey is "leave:<entry>" for the first debit of an entry and
// "leave:<entry>:<n>" for the n-th re-application after restores.
func ConsumptionKey(entryID generic.EntryID, generation int) string {
	if generation == 0 {
		return "leave:" + string(entryID)
	}
	return fmt.Sprintf("leave:%s:%d", entryID, generation)
}

func ReversalKey(consumptionID generic.LedgerEntryID) string {
	return "reversal:" + string(consumptionID)
}

// =============================================================================
// DEBITS
// =============================================================================

// Debit is the signed ledger delta for one leave entry under the policy.
func Debit(p Policy, entry staff.TimeEntry) decimal.Decimal {
	if !entry.IsLeave() || entry.Leave.Subtype != generic.CategoryEmployeeFunded {
		return decimal.Zero
	}
	if p.IsHoliday(entry.Date) {
		return decimal.Zero
	}
	return entry.Leave.Multiplier().Neg()
}

// Consumption builds the ledger entry paired with a leave TimeEntry. Every
// leave entry gets one, including zero-delta system-funded, unpaid and
// holiday days, so Categorize can answer for all of them.
func Consumption(p Policy, entry staff.TimeEntry, generation int, now time.Time) (generic.LedgerEntry, bool) {
	if !entry.IsLeave() {
		return generic.LedgerEntry{}, false
	}
	reason := "leave taken"
	if p.IsHoliday(entry.Date) && entry.Leave.Subtype == generic.CategoryEmployeeFunded {
		reason = "leave on holiday"
	}
	return generic.LedgerEntry{
		ID:             NewLedgerEntryID(),
		EmployeeID:     entry.EmployeeID,
		Date:           entry.Date,
		Delta:          generic.Days(Debit(p, entry)),
		Kind:           generic.LedgerConsumption,
		Category:       entry.Leave.Subtype,
		ReferenceID:    string(entry.ID),
		Reason:         reason,
		IdempotencyKey: ConsumptionKey(entry.ID, generation),
		CreatedAt:      now,
	}, true
}

// Reversal undoes one consumption entry. ReferenceID points at the consumption.
func Reversal(consumption generic.LedgerEntry, reason string, now time.Time) generic.LedgerEntry {
	return generic.LedgerEntry{
		ID:             NewLedgerEntryID(),
		EmployeeID:     consumption.EmployeeID,
		Date:           consumption.Date,
		Delta:          consumption.Delta.Neg(),
		Kind:           generic.LedgerReversal,
		Category:       consumption.Category,
		ReferenceID:    string(consumption.ID),
		Reason:         reason,
		IdempotencyKey: ReversalKey(consumption.ID),
		CreatedAt:      now,
	}
}

// ReverseOutstanding returns reversals for every unreversed consumption of entryID.
func ReverseOutstanding(entries []generic.LedgerEntry, entryID generic.EntryID, reason string, now time.Time) []generic.LedgerEntry {
	var out []generic.LedgerEntry
	for _, c := range Outstanding(entries, entryID) {
		out = append(out, Reversal(c, reason, now))
	}
	return out
}

// =============================================================================
// FLOOR CHECK
// =============================================================================

// CheckDebit reports whether adding delta on date keeps the raw balance at or
// above the floor on that date and on every later ledger date. pending are
// entries planned in the same write that are not in entries yet.
func CheckDebit(p Policy, employeeID generic.EmployeeID, entries, pending []generic.LedgerEntry, date generic.TimePoint, delta decimal.Decimal) error {
	if p.AllowNegativeBalance || !delta.IsNegative() {
		return nil
	}
	all := append(append([]generic.LedgerEntry{}, entries...), pending...)
	checkpoints := []generic.TimePoint{date}
	for _, e := range all {
		if e.Date.After(date) {
			checkpoints = append(checkpoints, e.Date)
		}
	}
	floor := p.Floor()
	for _, at := range checkpoints {
		raw := RawBalance(p, all, at)
		if raw.Add(delta).LessThan(floor) {
			return &generic.InsufficientBalanceError{
				EmployeeID: employeeID,
				Date:       date,
				Available:  generic.Days(raw.Sub(floor)),
				Requested:  generic.Days(delta.Neg()),
			}
		}
	}
	return nil
}
