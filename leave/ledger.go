package leave

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
)

// =============================================================================
// PURE BALANCE FUNCTIONS - Operate on a snapshot of ledger entries
// =============================================================================

// RawBalance is InitialAllowanceDays + Σ deltas dated on or before at, unclipped.
func RawBalance(p Policy, entries []generic.LedgerEntry, at generic.TimePoint) decimal.Decimal {
	return p.InitialAllowanceDays.Add(generic.SumDeltas(entries, at))
}

// BalanceAt is RawBalance clipped by the policy floor.
func BalanceAt(p Policy, entries []generic.LedgerEntry, at generic.TimePoint) decimal.Decimal {
	return p.Clip(RawBalance(p, entries, at))
}

// Outstanding returns consumption entries for a time entry that have not been reversed.
func Outstanding(entries []generic.LedgerEntry, entryID generic.EntryID) []generic.LedgerEntry {
	reversed := make(map[string]bool)
	for _, e := range entries {
		if e.Kind == generic.LedgerReversal {
			reversed[e.ReferenceID] = true
		}
	}
	var out []generic.LedgerEntry
	for _, e := range entries {
		if e.Kind == generic.LedgerConsumption && e.ReferenceID == string(entryID) && !reversed[string(e.ID)] {
			out = append(out, e)
		}
	}
	return out
}

// Categorize returns how the outstanding debit for a time entry was funded.
// ok is false when the entry has no outstanding consumption.
func Categorize(entries []generic.LedgerEntry, entryID generic.EntryID) (generic.LeaveCategory, bool) {
	out := Outstanding(entries, entryID)
	if len(out) == 0 {
		return "", false
	}
	return out[len(out)-1].Category, true
}

// ConsumptionCount is how many consumption entries ever referenced entryID.
// Restores use it to derive a fresh idempotency key.
func ConsumptionCount(entries []generic.LedgerEntry, entryID generic.EntryID) int {
	n := 0
	for _, e := range entries {
		if e.Kind == generic.LedgerConsumption && e.ReferenceID == string(entryID) {
			n++
		}
	}
	return n
}

// SortEntries orders entries by date; equal dates keep their stored order.
func SortEntries(entries []generic.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
}

// =============================================================================
// RUNNING BALANCE - Incremental form of BalanceAt
// =============================================================================

// RunningBalance accumulates deltas in date order. Value equals BalanceAt at
// the date of the last applied entry.
type RunningBalance struct {
	policy Policy
	raw    decimal.Decimal
	asOf   generic.TimePoint
}

func NewRunningBalance(p Policy) *RunningBalance {
	return &RunningBalance{policy: p, raw: p.InitialAllowanceDays}
}

// Apply adds one entry. Entries must arrive in date order.
func (rb *RunningBalance) Apply(e generic.LedgerEntry) {
	rb.raw = rb.raw.Add(e.Delta.Value)
	rb.asOf = e.Date
}

func (rb *RunningBalance) Raw() decimal.Decimal   { return rb.raw }
func (rb *RunningBalance) Value() decimal.Decimal { return rb.policy.Clip(rb.raw) }
func (rb *RunningBalance) AsOf() generic.TimePoint {
	return rb.asOf
}

// =============================================================================
// LEDGER - Store-backed, policy-aware view
// =============================================================================

// Ledger wraps the append-only generic ledger with a policy.
type Ledger struct {
	Policy Policy
	Log    generic.Ledger
}

func NewLedger(p Policy, store generic.LedgerStore) *Ledger {
	return &Ledger{Policy: p, Log: generic.NewLedger(store)}
}

func (l *Ledger) BalanceAt(ctx context.Context, employeeID generic.EmployeeID, at generic.TimePoint) (decimal.Decimal, error) {
	entries, err := l.Log.Entries(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	return BalanceAt(l.Policy, entries, at), nil
}

func (l *Ledger) Categorize(ctx context.Context, employeeID generic.EmployeeID, entryID generic.EntryID) (generic.LeaveCategory, bool, error) {
	entries, err := l.Log.Entries(ctx, employeeID)
	if err != nil {
		return "", false, err
	}
	cat, ok := Categorize(entries, entryID)
	return cat, ok, nil
}

// Statement is a balance history for display: each entry with the balance after it.
type Statement struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Lines      []StatementLine    `json:"lines"`
	Balance    decimal.Decimal    `json:"balance"`
}

type StatementLine struct {
	Entry   generic.LedgerEntry `json:"entry"`
	Balance decimal.Decimal     `json:"balance"`
}

// Statement replays the ledger up to at.
func (l *Ledger) Statement(ctx context.Context, employeeID generic.EmployeeID, at generic.TimePoint) (*Statement, error) {
	entries, err := l.Log.Entries(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	SortEntries(entries)

	rb := NewRunningBalance(l.Policy)
	st := &Statement{EmployeeID: employeeID}
	for _, e := range entries {
		if e.Date.After(at) {
			break
		}
		rb.Apply(e)
		st.Lines = append(st.Lines, StatementLine{Entry: e, Balance: rb.Value()})
	}
	st.Balance = rb.Value()
	return st, nil
}
