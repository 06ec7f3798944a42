/*
ledger.go - Append-only leave ledger

PURPOSE:
  The Ledger is the immutable source of truth for leave balance changes.
  Every grant, consumption, carryover, expiry and reversal is recorded here.
  Balance is always computed by replaying entries; there is no separate
  "balance" column that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, entries cannot be modified
  3. IDEMPOTENT: Same idempotency key = same entry (no duplicates)

CORRECTIONS:
  A trashed or replaced leave entry is not edited out of the ledger. A
  reversal entry with the opposite delta is appended instead, so the
  history of "took a day, then undid it" stays visible.

EXAMPLE FLOW:
  1. Annual grant on Jan 1:           grant +20
  2. Full employee-funded leave day:   consumption -1
  3. Entry trashed:                    reversal +1
  4. Half day restored later:          consumption -0.5

  Raw sum: 20 - 1 + 1 - 0.5 = 19.5 days

SEE ALSO:
  - store.go: Low-level persistence interface
  - leave/ledger.go: Policy-aware balance (initial allowance, negative floor)
*/
package generic

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Append-only leave log
// =============================================================================

// Ledger is the source of truth for all leave balance changes.
type Ledger interface {
	// Append adds an entry. Fails with ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, entry LedgerEntry) error

	// AppendBatch adds multiple entries atomically.
	AppendBatch(ctx context.Context, entries []LedgerEntry) error

	// Entries returns all entries for an employee ordered by date, then write order.
	Entries(ctx context.Context, employeeID EmployeeID) ([]LedgerEntry, error)

	// EntriesInRange returns entries dated in [from, to].
	EntriesInRange(ctx context.Context, employeeID EmployeeID, from, to TimePoint) ([]LedgerEntry, error)

	// SumAt is the raw sum of deltas dated on or before at. No policy is applied.
	SumAt(ctx context.Context, employeeID EmployeeID, at TimePoint) (decimal.Decimal, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using LedgerStore
// =============================================================================

type DefaultLedger struct {
	Store LedgerStore
}

func NewLedger(store LedgerStore) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, entry LedgerEntry) error {
	if entry.IdempotencyKey != "" {
		exists, err := l.Store.LedgerKeyExists(ctx, entry.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendLedger(ctx, []LedgerEntry{entry})
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, entries []LedgerEntry) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IdempotencyKey == "" {
			continue
		}
		if seen[e.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[e.IdempotencyKey] = true
		exists, err := l.Store.LedgerKeyExists(ctx, e.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendLedger(ctx, entries)
}

func (l *DefaultLedger) Entries(ctx context.Context, employeeID EmployeeID) ([]LedgerEntry, error) {
	return l.Store.LoadLedger(ctx, employeeID)
}

func (l *DefaultLedger) EntriesInRange(ctx context.Context, employeeID EmployeeID, from, to TimePoint) ([]LedgerEntry, error) {
	all, err := l.Store.LoadLedger(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	var out []LedgerEntry
	for _, e := range all {
		if from.BeforeOrEqual(e.Date) && e.Date.BeforeOrEqual(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *DefaultLedger) SumAt(ctx context.Context, employeeID EmployeeID, at TimePoint) (decimal.Decimal, error) {
	entries, err := l.Store.LoadLedger(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	return SumDeltas(entries, at), nil
}

// SumDeltas sums the deltas of entries dated on or before at.
func SumDeltas(entries []LedgerEntry, at TimePoint) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.Date.After(at) {
			continue
		}
		sum = sum.Add(e.Delta.Value)
	}
	return sum
}
