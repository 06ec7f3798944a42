package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// RECONCILIATION - Year boundary transitions
// =============================================================================
//
// At year end the remaining balance expires in full on Dec 31 and the
// carried portion is granted back on Jan 1. Both entries stay in the ledger
// so the transition is auditable:
//
//   balance 7, carryover cap 5:
//     2024-12-31 expiry    -7
//     2025-01-01 carryover +5
//
// A negative balance is left alone; the debt carries forward in the raw sum.

// YearEnd is the result of closing one employee's year.
type YearEnd struct {
	EmployeeID  generic.EmployeeID    `json:"employee_id"`
	Year        int                   `json:"year"`
	Remaining   decimal.Decimal       `json:"remaining"`
	CarriedOver decimal.Decimal       `json:"carried_over"`
	Expired     decimal.Decimal       `json:"expired"`
	Entries     []generic.LedgerEntry `json:"entries"`

	// AlreadyClosed is set by Reconcile when the year-end entries were
	// written by an earlier run.
	AlreadyClosed bool `json:"already_closed,omitempty"`
}

type Reconciler struct {
	Policy Policy
	Now    func() time.Time
}

func NewReconciler(p Policy) *Reconciler {
	return &Reconciler{Policy: p, Now: time.Now}
}

func yearKey(kind generic.LedgerKind, emp generic.EmployeeID, year int) string {
	return fmt.Sprintf("%s:%s:%d", kind, emp, year)
}

// CloseYear computes the expiry and carryover entries for year. Keys are
// per (employee, year, kind), so appending the result twice fails with
// ErrDuplicateIdempotencyKey instead of double counting.
func (r *Reconciler) CloseYear(emp staff.Employee, entries []generic.LedgerEntry, year int) YearEnd {
	end := generic.EndOfYear(year)
	out := YearEnd{EmployeeID: emp.ID, Year: year, CarriedOver: decimal.Zero, Expired: decimal.Zero}
	out.Remaining = RawBalance(r.Policy, entries, end)
	if !out.Remaining.IsPositive() || emp.StartDate.After(end) {
		return out
	}

	carry := decimal.Zero
	if r.Policy.CarryoverEnabled {
		carry = out.Remaining
		if limit := r.Policy.CarryoverMaxDays; limit.IsPositive() && carry.GreaterThan(limit) {
			carry = limit
		}
	}
	now := r.Now()

	out.Expired = out.Remaining.Sub(carry)
	out.CarriedOver = carry
	out.Entries = append(out.Entries, generic.LedgerEntry{
		ID:             NewLedgerEntryID(),
		EmployeeID:     emp.ID,
		Date:           end,
		Delta:          generic.Days(out.Remaining.Neg()),
		Kind:           generic.LedgerExpiry,
		Reason:         "balance closed at year end",
		IdempotencyKey: yearKey(generic.LedgerExpiry, emp.ID, year),
		CreatedAt:      now,
	})
	if carry.IsPositive() {
		out.Entries = append(out.Entries, generic.LedgerEntry{
			ID:             NewLedgerEntryID(),
			EmployeeID:     emp.ID,
			Date:           generic.StartOfYear(year + 1),
			Delta:          generic.Days(carry),
			Kind:           generic.LedgerCarryover,
			Reason:         fmt.Sprintf("carryover from %d", year),
			IdempotencyKey: yearKey(generic.LedgerCarryover, emp.ID, year),
			CreatedAt:      now,
		})
	}
	return out
}

// GrantYear returns the annual grant of AnnualLeaveDays × scope for year,
// prorated by remaining whole months for employees who start mid-year.
func (r *Reconciler) GrantYear(emp staff.Employee, year int) (generic.LedgerEntry, bool) {
	if emp.StartDate.Year() > year || !emp.AnnualLeaveDays.IsPositive() {
		return generic.LedgerEntry{}, false
	}
	days := emp.AnnualLeaveDays.Mul(emp.Scope())
	date := generic.StartOfYear(year)
	if emp.StartDate.Year() == year && emp.StartDate.After(date) {
		months := 13 - int(emp.StartDate.Month())
		days = days.Mul(decimal.NewFromInt(int64(months))).Div(decimal.NewFromInt(12))
		date = emp.StartDate
	}
	return generic.LedgerEntry{
		ID:             NewLedgerEntryID(),
		EmployeeID:     emp.ID,
		Date:           date,
		Delta:          generic.Days(days.Round(2)),
		Kind:           generic.LedgerGrant,
		Reason:         fmt.Sprintf("annual leave %d", year),
		IdempotencyKey: yearKey(generic.LedgerGrant, emp.ID, year),
		CreatedAt:      r.Now(),
	}, true
}

// Reconcile makes sure year was granted, closes it and grants year+1.
// Keys that were already written are skipped, so a second run changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, log generic.Ledger, emp staff.Employee, year int) (YearEnd, error) {
	if g, ok := r.GrantYear(emp, year); ok {
		if err := appendOnce(ctx, log, g); err != nil {
			return YearEnd{}, fmt.Errorf("grant %d: %w", year, err)
		}
	}

	entries, err := log.Entries(ctx, emp.ID)
	if err != nil {
		return YearEnd{}, err
	}
	out := r.CloseYear(emp, entries, year)
	if len(out.Entries) > 0 {
		err := log.AppendBatch(ctx, out.Entries)
		switch {
		case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
			out.AlreadyClosed = true
			out.Entries = nil
		case err != nil:
			return YearEnd{}, fmt.Errorf("close %d: %w", year, err)
		}
	}

	if g, ok := r.GrantYear(emp, year+1); ok {
		if err := appendOnce(ctx, log, g); err != nil {
			return YearEnd{}, fmt.Errorf("grant %d: %w", year+1, err)
		}
	}
	return out, nil
}

func appendOnce(ctx context.Context, log generic.Ledger, e generic.LedgerEntry) error {
	if err := log.Append(ctx, e); err != nil && !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return err
	}
	return nil
}

// =============================================================================
// RUNS - Audit trail of year-end closes
// =============================================================================

// Run records one year-end close for one employee.
type Run struct {
	ID          string             `json:"id"`
	EmployeeID  generic.EmployeeID `json:"employee_id"`
	Year        int                `json:"year"`
	Status      string             `json:"status"` // completed, failed
	CarriedOver decimal.Decimal    `json:"carried_over"`
	Expired     decimal.Decimal    `json:"expired"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunStore is implemented by stores that keep reconciliation history.
// SaveReconciliationRun upserts by (employee, year).
type RunStore interface {
	SaveReconciliationRun(ctx context.Context, r Run) error
	ReconciliationRuns(ctx context.Context, year int) ([]Run, error)
}
