/*
Package generic provides the primitives shared by every part of the pay engine.

PURPOSE:
  Dates, periods, working-day calendars, quantities and the append-only leave
  ledger live here. Nothing in this package knows about employment types or
  payment formulas; those belong to the staff, rates, payment and valuation
  packages built on top of it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (leave days, hours)
  - Money helpers: currency values are plain decimal.Decimal, rounded only at the boundary
  - LedgerEntry: An immutable leave-ledger record
  - Identifiers: EmployeeID, ServiceID, EntryID, LedgerEntryID

DESIGN PRINCIPLES:
  1. Immutability: Ledger entries are never modified, only reversed
  2. Precision: decimal.Decimal everywhere, no float64 arithmetic on money
  3. Type Safety: Distinct ID types prevent mixing employee/entry ids
  4. Auditability: Every ledger entry has kind, reference and idempotency key

SEE ALSO:
  - time.go, calendar.go, period.go: date handling
  - ledger.go: Ledger interface over LedgerStore
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal `json:"value"`
	Unit  Unit            `json:"unit"`
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func Days(value decimal.Decimal) Amount {
	return Amount{Value: value, Unit: UnitDays}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places money is rounded to at the boundary.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to MoneyPlaces. Call it only when a
// value leaves the engine (API responses, report totals, stored TotalPayment).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ServiceID string
type EntryID string
type LedgerEntryID string

// =============================================================================
// LEDGER ENTRY - Atomic change to a leave balance
// =============================================================================

type LedgerKind string

const (
	LedgerConsumption LedgerKind = "consumption" // Leave day taken (delta <= 0)
	LedgerGrant       LedgerKind = "grant"       // Annual entitlement
	LedgerCarryover   LedgerKind = "carryover"   // Balance moved into a new year
	LedgerExpiry      LedgerKind = "expiry"      // Balance lost at year end
	LedgerReversal    LedgerKind = "reversal"    // Undo a consumption
	LedgerAdjustment  LedgerKind = "adjustment"  // Manual admin correction
)

// LeaveCategory says who funds a leave day.
type LeaveCategory string

const (
	CategoryEmployeeFunded LeaveCategory = "employee_funded"
	CategorySystemFunded   LeaveCategory = "system_funded"
	CategoryUnpaid         LeaveCategory = "unpaid"
)

type LedgerEntry struct {
	ID             LedgerEntryID `json:"id"`
	EmployeeID     EmployeeID    `json:"employee_id"`
	Date           TimePoint     `json:"date"`
	Delta          Amount        `json:"delta"`
	Kind           LedgerKind    `json:"kind"`
	Category       LeaveCategory `json:"category,omitempty"`
	ReferenceID    string        `json:"reference_id,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	IdempotencyKey string        `json:"idempotency_key"`
	CreatedAt      time.Time     `json:"created_at"`
}
