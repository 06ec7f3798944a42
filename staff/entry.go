package staff

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
)

// =============================================================================
// ENTRY KIND
// =============================================================================

type EntryKind string

const (
	KindHours      EntryKind = "hours"
	KindSession    EntryKind = "session"
	KindAdjustment EntryKind = "adjustment"
	KindLeave      EntryKind = "leave"
)

func ParseEntryKind(s string) (EntryKind, error) {
	switch k := EntryKind(s); k {
	case KindHours, KindSession, KindAdjustment, KindLeave:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", generic.ErrUnknownEntryKind, s)
	}
}

// IsWork is true for hours and session entries.
func (k EntryKind) IsWork() bool {
	return k == KindHours || k == KindSession
}

// =============================================================================
// LEAVE SEGMENT - Full(subtype) | Half(subtype, companion?)
// =============================================================================

type Portion string

const (
	PortionFull Portion = "full"
	PortionHalf Portion = "half"
)

type CompanionKind string

const (
	CompanionWork  CompanionKind = "work"
	CompanionLeave CompanionKind = "leave"
)

// HalfCompanion describes the other half of a split day. The companion is
// stored as its own TimeEntry; this only records the intent.
type HalfCompanion struct {
	Kind    CompanionKind         `json:"kind"`
	Subtype generic.LeaveCategory `json:"subtype,omitempty"`
}

type LeaveSegment struct {
	Portion   Portion               `json:"portion"`
	Subtype   generic.LeaveCategory `json:"subtype"`
	Companion *HalfCompanion        `json:"companion,omitempty"`
}

func FullDay(subtype generic.LeaveCategory) *LeaveSegment {
	return &LeaveSegment{Portion: PortionFull, Subtype: subtype}
}

func HalfDay(subtype generic.LeaveCategory, companion *HalfCompanion) *LeaveSegment {
	return &LeaveSegment{Portion: PortionHalf, Subtype: subtype, Companion: companion}
}

var half = decimal.NewFromFloat(0.5)

// Multiplier is 1 for a full day and 0.5 for a half.
func (s LeaveSegment) Multiplier() decimal.Decimal {
	if s.Portion == PortionHalf {
		return half
	}
	return decimal.NewFromInt(1)
}

func (s LeaveSegment) IsHalf() bool { return s.Portion == PortionHalf }

// Payable is false only for unpaid leave. A payable leave day blocks work on the same date.
func (s LeaveSegment) Payable() bool {
	return s.Subtype != generic.CategoryUnpaid
}

// PairedWithWork is the explicit half-day composition exemption from leave/work conflicts.
func (s LeaveSegment) PairedWithWork() bool {
	return s.IsHalf() && s.Companion != nil && s.Companion.Kind == CompanionWork
}

func (s LeaveSegment) Validate() error {
	switch s.Portion {
	case PortionFull, PortionHalf:
	default:
		return fmt.Errorf("%w: leave portion %q", generic.ErrInvalidAmount, s.Portion)
	}
	switch s.Subtype {
	case generic.CategoryEmployeeFunded, generic.CategorySystemFunded, generic.CategoryUnpaid:
	default:
		return fmt.Errorf("%w: leave subtype %q", generic.ErrInvalidAmount, s.Subtype)
	}
	if s.Companion != nil && s.Portion != PortionHalf {
		return fmt.Errorf("%w: only half days have a companion", generic.ErrInvalidAmount)
	}
	return nil
}

// =============================================================================
// TIME ENTRY
// =============================================================================

type EntryStatus string

const (
	StatusActive  EntryStatus = "active"
	StatusTrashed EntryStatus = "trashed"
)

type TimeEntry struct {
	ID         generic.EntryID    `json:"id"`
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Date       generic.TimePoint  `json:"date"`
	Kind       EntryKind          `json:"kind"`

	// Payload. Which fields matter depends on Kind.
	Hours              decimal.Decimal   `json:"hours"`
	ServiceID          generic.ServiceID `json:"service_id,omitempty"`
	Meetings           int               `json:"meetings,omitempty"`
	Students           int               `json:"students,omitempty"`
	Adjustment         decimal.Decimal   `json:"adjustment"`
	Leave              *LeaveSegment     `json:"leave,omitempty"`
	LeaveValueOverride *decimal.Decimal  `json:"leave_value_override,omitempty"`

	// Valuation as of the last save.
	RateUsed         decimal.Decimal `json:"rate_used"`
	TotalPayment     decimal.Decimal `json:"total_payment"`
	Payable          bool            `json:"payable"`
	UsedFallbackRate bool            `json:"used_fallback_rate,omitempty"`

	Notes     string      `json:"notes,omitempty"`
	Status    EntryStatus `json:"status"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// IsActive is the one predicate every consumer uses to skip trashed entries.
func (e TimeEntry) IsActive() bool {
	return e.Status != StatusTrashed
}

// IsLeave reports whether the entry carries a leave segment.
func (e TimeEntry) IsLeave() bool {
	return e.Kind == KindLeave && e.Leave != nil
}

// LeaveCredit is the fraction of a day the entry claims as leave (0 for non-leave).
func (e TimeEntry) LeaveCredit() decimal.Decimal {
	if !e.IsLeave() {
		return decimal.Zero
	}
	return e.Leave.Multiplier()
}

// HasOverride reports a finite positive manual leave value.
func (e TimeEntry) HasOverride() bool {
	return e.LeaveValueOverride != nil && e.LeaveValueOverride.IsPositive()
}

// IdempotencyKey identifies the entry set this entry belongs to.
func (e TimeEntry) IdempotencyKey() string {
	return IdempotencyKey(e.EmployeeID, e.Date, e.Kind)
}

// IdempotencyKey is employee|date|kind. A store holds at most one active entry
// set per key; saving again replaces the set.
func IdempotencyKey(employeeID generic.EmployeeID, date generic.TimePoint, kind EntryKind) string {
	return fmt.Sprintf("%s|%s|%s", employeeID, date, kind)
}
