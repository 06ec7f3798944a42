/*
Package staff holds the data model shared by the pay engine.

KEY CONCEPTS:
  - Employee: who is paid, how (EmploymentType) and since when (StartDate)
  - ServiceContext: a billable activity for per-session instructors
  - RateRecord: one effective-dated rate on an append-only timeline
  - TimeEntry: one hours/session/adjustment/leave record for one day
  - LeaveSegment: full or half leave day with a funding subtype

EMPLOYMENT TYPES:
  hourly      hours × hourly rate, leave valued from recent work history
  global      salaried; one daily rate per worked or paid-leave day
  instructor  per-session; meetings × rate or meetings × students × rate

Hourly and global employees have a single rate track, stored under the
GenericServiceID sentinel. Instructors have one track per service.

SEE ALSO:
  - entry.go: TimeEntry, LeaveSegment and the active predicate
  - snapshot.go: read-only bundle passed into every engine call
  - store.go: persistence interfaces
*/
package staff

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
)

// =============================================================================
// EMPLOYMENT TYPE
// =============================================================================

type EmploymentType string

const (
	Hourly     EmploymentType = "hourly"
	Global     EmploymentType = "global"
	Instructor EmploymentType = "instructor"
)

// ParseEmploymentType rejects anything outside the three known types.
func ParseEmploymentType(s string) (EmploymentType, error) {
	switch t := EmploymentType(s); t {
	case Hourly, Global, Instructor:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", generic.ErrUnknownEmploymentType, s)
	}
}

// SingleRateTrack reports whether the type resolves rates against GenericServiceID.
func (t EmploymentType) SingleRateTrack() bool {
	return t == Hourly || t == Global
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID        generic.EmployeeID `json:"id"`
	Name      string             `json:"name"`
	Type      EmploymentType     `json:"type"`
	StartDate generic.TimePoint  `json:"start_date"`
	IsActive  bool               `json:"is_active"`
	// EmploymentScope is the fractional FTE. Nil means full time.
	EmploymentScope *decimal.Decimal `json:"employment_scope,omitempty"`
	AnnualLeaveDays decimal.Decimal  `json:"annual_leave_days"`
}

// Scope returns the FTE fraction, defaulting to 1.
func (e Employee) Scope() decimal.Decimal {
	if e.EmploymentScope == nil {
		return decimal.NewFromInt(1)
	}
	return *e.EmploymentScope
}

// EmployedOn reports whether date is on or after the start date.
func (e Employee) EmployedOn(date generic.TimePoint) bool {
	return !date.Before(e.StartDate)
}

// =============================================================================
// SERVICE CONTEXT
// =============================================================================

// GenericServiceID is the rate track used by hourly and global employees.
const GenericServiceID generic.ServiceID = "generic"

type PaymentModel string

const (
	PerMeeting PaymentModel = "per_meeting"
	PerStudent PaymentModel = "per_student"
)

type ServiceContext struct {
	ID              generic.ServiceID `json:"id"`
	Name            string            `json:"name"`
	DurationMinutes int               `json:"duration_minutes"`
	PaymentModel    PaymentModel      `json:"payment_model"`
}

// =============================================================================
// RATE RECORD
// =============================================================================

// RateRecord is immutable once written. Seq is the store-assigned write order
// and breaks ties between records sharing an effective date.
type RateRecord struct {
	ID            string             `json:"id"`
	EmployeeID    generic.EmployeeID `json:"employee_id"`
	ServiceID     generic.ServiceID  `json:"service_id"`
	EffectiveDate generic.TimePoint  `json:"effective_date"`
	Rate          decimal.Decimal    `json:"rate"`
	Notes         string             `json:"notes,omitempty"`
	Seq           int64              `json:"seq"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Validate checks the fields a store relies on.
func (r RateRecord) Validate() error {
	if r.EmployeeID == "" {
		return fmt.Errorf("%w: missing employee", generic.ErrInvalidRate)
	}
	if r.ServiceID == "" {
		return fmt.Errorf("%w: missing service", generic.ErrInvalidRate)
	}
	if r.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: missing effective date", generic.ErrInvalidRate)
	}
	if r.Rate.IsNegative() {
		return fmt.Errorf("%w: negative rate %s", generic.ErrInvalidRate, r.Rate)
	}
	return nil
}

// =============================================================================
// REASON CODES - Soft degradations, never errors
// =============================================================================

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNoRateDefined     Reason = "NoRateDefined"
	ReasonNotYetEmployed    Reason = "NotYetEmployed"
	ReasonUnknownEmployee   Reason = "UnknownEmployee"
	ReasonUnknownService    Reason = "UnknownService"
	ReasonFallbackRate      Reason = "FallbackRate"
	ReasonNotApplicable     Reason = "NotApplicable"
	ReasonRequiresValuation Reason = "RequiresValuation"
	ReasonNoWorkingDays     Reason = "NoWorkingDays"
	ReasonOverride          Reason = "Override"
	ReasonUnpaid            Reason = "Unpaid"
	ReasonSystemFunded      Reason = "SystemFunded"
	ReasonDeduplicated      Reason = "Deduplicated"
)

// Degraded reports whether the reason should be surfaced as a warning.
func (r Reason) Degraded() bool {
	switch r {
	case ReasonNoRateDefined, ReasonNotYetEmployed, ReasonUnknownEmployee,
		ReasonUnknownService, ReasonFallbackRate, ReasonNoWorkingDays:
		return true
	}
	return false
}
