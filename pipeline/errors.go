package pipeline

import (
	"fmt"
	"strings"

	"github.com/warp/staff-pay-engine/generic"
)

// =============================================================================
// REJECTION CODES
// =============================================================================

type Code string

const (
	CodeInvalidStartDate      Code = "InvalidStartDate"
	CodeLeaveWorkConflict     Code = "LeaveWorkConflict"
	CodeInvalidAmount         Code = "InvalidAmount"
	CodeHalfDayNotAllowed     Code = "HalfDayNotAllowed"
	CodeLeaveCreditExceeded   Code = "LeaveCreditExceeded"
	CodeInsufficientBalance   Code = "InsufficientLeaveBalance"
	CodeUnknownService        Code = "UnknownService"
	CodeInactiveEmployee      Code = "InactiveEmployee"
	CodeUnknownEntryKind      Code = "UnknownEntryKind"
	CodeUnknownEmployee       Code = "UnknownEmployee"
	CodeUnknownEmploymentType Code = "UnknownEmploymentType"
	CodeEntrySetExists        Code = "EntrySetExists"
)

var sentinels = map[Code]error{
	CodeInvalidStartDate:      generic.ErrInvalidStartDate,
	CodeLeaveWorkConflict:     generic.ErrLeaveWorkConflict,
	CodeInvalidAmount:         generic.ErrInvalidAmount,
	CodeHalfDayNotAllowed:     generic.ErrHalfDayNotAllowed,
	CodeLeaveCreditExceeded:   generic.ErrLeaveCreditExceeded,
	CodeInsufficientBalance:   generic.ErrInsufficientBalance,
	CodeUnknownService:        generic.ErrServiceNotFound,
	CodeInactiveEmployee:      generic.ErrInactiveEmployee,
	CodeUnknownEntryKind:      generic.ErrUnknownEntryKind,
	CodeUnknownEmployee:       generic.ErrEmployeeNotFound,
	CodeUnknownEmploymentType: generic.ErrUnknownEmploymentType,
	CodeEntrySetExists:        generic.ErrEntrySetExists,
}

// Sentinel returns the generic error a code unwraps to.
func (c Code) Sentinel() error {
	return sentinels[c]
}

// =============================================================================
// REJECTION ERROR - Every offense, never just the first
// =============================================================================

// Offense is one reason a write cannot commit. EntryIndex is the position in
// the request (-1 when the offense concerns the whole day).
type Offense struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Date       generic.TimePoint  `json:"date"`
	Code       Code               `json:"code"`
	EntryIndex int                `json:"entry_index"`
	Message    string             `json:"message"`
}

func (o Offense) String() string {
	return fmt.Sprintf("%s %s %s: %s", o.EmployeeID, o.Date, o.Code, o.Message)
}

type RejectionError struct {
	Offenses []Offense `json:"offenses"`
}

func (e *RejectionError) Error() string {
	parts := make([]string, len(e.Offenses))
	for i, o := range e.Offenses {
		parts[i] = o.String()
	}
	return "save rejected: " + strings.Join(parts, "; ")
}

// Unwrap exposes one sentinel per distinct code so errors.Is works for each.
func (e *RejectionError) Unwrap() []error {
	seen := make(map[Code]bool)
	var errs []error
	for _, o := range e.Offenses {
		if seen[o.Code] {
			continue
		}
		seen[o.Code] = true
		if s := o.Code.Sentinel(); s != nil {
			errs = append(errs, s)
		}
	}
	return errs
}

// Has reports whether any offense carries code.
func (e *RejectionError) Has(code Code) bool {
	for _, o := range e.Offenses {
		if o.Code == code {
			return true
		}
	}
	return false
}
