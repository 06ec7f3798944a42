/*
errors.go - Centralized error types for the engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Hard validation failures (pipeline.RejectionError) unwrap to these, so
  callers can branch with errors.Is without knowing the structured type.

ERROR CATEGORIES:
  1. Validation errors - A save would break a business rule
  2. Ledger/store errors - Persistence failures and idempotency collisions
  3. Lookup errors - Referenced records do not exist

Soft degradations (no rate, no history, pre-employment dates) are NOT errors.
They travel as reason codes next to a zero or fallback value.
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a ledger entry with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInvalidStartDate: the entry date precedes the employee's start date.
	ErrInvalidStartDate = errors.New("date precedes employment start")

	// ErrLeaveWorkConflict: a day would be both a leave day and a work day.
	ErrLeaveWorkConflict = errors.New("leave and work on the same day")

	// ErrInvalidAmount: negative hours/counts or a non-positive override.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrHalfDayNotAllowed: the leave policy does not permit half days.
	ErrHalfDayNotAllowed = errors.New("half-day leave not allowed")

	// ErrLeaveCreditExceeded: leave segments on one day would exceed one full day.
	ErrLeaveCreditExceeded = errors.New("leave credit exceeds one day")

	// ErrInsufficientBalance is returned when consumption would cross the negative floor.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrInactiveEmployee: entries cannot be written for inactive employees.
	ErrInactiveEmployee = errors.New("employee is inactive")

	// ErrUnknownEmploymentType is returned by exhaustive employment-type switches.
	ErrUnknownEmploymentType = errors.New("unknown employment type")

	// ErrUnknownEntryKind is returned for entries with an unrecognised kind.
	ErrUnknownEntryKind = errors.New("unknown entry kind")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrServiceNotFound is returned when a referenced service context doesn't exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrEntryNotFound is returned when a referenced time entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidRate is returned when a rate record is malformed.
	ErrInvalidRate = errors.New("invalid rate record")

	// ErrDuplicateRate: strict mode found a record for the same service and effective date.
	ErrDuplicateRate = errors.New("rate already defined for this date")

	// ErrEntrySetExists: another active entry set already holds the employee|date|kind key.
	ErrEntrySetExists = errors.New("an active entry set already exists for this day and kind")

	// ErrConcurrentModification is returned when a store detects a conflicting write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Date       TimePoint
	Available  Amount
	Requested  Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for %s on %s: available %v, requested %v",
		e.EmployeeID, e.Date, e.Available.Value, e.Requested.Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidStartDate) ||
		errors.Is(err, ErrLeaveWorkConflict) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrHalfDayNotAllowed) ||
		errors.Is(err, ErrLeaveCreditExceeded) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInactiveEmployee) ||
		errors.Is(err, ErrEntrySetExists) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrUnknownEmploymentType) ||
		errors.Is(err, ErrUnknownEntryKind)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
