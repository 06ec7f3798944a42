/*
dto.go - Request and response bodies

PURPOSE:
  JSON shapes of the REST API. Responses mostly reuse the domain types,
  which already carry json tags; the types here cover request bodies and
  the handful of responses that combine several domain values.

NAMING CONVENTION:
  - *Request: request bodies
  - *DTO / *Response: response bodies

VALIDATION:
  Done in handlers and in the save pipeline. An entry with an unknown kind
  or leave subtype is passed through so the pipeline can report it
  alongside every other offense of the day.

SEE ALSO:
  - handlers.go: Uses these types
  - pipeline/pipeline.go: Outcome, the response of every save
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/pipeline"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/valuation"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// EMPLOYEES, SERVICES, RATES
// =============================================================================

type CreateEmployeeRequest struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	StartDate       string           `json:"start_date"`
	IsActive        *bool            `json:"is_active"`
	EmploymentScope *decimal.Decimal `json:"employment_scope"`
	AnnualLeaveDays decimal.Decimal  `json:"annual_leave_days"`
}

type CreateServiceRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PaymentModel    string `json:"payment_model"`
}

type CreateRateRequest struct {
	ServiceID     string          `json:"service_id"`
	EffectiveDate string          `json:"effective_date"`
	Rate          decimal.Decimal `json:"rate"`
	Notes         string          `json:"notes"`
	// Strict rejects a second record for the same service and effective date.
	Strict bool `json:"strict"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// EntryRequest is one entry of a day. Valuation fields are always computed
// server side and cannot be supplied.
type EntryRequest struct {
	Kind               string              `json:"kind"`
	Hours              decimal.Decimal     `json:"hours"`
	ServiceID          string              `json:"service_id"`
	Meetings           int                 `json:"meetings"`
	Students           int                 `json:"students"`
	Adjustment         decimal.Decimal     `json:"adjustment"`
	Leave              *staff.LeaveSegment `json:"leave"`
	LeaveValueOverride *decimal.Decimal    `json:"leave_value_override"`
	Notes              string              `json:"notes"`
}

func (e EntryRequest) toEntry() staff.TimeEntry {
	return staff.TimeEntry{
		Kind:               staff.EntryKind(e.Kind),
		Hours:              e.Hours,
		ServiceID:          generic.ServiceID(e.ServiceID),
		Meetings:           e.Meetings,
		Students:           e.Students,
		Adjustment:         e.Adjustment,
		Leave:              e.Leave,
		LeaveValueOverride: e.LeaveValueOverride,
		Notes:              e.Notes,
	}
}

// SaveDayRequest replaces an employee's entries on one date.
type SaveDayRequest struct {
	EmployeeID string         `json:"employee_id,omitempty"`
	Date       string         `json:"date"`
	Entries    []EntryRequest `json:"entries"`
}

func (r SaveDayRequest) toSaveRequest(employeeID generic.EmployeeID) (pipeline.SaveRequest, error) {
	date, err := generic.ParseDate(r.Date)
	if err != nil {
		return pipeline.SaveRequest{}, err
	}
	entries := make([]staff.TimeEntry, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = e.toEntry()
	}
	return pipeline.SaveRequest{EmployeeID: employeeID, Date: date, Entries: entries}, nil
}

type ValidateBatchRequest struct {
	Days []SaveDayRequest `json:"days"`
}

type ValidateBatchResponse struct {
	Valid    bool                `json:"valid"`
	Outcomes []*pipeline.Outcome `json:"outcomes"`
	Offenses []pipeline.Offense  `json:"offenses,omitempty"`
}

// OutcomeResponse wraps a save outcome with its total.
type OutcomeResponse struct {
	*pipeline.Outcome
	TotalPayment decimal.Decimal `json:"total_payment"`
}

func newOutcomeResponse(out *pipeline.Outcome) OutcomeResponse {
	return OutcomeResponse{Outcome: out, TotalPayment: out.TotalPayment()}
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveValueDTO struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Date       generic.TimePoint  `json:"date"`
	valuation.Value
}

type LeaveBalanceDTO struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Date       generic.TimePoint  `json:"date"`
	Balance    decimal.Decimal    `json:"balance"`
	Floor      decimal.Decimal    `json:"floor"`
}

type ReconcileRequest struct {
	Year        int      `json:"year"`
	EmployeeIDs []string `json:"employee_ids"`
}

type ReconcileResult struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	YearEnd    *leave.YearEnd     `json:"year_end,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type ReconcileResponse struct {
	Year    int               `json:"year"`
	Results []ReconcileResult `json:"results"`
	RanAt   time.Time         `json:"ran_at"`
}

// SchedulerStatusDTO describes the background year-end reconciler.
type SchedulerStatusDTO struct {
	Enabled bool       `json:"enabled"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
