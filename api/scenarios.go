/*
scenarios.go - Demo scenario loaders

PURPOSE:

	Populates the store with small, realistic data sets that exercise one
	part of the engine each. Entries go through the save pipeline exactly as
	API clients would submit them, so every scenario also checks that its
	data is valid.

AVAILABLE SCENARIOS:

	hourly-pay:          Hourly employee, one rate, an 8h day paid 400
	leave-conflict:      Hourly employee with a paid leave day, ready for a conflicting hours entry
	salaried-month:      Global employee with full days, a half-day split and a leave day
	instructor-sessions: Instructor with per-meeting and per-student services
	new-hire:            Hire with no work history (fallback leave value) and a pre-start leave import
	year-end:            Unused 2024 balances ready for year-end reconciliation

HOW SCENARIOS WORK:
 1. Reset the store
 2. Create services, employees and rate records
 3. Grant the annual leave allowance
 4. Save entries day by day through the pipeline

USAGE VIA API:

	POST /api/scenarios
	{"scenario_id": "hourly-pay"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Save pipeline endpoints used against the loaded data
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/pipeline"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "hourly-pay",
		Name:        "Hourly Pay",
		Description: "Hourly employee E1 at 50/h from 2024-01-01 working 8h on 2024-01-15",
		Category:    "payment",
	},
	{
		ID:          "leave-conflict",
		Name:        "Leave/Work Conflict",
		Description: "E1 has paid leave on 2024-02-10; submitting hours for that date is rejected",
		Category:    "validation",
	},
	{
		ID:          "salaried-month",
		Name:        "Salaried Month",
		Description: "Global employee G1 in March 2024 with a half-leave/half-work day and a full leave day",
		Category:    "payment",
	},
	{
		ID:          "instructor-sessions",
		Name:        "Instructor Sessions",
		Description: "Instructor I1 paid per meeting for yoga and per student for tutoring",
		Category:    "payment",
	},
	{
		ID:          "new-hire",
		Name:        "New Hire",
		Description: "N1 starts 2024-03-01 with no history: fallback leave value and a pre-start leave import",
		Category:    "leave",
	},
	{
		ID:          "year-end",
		Name:        "Year-End",
		Description: "Two employees with unused 2024 leave, ready for POST /api/admin/leave/reconcile",
		Category:    "leave",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context) error

var scenarioLoaders = map[string]scenarioLoader{
	"hourly-pay":          (*Handler).loadHourlyPayScenario,
	"leave-conflict":      (*Handler).loadLeaveConflictScenario,
	"salaried-month":      (*Handler).loadSalariedMonthScenario,
	"instructor-sessions": (*Handler).loadInstructorScenario,
	"new-hire":            (*Handler).loadNewHireScenario,
	"year-end":            (*Handler).loadYearEndScenario,
}

// resetter is implemented by every store that can be emptied.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store cannot be reset", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := rs.Reset(ctx); err != nil {
		h.writeServiceError(w, r, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	if err := load(h, ctx); err != nil {
		h.writeServiceError(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Logger.InfoContext(ctx, "scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadHourlyPayScenario(ctx context.Context) error {
	e1 := staff.Employee{ID: "E1", Name: "Eitan Levi", Type: staff.Hourly, StartDate: mustDate("2023-06-01"), IsActive: true, AnnualLeaveDays: mustDec("12")}
	if err := h.seedEmployee(ctx, e1, 2024, rateAt("2024-01-01", "50")); err != nil {
		return err
	}
	return h.saveDay(ctx, e1.ID, "2024-01-15", hoursEntry("8"))
}

func (h *Handler) loadLeaveConflictScenario(ctx context.Context) error {
	if err := h.loadHourlyPayScenario(ctx); err != nil {
		return err
	}
	for _, d := range []string{"2024-02-05", "2024-02-06", "2024-02-07"} {
		if err := h.saveDay(ctx, "E1", d, hoursEntry("6")); err != nil {
			return err
		}
	}
	leaveDay := staff.TimeEntry{Kind: staff.KindLeave, Leave: staff.FullDay(generic.CategoryEmployeeFunded)}
	return h.saveDay(ctx, "E1", "2024-02-10", leaveDay)
}

func (h *Handler) loadSalariedMonthScenario(ctx context.Context) error {
	scope := mustDec("0.8")
	g1 := staff.Employee{ID: "G1", Name: "Gal Cohen", Type: staff.Global, StartDate: mustDate("2022-09-01"), IsActive: true, EmploymentScope: &scope, AnnualLeaveDays: mustDec("20")}
	if err := h.seedEmployee(ctx, g1, 2024, rateAt("2024-01-01", "22000")); err != nil {
		return err
	}

	for _, d := range []string{"2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07"} {
		if err := h.saveDay(ctx, g1.ID, d, hoursEntry("8.5")); err != nil {
			return err
		}
	}
	halfLeave := staff.TimeEntry{
		Kind:  staff.KindLeave,
		Leave: staff.HalfDay(generic.CategoryEmployeeFunded, &staff.HalfCompanion{Kind: staff.CompanionWork}),
	}
	if err := h.saveDay(ctx, g1.ID, "2024-03-11", halfLeave, hoursEntry("4")); err != nil {
		return err
	}
	sick := staff.TimeEntry{Kind: staff.KindLeave, Leave: staff.FullDay(generic.CategorySystemFunded), Notes: "sick day"}
	return h.saveDay(ctx, g1.ID, "2024-03-12", sick)
}

func (h *Handler) loadInstructorScenario(ctx context.Context) error {
	services := []staff.ServiceContext{
		{ID: "yoga", Name: "Yoga class", DurationMinutes: 60, PaymentModel: staff.PerMeeting},
		{ID: "tutoring", Name: "Group tutoring", DurationMinutes: 45, PaymentModel: staff.PerStudent},
	}
	for _, svc := range services {
		if err := h.Store.SaveService(ctx, svc); err != nil {
			return err
		}
	}

	i1 := staff.Employee{ID: "I1", Name: "Inbar Shani", Type: staff.Instructor, StartDate: mustDate("2023-01-01"), IsActive: true}
	yoga := rateAt("2024-01-01", "180")
	yoga.ServiceID = "yoga"
	tutoring := rateAt("2024-01-01", "35")
	tutoring.ServiceID = "tutoring"
	raise := rateAt("2024-04-01", "200")
	raise.ServiceID = "yoga"
	if err := h.seedEmployee(ctx, i1, 2024, yoga, tutoring, raise); err != nil {
		return err
	}

	if err := h.saveDay(ctx, i1.ID, "2024-03-18", sessionEntry("yoga", 2, 0)); err != nil {
		return err
	}
	if err := h.saveDay(ctx, i1.ID, "2024-03-19", sessionEntry("tutoring", 1, 6)); err != nil {
		return err
	}
	return h.saveDay(ctx, i1.ID, "2024-04-02", sessionEntry("yoga", 1, 0))
}

func (h *Handler) loadNewHireScenario(ctx context.Context) error {
	n1 := staff.Employee{ID: "N1", Name: "Noa Peretz", Type: staff.Hourly, StartDate: mustDate("2024-03-01"), IsActive: true, AnnualLeaveDays: mustDec("12")}
	if err := h.seedEmployee(ctx, n1, 2024, rateAt("2024-03-01", "60")); err != nil {
		return err
	}

	// A leave day imported from the previous payroll system, dated before
	// the start date. The pipeline would reject it; reports show it at zero.
	imported := staff.TimeEntry{
		ID:         generic.EntryID(uuid.NewString()),
		EmployeeID: n1.ID,
		Date:       mustDate("2024-02-20"),
		Kind:       staff.KindLeave,
		Leave:      staff.FullDay(generic.CategoryEmployeeFunded),
		Payable:    true,
		Status:     staff.StatusActive,
		Notes:      "imported",
		CreatedAt:  h.now(),
	}
	return h.Store.InsertEntries(ctx, []staff.TimeEntry{imported})
}

func (h *Handler) loadYearEndScenario(ctx context.Context) error {
	emps := []staff.Employee{
		{ID: "Y1", Name: "Yael Mizrahi", Type: staff.Hourly, StartDate: mustDate("2021-01-01"), IsActive: true, AnnualLeaveDays: mustDec("15")},
		{ID: "Y2", Name: "Yoni Katz", Type: staff.Hourly, StartDate: mustDate("2024-07-01"), IsActive: true, AnnualLeaveDays: mustDec("12")},
	}
	for _, e := range emps {
		if err := h.seedEmployee(ctx, e, 2024, rateAt("2024-01-01", "55")); err != nil {
			return err
		}
	}
	for _, d := range []string{"2024-08-12", "2024-08-13", "2024-08-14"} {
		leaveDay := staff.TimeEntry{Kind: staff.KindLeave, Leave: staff.FullDay(generic.CategoryEmployeeFunded)}
		leaveDay.LeaveValueOverride = decPtr("440")
		if err := h.saveDay(ctx, "Y1", d, leaveDay); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// seedEmployee saves emp with its rate records and grants the given year.
func (h *Handler) seedEmployee(ctx context.Context, emp staff.Employee, grantYear int, recs ...staff.RateRecord) error {
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return fmt.Errorf("save employee %s: %w", emp.ID, err)
	}
	for _, rec := range recs {
		rec.EmployeeID = emp.ID
		if rec.ServiceID == "" {
			rec.ServiceID = staff.GenericServiceID
		}
		rec.CreatedAt = h.now()
		if _, err := h.Store.AppendRate(ctx, rec); err != nil {
			return fmt.Errorf("append rate for %s: %w", emp.ID, err)
		}
	}
	if g, ok := h.Reconciler.GrantYear(emp, grantYear); ok {
		if err := h.Ledger.Log.Append(ctx, g); err != nil {
			return fmt.Errorf("grant %s: %w", emp.ID, err)
		}
	}
	return nil
}

// saveDay commits one day through the pipeline. Anything short of a commit
// is an error: scenario data must be valid.
func (h *Handler) saveDay(ctx context.Context, emp generic.EmployeeID, day string, entries ...staff.TimeEntry) error {
	out, err := h.Pipeline.Save(ctx, pipeline.SaveRequest{EmployeeID: emp, Date: mustDate(day), Entries: entries})
	if err != nil {
		return fmt.Errorf("save %s %s: %w", emp, day, err)
	}
	if out.State != pipeline.StateCommitted {
		return fmt.Errorf("save %s %s: ended in state %s", emp, day, out.State)
	}
	return nil
}

func mustDate(s string) generic.TimePoint { return generic.MustParseDate(s) }
func mustDec(s string) decimal.Decimal     { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := mustDec(s)
	return &d
}

func rateAt(effective, rate string) staff.RateRecord {
	return staff.RateRecord{EffectiveDate: mustDate(effective), Rate: mustDec(rate), Notes: "scenario"}
}

func hoursEntry(h string) staff.TimeEntry {
	return staff.TimeEntry{Kind: staff.KindHours, Hours: mustDec(h)}
}

func sessionEntry(service string, meetings, students int) staff.TimeEntry {
	return staff.TimeEntry{Kind: staff.KindSession, ServiceID: generic.ServiceID(service), Meetings: meetings, Students: students}
}
