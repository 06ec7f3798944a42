/*
handlers.go - HTTP handlers for the staff pay engine

PURPOSE:
  Exposes rate lookup, entry valuation, the save pipeline, leave balances
  and period reports over REST. Handlers parse the request, load what the
  engine needs from the store and serialize the result. All business rules
  live in the domain packages.

ENDPOINTS:
  Employees:
    GET    /api/employees                       List employees
    POST   /api/employees                       Create or update an employee
    GET    /api/employees/{id}                  Get one employee

  Rates:
    GET    /api/employees/{id}/rates            Rate history in write order
    POST   /api/employees/{id}/rates            Append a rate record
    GET    /api/employees/{id}/rate             Resolve ?date=&service=

  Leave:
    GET    /api/employees/{id}/leave-value      Value of one leave day ?date=
    GET    /api/employees/{id}/leave-balance    Balance ?date=
    GET    /api/employees/{id}/ledger           Ledger statement ?date=

  Entries:
    GET    /api/employees/{id}/entries          ?from=&to=&include_trashed=
    POST   /api/employees/{id}/entries          Save one day
    POST   /api/entries/compute                 Prepare one day, write nothing
    POST   /api/entries/validate                Validate many days, write nothing
    DELETE /api/entries/{id}                    Trash
    POST   /api/entries/{id}/restore            Restore

  Reports:
    GET    /api/reports/period                  ?from=&to=&employee=&type=&include_inactive=

  Admin:
    POST   /api/admin/leave/reconcile           Close a year
    GET    /api/admin/leave/runs                ?year=
    GET    /api/admin/leave/scheduler           Scheduler status

SAVE RESPONSES:
  201 committed, 202 needs confirmation (nothing written), 422 rejected
  with every offense of the day.

ERROR HANDLING:
  - 400: malformed input, invalid values
  - 404: unknown employee, service or entry
  - 409: duplicate rate, idempotency or concurrent-modification conflicts
  - 422: rejected save
  - 500: store failures

SEE ALSO:
  - dto.go: Request/response bodies
  - server.go: Router and middleware
  - scenarios.go: Demo data
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/factory"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/pipeline"
	"github.com/warp/staff-pay-engine/rates"
	"github.com/warp/staff-pay-engine/report"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/valuation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      staff.Store
	Settings   factory.Settings
	Pipeline   *pipeline.Service
	Ledger     *leave.Ledger
	Reconciler *leave.Reconciler
	Logger     *slog.Logger

	// Scheduler is optional and only used for the status endpoint.
	Scheduler *ReconciliationScheduler

	now func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the engine over store with the given settings.
func NewHandler(store staff.Store, settings factory.Settings, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		Store:      store,
		Settings:   settings,
		Pipeline:   pipeline.NewService(store, settings.LeavePolicy, settings.PayPolicy, settings.Calendar),
		Ledger:     leave.NewLedger(settings.LeavePolicy, store),
		Reconciler: leave.NewReconciler(settings.LeavePolicy),
		Logger:     logger,
	}
	h.SetClock(func() time.Time { return time.Now().UTC() })
	return h
}

// SetClock replaces the time source of the handler and the engine behind it.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
	h.Pipeline.Now = now
	h.Reconciler.Now = now
}

func (h *Handler) today() generic.TimePoint {
	return generic.DateOf(h.now())
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list employees", err)
		return
	}
	if employees == nil {
		employees = []staff.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

// CreateEmployee upserts an employee. A new employee receives the current
// year's (prorated) leave grant.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	empType, err := staff.ParseEmploymentType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid type", err)
		return
	}
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	if req.EmploymentScope != nil && (!req.EmploymentScope.IsPositive() || req.EmploymentScope.GreaterThan(decimal.NewFromInt(1))) {
		writeError(w, http.StatusBadRequest, "employment_scope must be in (0, 1]", nil)
		return
	}
	if req.AnnualLeaveDays.IsNegative() {
		writeError(w, http.StatusBadRequest, "annual_leave_days must not be negative", nil)
		return
	}

	emp := staff.Employee{
		ID:              generic.EmployeeID(req.ID),
		Name:            req.Name,
		Type:            empType,
		StartDate:       start,
		IsActive:        req.IsActive == nil || *req.IsActive,
		EmploymentScope: req.EmploymentScope,
		AnnualLeaveDays: req.AnnualLeaveDays,
	}
	if emp.ID == "" {
		emp.ID = generic.EmployeeID(uuid.NewString())
	}

	ctx := r.Context()
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		h.writeServiceError(w, r, "Failed to save employee", err)
		return
	}
	if g, ok := h.Reconciler.GrantYear(emp, h.today().Year()); ok {
		if err := h.Ledger.Log.Append(ctx, g); err != nil && !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			h.writeServiceError(w, r, "Failed to grant annual leave", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, emp)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), employeeParam(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.Store.ListServices(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list services", err)
		return
	}
	if services == nil {
		services = []staff.ServiceContext{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	model := staff.PaymentModel(req.PaymentModel)
	if model != staff.PerMeeting && model != staff.PerStudent {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid payment_model %q", req.PaymentModel), nil)
		return
	}
	if req.DurationMinutes < 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must not be negative", nil)
		return
	}

	svc := staff.ServiceContext{
		ID:              generic.ServiceID(req.ID),
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		PaymentModel:    model,
	}
	if err := h.Store.SaveService(r.Context(), svc); err != nil {
		h.writeServiceError(w, r, "Failed to save service", err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		h.writeServiceError(w, r, "Failed to get employee", err)
		return
	}
	records, err := h.Store.ListRates(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list rates", err)
		return
	}
	if records == nil {
		records = []staff.RateRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// CreateRate appends a rate record. Records are never updated.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, employeeParam(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get employee", err)
		return
	}

	var req CreateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	effective, err := generic.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date", err)
		return
	}
	rec := staff.RateRecord{
		EmployeeID:    emp.ID,
		ServiceID:     rates.EffectiveService(emp.Type, generic.ServiceID(req.ServiceID)),
		EffectiveDate: effective,
		Rate:          req.Rate,
		Notes:         req.Notes,
		CreatedAt:     h.now(),
	}
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}

	if req.Strict {
		existing, err := h.Store.ListRates(ctx, emp.ID)
		if err != nil {
			h.writeServiceError(w, r, "Failed to list rates", err)
			return
		}
		if _, err := rates.NewHistory(existing).AppendStrict(rec); err != nil {
			h.writeServiceError(w, r, "Rate rejected", err)
			return
		}
	}

	stored, err := h.Store.AppendRate(ctx, rec)
	if err != nil {
		h.writeServiceError(w, r, "Failed to append rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// ResolveRate answers "what rate applies to this employee on this date".
// Missing rates come back as a zero rate with a reason, not as an error.
func (h *Handler) ResolveRate(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateQuery(w, r, "date")
	if !ok {
		return
	}
	snap, ok := h.snapshot(w, r, employeeParam(r))
	if !ok {
		return
	}
	service := generic.ServiceID(r.URL.Query().Get("service"))
	writeJSON(w, http.StatusOK, rates.FromSnapshot(snap).Resolve(employeeParam(r), date, service))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

func (h *Handler) GetLeaveValue(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateQuery(w, r, "date")
	if !ok {
		return
	}
	id := employeeParam(r)
	snap, ok := h.snapshot(w, r, id)
	if !ok {
		return
	}
	val, err := valuation.FromSnapshot(h.Settings.PayPolicy, snap, h.Settings.Calendar).ValueLeaveDay(id, date)
	if err != nil {
		h.writeServiceError(w, r, "Failed to value leave day", err)
		return
	}
	val.Amount = generic.RoundMoney(val.Amount)
	writeJSON(w, http.StatusOK, LeaveValueDTO{EmployeeID: id, Date: date, Value: val})
}

func (h *Handler) GetLeaveBalance(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateQuery(w, r, "date")
	if !ok {
		return
	}
	ctx := r.Context()
	id := employeeParam(r)
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		h.writeServiceError(w, r, "Failed to get employee", err)
		return
	}
	balance, err := h.Ledger.BalanceAt(ctx, id, date)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute balance", err)
		return
	}
	dto := LeaveBalanceDTO{EmployeeID: id, Date: date, Balance: balance, Floor: h.Settings.LeavePolicy.Floor()}
	if h.Settings.LeavePolicy.AllowNegativeBalance {
		dto.Floor = decimal.Zero
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateQuery(w, r, "date")
	if !ok {
		return
	}
	ctx := r.Context()
	id := employeeParam(r)
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		h.writeServiceError(w, r, "Failed to get employee", err)
		return
	}
	st, err := h.Ledger.Statement(ctx, id, date)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load ledger", err)
		return
	}
	if st.Lines == nil {
		st.Lines = []leave.StatementLine{}
	}
	writeJSON(w, http.StatusOK, st)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		h.writeServiceError(w, r, "Failed to get employee", err)
		return
	}

	filter := staff.EntryFilter{EmployeeID: id}
	var err error
	if filter.From, err = optionalDate(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	if filter.To, err = optionalDate(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}
	filter.IncludeTrashed, _ = strconv.ParseBool(r.URL.Query().Get("include_trashed"))

	entries, err := h.Store.ListEntries(ctx, filter)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list entries", err)
		return
	}
	if entries == nil {
		entries = []staff.TimeEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// SaveEntries runs the save pipeline for one employee and date.
func (h *Handler) SaveEntries(w http.ResponseWriter, r *http.Request) {
	var body SaveDayRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := body.toSaveRequest(employeeParam(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	out, err := h.Pipeline.Save(r.Context(), req)
	if err != nil && out == nil {
		h.writeServiceError(w, r, "Failed to save entries", err)
		return
	}

	switch out.State {
	case pipeline.StateCommitted:
		h.Logger.InfoContext(r.Context(), "entries committed",
			slog.String("employee_id", string(req.EmployeeID)),
			slog.String("date", req.Date.String()),
			slog.Int("entries", len(out.Entries)),
			slog.Int("replaced", len(out.Replaced)))
		writeJSON(w, http.StatusCreated, newOutcomeResponse(out))
	case pipeline.StateNeedsConfirmation:
		writeJSON(w, http.StatusAccepted, newOutcomeResponse(out))
	default:
		writeJSON(w, http.StatusUnprocessableEntity, newOutcomeResponse(out))
	}
}

// ComputeEntries prepares one day and returns the valued entries without
// writing anything.
func (h *Handler) ComputeEntries(w http.ResponseWriter, r *http.Request) {
	var body SaveDayRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}
	req, err := body.toSaveRequest(generic.EmployeeID(body.EmployeeID))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	out, err := h.Pipeline.Prepare(r.Context(), req)
	if err != nil && out == nil {
		h.writeServiceError(w, r, "Failed to compute entries", err)
		return
	}
	status := http.StatusOK
	if out.State == pipeline.StateRejected {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, newOutcomeResponse(out))
}

// ValidateEntries checks a batch of days in order, as if each valid day had
// been saved before the next. Nothing is written.
func (h *Handler) ValidateEntries(w http.ResponseWriter, r *http.Request) {
	var body ValidateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	reqs := make([]pipeline.SaveRequest, 0, len(body.Days))
	for i, d := range body.Days {
		if d.EmployeeID == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("days[%d]: employee_id is required", i), nil)
			return
		}
		req, err := d.toSaveRequest(generic.EmployeeID(d.EmployeeID))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("days[%d]: invalid date", i), err)
			return
		}
		reqs = append(reqs, req)
	}

	outcomes, err := h.Pipeline.ValidateBatch(r.Context(), reqs)
	var rej *pipeline.RejectionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ValidateBatchResponse{Valid: true, Outcomes: outcomes})
	case errors.As(err, &rej):
		writeJSON(w, http.StatusUnprocessableEntity, ValidateBatchResponse{Outcomes: outcomes, Offenses: rej.Offenses})
	default:
		h.writeServiceError(w, r, "Failed to validate entries", err)
	}
}

func (h *Handler) TrashEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Pipeline.Trash(r.Context(), generic.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to trash entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) RestoreEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Pipeline.Restore(r.Context(), generic.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to restore entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// PeriodReport aggregates pay, hours, sessions and leave days over [from, to].
func (h *Handler) PeriodReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := generic.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	to, err := generic.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}
	rng, err := generic.NewPeriod(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	var filters report.Filters
	for _, id := range listParam(q["employee"]) {
		filters.EmployeeIDs = append(filters.EmployeeIDs, generic.EmployeeID(id))
	}
	for _, t := range listParam(q["type"]) {
		et, err := staff.ParseEmploymentType(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid type", err)
			return
		}
		filters.Types = append(filters.Types, et)
	}
	filters.IncludeInactive, _ = strconv.ParseBool(q.Get("include_inactive"))

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	totals, err := report.NewAggregator(h.Settings.PayPolicy, h.Settings.Calendar).Aggregate(snap, rng, filters)
	if err != nil {
		h.writeServiceError(w, r, "Failed to aggregate period", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Reconcile closes a year: expiry, capped carryover and the next year's grant.
// Defaults to the previous calendar year and every active employee.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Year == 0 {
		req.Year = h.today().Year() - 1
	}
	ids := make([]generic.EmployeeID, len(req.EmployeeIDs))
	for i, id := range req.EmployeeIDs {
		ids[i] = generic.EmployeeID(id)
	}

	resp, err := h.reconcileYear(r.Context(), req.Year, ids)
	if err != nil {
		h.writeServiceError(w, r, "Failed to reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// reconcileYear closes year for the named employees (every active employee
// when none are named). Per-employee failures are reported, not returned.
func (h *Handler) reconcileYear(ctx context.Context, year int, ids []generic.EmployeeID) (*ReconcileResponse, error) {
	var employees []staff.Employee
	resp := &ReconcileResponse{Year: year, RanAt: h.now(), Results: []ReconcileResult{}}
	if len(ids) == 0 {
		all, err := h.Store.ListEmployees(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range all {
			if e.IsActive {
				employees = append(employees, e)
			}
		}
	} else {
		for _, id := range ids {
			emp, err := h.Store.GetEmployee(ctx, id)
			if err != nil {
				if !generic.IsNotFound(err) {
					return nil, err
				}
				resp.Results = append(resp.Results, ReconcileResult{EmployeeID: id, Error: err.Error()})
				continue
			}
			employees = append(employees, emp)
		}
	}

	runs, _ := h.Store.(leave.RunStore)
	for _, emp := range employees {
		ye, err := h.Reconciler.Reconcile(ctx, h.Ledger.Log, emp, year)
		run := leave.Run{
			ID:         uuid.NewString(),
			EmployeeID: emp.ID,
			Year:       year,
			Status:     leave.RunCompleted,
			CreatedAt:  h.now(),
		}
		res := ReconcileResult{EmployeeID: emp.ID}
		if err != nil {
			h.Logger.ErrorContext(ctx, "year-end reconciliation failed",
				slog.String("employee_id", string(emp.ID)), slog.Int("year", year), slog.Any("error", err))
			run.Status, run.Error = leave.RunFailed, err.Error()
			res.Error = err.Error()
		} else {
			run.CarriedOver, run.Expired = ye.CarriedOver, ye.Expired
			res.YearEnd = &ye
		}
		resp.Results = append(resp.Results, res)

		if runs == nil || (err == nil && ye.AlreadyClosed) {
			continue
		}
		if err := runs.SaveReconciliationRun(ctx, run); err != nil {
			h.Logger.WarnContext(ctx, "failed to record reconciliation run",
				slog.String("employee_id", string(emp.ID)), slog.Any("error", err))
		}
	}
	return resp, nil
}

func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	runs, ok := h.Store.(leave.RunStore)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not record reconciliation runs", nil)
		return
	}
	year := h.today().Year() - 1
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	list, err := runs.ReconciliationRuns(r.Context(), year)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list runs", err)
		return
	}
	if list == nil {
		list = []leave.Run{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSON(w, http.StatusOK, SchedulerStatusDTO{})
		return
	}
	writeJSON(w, http.StatusOK, h.Scheduler.Status())
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeParam(r *http.Request) generic.EmployeeID {
	return generic.EmployeeID(chi.URLParam(r, "id"))
}

// dateQuery reads a date parameter, defaulting to today.
func (h *Handler) dateQuery(w http.ResponseWriter, r *http.Request, name string) (generic.TimePoint, bool) {
	d, err := optionalDate(r, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return generic.TimePoint{}, false
	}
	if d.IsZero() {
		d = h.today()
	}
	return d, true
}

func optionalDate(r *http.Request, name string) (generic.TimePoint, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(v)
}

// listParam accepts both repeated and comma separated values.
func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request, ids ...generic.EmployeeID) (*staff.Snapshot, bool) {
	snap, err := staff.LoadSnapshot(r.Context(), h.Store, ids...)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load data", err)
		return nil, false
	}
	return snap, true
}

// writeServiceError maps engine and store errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var rej *pipeline.RejectionError
	switch {
	case errors.As(err, &rej):
		writeJSON(w, http.StatusUnprocessableEntity, rej)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrDuplicateRate),
		errors.Is(err, generic.ErrDuplicateIdempotencyKey),
		errors.Is(err, generic.ErrConcurrentModification):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.ErrorContext(r.Context(), message, slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
