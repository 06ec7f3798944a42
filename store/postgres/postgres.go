// Package postgres implements staff.TxStore on PostgreSQL through pgxpool.
//
// WithTx runs at SERIALIZABLE isolation. Two saves racing on the same
// (employee, date) make one of them fail with a serialization error, which
// is reported as generic.ErrConcurrentModification so callers can retry.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/staff"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	repo
}

// New connects to dsn and creates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	config.MaxConns = 25
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Store{pool: pool, repo: repo{q: pool}}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date DATE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		employment_scope NUMERIC,
		annual_leave_days NUMERIC NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		payment_model TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rates (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		effective_date DATE NOT NULL,
		rate NUMERIC NOT NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rates_employee ON rates(employee_id, service_id, effective_date)`,
	`CREATE TABLE IF NOT EXISTS entries (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date DATE NOT NULL,
		kind TEXT NOT NULL,
		hours NUMERIC NOT NULL DEFAULT 0,
		service_id TEXT,
		meetings INTEGER NOT NULL DEFAULT 0,
		students INTEGER NOT NULL DEFAULT 0,
		adjustment NUMERIC NOT NULL DEFAULT 0,
		leave JSONB,
		leave_value_override NUMERIC,
		rate_used NUMERIC NOT NULL DEFAULT 0,
		total_payment NUMERIC NOT NULL DEFAULT 0,
		payable BOOLEAN NOT NULL DEFAULT TRUE,
		used_fallback_rate BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT,
		status TEXT NOT NULL,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_employee_date ON entries(employee_id, date, status)`,
	`CREATE TABLE IF NOT EXISTS leave_ledger (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date DATE NOT NULL,
		delta_value NUMERIC NOT NULL,
		delta_unit TEXT NOT NULL,
		kind TEXT NOT NULL,
		category TEXT,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leave_ledger_employee ON leave_ledger(employee_id, date, seq)`,
	`CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		status TEXT NOT NULL,
		carried_over NUMERIC NOT NULL DEFAULT 0,
		expired NUMERIC NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (employee_id, year)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// WithTx executes fn inside a serializable transaction.
func (s *Store) WithTx(ctx context.Context, fn func(staff.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(repo{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// AppendLedger and InsertEntries write their whole batch in one transaction.
func (s *Store) AppendLedger(ctx context.Context, entries []generic.LedgerEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return repo{q: tx}.AppendLedger(ctx, entries)
	})
}

func (s *Store) InsertEntries(ctx context.Context, entries []staff.TimeEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return repo{q: tx}.InsertEntries(ctx, entries)
	})
}

// =============================================================================
// REPOSITORY
// =============================================================================

type repo struct {
	q Querier
}

func (r repo) SaveEmployee(ctx context.Context, emp staff.Employee) error {
	var scope *string
	if emp.EmploymentScope != nil {
		v := emp.EmploymentScope.String()
		scope = &v
	}
	query := `
		INSERT INTO employees (id, name, type, start_date, is_active, employment_scope, annual_leave_days)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			start_date = EXCLUDED.start_date,
			is_active = EXCLUDED.is_active,
			employment_scope = EXCLUDED.employment_scope,
			annual_leave_days = EXCLUDED.annual_leave_days
	`
	_, err := r.q.Exec(ctx, query,
		string(emp.ID), emp.Name, string(emp.Type), emp.StartDate.Time, emp.IsActive, scope, emp.AnnualLeaveDays.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, type, start_date, is_active, employment_scope::text, annual_leave_days::text`

func (r repo) GetEmployee(ctx context.Context, id generic.EmployeeID) (staff.Employee, error) {
	emp, err := scanEmployee(r.q.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", string(id)))
	if err == pgx.ErrNoRows {
		return staff.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return emp, err
}

func (r repo) ListEmployees(ctx context.Context) ([]staff.Employee, error) {
	rows, err := r.q.Query(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []staff.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func scanEmployee(row pgx.Row) (staff.Employee, error) {
	var (
		emp               staff.Employee
		id, typ           string
		start             time.Time
		scope             *string
		annualLeaveString string
	)
	if err := row.Scan(&id, &emp.Name, &typ, &start, &emp.IsActive, &scope, &annualLeaveString); err != nil {
		return staff.Employee{}, err
	}
	emp.ID = generic.EmployeeID(id)
	emp.Type = staff.EmploymentType(typ)
	emp.StartDate = generic.DateOf(start)
	emp.AnnualLeaveDays = generic.MustParseDecimal(annualLeaveString)
	if scope != nil {
		d := generic.MustParseDecimal(*scope)
		emp.EmploymentScope = &d
	}
	return emp, nil
}

func (r repo) SaveService(ctx context.Context, svc staff.ServiceContext) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, payment_model)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			payment_model = EXCLUDED.payment_model`,
		string(svc.ID), svc.Name, svc.DurationMinutes, string(svc.PaymentModel),
	)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

func (r repo) ListServices(ctx context.Context) ([]staff.ServiceContext, error) {
	rows, err := r.q.Query(ctx, "SELECT id, name, duration_minutes, payment_model FROM services ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var out []staff.ServiceContext
	for rows.Next() {
		var id, model string
		var svc staff.ServiceContext
		if err := rows.Scan(&id, &svc.Name, &svc.DurationMinutes, &model); err != nil {
			return nil, err
		}
		svc.ID = generic.ServiceID(id)
		svc.PaymentModel = staff.PaymentModel(model)
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (r repo) AppendRate(ctx context.Context, rec staff.RateRecord) (staff.RateRecord, error) {
	if err := rec.Validate(); err != nil {
		return staff.RateRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO rates (id, employee_id, service_id, effective_date, rate, notes, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		RETURNING seq`,
		rec.ID, string(rec.EmployeeID), string(rec.ServiceID), rec.EffectiveDate.Time, rec.Rate.String(),
		nullable(rec.Notes), rec.CreatedAt,
	).Scan(&rec.Seq)
	if err != nil {
		return staff.RateRecord{}, fmt.Errorf("failed to append rate: %w", err)
	}
	return rec, nil
}

func (r repo) ListRates(ctx context.Context, employeeID generic.EmployeeID) ([]staff.RateRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT seq, id, employee_id, service_id, effective_date, rate::text, coalesce(notes, ''), created_at
		FROM rates WHERE employee_id = $1 ORDER BY seq`, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var out []staff.RateRecord
	for rows.Next() {
		var (
			rec                    staff.RateRecord
			empID, svcID, rateText string
			effective              time.Time
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &empID, &svcID, &effective, &rateText, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.EmployeeID = generic.EmployeeID(empID)
		rec.ServiceID = generic.ServiceID(svcID)
		rec.EffectiveDate = generic.DateOf(effective)
		rec.Rate = generic.MustParseDecimal(rateText)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// ENTRIES
// =============================================================================

func (r repo) InsertEntries(ctx context.Context, entries []staff.TimeEntry) error {
	query := `
		INSERT INTO entries (id, employee_id, date, kind, hours, service_id, meetings, students,
			adjustment, leave, leave_value_override, rate_used, total_payment, payable,
			used_fallback_rate, notes, status, deleted_at, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9::numeric, $10, $11::numeric,
			$12::numeric, $13::numeric, $14, $15, $16, $17, $18, $19)
	`
	for _, e := range entries {
		var leaveJSON []byte
		if e.Leave != nil {
			raw, err := json.Marshal(e.Leave)
			if err != nil {
				return fmt.Errorf("failed to marshal leave segment: %w", err)
			}
			leaveJSON = raw
		}
		var override *string
		if e.LeaveValueOverride != nil {
			v := e.LeaveValueOverride.String()
			override = &v
		}
		status := e.Status
		if status == "" {
			status = staff.StatusActive
		}
		_, err := r.q.Exec(ctx, query,
			string(e.ID), string(e.EmployeeID), e.Date.Time, string(e.Kind), e.Hours.String(),
			nullable(string(e.ServiceID)), e.Meetings, e.Students, e.Adjustment.String(), leaveJSON, override,
			e.RateUsed.String(), e.TotalPayment.String(), e.Payable, e.UsedFallbackRate,
			nullable(e.Notes), string(status), e.DeletedAt, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, mapError(err))
		}
	}
	return nil
}

const entryColumns = `id, employee_id, date, kind, hours::text, coalesce(service_id, ''), meetings, students,
	adjustment::text, leave, leave_value_override::text, rate_used::text, total_payment::text, payable,
	used_fallback_rate, coalesce(notes, ''), status, deleted_at, created_at`

func (r repo) GetEntry(ctx context.Context, id generic.EntryID) (staff.TimeEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = $1", string(id)))
	if err == pgx.ErrNoRows {
		return staff.TimeEntry{}, fmt.Errorf("%w: %s", generic.ErrEntryNotFound, id)
	}
	return e, err
}

func (r repo) ListEntries(ctx context.Context, f staff.EntryFilter) ([]staff.TimeEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.EmployeeID != "" {
		add("employee_id = $%d", string(f.EmployeeID))
	}
	if !f.From.IsZero() {
		add("date >= $%d", f.From.Time)
	}
	if !f.To.IsZero() {
		add("date <= $%d", f.To.Time)
	}
	if !f.IncludeTrashed {
		add("status <> $%d", string(staff.StatusTrashed))
	}

	query := "SELECT " + entryColumns + " FROM entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var out []staff.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (staff.TimeEntry, error) {
	var (
		e                                  staff.TimeEntry
		id, empID, kind, svcID, status     string
		day                                time.Time
		hours, adjustment, rateUsed, total string
		override                           *string
		leaveJSON                          []byte
	)
	err := row.Scan(&id, &empID, &day, &kind, &hours, &svcID, &e.Meetings, &e.Students,
		&adjustment, &leaveJSON, &override, &rateUsed, &total, &e.Payable,
		&e.UsedFallbackRate, &e.Notes, &status, &e.DeletedAt, &e.CreatedAt)
	if err != nil {
		return staff.TimeEntry{}, err
	}
	e.ID = generic.EntryID(id)
	e.EmployeeID = generic.EmployeeID(empID)
	e.Date = generic.DateOf(day)
	e.Kind = staff.EntryKind(kind)
	e.ServiceID = generic.ServiceID(svcID)
	e.Status = staff.EntryStatus(status)
	e.Hours = generic.MustParseDecimal(hours)
	e.Adjustment = generic.MustParseDecimal(adjustment)
	e.RateUsed = generic.MustParseDecimal(rateUsed)
	e.TotalPayment = generic.MustParseDecimal(total)
	if override != nil {
		d := generic.MustParseDecimal(*override)
		e.LeaveValueOverride = &d
	}
	if len(leaveJSON) > 0 {
		var seg staff.LeaveSegment
		if err := json.Unmarshal(leaveJSON, &seg); err != nil {
			return staff.TimeEntry{}, fmt.Errorf("failed to unmarshal leave segment of %s: %w", id, err)
		}
		e.Leave = &seg
	}
	return e, nil
}

func (r repo) SetEntryStatus(ctx context.Context, id generic.EntryID, status staff.EntryStatus, deletedAt *time.Time) error {
	tag, err := r.q.Exec(ctx, "UPDATE entries SET status = $1, deleted_at = $2 WHERE id = $3",
		string(status), deletedAt, string(id))
	if err != nil {
		return fmt.Errorf("failed to update entry status: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", generic.ErrEntryNotFound, id)
	}
	return nil
}

func (r repo) DeleteEntries(ctx context.Context, ids []generic.EntryID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	if _, err := r.q.Exec(ctx, "DELETE FROM entries WHERE id = ANY($1)", raw); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

// =============================================================================
// LEAVE LEDGER
// =============================================================================

func (r repo) AppendLedger(ctx context.Context, entries []generic.LedgerEntry) error {
	query := `
		INSERT INTO leave_ledger (id, employee_id, date, delta_value, delta_unit, kind, category,
			reference_id, reason, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.q.Exec(ctx, query,
			string(e.ID), string(e.EmployeeID), e.Date.Time, e.Delta.Value.String(), string(e.Delta.Unit),
			string(e.Kind), nullable(string(e.Category)), nullable(e.ReferenceID), nullable(e.Reason),
			nullable(e.IdempotencyKey), createdAt,
		)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r repo) LoadLedger(ctx context.Context, employeeID generic.EmployeeID) ([]generic.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, employee_id, date, delta_value::text, delta_unit, kind, coalesce(category, ''),
		       coalesce(reference_id, ''), coalesce(reason, ''), coalesce(idempotency_key, ''), created_at
		FROM leave_ledger
		WHERE employee_id = $1
		ORDER BY date, seq`, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []generic.LedgerEntry
	for rows.Next() {
		var (
			e                                 generic.LedgerEntry
			id, empID, value, unit, kind, cat string
			day                               time.Time
		)
		if err := rows.Scan(&id, &empID, &day, &value, &unit, &kind, &cat,
			&e.ReferenceID, &e.Reason, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = generic.LedgerEntryID(id)
		e.EmployeeID = generic.EmployeeID(empID)
		e.Date = generic.DateOf(day)
		e.Delta = generic.Amount{Value: generic.MustParseDecimal(value), Unit: generic.Unit(unit)}
		e.Kind = generic.LedgerKind(kind)
		e.Category = generic.LeaveCategory(cat)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r repo) LedgerKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM leave_ledger WHERE idempotency_key = $1)", key).Scan(&exists)
	return exists, err
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// SaveReconciliationRun upserts the run for (employee, year).
func (s *Store) SaveReconciliationRun(ctx context.Context, run leave.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reconciliation_runs (id, employee_id, year, status, carried_over, expired, error, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)
		ON CONFLICT (employee_id, year) DO UPDATE SET
			status = EXCLUDED.status,
			carried_over = EXCLUDED.carried_over,
			expired = EXCLUDED.expired,
			error = EXCLUDED.error,
			created_at = EXCLUDED.created_at`,
		run.ID, string(run.EmployeeID), run.Year, run.Status,
		run.CarriedOver.String(), run.Expired.String(), nullable(run.Error), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation run: %w", err)
	}
	return nil
}

func (s *Store) ReconciliationRuns(ctx context.Context, year int) ([]leave.Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, employee_id, year, status, carried_over::text, expired::text, coalesce(error, ''), created_at
		FROM reconciliation_runs
		WHERE year = $1
		ORDER BY employee_id`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation runs: %w", err)
	}
	defer rows.Close()

	var out []leave.Run
	for rows.Next() {
		var (
			run                 leave.Run
			empID, carried, exp string
		)
		if err := rows.Scan(&run.ID, &empID, &run.Year, &run.Status, &carried, &exp, &run.Error, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.EmployeeID = generic.EmployeeID(empID)
		run.CarriedOver = generic.MustParseDecimal(carried)
		run.Expired = generic.MustParseDecimal(exp)
		out = append(out, run)
	}
	return out, rows.Err()
}

// Reset empties every table. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE employees, services, rates, entries, leave_ledger, reconciliation_runs`)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapError translates PostgreSQL error codes into engine sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		if strings.Contains(pgErr.ConstraintName, "idempotency_key") {
			return generic.ErrDuplicateIdempotencyKey
		}
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return fmt.Errorf("%w: %s", generic.ErrConcurrentModification, pgErr.Message)
	}
	return err
}

var (
	_ staff.TxStore  = (*Store)(nil)
	_ staff.Store    = repo{}
	_ leave.RunStore = (*Store)(nil)
	_ Querier        = (*pgxpool.Pool)(nil)
)
