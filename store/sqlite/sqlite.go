/*
Package sqlite provides a SQLite-backed implementation of staff.Store.

PURPOSE:
  Persists employees, services, rate history, time entries and the leave
  ledger. The same statements run against *sql.DB and *sql.Tx, so every
  method works inside WithTx unchanged.

APPEND-ONLY TABLES:
  rates:  never updated; seq (AUTOINCREMENT) is the write order used to
          break same-day ties.
  ledger: never updated or deleted; corrections are reversal rows.
          idempotency_key is UNIQUE, so a replayed write fails with
          generic.ErrDuplicateIdempotencyKey.

ENTRIES:
  Time entries change only through status (active/trashed). Rows are
  deleted only by the compensating write of a failed non-transactional
  commit, which this store never needs since it implements WithTx.

KEY TABLES:
  employees, services, rates, entries, ledger, reconciliation_runs

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx holds the write lock for the
  whole transaction, which serializes saves for the same (employee, date).

USAGE:
  store, err := sqlite.New("./data/pay.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := pipeline.NewService(store, leavePolicy, payPolicy, calendar)

SEE ALSO:
  - staff/store.go: interface definitions
  - store/memory: in-memory implementation for tests
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/staff"
)

// Store implements staff.TxStore using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	conn conn
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, conn: conn{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		employment_scope TEXT,
		annual_leave_days TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		payment_model TEXT NOT NULL
	);

	-- Rate history (append-only)
	CREATE TABLE IF NOT EXISTS rates (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		rate TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rates_employee
		ON rates(employee_id, service_id, effective_date);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		hours TEXT NOT NULL DEFAULT '0',
		service_id TEXT,
		meetings INTEGER NOT NULL DEFAULT 0,
		students INTEGER NOT NULL DEFAULT 0,
		adjustment TEXT NOT NULL DEFAULT '0',
		leave_json TEXT,
		leave_value_override TEXT,
		rate_used TEXT NOT NULL DEFAULT '0',
		total_payment TEXT NOT NULL DEFAULT '0',
		payable INTEGER NOT NULL DEFAULT 1,
		used_fallback_rate INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		status TEXT NOT NULL,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Entry-set lookups: (employee, date) is the conflict and idempotency scope
	CREATE INDEX IF NOT EXISTS idx_entries_employee_date
		ON entries(employee_id, date, status);

	-- Leave ledger (append-only)
	CREATE TABLE IF NOT EXISTS ledger (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		kind TEXT NOT NULL,
		category TEXT,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_employee_date
		ON ledger(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_ledger_reference
		ON ledger(reference_id) WHERE reference_id IS NOT NULL;

	-- Year-end reconciliation tracking
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		status TEXT NOT NULL,
		carried_over TEXT NOT NULL DEFAULT '0',
		expired TEXT NOT NULL DEFAULT '0',
		error TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, year)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIER - *sql.DB and *sql.Tx share one code path
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs every statement against q without locking.
type conn struct {
	q querier
}

// =============================================================================
// EMPLOYEES AND SERVICES
// =============================================================================

func (c conn) SaveEmployee(ctx context.Context, emp staff.Employee) error {
	var scope sql.NullString
	if emp.EmploymentScope != nil {
		scope = sql.NullString{String: emp.EmploymentScope.String(), Valid: true}
	}
	query := `
		INSERT INTO employees (id, name, type, start_date, is_active, employment_scope, annual_leave_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			start_date = excluded.start_date,
			is_active = excluded.is_active,
			employment_scope = excluded.employment_scope,
			annual_leave_days = excluded.annual_leave_days
	`
	_, err := c.q.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Type, emp.StartDate.String(), emp.IsActive, scope,
		emp.AnnualLeaveDays.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, type, start_date, is_active, employment_scope, annual_leave_days`

func (c conn) GetEmployee(ctx context.Context, id generic.EmployeeID) (staff.Employee, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return staff.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return emp, err
}

func (c conn) ListEmployees(ctx context.Context) ([]staff.Employee, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
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

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (staff.Employee, error) {
	var (
		emp       staff.Employee
		startDate string
		scope     sql.NullString
		annual    string
	)
	if err := row.Scan(&emp.ID, &emp.Name, &emp.Type, &startDate, &emp.IsActive, &scope, &annual); err != nil {
		return staff.Employee{}, err
	}
	var f fields
	emp.StartDate = f.date("start_date", startDate)
	emp.AnnualLeaveDays = f.decimal("annual_leave_days", annual)
	if scope.Valid {
		d := f.decimal("employment_scope", scope.String)
		emp.EmploymentScope = &d
	}
	if f.err != nil {
		return staff.Employee{}, fmt.Errorf("employee %s: %w", emp.ID, f.err)
	}
	return emp, nil
}

func (c conn) SaveService(ctx context.Context, svc staff.ServiceContext) error {
	query := `
		INSERT INTO services (id, name, duration_minutes, payment_model)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			duration_minutes = excluded.duration_minutes,
			payment_model = excluded.payment_model
	`
	_, err := c.q.ExecContext(ctx, query, svc.ID, svc.Name, svc.DurationMinutes, svc.PaymentModel)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

func (c conn) ListServices(ctx context.Context) ([]staff.ServiceContext, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id, name, duration_minutes, payment_model FROM services ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var out []staff.ServiceContext
	for rows.Next() {
		var svc staff.ServiceContext
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.PaymentModel); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// =============================================================================
// RATES
// =============================================================================

func (c conn) AppendRate(ctx context.Context, rec staff.RateRecord) (staff.RateRecord, error) {
	if err := rec.Validate(); err != nil {
		return staff.RateRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := c.q.ExecContext(ctx, `
		INSERT INTO rates (id, employee_id, service_id, effective_date, rate, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmployeeID, rec.ServiceID, rec.EffectiveDate.String(), rec.Rate.String(),
		nullString(rec.Notes), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return staff.RateRecord{}, fmt.Errorf("failed to append rate: %w", err)
	}
	if rec.Seq, err = res.LastInsertId(); err != nil {
		return staff.RateRecord{}, err
	}
	return rec, nil
}

func (c conn) ListRates(ctx context.Context, employeeID generic.EmployeeID) ([]staff.RateRecord, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT seq, id, employee_id, service_id, effective_date, rate, notes, created_at
		FROM rates WHERE employee_id = ? ORDER BY seq ASC`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var out []staff.RateRecord
	for rows.Next() {
		var (
			rec                     staff.RateRecord
			effective, rate, create string
			notes                   sql.NullString
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.EmployeeID, &rec.ServiceID, &effective, &rate, &notes, &create); err != nil {
			return nil, err
		}
		var f fields
		rec.EffectiveDate = f.date("effective_date", effective)
		rec.Rate = f.decimal("rate", rate)
		rec.Notes = notes.String
		rec.CreatedAt = f.time("created_at", create)
		if f.err != nil {
			return nil, fmt.Errorf("rate %s: %w", rec.ID, f.err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

func (c conn) InsertEntries(ctx context.Context, entries []staff.TimeEntry) error {
	query := `
		INSERT INTO entries (id, employee_id, date, kind, hours, service_id, meetings, students,
			adjustment, leave_json, leave_value_override, rate_used, total_payment, payable,
			used_fallback_rate, notes, status, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		var leaveJSON, override sql.NullString
		if e.Leave != nil {
			raw, err := json.Marshal(e.Leave)
			if err != nil {
				return fmt.Errorf("failed to encode leave segment: %w", err)
			}
			leaveJSON = sql.NullString{String: string(raw), Valid: true}
		}
		if e.LeaveValueOverride != nil {
			override = sql.NullString{String: e.LeaveValueOverride.String(), Valid: true}
		}
		status := e.Status
		if status == "" {
			status = staff.StatusActive
		}

		_, err := c.q.ExecContext(ctx, query,
			e.ID, e.EmployeeID, e.Date.String(), e.Kind, e.Hours.String(), nullString(string(e.ServiceID)),
			e.Meetings, e.Students, e.Adjustment.String(), leaveJSON, override,
			e.RateUsed.String(), e.TotalPayment.String(), e.Payable, e.UsedFallbackRate,
			nullString(e.Notes), status, formatTimePtr(e.DeletedAt), e.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}
	return nil
}

const entryColumns = `id, employee_id, date, kind, hours, service_id, meetings, students,
	adjustment, leave_json, leave_value_override, rate_used, total_payment, payable,
	used_fallback_rate, notes, status, deleted_at, created_at`

func (c conn) GetEntry(ctx context.Context, id generic.EntryID) (staff.TimeEntry, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return staff.TimeEntry{}, fmt.Errorf("%w: %s", generic.ErrEntryNotFound, id)
	}
	return e, err
}

func (c conn) ListEntries(ctx context.Context, f staff.EntryFilter) ([]staff.TimeEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if !f.IncludeTrashed {
		where = append(where, "status <> ?")
		args = append(args, staff.StatusTrashed)
	}
	query := "SELECT " + entryColumns + " FROM entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid ASC"

	rows, err := c.q.QueryContext(ctx, query, args...)
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

func scanEntry(row scanner) (staff.TimeEntry, error) {
	var (
		e                                     staff.TimeEntry
		date, hours, adjustment, rate, total  string
		createdAt                             string
		serviceID, leaveJSON, override, notes sql.NullString
		deletedAt                             sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.EmployeeID, &date, &e.Kind, &hours, &serviceID, &e.Meetings, &e.Students,
		&adjustment, &leaveJSON, &override, &rate, &total, &e.Payable,
		&e.UsedFallbackRate, &notes, &e.Status, &deletedAt, &createdAt,
	)
	if err != nil {
		return staff.TimeEntry{}, err
	}

	var f fields
	e.Date = f.date("date", date)
	e.Hours = f.decimal("hours", hours)
	e.ServiceID = generic.ServiceID(serviceID.String)
	e.Adjustment = f.decimal("adjustment", adjustment)
	e.RateUsed = f.decimal("rate_used", rate)
	e.TotalPayment = f.decimal("total_payment", total)
	e.Notes = notes.String
	e.CreatedAt = f.time("created_at", createdAt)
	if leaveJSON.Valid {
		var seg staff.LeaveSegment
		if err := json.Unmarshal([]byte(leaveJSON.String), &seg); err != nil {
			return staff.TimeEntry{}, fmt.Errorf("failed to decode leave segment of %s: %w", e.ID, err)
		}
		e.Leave = &seg
	}
	if override.Valid {
		d := f.decimal("leave_value_override", override.String)
		e.LeaveValueOverride = &d
	}
	if deletedAt.Valid {
		t := f.time("deleted_at", deletedAt.String)
		e.DeletedAt = &t
	}
	if f.err != nil {
		return staff.TimeEntry{}, fmt.Errorf("entry %s: %w", e.ID, f.err)
	}
	return e, nil
}

func (c conn) SetEntryStatus(ctx context.Context, id generic.EntryID, status staff.EntryStatus, deletedAt *time.Time) error {
	res, err := c.q.ExecContext(ctx, "UPDATE entries SET status = ?, deleted_at = ? WHERE id = ?",
		status, formatTimePtr(deletedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update entry status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrEntryNotFound, id)
	}
	return nil
}

func (c conn) DeleteEntries(ctx context.Context, ids []generic.EntryID) error {
	for _, id := range ids {
		if _, err := c.q.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete entry %s: %w", id, err)
		}
	}
	return nil
}

// =============================================================================
// LEAVE LEDGER
// =============================================================================

func (c conn) AppendLedger(ctx context.Context, entries []generic.LedgerEntry) error {
	query := `
		INSERT INTO ledger (id, employee_id, date, delta_value, delta_unit, kind, category,
			reference_id, reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := c.q.ExecContext(ctx, query,
			e.ID, e.EmployeeID, e.Date.String(), e.Delta.Value.String(), e.Delta.Unit, e.Kind,
			nullString(string(e.Category)), nullString(e.ReferenceID), nullString(e.Reason),
			nullString(e.IdempotencyKey), createdAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return generic.ErrDuplicateIdempotencyKey
			}
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}
	return nil
}

func (c conn) LoadLedger(ctx context.Context, employeeID generic.EmployeeID) ([]generic.LedgerEntry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, employee_id, date, delta_value, delta_unit, kind, category,
		       reference_id, reason, idempotency_key, created_at
		FROM ledger
		WHERE employee_id = ?
		ORDER BY date ASC, rowid ASC`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []generic.LedgerEntry
	for rows.Next() {
		var (
			e                                    generic.LedgerEntry
			date, value, unit, createdAt         string
			category, reference, reason, idemKey sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &date, &value, &unit, &e.Kind, &category,
			&reference, &reason, &idemKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		var f fields
		e.Date = f.date("date", date)
		e.Delta = generic.Amount{Value: f.decimal("delta_value", value), Unit: generic.Unit(unit)}
		e.Category = generic.LeaveCategory(category.String)
		e.ReferenceID = reference.String
		e.Reason = reason.String
		e.IdempotencyKey = idemKey.String
		e.CreatedAt = f.time("created_at", createdAt)
		if f.err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", e.ID, f.err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c conn) LedgerKeyExists(ctx context.Context, key string) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger WHERE idempotency_key = ?", key).Scan(&count)
	return count > 0, err
}

// =============================================================================
// STORE (locked access to conn)
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp staff.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.SaveEmployee(ctx, emp)
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (staff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context) ([]staff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.ListEmployees(ctx)
}

func (s *Store) SaveService(ctx context.Context, svc staff.ServiceContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.SaveService(ctx, svc)
}

func (s *Store) ListServices(ctx context.Context) ([]staff.ServiceContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.ListServices(ctx)
}

func (s *Store) AppendRate(ctx context.Context, rec staff.RateRecord) (staff.RateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.AppendRate(ctx, rec)
}

func (s *Store) ListRates(ctx context.Context, employeeID generic.EmployeeID) ([]staff.RateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.ListRates(ctx, employeeID)
}

// InsertEntries inserts all entries or none.
func (s *Store) InsertEntries(ctx context.Context, entries []staff.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(c conn) error { return c.InsertEntries(ctx, entries) })
}

func (s *Store) GetEntry(ctx context.Context, id generic.EntryID) (staff.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.GetEntry(ctx, id)
}

func (s *Store) ListEntries(ctx context.Context, filter staff.EntryFilter) ([]staff.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.ListEntries(ctx, filter)
}

func (s *Store) SetEntryStatus(ctx context.Context, id generic.EntryID, status staff.EntryStatus, deletedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.SetEntryStatus(ctx, id, status, deletedAt)
}

func (s *Store) DeleteEntries(ctx context.Context, ids []generic.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(c conn) error { return c.DeleteEntries(ctx, ids) })
}

// AppendLedger adds entries atomically.
func (s *Store) AppendLedger(ctx context.Context, entries []generic.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, e := range entries {
		if e.IdempotencyKey != "" {
			if keys[e.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[e.IdempotencyKey] = true
		}
	}
	return s.inTx(ctx, func(c conn) error { return c.AppendLedger(ctx, entries) })
}

func (s *Store) LoadLedger(ctx context.Context, employeeID generic.EmployeeID) ([]generic.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.LoadLedger(ctx, employeeID)
}

func (s *Store) LedgerKeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.LedgerKeyExists(ctx, key)
}

// inTx runs fn in a database transaction. The caller holds s.mu.
func (s *Store) inTx(ctx context.Context, fn func(conn) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(conn{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// TRANSACTIONAL STORE (staff.TxStore interface)
// =============================================================================

// WithTx executes fn within a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store staff.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(c conn) error {
		return fn(txStore{conn: c})
	})
}

// txStore is the Store seen inside WithTx. It must not take s.mu.
type txStore struct {
	conn
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// SaveReconciliationRun upserts the run for (employee, year).
func (s *Store) SaveReconciliationRun(ctx context.Context, r leave.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO reconciliation_runs (id, employee_id, year, status, carried_over, expired, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			status = excluded.status,
			carried_over = excluded.carried_over,
			expired = excluded.expired,
			error = excluded.error
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.Year, r.Status, r.CarriedOver.String(), r.Expired.String(),
		nullString(r.Error), r.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// ReconciliationRuns returns runs for a year, newest first.
func (s *Store) ReconciliationRuns(ctx context.Context, year int) ([]leave.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, year, status, carried_over, expired, error, created_at
		FROM reconciliation_runs WHERE year = ? ORDER BY created_at DESC, employee_id ASC`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []leave.Run
	for rows.Next() {
		var (
			r                           leave.Run
			carried, expired, createdAt string
			errText                     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Year, &r.Status, &carried, &expired, &errText, &createdAt); err != nil {
			return nil, err
		}
		var f fields
		r.CarriedOver = f.decimal("carried_over", carried)
		r.Expired = f.decimal("expired", expired)
		r.Error = errText.String
		r.CreatedAt = f.time("created_at", createdAt)
		if f.err != nil {
			return nil, fmt.Errorf("reconciliation run %s: %w", r.ID, f.err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Reset deletes all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"ledger", "entries", "rates", "services", "employees", "reconciliation_runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// fields decodes text columns, keeping the first error. A row with a column
// that does not parse is corrupt and fails the read.
type fields struct {
	err error
}

func (f *fields) fail(col, value string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("column %s: cannot parse %q: %w", col, value, err)
	}
}

func (f *fields) date(col, s string) generic.TimePoint {
	t, err := time.Parse(generic.DateLayout, s)
	if err != nil {
		f.fail(col, s, err)
	}
	return generic.DateOf(t)
}

func (f *fields) decimal(col, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		f.fail(col, s, err)
		return decimal.Zero
	}
	return d
}

func (f *fields) time(col, s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		f.fail(col, s, err)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ staff.TxStore  = (*Store)(nil)
	_ staff.Store    = txStore{}
	_ leave.RunStore = (*Store)(nil)
)
