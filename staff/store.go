package staff

import (
	"context"
	"time"

	"github.com/warp/staff-pay-engine/generic"
)

// =============================================================================
// STORE - Persistence for employees, rates, entries and the leave ledger
// =============================================================================

// Store is implemented by store/memory, store/sqlite and store/postgres.
// Rates and ledger entries are append-only. Time entries change only through
// status updates (trash/restore); DeleteEntries exists solely for the
// compensating write when a non-transactional commit fails half way.
type Store interface {
	generic.LedgerStore

	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id generic.EmployeeID) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	SaveService(ctx context.Context, svc ServiceContext) error
	ListServices(ctx context.Context) ([]ServiceContext, error)

	// AppendRate assigns Seq (and ID when empty) and returns the stored record.
	AppendRate(ctx context.Context, rec RateRecord) (RateRecord, error)
	// ListRates returns the employee's records in write order.
	ListRates(ctx context.Context, employeeID generic.EmployeeID) ([]RateRecord, error)

	InsertEntries(ctx context.Context, entries []TimeEntry) error
	GetEntry(ctx context.Context, id generic.EntryID) (TimeEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]TimeEntry, error)
	SetEntryStatus(ctx context.Context, id generic.EntryID, status EntryStatus, deletedAt *time.Time) error
	DeleteEntries(ctx context.Context, ids []generic.EntryID) error
}

// EntryFilter narrows ListEntries. Zero values mean "no restriction".
type EntryFilter struct {
	EmployeeID     generic.EmployeeID
	From           generic.TimePoint
	To             generic.TimePoint
	IncludeTrashed bool
}

// Matches applies the filter to one entry.
func (f EntryFilter) Matches(e TimeEntry) bool {
	if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	if !f.IncludeTrashed && !e.IsActive() {
		return false
	}
	return true
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
