package staff

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/staff-pay-engine/generic"
)

// =============================================================================
// SNAPSHOT - Read-only inputs for one request
// =============================================================================

// Snapshot bundles everything an engine call reads. It is built once per
// request and never mutated by the engine, so there are no hidden caches.
type Snapshot struct {
	Employees map[generic.EmployeeID]Employee
	Services  map[generic.ServiceID]ServiceContext
	Rates     []RateRecord
	// Entries includes trashed entries; consumers filter with TimeEntry.IsActive.
	Entries []TimeEntry
	Ledger  []generic.LedgerEntry
}

// NewSnapshot indexes plain slices.
func NewSnapshot(employees []Employee, services []ServiceContext, rates []RateRecord, entries []TimeEntry, ledger []generic.LedgerEntry) *Snapshot {
	s := &Snapshot{
		Employees: make(map[generic.EmployeeID]Employee, len(employees)),
		Services:  make(map[generic.ServiceID]ServiceContext, len(services)),
		Rates:     rates,
		Entries:   entries,
		Ledger:    ledger,
	}
	for _, e := range employees {
		s.Employees[e.ID] = e
	}
	for _, svc := range services {
		s.Services[svc.ID] = svc
	}
	return s
}

func (s *Snapshot) Employee(id generic.EmployeeID) (Employee, bool) {
	e, ok := s.Employees[id]
	return e, ok
}

func (s *Snapshot) Service(id generic.ServiceID) (ServiceContext, bool) {
	svc, ok := s.Services[id]
	return svc, ok
}

// EmployeeIDs returns the employee ids in sorted order.
func (s *Snapshot) EmployeeIDs() []generic.EmployeeID {
	ids := make([]generic.EmployeeID, 0, len(s.Employees))
	for id := range s.Employees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EntriesFor returns every entry for the employee, trashed ones included.
func (s *Snapshot) EntriesFor(employeeID generic.EmployeeID) []TimeEntry {
	var out []TimeEntry
	for _, e := range s.Entries {
		if e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	return out
}

// ActiveEntriesOn returns active entries for the employee on date.
func (s *Snapshot) ActiveEntriesOn(employeeID generic.EmployeeID, date generic.TimePoint) []TimeEntry {
	var out []TimeEntry
	for _, e := range s.Entries {
		if e.EmployeeID == employeeID && e.Date.Equal(date) && e.IsActive() {
			out = append(out, e)
		}
	}
	return out
}

// LedgerFor returns the employee's ledger entries in stored order.
func (s *Snapshot) LedgerFor(employeeID generic.EmployeeID) []generic.LedgerEntry {
	var out []generic.LedgerEntry
	for _, e := range s.Ledger {
		if e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// LOADING
// =============================================================================

// LoadSnapshot fetches the inputs for the given employees (all when none are
// named). Entries and rates are loaded in full; the engine windows them itself.
func LoadSnapshot(ctx context.Context, store Store, employeeIDs ...generic.EmployeeID) (*Snapshot, error) {
	var employees []Employee
	if len(employeeIDs) == 0 {
		all, err := store.ListEmployees(ctx)
		if err != nil {
			return nil, fmt.Errorf("list employees: %w", err)
		}
		employees = all
	} else {
		for _, id := range employeeIDs {
			emp, err := store.GetEmployee(ctx, id)
			if err != nil {
				return nil, err
			}
			employees = append(employees, emp)
		}
	}

	services, err := store.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	var (
		rates   []RateRecord
		entries []TimeEntry
		ledger  []generic.LedgerEntry
	)
	for _, emp := range employees {
		r, err := store.ListRates(ctx, emp.ID)
		if err != nil {
			return nil, fmt.Errorf("list rates for %s: %w", emp.ID, err)
		}
		rates = append(rates, r...)

		e, err := store.ListEntries(ctx, EntryFilter{EmployeeID: emp.ID, IncludeTrashed: true})
		if err != nil {
			return nil, fmt.Errorf("list entries for %s: %w", emp.ID, err)
		}
		entries = append(entries, e...)

		l, err := store.LoadLedger(ctx, emp.ID)
		if err != nil {
			return nil, fmt.Errorf("load ledger for %s: %w", emp.ID, err)
		}
		ledger = append(ledger, l...)
	}

	return NewSnapshot(employees, services, rates, entries, ledger), nil
}
