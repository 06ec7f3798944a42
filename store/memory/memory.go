// Package memory provides in-memory staff.Store implementations (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// STATE - Plain maps, no locking
// =============================================================================

type state struct {
	employees   map[generic.EmployeeID]staff.Employee
	services    map[generic.ServiceID]staff.ServiceContext
	rates       map[generic.EmployeeID][]staff.RateRecord
	rateSeq     int64
	entries     map[generic.EntryID]staff.TimeEntry
	entryOrder  []generic.EntryID
	ledger      map[generic.EmployeeID][]generic.LedgerEntry
	idempotency map[string]bool
	runs        map[string]leave.Run
}

func newState() *state {
	return &state{
		employees:   make(map[generic.EmployeeID]staff.Employee),
		services:    make(map[generic.ServiceID]staff.ServiceContext),
		rates:       make(map[generic.EmployeeID][]staff.RateRecord),
		entries:     make(map[generic.EntryID]staff.TimeEntry),
		ledger:      make(map[generic.EmployeeID][]generic.LedgerEntry),
		idempotency: make(map[string]bool),
		runs:        make(map[string]leave.Run),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.rates {
		c.rates[k] = append([]staff.RateRecord{}, v...)
	}
	c.rateSeq = s.rateSeq
	for k, v := range s.entries {
		c.entries[k] = v
	}
	c.entryOrder = append([]generic.EntryID{}, s.entryOrder...)
	for k, v := range s.ledger {
		c.ledger[k] = append([]generic.LedgerEntry{}, v...)
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.runs {
		c.runs[k] = v
	}
	return c
}

func (s *state) saveEmployee(emp staff.Employee) {
	s.employees[emp.ID] = emp
}

func (s *state) getEmployee(id generic.EmployeeID) (staff.Employee, error) {
	emp, ok := s.employees[id]
	if !ok {
		return staff.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return emp, nil
}

func (s *state) listEmployees() []staff.Employee {
	out := make([]staff.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) listServices() []staff.ServiceContext {
	out := make([]staff.ServiceContext, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) appendRate(rec staff.RateRecord) (staff.RateRecord, error) {
	if err := rec.Validate(); err != nil {
		return staff.RateRecord{}, err
	}
	s.rateSeq++
	rec.Seq = s.rateSeq
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.rates[rec.EmployeeID] = append(s.rates[rec.EmployeeID], rec)
	return rec, nil
}

func (s *state) insertEntries(entries []staff.TimeEntry) error {
	for _, e := range entries {
		if _, exists := s.entries[e.ID]; exists {
			return fmt.Errorf("entry %s already exists", e.ID)
		}
	}
	for _, e := range entries {
		s.entries[e.ID] = e
		s.entryOrder = append(s.entryOrder, e.ID)
	}
	return nil
}

func (s *state) getEntry(id generic.EntryID) (staff.TimeEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return staff.TimeEntry{}, fmt.Errorf("%w: %s", generic.ErrEntryNotFound, id)
	}
	return e, nil
}

func (s *state) listEntries(f staff.EntryFilter) []staff.TimeEntry {
	var out []staff.TimeEntry
	for _, id := range s.entryOrder {
		if e := s.entries[id]; f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *state) setEntryStatus(id generic.EntryID, status staff.EntryStatus, deletedAt *time.Time) error {
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrEntryNotFound, id)
	}
	e.Status = status
	e.DeletedAt = deletedAt
	s.entries[id] = e
	return nil
}

func (s *state) deleteEntries(ids []generic.EntryID) {
	drop := make(map[generic.EntryID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(s.entries, id)
	}
	kept := s.entryOrder[:0]
	for _, id := range s.entryOrder {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.entryOrder = kept
}

func (s *state) appendLedger(entries []generic.LedgerEntry) error {
	for _, e := range entries {
		if e.IdempotencyKey != "" && s.idempotency[e.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
	}
	for _, e := range entries {
		list := s.ledger[e.EmployeeID]
		// After the last entry on the same date, so write order breaks ties.
		i := sort.Search(len(list), func(i int) bool {
			return list[i].Date.After(e.Date)
		})
		list = append(list, generic.LedgerEntry{})
		copy(list[i+1:], list[i:])
		list[i] = e
		s.ledger[e.EmployeeID] = list
		if e.IdempotencyKey != "" {
			s.idempotency[e.IdempotencyKey] = true
		}
	}
	return nil
}

func (s *state) loadLedger(id generic.EmployeeID) []generic.LedgerEntry {
	return append([]generic.LedgerEntry{}, s.ledger[id]...)
}

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

func New() *Memory {
	return &Memory{st: newState()}
}

func (m *Memory) SaveEmployee(_ context.Context, emp staff.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveEmployee(emp)
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (staff.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getEmployee(id)
}

func (m *Memory) ListEmployees(_ context.Context) ([]staff.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listEmployees(), nil
}

func (m *Memory) SaveService(_ context.Context, svc staff.ServiceContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.services[svc.ID] = svc
	return nil
}

func (m *Memory) ListServices(_ context.Context) ([]staff.ServiceContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listServices(), nil
}

func (m *Memory) AppendRate(_ context.Context, rec staff.RateRecord) (staff.RateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendRate(rec)
}

func (m *Memory) ListRates(_ context.Context, employeeID generic.EmployeeID) ([]staff.RateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]staff.RateRecord{}, m.st.rates[employeeID]...), nil
}

func (m *Memory) InsertEntries(_ context.Context, entries []staff.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insertEntries(entries)
}

func (m *Memory) GetEntry(_ context.Context, id generic.EntryID) (staff.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getEntry(id)
}

func (m *Memory) ListEntries(_ context.Context, filter staff.EntryFilter) ([]staff.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listEntries(filter), nil
}

func (m *Memory) SetEntryStatus(_ context.Context, id generic.EntryID, status staff.EntryStatus, deletedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.setEntryStatus(id, status, deletedAt)
}

func (m *Memory) DeleteEntries(_ context.Context, ids []generic.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.deleteEntries(ids)
	return nil
}

// AppendLedger adds entries atomically: either all keys are new or nothing is written.
func (m *Memory) AppendLedger(_ context.Context, entries []generic.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendLedger(entries)
}

func (m *Memory) LoadLedger(_ context.Context, employeeID generic.EmployeeID) ([]generic.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.loadLedger(employeeID), nil
}

func (m *Memory) LedgerKeyExists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.idempotency[key], nil
}

// SaveReconciliationRun upserts the run for (employee, year).
func (m *Memory) SaveReconciliationRun(_ context.Context, r leave.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.st.runs[fmt.Sprintf("%s|%d", r.EmployeeID, r.Year)] = r
	return nil
}

// ReconciliationRuns returns runs for a year ordered by employee.
func (m *Memory) ReconciliationRuns(_ context.Context, year int) ([]leave.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.Run
	for _, r := range m.st.runs {
		if r.Year == year {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = newState()
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTx() *TxMemory {
	return &TxMemory{Memory: New()}
}

// WithTx executes fn against a copy of the state and swaps it in only when fn
// succeeds. Other callers block until the transaction ends.
func (tm *TxMemory) WithTx(_ context.Context, fn func(staff.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	work := tm.st.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	tm.st = work
	return nil
}

// view is the unlocked store handed to a transaction body.
type view struct {
	st *state
}

func (v *view) SaveEmployee(_ context.Context, emp staff.Employee) error {
	v.st.saveEmployee(emp)
	return nil
}

func (v *view) GetEmployee(_ context.Context, id generic.EmployeeID) (staff.Employee, error) {
	return v.st.getEmployee(id)
}

func (v *view) ListEmployees(_ context.Context) ([]staff.Employee, error) {
	return v.st.listEmployees(), nil
}

func (v *view) SaveService(_ context.Context, svc staff.ServiceContext) error {
	v.st.services[svc.ID] = svc
	return nil
}

func (v *view) ListServices(_ context.Context) ([]staff.ServiceContext, error) {
	return v.st.listServices(), nil
}

func (v *view) AppendRate(_ context.Context, rec staff.RateRecord) (staff.RateRecord, error) {
	return v.st.appendRate(rec)
}

func (v *view) ListRates(_ context.Context, employeeID generic.EmployeeID) ([]staff.RateRecord, error) {
	return append([]staff.RateRecord{}, v.st.rates[employeeID]...), nil
}

func (v *view) InsertEntries(_ context.Context, entries []staff.TimeEntry) error {
	return v.st.insertEntries(entries)
}

func (v *view) GetEntry(_ context.Context, id generic.EntryID) (staff.TimeEntry, error) {
	return v.st.getEntry(id)
}

func (v *view) ListEntries(_ context.Context, filter staff.EntryFilter) ([]staff.TimeEntry, error) {
	return v.st.listEntries(filter), nil
}

func (v *view) SetEntryStatus(_ context.Context, id generic.EntryID, status staff.EntryStatus, deletedAt *time.Time) error {
	return v.st.setEntryStatus(id, status, deletedAt)
}

func (v *view) DeleteEntries(_ context.Context, ids []generic.EntryID) error {
	v.st.deleteEntries(ids)
	return nil
}

func (v *view) AppendLedger(_ context.Context, entries []generic.LedgerEntry) error {
	return v.st.appendLedger(entries)
}

func (v *view) LoadLedger(_ context.Context, employeeID generic.EmployeeID) ([]generic.LedgerEntry, error) {
	return v.st.loadLedger(employeeID), nil
}

func (v *view) LedgerKeyExists(_ context.Context, key string) (bool, error) {
	return v.st.idempotency[key], nil
}

var (
	_ staff.Store    = (*Memory)(nil)
	_ staff.TxStore  = (*TxMemory)(nil)
	_ staff.Store    = (*view)(nil)
	_ leave.RunStore = (*Memory)(nil)
)
