package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }
func dec(s string) decimal.Decimal    { return decimal.RequireFromString(s) }

func TestEmployeeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	scope := dec("0.8")

	emp := staff.Employee{ID: "G1", Name: "Gil", Type: staff.Global, StartDate: date("2023-03-01"), IsActive: true, EmploymentScope: &scope, AnnualLeaveDays: dec("12")}
	require.NoError(t, s.SaveEmployee(ctx, emp))

	got, err := s.GetEmployee(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, "2023-03-01", got.StartDate.String())
	assert.Equal(t, "0.8", got.Scope().String())
	assert.Equal(t, "12", got.AnnualLeaveDays.String())

	// Upsert keeps one row
	emp.IsActive = false
	require.NoError(t, s.SaveEmployee(ctx, emp))
	all, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	_, err = s.GetEmployee(ctx, "nobody")
	assert.True(t, errors.Is(err, generic.ErrEmployeeNotFound))
}

func TestAppendRate_AssignsIncreasingSeq(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.AppendRate(ctx, staff.RateRecord{EmployeeID: "E1", ServiceID: staff.GenericServiceID, EffectiveDate: date("2024-01-01"), Rate: dec("50")})
	require.NoError(t, err)
	second, err := s.AppendRate(ctx, staff.RateRecord{EmployeeID: "E1", ServiceID: staff.GenericServiceID, EffectiveDate: date("2024-01-01"), Rate: dec("55")})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.Greater(t, second.Seq, first.Seq)

	rates, err := s.ListRates(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "55", rates[1].Rate.String())

	_, err = s.AppendRate(ctx, staff.RateRecord{EmployeeID: "E1", EffectiveDate: date("2024-01-01"), Rate: dec("-1")})
	assert.Error(t, err)
}

func TestEntries_LeaveSegmentAndStatus(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	override := dec("310")

	leaveEntry := staff.TimeEntry{
		ID: "a", EmployeeID: "E1", Date: date("2024-02-12"), Kind: staff.KindLeave,
		Leave:              staff.HalfDay(generic.CategoryEmployeeFunded, &staff.HalfCompanion{Kind: staff.CompanionWork}),
		LeaveValueOverride: &override, Payable: true, Status: staff.StatusActive, CreatedAt: time.Now().UTC(),
	}
	work := staff.TimeEntry{
		ID: "b", EmployeeID: "E1", Date: date("2024-02-12"), Kind: staff.KindHours, Hours: dec("4"),
		Payable: true, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertEntries(ctx, []staff.TimeEntry{leaveEntry, work}))

	got, err := s.GetEntry(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.Leave)
	assert.Equal(t, staff.PortionHalf, got.Leave.Portion)
	require.NotNil(t, got.Leave.Companion)
	assert.Equal(t, staff.CompanionWork, got.Leave.Companion.Kind)
	assert.Equal(t, "310", got.LeaveValueOverride.String())
	assert.True(t, got.IsActive())

	now := time.Now().UTC()
	require.NoError(t, s.SetEntryStatus(ctx, "a", staff.StatusTrashed, &now))

	active, err := s.ListEntries(ctx, staff.EntryFilter{EmployeeID: "E1"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, generic.EntryID("b"), active[0].ID)

	all, err := s.ListEntries(ctx, staff.EntryFilter{EmployeeID: "E1", IncludeTrashed: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].DeletedAt)

	outside, err := s.ListEntries(ctx, staff.EntryFilter{From: date("2024-03-01")})
	require.NoError(t, err)
	assert.Empty(t, outside)

	assert.True(t, errors.Is(s.SetEntryStatus(ctx, "zzz", staff.StatusActive, nil), generic.ErrEntryNotFound))
}

func TestCorruptColumnsFailTheRead(t *testing.T) {
	// GIVEN: A file store with one entry and one ledger row
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "staffpay.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.InsertEntries(ctx, []staff.TimeEntry{{
		ID: "a", EmployeeID: "E1", Date: date("2024-02-12"), Kind: staff.KindHours, Hours: dec("8"),
		TotalPayment: dec("400"), Payable: true, CreatedAt: time.Now().UTC(),
	}}))
	require.NoError(t, s.AppendLedger(ctx, []generic.LedgerEntry{{
		ID: "l1", EmployeeID: "E1", Date: date("2024-01-01"), Delta: generic.Days(dec("10")),
		Kind: generic.LedgerGrant, IdempotencyKey: "grant:E1",
	}}))

	// WHEN: Another writer leaves unparsable text behind
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	_, err = raw.ExecContext(ctx, "UPDATE entries SET total_payment = 'four hundred' WHERE id = 'a'")
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, "UPDATE ledger SET created_at = 'yesterday' WHERE id = 'l1'")
	require.NoError(t, err)

	// THEN: Reads fail naming the column instead of returning zero values
	_, err = s.GetEntry(ctx, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_payment")

	_, err = s.ListEntries(ctx, staff.EntryFilter{EmployeeID: "E1"})
	assert.Error(t, err)

	_, err = s.LoadLedger(ctx, "E1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")
}

func TestInsertEntries_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := staff.TimeEntry{ID: "dup", EmployeeID: "E1", Date: date("2024-02-12"), Kind: staff.KindHours, Hours: dec("1")}

	err := s.InsertEntries(ctx, []staff.TimeEntry{e, e})
	assert.Error(t, err)

	all, err := s.ListEntries(ctx, staff.EntryFilter{IncludeTrashed: true})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLedger_OrderAndIdempotency(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	row := func(id, d, key string, v string) generic.LedgerEntry {
		return generic.LedgerEntry{
			ID: generic.LedgerEntryID(id), EmployeeID: "E1", Date: date(d), Delta: generic.Days(dec(v)),
			Kind: generic.LedgerGrant, IdempotencyKey: key,
		}
	}
	require.NoError(t, s.AppendLedger(ctx, []generic.LedgerEntry{row("b", "2024-03-01", "k-b", "-1"), row("c", "2024-03-01", "k-c", "-0.5")}))
	require.NoError(t, s.AppendLedger(ctx, []generic.LedgerEntry{row("a", "2024-01-01", "k-a", "10")}))

	entries, err := s.LoadLedger(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, generic.LedgerEntryID("a"), entries[0].ID)
	assert.Equal(t, generic.LedgerEntryID("b"), entries[1].ID)
	assert.Equal(t, generic.LedgerEntryID("c"), entries[2].ID)
	assert.Equal(t, "8.5", generic.SumDeltas(entries, date("2024-12-31")).String())

	// A replayed key fails and the batch writes nothing
	err = s.AppendLedger(ctx, []generic.LedgerEntry{row("d", "2024-04-01", "k-d", "1"), row("e", "2024-04-01", "k-a", "1")})
	assert.True(t, errors.Is(err, generic.ErrDuplicateIdempotencyKey))

	exists, err := s.LedgerKeyExists(ctx, "k-d")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = s.LedgerKeyExists(ctx, "k-a")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(st staff.Store) error {
		if err := st.InsertEntries(ctx, []staff.TimeEntry{{ID: "x", EmployeeID: "E1", Date: date("2024-02-12"), Kind: staff.KindHours}}); err != nil {
			return err
		}
		// Visible inside the transaction
		if _, err := st.GetEntry(ctx, "x"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetEntry(ctx, "x")
	assert.True(t, errors.Is(err, generic.ErrEntryNotFound))
}

func TestReconciliationRuns(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveReconciliationRun(ctx, leave.Run{EmployeeID: "E1", Year: 2024, Status: "failed", Error: "timeout"}))
	require.NoError(t, s.SaveReconciliationRun(ctx, leave.Run{EmployeeID: "E1", Year: 2024, Status: "completed", CarriedOver: dec("5"), Expired: dec("2")}))

	runs, err := s.ReconciliationRuns(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, "5", runs[0].CarriedOver.String())
	assert.Empty(t, runs[0].Error)

	require.NoError(t, s.Reset(ctx))
	runs, err = s.ReconciliationRuns(ctx, 2024)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
