package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/pipeline"
	"github.com/warp/staff-pay-engine/report"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/store/memory"
	"github.com/warp/staff-pay-engine/valuation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }
func dec(s string) decimal.Decimal    { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	store staff.Store
	svc   *pipeline.Service
}

func newFixture(t *testing.T, store staff.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, staff.Employee{
		ID: "E1", Name: "Dana", Type: staff.Hourly, StartDate: date("2023-01-01"), IsActive: true,
	}))
	require.NoError(t, store.SaveEmployee(ctx, staff.Employee{
		ID: "G1", Name: "Gil", Type: staff.Global, StartDate: date("2023-01-01"), IsActive: true,
	}))
	_, err := store.AppendRate(ctx, staff.RateRecord{
		EmployeeID: "E1", ServiceID: staff.GenericServiceID, EffectiveDate: date("2023-01-01"), Rate: dec("50"),
	})
	require.NoError(t, err)
	_, err = store.AppendRate(ctx, staff.RateRecord{
		EmployeeID: "G1", ServiceID: staff.GenericServiceID, EffectiveDate: date("2023-01-01"), Rate: dec("4200"),
	})
	require.NoError(t, err)

	svc := pipeline.NewService(store, leave.DefaultPolicy(), valuation.DefaultPayPolicy(), generic.Calendar{})
	svc.Now = func() time.Time { return fixedNow }
	return &fixture{ctx: ctx, store: store, svc: svc}
}

func (f *fixture) grant(t *testing.T, emp generic.EmployeeID, days string) {
	t.Helper()
	require.NoError(t, f.store.AppendLedger(f.ctx, []generic.LedgerEntry{{
		ID:             generic.LedgerEntryID("grant-" + string(emp)),
		EmployeeID:     emp,
		Date:           date("2024-01-01"),
		Delta:          generic.Days(dec(days)),
		Kind:           generic.LedgerGrant,
		IdempotencyKey: "grant:" + string(emp),
	}}))
}

func (f *fixture) balance(t *testing.T, emp generic.EmployeeID) string {
	t.Helper()
	bal, err := leave.NewLedger(f.svc.LeavePolicy, f.store).BalanceAt(f.ctx, emp, date("2024-12-31"))
	require.NoError(t, err)
	return bal.String()
}

func (f *fixture) active(t *testing.T, emp generic.EmployeeID, d string) []staff.TimeEntry {
	t.Helper()
	got, err := f.store.ListEntries(f.ctx, staff.EntryFilter{EmployeeID: emp, From: date(d), To: date(d)})
	require.NoError(t, err)
	return got
}

func (f *fixture) periodPay(t *testing.T, from, to string) string {
	t.Helper()
	snap, err := staff.LoadSnapshot(f.ctx, f.store)
	require.NoError(t, err)
	rng, err := generic.NewPeriod(date(from), date(to))
	require.NoError(t, err)
	totals, err := report.NewAggregator(f.svc.PayPolicy, f.svc.Calendar).Aggregate(snap, rng, report.Filters{})
	require.NoError(t, err)
	return totals.TotalPay.String()
}

func hours(h string) staff.TimeEntry {
	return staff.TimeEntry{Kind: staff.KindHours, Hours: dec(h)}
}

func leaveEntry(seg *staff.LeaveSegment) staff.TimeEntry {
	return staff.TimeEntry{Kind: staff.KindLeave, Leave: seg}
}

func workCompanion() *staff.HalfCompanion {
	return &staff.HalfCompanion{Kind: staff.CompanionWork}
}

func rejection(t *testing.T, err error) *pipeline.RejectionError {
	t.Helper()
	var rej *pipeline.RejectionError
	require.ErrorAs(t, err, &rej)
	return rej
}

// =============================================================================
// SAVE
// =============================================================================

func TestSave_HourlyWorkCommits(t *testing.T) {
	f := newFixture(t, memory.NewTx())

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})

	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCommitted, out.State)
	assert.Equal(t, "400", out.TotalPayment().String())

	stored := f.active(t, "E1", "2024-02-12")
	require.Len(t, stored, 1)
	assert.Equal(t, "50", stored[0].RateUsed.String())
	assert.Equal(t, "400", stored[0].TotalPayment.String())
	assert.True(t, stored[0].Payable)
}

func TestSave_GlobalWorkDayIsDailyRate(t *testing.T) {
	f := newFixture(t, memory.NewTx())

	// 4200 / 21 working days in February 2024
	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "G1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})

	require.NoError(t, err)
	assert.Equal(t, "200", out.TotalPayment().String())
}

func TestSave_GlobalSegmentsShareOneDailyRate(t *testing.T) {
	// GIVEN: G1 earns 200 a day in February 2024
	f := newFixture(t, memory.NewTx())

	// WHEN: Saving the day as two 4h segments
	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "G1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("4"), hours("4")},
	})

	// THEN: One segment carries the daily rate, the other is zero
	require.NoError(t, err)
	assert.Equal(t, "200", out.TotalPayment().String())
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "200", out.Entries[0].TotalPayment.String())
	assert.Equal(t, "0", out.Entries[1].TotalPayment.String())

	// AND: The stored amounts agree with the period report
	assert.Equal(t, "200", f.periodPay(t, "2024-02-01", "2024-02-29"))
}

func TestSave_GlobalHalfLeaveLeavesHalfTheDayForWork(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "G1", "10")

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "G1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{
			leaveEntry(staff.HalfDay(generic.CategoryEmployeeFunded, workCompanion())),
			hours("4"),
		},
	})

	require.NoError(t, err)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "100", out.Entries[0].TotalPayment.String())
	assert.Equal(t, "100", out.Entries[1].TotalPayment.String())
	assert.Equal(t, "200", f.periodPay(t, "2024-02-01", "2024-02-29"))
}

func TestSave_LeaveAndWorkSameDayRejected(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-10"),
		Entries: []staff.TimeEntry{leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded)), hours("8")},
	})

	rej := rejection(t, err)
	assert.True(t, errors.Is(err, generic.ErrLeaveWorkConflict))
	assert.Equal(t, pipeline.StateRejected, out.State)
	require.True(t, rej.Has(pipeline.CodeLeaveWorkConflict))
	assert.Contains(t, err.Error(), "E1")
	assert.Contains(t, err.Error(), "2024-02-10")
	assert.Empty(t, f.active(t, "E1", "2024-02-10"))
	assert.Equal(t, "10", f.balance(t, "E1"))
}

func TestSave_ConflictAgainstStoredEntries(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")

	_, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})
	require.NoError(t, err)

	// Leave arrives separately; the stored hours stay and conflict with it.
	_, err = f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded))},
	})
	assert.ErrorIs(t, err, generic.ErrLeaveWorkConflict)
}

func TestSave_EnumeratesEveryOffense(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")
	f.svc.LeavePolicy.AllowHalfDay = false

	_, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{
			hours("-2"),
			leaveEntry(staff.HalfDay(generic.CategoryEmployeeFunded, nil)),
			{Kind: staff.KindSession, ServiceID: "nope", Meetings: 1},
			{Kind: "overtime"},
		},
	})

	rej := rejection(t, err)
	for _, code := range []pipeline.Code{
		pipeline.CodeInvalidAmount,
		pipeline.CodeHalfDayNotAllowed,
		pipeline.CodeUnknownService,
		pipeline.CodeUnknownEntryKind,
		pipeline.CodeLeaveWorkConflict,
	} {
		assert.True(t, rej.Has(code), "missing %s in %v", code, rej)
	}
	assert.ErrorIs(t, err, generic.ErrHalfDayNotAllowed)
	assert.ErrorIs(t, err, generic.ErrServiceNotFound)
}

func TestSave_HalfDayWithWorkCompanion(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")

	// GIVEN: No work history, so leave falls back to 50 × 8h = 400 per day
	// WHEN: Half a day of leave paired with four hours of work
	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{
			leaveEntry(staff.HalfDay(generic.CategoryEmployeeFunded, workCompanion())),
			hours("4"),
		},
	})

	// THEN: Both halves are paid and half a day is debited
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCommitted, out.State)
	assert.Equal(t, "400", out.TotalPayment().String())
	assert.Equal(t, "9.5", f.balance(t, "E1"))
	require.NotEmpty(t, out.Warnings)
	assert.Equal(t, staff.ReasonFallbackRate, out.Warnings[0].Reason)
}

func TestSave_UnpaidLeaveDoesNotBlockWork(t *testing.T) {
	f := newFixture(t, memory.NewTx())

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{
			leaveEntry(staff.HalfDay(generic.CategoryUnpaid, nil)),
			hours("4"),
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "200", out.TotalPayment().String())
}

func TestSave_LeaveCreditExceeded(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")

	_, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{
			leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded)),
			leaveEntry(staff.HalfDay(generic.CategorySystemFunded, nil)),
		},
	})

	assert.ErrorIs(t, err, generic.ErrLeaveCreditExceeded)
}

func TestSave_InsufficientBalance(t *testing.T) {
	f := newFixture(t, memory.NewTx())

	_, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded))},
	})

	rej := rejection(t, err)
	assert.True(t, rej.Has(pipeline.CodeInsufficientBalance))
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	assert.Equal(t, "0", f.balance(t, "E1"))
}

func TestSave_SystemFundedLeaveNeedsNoBalance(t *testing.T) {
	f := newFixture(t, memory.NewTx())

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "G1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{leaveEntry(staff.FullDay(generic.CategorySystemFunded))},
	})

	require.NoError(t, err)
	assert.Equal(t, "200", out.TotalPayment().String())
	require.Len(t, out.LedgerEntries, 1)
	assert.True(t, out.LedgerEntries[0].Delta.IsZero())
	assert.Equal(t, "0", f.balance(t, "G1"))
}

func TestSave_PreStartAndInactiveRejected(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	require.NoError(t, f.store.SaveEmployee(f.ctx, staff.Employee{
		ID: "E2", Type: staff.Hourly, StartDate: date("2024-03-01"), IsActive: false,
	}))

	_, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E2", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})

	rej := rejection(t, err)
	assert.True(t, rej.Has(pipeline.CodeInvalidStartDate))
	assert.True(t, rej.Has(pipeline.CodeInactiveEmployee))
}

// =============================================================================
// CONFIRMATION AND IDEMPOTENT RETRY
// =============================================================================

func TestSave_FallbackNeedsConfirmationThenOverrideIsIdempotent(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")
	f.svc.PayPolicy.AllowSilentFallback = false
	d := date("2024-02-12")

	// WHEN: Leave cannot be valued from history
	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: d,
		Entries: []staff.TimeEntry{leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded))},
	})

	// THEN: Nothing is written and a suggestion is returned
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateNeedsConfirmation, out.State)
	require.Len(t, out.Confirmations, 1)
	assert.Equal(t, "400", out.Confirmations[0].SuggestedAmount.String())
	assert.Empty(t, f.active(t, "E1", "2024-02-12"))
	assert.Equal(t, "10", f.balance(t, "E1"))

	// WHEN: The caller confirms with an override, twice
	override := dec("300")
	confirmed := leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded))
	confirmed.LeaveValueOverride = &override
	req := pipeline.SaveRequest{EmployeeID: "E1", Date: d, Entries: []staff.TimeEntry{confirmed}}

	first, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCommitted, first.State)
	assert.Equal(t, "300", first.TotalPayment().String())

	second, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCommitted, second.State)
	require.Len(t, second.Replaced, 1)
	assert.Equal(t, first.Entries[0].ID, second.Replaced[0].ID)

	// THEN: One active entry, one day debited
	stored := f.active(t, "E1", "2024-02-12")
	require.Len(t, stored, 1)
	assert.Equal(t, "300", stored[0].TotalPayment.String())
	assert.Equal(t, "9", f.balance(t, "E1"))
}

func TestSave_OverrideOnUnvaluedLeaveRejected(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	override := dec("500")

	cases := []struct {
		name    string
		emp     generic.EmployeeID
		subtype generic.LeaveCategory
	}{
		{"salaried unpaid", "G1", generic.CategoryUnpaid},
		{"hourly unpaid", "E1", generic.CategoryUnpaid},
		{"hourly system-funded", "E1", generic.CategorySystemFunded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN: A leave day that is never paid, with a manual value
			day := leaveEntry(staff.FullDay(tc.subtype))
			day.LeaveValueOverride = &override

			// WHEN: Saving it
			out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
				EmployeeID: tc.emp, Date: date("2024-02-12"), Entries: []staff.TimeEntry{day},
			})

			// THEN: The override is rejected and nothing is paid or stored
			require.ErrorIs(t, err, generic.ErrInvalidAmount)
			assert.Equal(t, pipeline.StateRejected, out.State)
			assert.True(t, out.TotalPayment().IsZero())
			assert.Empty(t, f.active(t, tc.emp, "2024-02-12"))
		})
	}
}

func TestSave_SalariedSystemFundedOverrideApplies(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	day := leaveEntry(staff.FullDay(generic.CategorySystemFunded))
	override := dec("150")
	day.LeaveValueOverride = &override

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "G1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{day},
	})

	require.NoError(t, err)
	assert.Equal(t, "150", out.TotalPayment().String())
}

func TestPrepare_WritesNothing(t *testing.T) {
	f := newFixture(t, memory.NewTx())

	out, err := f.svc.Prepare(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})

	require.NoError(t, err)
	assert.Equal(t, pipeline.StateValidated, out.State)
	assert.Empty(t, f.active(t, "E1", "2024-02-12"))
}

// =============================================================================
// TRASH / RESTORE
// =============================================================================

func TestTrashRestore_LedgerSymmetry(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded))},
	})
	require.NoError(t, err)
	id := out.Entries[0].ID
	assert.Equal(t, "9", f.balance(t, "E1"))

	// Trash credits the day back, twice is a no-op
	trashed, err := f.svc.Trash(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, staff.StatusTrashed, trashed.Status)
	require.NotNil(t, trashed.DeletedAt)
	assert.Equal(t, "10", f.balance(t, "E1"))

	_, err = f.svc.Trash(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "10", f.balance(t, "E1"))

	// Restore debits it again under a fresh key
	restored, err := f.svc.Restore(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, staff.StatusActive, restored.Status)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, "9", f.balance(t, "E1"))

	ledger, err := f.store.LoadLedger(f.ctx, "E1")
	require.NoError(t, err)
	var kinds []generic.LedgerKind
	for _, e := range ledger {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []generic.LedgerKind{
		generic.LedgerGrant, generic.LedgerConsumption, generic.LedgerReversal, generic.LedgerConsumption,
	}, kinds)
	assert.Equal(t, leave.ConsumptionKey(id, 1), ledger[3].IdempotencyKey)
}

func TestRestore_RevalidatesTheDay(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "10")

	out, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded))},
	})
	require.NoError(t, err)
	_, err = f.svc.Trash(f.ctx, out.Entries[0].ID)
	require.NoError(t, err)

	_, err = f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})
	require.NoError(t, err)

	_, err = f.svc.Restore(f.ctx, out.Entries[0].ID)
	assert.ErrorIs(t, err, generic.ErrLeaveWorkConflict)
	assert.Equal(t, "10", f.balance(t, "E1"))
}

func TestRestore_ReplacedEntryCannotRejoinItsReplacement(t *testing.T) {
	// GIVEN: An 8h day replaced by a 6h save
	f := newFixture(t, memory.NewTx())
	first, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})
	require.NoError(t, err)
	_, err = f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("6")},
	})
	require.NoError(t, err)

	// WHEN: Restoring the replaced 8h entry
	_, err = f.svc.Restore(f.ctx, first.Entries[0].ID)

	// THEN: The restore is rejected and only the 6h entry stays active
	require.ErrorIs(t, err, generic.ErrEntrySetExists)
	assert.True(t, rejection(t, err).Has(pipeline.CodeEntrySetExists))
	stored := f.active(t, "E1", "2024-02-12")
	require.Len(t, stored, 1)
	assert.Equal(t, "6", stored[0].Hours.String())
	assert.Equal(t, "300", stored[0].TotalPayment.String())
}

func TestRestore_SucceedsOnceTheKeyIsFree(t *testing.T) {
	// GIVEN: A replaced entry whose replacement was trashed
	f := newFixture(t, memory.NewTx())
	first, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})
	require.NoError(t, err)
	second, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("6")},
	})
	require.NoError(t, err)
	_, err = f.svc.Trash(f.ctx, second.Entries[0].ID)
	require.NoError(t, err)

	// WHEN: Restoring the first entry
	_, err = f.svc.Restore(f.ctx, first.Entries[0].ID)

	// THEN: It is the only active entry
	require.NoError(t, err)
	stored := f.active(t, "E1", "2024-02-12")
	require.Len(t, stored, 1)
	assert.Equal(t, first.Entries[0].ID, stored[0].ID)
}

func TestTrash_UnknownEntry(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	_, err := f.svc.Trash(f.ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
}

// =============================================================================
// COMPENSATING WRITE
// =============================================================================

// failingLedger is a store without transactions whose ledger writes fail.
type failingLedger struct {
	*memory.Memory
}

var errLedgerDown = errors.New("ledger unavailable")

func (failingLedger) AppendLedger(context.Context, []generic.LedgerEntry) error {
	return errLedgerDown
}

func TestSave_CompensatesWhenLedgerWriteFails(t *testing.T) {
	store := failingLedger{Memory: memory.New()}
	f := newFixture(t, store)

	// GIVEN: Eight hours already stored (no ledger rows needed)
	first, err := f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{hours("8")},
	})
	require.NoError(t, err)

	// WHEN: A save that needs a ledger row replaces them
	_, err = f.svc.Save(f.ctx, pipeline.SaveRequest{
		EmployeeID: "E1", Date: date("2024-02-12"),
		Entries: []staff.TimeEntry{
			hours("4"),
			leaveEntry(staff.HalfDay(generic.CategorySystemFunded, workCompanion())),
		},
	})

	// THEN: The error surfaces and the original entry is active again
	assert.ErrorIs(t, err, errLedgerDown)
	stored := f.active(t, "E1", "2024-02-12")
	require.Len(t, stored, 1)
	assert.Equal(t, first.Entries[0].ID, stored[0].ID)
	assert.Equal(t, "8", stored[0].Hours.String())
}

// =============================================================================
// BATCH
// =============================================================================

func TestValidateBatch_AppliesEarlierRequests(t *testing.T) {
	f := newFixture(t, memory.NewTx())
	f.grant(t, "E1", "1")
	full := leaveEntry(staff.FullDay(generic.CategoryEmployeeFunded))

	outcomes, err := f.svc.ValidateBatch(f.ctx, []pipeline.SaveRequest{
		{EmployeeID: "E1", Date: date("2024-02-12"), Entries: []staff.TimeEntry{full}},
		{EmployeeID: "E1", Date: date("2024-02-13"), Entries: []staff.TimeEntry{full}},
		{EmployeeID: "E9", Date: date("2024-02-13"), Entries: []staff.TimeEntry{hours("1")}},
	})

	rej := rejection(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, pipeline.StateValidated, outcomes[0].State)
	assert.Equal(t, pipeline.StateRejected, outcomes[1].State)
	assert.Equal(t, pipeline.StateRejected, outcomes[2].State)
	assert.True(t, rej.Has(pipeline.CodeInsufficientBalance))
	assert.True(t, rej.Has(pipeline.CodeUnknownEmployee))
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)

	// Nothing was written
	assert.Empty(t, f.active(t, "E1", "2024-02-12"))
	assert.Equal(t, "1", f.balance(t, "E1"))
}
