package valuation_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/payment"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/valuation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }
func dec(s string) decimal.Decimal    { return decimal.RequireFromString(s) }

// windowCalendar returns 100 working days for windows of up to ~6 months and
// 200 for anything longer, so averages are easy to read.
type windowCalendar struct{}

func (windowCalendar) WorkingDaysIn(p generic.Period) int {
	if generic.DaysBetween(p.Start, p.End) > 190 {
		return 200
	}
	return 100
}

var hourly = staff.Employee{ID: "E1", Type: staff.Hourly, StartDate: date("2023-01-01"), IsActive: true}

func work(id string, d string, hours string) staff.TimeEntry {
	return staff.TimeEntry{
		ID: generic.EntryID(id), EmployeeID: "E1", Date: date(d), Kind: staff.KindHours,
		Hours: dec(hours), Payable: true, Status: staff.StatusActive,
	}
}

func resolver(policy valuation.PayPolicy, emp staff.Employee, entries []staff.TimeEntry, recs ...staff.RateRecord) *valuation.Resolver {
	snap := staff.NewSnapshot([]staff.Employee{emp}, nil, recs, entries, nil)
	return &valuation.Resolver{
		Policy:     policy,
		Employees:  snap,
		History:    snap,
		Calculator: payment.FromSnapshot(snap, generic.Calendar{}),
		Calendar:   windowCalendar{},
	}
}

func rate50() staff.RateRecord {
	return staff.RateRecord{EmployeeID: "E1", ServiceID: staff.GenericServiceID, EffectiveDate: date("2023-01-01"), Rate: dec("50")}
}

// tenRecentDays: 10 × 8h × 50 = 4000 inside the 6-month window before 2024-07-15.
func tenRecentDays() []staff.TimeEntry {
	var out []staff.TimeEntry
	for i := 0; i < 10; i++ {
		out = append(out, work(fmt.Sprintf("r%d", i), fmt.Sprintf("2024-03-%02d", i+4), "8"))
	}
	return out
}

// =============================================================================
// METHODS
// =============================================================================

func TestValueLeaveDay_LegalAveragesLookbackWindow(t *testing.T) {
	r := resolver(valuation.DefaultPayPolicy(), hourly, tenRecentDays(), rate50())

	v, err := r.ValueLeaveDay("E1", date("2024-07-15"))
	require.NoError(t, err)
	assert.Equal(t, "40", v.Amount.String())
	assert.False(t, v.UsedFallbackRate)
	assert.Equal(t, valuation.MethodLegal, v.Method)
	assert.Equal(t, 100, v.WindowDays)
}

func TestValueLeaveDay_Legal12MonthsIfBetter(t *testing.T) {
	// GIVEN: 20 busy days in autumn 2023, outside the 6-month window
	entries := tenRecentDays()
	for i := 0; i < 20; i++ {
		entries = append(entries, work(fmt.Sprintf("o%d", i), fmt.Sprintf("2023-09-%02d", i+1), "8"))
	}
	policy := valuation.DefaultPayPolicy()

	// WHEN: the 12-month comparison is disabled
	v, err := resolver(policy, hourly, entries, rate50()).ValueLeaveDay("E1", date("2024-07-15"))
	require.NoError(t, err)
	assert.Equal(t, "40", v.Amount.String())

	// WHEN: enabled, 12000 / 200 = 60 beats 40
	policy.Legal12MIfBetter = true
	v, err = resolver(policy, hourly, entries, rate50()).ValueLeaveDay("E1", date("2024-07-15"))
	require.NoError(t, err)
	assert.Equal(t, "60", v.Amount.String())
	assert.Equal(t, 200, v.WindowDays)
}

func TestValueLeaveDay_AverageIgnores12Months(t *testing.T) {
	entries := tenRecentDays()
	entries = append(entries, work("old", "2023-09-01", "800"))
	policy := valuation.DefaultPayPolicy()
	policy.DefaultMethod = valuation.MethodAverage
	policy.Legal12MIfBetter = true

	v, err := resolver(policy, hourly, entries, rate50()).ValueLeaveDay("E1", date("2024-07-15"))
	require.NoError(t, err)
	assert.Equal(t, "40", v.Amount.String())
	assert.Equal(t, valuation.MethodAverage, v.Method)
}

func TestValueLeaveDay_Fixed(t *testing.T) {
	policy := valuation.DefaultPayPolicy()
	policy.DefaultMethod = valuation.MethodFixed
	policy.FixedRateDefault = dec("321.5")

	v, err := resolver(policy, hourly, tenRecentDays(), rate50()).ValueLeaveDay("E1", date("2024-07-15"))
	require.NoError(t, err)
	assert.Equal(t, "321.5", v.Amount.String())
}

func TestValueLeaveDay_WindowExcludesLeaveAdjustmentsAndTrash(t *testing.T) {
	entries := tenRecentDays()
	trashed := work("t", "2024-04-01", "80")
	trashed.Status = staff.StatusTrashed
	entries = append(entries,
		trashed,
		staff.TimeEntry{ID: "adj", EmployeeID: "E1", Date: date("2024-04-02"), Kind: staff.KindAdjustment, Adjustment: dec("9999"), Payable: true},
		staff.TimeEntry{ID: "lv", EmployeeID: "E1", Date: date("2024-04-03"), Kind: staff.KindLeave, Leave: staff.FullDay(generic.CategoryEmployeeFunded), Payable: true},
		work("onday", "2024-07-15", "80"),
	)

	v, err := resolver(valuation.DefaultPayPolicy(), hourly, entries, rate50()).ValueLeaveDay("E1", date("2024-07-15"))
	require.NoError(t, err)
	assert.Equal(t, "40", v.Amount.String())
}

// =============================================================================
// FALLBACK
// =============================================================================

func TestValueLeaveDay_NewEmployeeFallsBackToCurrentRate(t *testing.T) {
	// GIVEN: A new hourly employee with no work history, legal method
	emp := hourly
	emp.StartDate = date("2024-05-01")
	rec := rate50()
	rec.EffectiveDate = date("2024-05-01")

	// WHEN: Valuing a leave day in the first month
	v, err := resolver(valuation.DefaultPayPolicy(), emp, nil, rec).ValueLeaveDay("E1", date("2024-05-20"))

	// THEN: current rate × standard day, flagged as fallback
	require.NoError(t, err)
	assert.True(t, v.UsedFallbackRate)
	assert.Equal(t, "400", v.Amount.String())
	assert.Equal(t, staff.ReasonFallbackRate, v.Reason)
}

func TestValueLeaveDay_FallbackWithoutRate(t *testing.T) {
	v, err := resolver(valuation.DefaultPayPolicy(), hourly, nil).ValueLeaveDay("E1", date("2024-05-20"))
	require.NoError(t, err)
	assert.True(t, v.UsedFallbackRate)
	assert.True(t, v.Amount.IsZero())
	assert.Equal(t, staff.ReasonNoRateDefined, v.Reason)
}

func TestValueLeaveDay_PreStartIsZero(t *testing.T) {
	v, err := resolver(valuation.DefaultPayPolicy(), hourly, nil, rate50()).ValueLeaveDay("E1", date("2022-05-20"))
	require.NoError(t, err)
	assert.True(t, v.Amount.IsZero())
	assert.Equal(t, staff.ReasonNotYetEmployed, v.Reason)
}

// =============================================================================
// ENTRY VALUER
// =============================================================================

func TestEntryValuer_HourlyLeaveRouting(t *testing.T) {
	r := resolver(valuation.DefaultPayPolicy(), hourly, tenRecentDays(), rate50())
	ev := valuation.NewEntryValuer(r)
	base := staff.TimeEntry{EmployeeID: "E1", Date: date("2024-07-15"), Kind: staff.KindLeave}

	half := base
	half.Leave = staff.HalfDay(generic.CategoryEmployeeFunded, nil)
	v, err := ev.Value(half, hourly)
	require.NoError(t, err)
	assert.Equal(t, "20", v.Amount.String())

	sys := base
	sys.Leave = staff.FullDay(generic.CategorySystemFunded)
	v, err = ev.Value(sys, hourly)
	require.NoError(t, err)
	assert.True(t, v.Amount.IsZero())
	assert.Equal(t, staff.ReasonSystemFunded, v.Reason)

	over := base
	over.Leave = staff.FullDay(generic.CategoryEmployeeFunded)
	o := dec("250")
	over.LeaveValueOverride = &o
	v, err = ev.Value(over, hourly)
	require.NoError(t, err)
	assert.Equal(t, "250", v.Amount.String())

	// Unpaid and system-funded days stay zero even with an override
	for _, sub := range []generic.LeaveCategory{generic.CategoryUnpaid, generic.CategorySystemFunded} {
		ignored := base
		ignored.Leave = staff.FullDay(sub)
		ignored.LeaveValueOverride = &o
		v, err = ev.Value(ignored, hourly)
		require.NoError(t, err)
		assert.True(t, v.Amount.IsZero(), sub)
		assert.NotEqual(t, staff.ReasonOverride, v.Reason, sub)
	}
}

func TestEntryValuer_WorkGoesToCalculator(t *testing.T) {
	ev := valuation.NewEntryValuer(resolver(valuation.DefaultPayPolicy(), hourly, nil, rate50()))

	v, err := ev.Value(work("w", "2024-01-15", "8"), hourly)
	require.NoError(t, err)
	assert.Equal(t, "400", v.Amount.String())
	assert.False(t, v.NeedsConfirmation())
}
