package payment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/payment"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }
func dec(s string) decimal.Decimal    { return decimal.RequireFromString(s) }

var (
	e1 = staff.Employee{ID: "E1", Type: staff.Hourly, StartDate: date("2024-01-01"), IsActive: true}
	g1 = staff.Employee{ID: "G1", Type: staff.Global, StartDate: date("2024-01-01"), IsActive: true}
	i1 = staff.Employee{ID: "I1", Type: staff.Instructor, StartDate: date("2024-01-01"), IsActive: true}

	piano = staff.ServiceContext{ID: "piano", Name: "Piano", DurationMinutes: 45, PaymentModel: staff.PerMeeting}
	choir = staff.ServiceContext{ID: "choir", Name: "Choir", DurationMinutes: 60, PaymentModel: staff.PerStudent}
)

func calculator(emps []staff.Employee, recs ...staff.RateRecord) *payment.Calculator {
	snap := staff.NewSnapshot(emps, []staff.ServiceContext{piano, choir}, recs, nil, nil)
	return payment.FromSnapshot(snap, generic.Calendar{})
}

func rate(emp generic.EmployeeID, svc generic.ServiceID, eff, r string) staff.RateRecord {
	return staff.RateRecord{EmployeeID: emp, ServiceID: svc, EffectiveDate: date(eff), Rate: dec(r)}
}

// =============================================================================
// HOURLY
// =============================================================================

func TestCompute_HourlyPay(t *testing.T) {
	// GIVEN: E1 hourly at 50 from 2024-01-01
	c := calculator([]staff.Employee{e1}, rate("E1", staff.GenericServiceID, "2024-01-01", "50"))

	// WHEN: 8 hours on 2024-01-15
	res, err := c.Compute(staff.TimeEntry{EmployeeID: "E1", Date: date("2024-01-15"), Kind: staff.KindHours, Hours: dec("8")}, e1)

	// THEN: 400
	require.NoError(t, err)
	assert.Equal(t, "400", res.Amount.String())
	assert.Equal(t, staff.ReasonNone, res.Reason)
}

func TestCompute_HourlyNoRate_SoftZero(t *testing.T) {
	c := calculator([]staff.Employee{e1})

	res, err := c.Compute(staff.TimeEntry{EmployeeID: "E1", Date: date("2024-01-15"), Kind: staff.KindHours, Hours: dec("8")}, e1)
	require.NoError(t, err)
	assert.True(t, res.Amount.IsZero())
	assert.Equal(t, staff.ReasonNoRateDefined, res.Reason)
}

func TestCompute_HourlyLeaveNeedsValuation(t *testing.T) {
	c := calculator([]staff.Employee{e1}, rate("E1", staff.GenericServiceID, "2024-01-01", "50"))

	res, err := c.Compute(staff.TimeEntry{Date: date("2024-01-15"), Kind: staff.KindLeave, Leave: staff.FullDay(generic.CategoryEmployeeFunded)}, e1)
	require.NoError(t, err)
	assert.Equal(t, staff.ReasonRequiresValuation, res.Reason)
}

// =============================================================================
// GLOBAL (SALARIED)
// =============================================================================

func TestCompute_GlobalDailyRate(t *testing.T) {
	// GIVEN: Monthly 4200 at 50% scope; February 2024 has 21 working days
	emp := g1
	scope := dec("0.5")
	emp.EmploymentScope = &scope
	c := calculator([]staff.Employee{emp}, rate("G1", staff.GenericServiceID, "2024-01-01", "4200"))

	// WHEN: Any hours value on a February day
	res, err := c.Compute(staff.TimeEntry{Date: date("2024-02-05"), Kind: staff.KindHours, Hours: dec("3")}, emp)

	// THEN: 4200 × 0.5 / 21 = 100, independent of hours
	require.NoError(t, err)
	assert.Equal(t, "100", res.Amount.String())
	assert.Equal(t, "4200", res.Rate.String())
}

func TestCompute_GlobalLeave(t *testing.T) {
	c := calculator([]staff.Employee{g1}, rate("G1", staff.GenericServiceID, "2024-01-01", "4200"))
	base := staff.TimeEntry{Date: date("2024-02-05"), Kind: staff.KindLeave}

	t.Run("half day is half the daily rate", func(t *testing.T) {
		e := base
		e.Leave = staff.HalfDay(generic.CategoryEmployeeFunded, nil)
		res, err := c.Compute(e, g1)
		require.NoError(t, err)
		assert.Equal(t, "100", res.Amount.String())
	})

	t.Run("override wins", func(t *testing.T) {
		e := base
		e.Leave = staff.FullDay(generic.CategoryEmployeeFunded)
		o := dec("123.45")
		e.LeaveValueOverride = &o
		res, err := c.Compute(e, g1)
		require.NoError(t, err)
		assert.Equal(t, "123.45", res.Amount.String())
		assert.Equal(t, staff.ReasonOverride, res.Reason)
	})

	t.Run("non-positive override ignored", func(t *testing.T) {
		e := base
		e.Leave = staff.FullDay(generic.CategoryEmployeeFunded)
		o := dec("0")
		e.LeaveValueOverride = &o
		res, err := c.Compute(e, g1)
		require.NoError(t, err)
		assert.Equal(t, "200", res.Amount.String())
	})

	t.Run("unpaid ignores an override", func(t *testing.T) {
		e := base
		e.Leave = staff.FullDay(generic.CategoryUnpaid)
		o := dec("500")
		e.LeaveValueOverride = &o
		res, err := c.Compute(e, g1)
		require.NoError(t, err)
		assert.True(t, res.Amount.IsZero())
		assert.Equal(t, staff.ReasonUnpaid, res.Reason)
	})

	t.Run("unpaid is zero", func(t *testing.T) {
		e := base
		e.Leave = staff.FullDay(generic.CategoryUnpaid)
		res, err := c.Compute(e, g1)
		require.NoError(t, err)
		assert.True(t, res.Amount.IsZero())
		assert.Equal(t, staff.ReasonUnpaid, res.Reason)
	})
}

// =============================================================================
// INSTRUCTOR
// =============================================================================

func TestCompute_InstructorModels(t *testing.T) {
	c := calculator([]staff.Employee{i1},
		rate("I1", "piano", "2024-01-01", "120"),
		rate("I1", "choir", "2024-01-01", "15"),
	)

	perMeeting, err := c.Compute(staff.TimeEntry{Date: date("2024-03-01"), Kind: staff.KindSession, ServiceID: "piano", Meetings: 3, Students: 9}, i1)
	require.NoError(t, err)
	assert.Equal(t, "360", perMeeting.Amount.String())

	perStudent, err := c.Compute(staff.TimeEntry{Date: date("2024-03-01"), Kind: staff.KindSession, ServiceID: "choir", Meetings: 2, Students: 10}, i1)
	require.NoError(t, err)
	assert.Equal(t, "300", perStudent.Amount.String())
}

func TestCompute_InstructorUnknownService(t *testing.T) {
	c := calculator([]staff.Employee{i1})

	res, err := c.Compute(staff.TimeEntry{Date: date("2024-03-01"), Kind: staff.KindSession, ServiceID: "drums", Meetings: 1}, i1)
	require.NoError(t, err)
	assert.Equal(t, staff.ReasonUnknownService, res.Reason)
}

// =============================================================================
// ADJUSTMENTS & DISPATCH
// =============================================================================

func TestCompute_AdjustmentIsSignedValue(t *testing.T) {
	c := calculator([]staff.Employee{e1})

	res, err := c.Compute(staff.TimeEntry{Date: date("2024-03-01"), Kind: staff.KindAdjustment, Adjustment: dec("-75.5")}, e1)
	require.NoError(t, err)
	assert.Equal(t, "-75.5", res.Amount.String())
}

func TestCompute_UnknownEmploymentType(t *testing.T) {
	emp := staff.Employee{ID: "X", Type: "contractor", StartDate: date("2024-01-01")}
	c := calculator([]staff.Employee{emp})

	_, err := c.Compute(staff.TimeEntry{Date: date("2024-03-01"), Kind: staff.KindHours, Hours: dec("1")}, emp)
	assert.ErrorIs(t, err, generic.ErrUnknownEmploymentType)
}

func TestResult_RoundedOnlyAtBoundary(t *testing.T) {
	// GIVEN: 1000 monthly over 21 working days
	c := calculator([]staff.Employee{g1}, rate("G1", staff.GenericServiceID, "2024-01-01", "1000"))

	res := c.DailyRate(g1, date("2024-02-05"))

	// THEN: full precision internally, 2 places at the boundary
	assert.True(t, res.Amount.Exponent() < -2)
	assert.Equal(t, "47.62", res.Rounded().Amount.String())
}
