package rates_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/rates"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func rate(emp generic.EmployeeID, svc generic.ServiceID, eff string, r int64) staff.RateRecord {
	return staff.RateRecord{EmployeeID: emp, ServiceID: svc, EffectiveDate: date(eff), Rate: decimal.NewFromInt(r)}
}

func newResolver(emps []staff.Employee, recs ...staff.RateRecord) *rates.Resolver {
	snap := staff.NewSnapshot(emps, nil, recs, nil, nil)
	return rates.FromSnapshot(snap)
}

var (
	hourly     = staff.Employee{ID: "E1", Type: staff.Hourly, StartDate: date("2024-01-01"), IsActive: true}
	instructor = staff.Employee{ID: "I1", Type: staff.Instructor, StartDate: date("2024-01-01"), IsActive: true}
)

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolve_LatestEffectiveRecordWins(t *testing.T) {
	r := newResolver([]staff.Employee{hourly},
		rate("E1", staff.GenericServiceID, "2024-06-01", 55),
		rate("E1", staff.GenericServiceID, "2024-01-01", 50),
	)

	res := r.Resolve("E1", date("2024-03-15"), "")
	assert.True(t, res.Rate.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "2024-01-01", res.EffectiveDate.String())

	res = r.Resolve("E1", date("2024-06-01"), "")
	assert.True(t, res.Rate.Equal(decimal.NewFromInt(55)), "exact effective date returns that record")
}

func TestResolve_BeforeAllRecords_NoRateDefined(t *testing.T) {
	// GIVEN: Employee started before the first rate record
	emp := hourly
	emp.StartDate = date("2023-06-01")
	r := newResolver([]staff.Employee{emp}, rate("E1", staff.GenericServiceID, "2024-01-01", 50))

	// WHEN: Resolving a date between start and the first record
	res := r.Resolve("E1", date("2023-12-31"), "")

	// THEN: zero with NoRateDefined
	assert.True(t, res.Rate.IsZero())
	assert.Equal(t, staff.ReasonNoRateDefined, res.Reason)
}

func TestResolve_PreStart_ShortCircuits(t *testing.T) {
	// GIVEN: A history that would otherwise match
	emp := hourly
	emp.StartDate = date("2024-03-01")
	r := newResolver([]staff.Employee{emp}, rate("E1", staff.GenericServiceID, "2020-01-01", 50))

	// WHEN/THEN: Any date before start is NotYetEmployed regardless of history
	for _, d := range []string{"2020-01-01", "2024-02-29", "2021-07-04"} {
		res := r.Resolve("E1", date(d), "")
		assert.True(t, res.Rate.IsZero(), d)
		assert.Equal(t, staff.ReasonNotYetEmployed, res.Reason, d)
	}
}

func TestResolve_HourlyIgnoresRequestedService(t *testing.T) {
	r := newResolver([]staff.Employee{hourly},
		rate("E1", staff.GenericServiceID, "2024-01-01", 50),
		rate("E1", "piano", "2024-01-01", 99),
	)

	res := r.Resolve("E1", date("2024-02-01"), "piano")
	assert.True(t, res.Rate.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, staff.GenericServiceID, res.ServiceID)
}

func TestResolve_InstructorUsesSpecificService(t *testing.T) {
	r := newResolver([]staff.Employee{instructor},
		rate("I1", "piano", "2024-01-01", 120),
		rate("I1", "guitar", "2024-01-01", 90),
	)

	assert.True(t, r.Resolve("I1", date("2024-02-01"), "guitar").Rate.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, staff.ReasonNoRateDefined, r.Resolve("I1", date("2024-02-01"), "drums").Reason)
}

func TestResolve_SameDayTie_LatestWriteWins(t *testing.T) {
	// GIVEN: Two records with the same effective date written in order
	history := rates.NewHistory(nil)
	_, err := history.Append(rate("E1", staff.GenericServiceID, "2024-01-01", 50))
	require.NoError(t, err)
	_, err = history.Append(rate("E1", staff.GenericServiceID, "2024-01-01", 52))
	require.NoError(t, err)

	r := rates.NewResolver(staff.NewSnapshot([]staff.Employee{hourly}, nil, nil, nil, nil), history)

	// THEN: the later write is in force
	assert.True(t, r.Resolve("E1", date("2024-01-01"), "").Rate.Equal(decimal.NewFromInt(52)))
	assert.Len(t, history.Timeline("E1", staff.GenericServiceID), 2)
}

func TestResolve_UnknownEmployee(t *testing.T) {
	r := newResolver(nil)
	assert.Equal(t, staff.ReasonUnknownEmployee, r.Resolve("nobody", date("2024-01-01"), "").Reason)
}

func TestHistory_AppendRejectsNegativeRate(t *testing.T) {
	_, err := rates.NewHistory(nil).Append(rate("E1", staff.GenericServiceID, "2024-01-01", -1))
	assert.ErrorIs(t, err, generic.ErrInvalidRate)
}

func TestHistory_AppendStrictRejectsSameDay(t *testing.T) {
	h := rates.NewHistory([]staff.RateRecord{rate("E1", staff.GenericServiceID, "2024-01-01", 50)})

	_, err := h.AppendStrict(rate("E1", staff.GenericServiceID, "2024-01-01", 55))
	assert.ErrorIs(t, err, generic.ErrDuplicateRate)

	// Another date or another track is fine
	_, err = h.AppendStrict(rate("E1", staff.GenericServiceID, "2024-02-01", 55))
	assert.NoError(t, err)
	_, err = h.AppendStrict(rate("E1", "piano", "2024-01-01", 80))
	assert.NoError(t, err)
}
