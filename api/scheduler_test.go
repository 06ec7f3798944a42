package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staff-pay-engine/factory"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
)

func TestScheduler_RunNowClosesPreviousYear(t *testing.T) {
	// GIVEN: The year-end scenario and a scheduler on a 2025 clock
	s := newTestServer(t, factory.DefaultSettings())
	s.loadScenario("year-end")
	rs := NewReconciliationScheduler(s.h, time.Hour)

	// WHEN: Running the check
	rs.RunNow(context.Background())

	// THEN: 2024 is closed for both employees
	runs, err := s.h.Store.(leave.RunStore).ReconciliationRuns(context.Background(), 2024)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	bal, err := s.h.Ledger.BalanceAt(context.Background(), "Y1", generic.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	requireDec(t, "27", bal)

	// AND: A second check changes nothing
	rs.RunNow(context.Background())
	bal, err = s.h.Ledger.BalanceAt(context.Background(), "Y1", generic.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	requireDec(t, "27", bal)

	// AND: The status endpoint reports the run
	rec := s.do(http.MethodGet, "/api/admin/leave/scheduler", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[SchedulerStatusDTO](t, rec)
	assert.True(t, st.Enabled)
	require.NotNil(t, st.LastRun)
	assert.True(t, st.LastRun.Equal(testNow))
	assert.True(t, st.NextRun.Equal(testNow.Add(time.Hour)))
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestServer(t, factory.DefaultSettings())
	s.loadScenario("year-end")
	rs := NewReconciliationScheduler(s.h, time.Hour)

	rs.Start()
	// The first check runs immediately on start.
	require.Eventually(t, func() bool {
		return rs.Status().LastRun != nil
	}, 2*time.Second, 10*time.Millisecond)
	rs.Stop()
	rs.Stop()

	runs, err := s.h.Store.(leave.RunStore).ReconciliationRuns(context.Background(), 2024)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestScheduler_Disabled(t *testing.T) {
	s := newTestServer(t, factory.DefaultSettings())
	rs := NewReconciliationScheduler(s.h, 0)

	rs.Start()
	rs.Stop()

	assert.False(t, rs.Status().Enabled)
	assert.Nil(t, rs.Status().LastRun)
}
