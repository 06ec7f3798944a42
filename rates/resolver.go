package rates

import (
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/staff"
)

// EmployeeLookup is satisfied by *staff.Snapshot.
type EmployeeLookup interface {
	Employee(id generic.EmployeeID) (staff.Employee, bool)
}

// Resolution is the outcome of a rate lookup. A zero Rate always comes with a Reason.
type Resolution struct {
	Rate          decimal.Decimal   `json:"rate"`
	EffectiveDate generic.TimePoint `json:"effective_date,omitempty"`
	ServiceID     generic.ServiceID `json:"service_id"`
	Reason        staff.Reason      `json:"reason,omitempty"`
}

// Found reports whether a record was selected.
func (r Resolution) Found() bool {
	return r.Reason == staff.ReasonNone
}

type Resolver struct {
	Employees EmployeeLookup
	History   *History
}

func NewResolver(employees EmployeeLookup, history *History) *Resolver {
	return &Resolver{Employees: employees, History: history}
}

// FromSnapshot builds a resolver over a snapshot's employees and rate records.
func FromSnapshot(snap *staff.Snapshot) *Resolver {
	return NewResolver(snap, NewHistory(snap.Rates))
}

// Resolve returns the rate for the employee on date. The requested service is
// ignored for hourly and global employees.
func (r *Resolver) Resolve(employeeID generic.EmployeeID, date generic.TimePoint, serviceID generic.ServiceID) Resolution {
	emp, ok := r.Employees.Employee(employeeID)
	if !ok {
		return Resolution{Rate: decimal.Zero, ServiceID: serviceID, Reason: staff.ReasonUnknownEmployee}
	}
	return r.ResolveFor(emp, date, serviceID)
}

// ResolveFor is Resolve with the employee already in hand.
func (r *Resolver) ResolveFor(emp staff.Employee, date generic.TimePoint, serviceID generic.ServiceID) Resolution {
	if !emp.EmployedOn(date) {
		return Resolution{Rate: decimal.Zero, ServiceID: serviceID, Reason: staff.ReasonNotYetEmployed}
	}

	effective := EffectiveService(emp.Type, serviceID)
	rec, ok := r.History.At(emp.ID, effective, date)
	if !ok {
		return Resolution{Rate: decimal.Zero, ServiceID: effective, Reason: staff.ReasonNoRateDefined}
	}
	return Resolution{Rate: rec.Rate, EffectiveDate: rec.EffectiveDate, ServiceID: effective}
}

// EffectiveService maps the requested service to the track that is actually looked up.
func EffectiveService(t staff.EmploymentType, requested generic.ServiceID) generic.ServiceID {
	if t.SingleRateTrack() || requested == "" {
		return staff.GenericServiceID
	}
	return requested
}
