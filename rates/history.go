/*
Package rates answers "which rate applies to employee E for service C on date D".

PURPOSE:
  A History is the append-only timeline of RateRecords. The Resolver picks
  the record in force on a date after applying the employment-type rules:
  hourly and global employees always use the generic track, and nothing
  resolves before the employee's start date.

RESOLUTION ORDER:
  1. Unknown employee                 → 0, UnknownEmployee
  2. StartDate after date             → 0, NotYetEmployed (no history lookup)
  3. Force GenericServiceID for hourly/global
  4. Latest EffectiveDate <= date     → that record (ties: highest Seq)
  5. Nothing found                    → 0, NoRateDefined

EXAMPLE:
  E1 hourly, records 2024-01-01 @ 50 and 2024-06-01 @ 55
  Resolve(E1, 2024-03-15, "piano") → 50 (service forced to generic)
  Resolve(E1, 2024-06-01, "")      → 55
  Resolve(E1, 2023-12-31, "")      → 0, NoRateDefined
*/
package rates

import (
	"fmt"
	"sort"

	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// HISTORY - Append-only rate timeline
// =============================================================================

type trackKey struct {
	employee generic.EmployeeID
	service  generic.ServiceID
}

// History indexes rate records by (employee, service). It is built from a
// snapshot and never edited in place; Append only adds records.
type History struct {
	tracks  map[trackKey][]staff.RateRecord
	nextSeq int64
}

// NewHistory indexes records. Records with Seq 0 get a Seq in slice order.
func NewHistory(records []staff.RateRecord) *History {
	h := &History{tracks: make(map[trackKey][]staff.RateRecord)}
	for _, r := range records {
		if r.Seq > h.nextSeq {
			h.nextSeq = r.Seq
		}
	}
	for _, r := range records {
		if r.Seq == 0 {
			h.nextSeq++
			r.Seq = h.nextSeq
		}
		h.insert(r)
	}
	return h
}

// Append validates and adds a record, returning it with its assigned Seq.
func (h *History) Append(rec staff.RateRecord) (staff.RateRecord, error) {
	if err := rec.Validate(); err != nil {
		return staff.RateRecord{}, err
	}
	h.nextSeq++
	rec.Seq = h.nextSeq
	h.insert(rec)
	return rec, nil
}

// AppendStrict is Append that refuses a second record for the same
// (employee, service, effective date).
func (h *History) AppendStrict(rec staff.RateRecord) (staff.RateRecord, error) {
	for _, r := range h.Timeline(rec.EmployeeID, rec.ServiceID) {
		if r.EffectiveDate.Equal(rec.EffectiveDate) {
			return staff.RateRecord{}, fmt.Errorf("%w: %s %s %s", generic.ErrDuplicateRate, rec.EmployeeID, rec.ServiceID, rec.EffectiveDate)
		}
	}
	return h.Append(rec)
}

func (h *History) insert(rec staff.RateRecord) {
	k := trackKey{employee: rec.EmployeeID, service: rec.ServiceID}
	track := append(h.tracks[k], rec)
	sort.SliceStable(track, func(i, j int) bool {
		if !track[i].EffectiveDate.Equal(track[j].EffectiveDate) {
			return track[i].EffectiveDate.Before(track[j].EffectiveDate)
		}
		return track[i].Seq < track[j].Seq
	})
	h.tracks[k] = track
}

// Timeline returns the records for one track ordered by effective date, then Seq.
func (h *History) Timeline(employeeID generic.EmployeeID, serviceID generic.ServiceID) []staff.RateRecord {
	track := h.tracks[trackKey{employee: employeeID, service: serviceID}]
	out := make([]staff.RateRecord, len(track))
	copy(out, track)
	return out
}

// At returns the record in force on date: the latest effective date not after
// date, and among equal dates the most recently written.
func (h *History) At(employeeID generic.EmployeeID, serviceID generic.ServiceID, date generic.TimePoint) (staff.RateRecord, bool) {
	track := h.tracks[trackKey{employee: employeeID, service: serviceID}]
	// First index whose effective date is after date; the one before it wins.
	i := sort.Search(len(track), func(i int) bool {
		return track[i].EffectiveDate.After(date)
	})
	if i == 0 {
		return staff.RateRecord{}, false
	}
	return track[i-1], true
}
