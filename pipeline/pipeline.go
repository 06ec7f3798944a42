/*
Package pipeline validates and commits time-entry writes.

PURPOSE:
  Every write for one (employee, date) goes through the same state machine:

    Draft ──validate──▶ Validated ──commit──▶ Committed
      │                    │
      └──▶ Rejected        └──▶ NeedsConfirmation (no write; retry with override)

  A rejection lists every offense found, not just the first. Nothing is
  written unless the whole request is valid.

ENTRY SETS:
  The idempotency key of an entry is employee|date|kind. A save replaces the
  active entries of every kind it carries on that date, so re-sending the
  same request (for example with a leave override after NeedsConfirmation)
  converges on one active set instead of duplicating it.

LEDGER PAIRING:
  Replaced leave entries get reversal ledger entries; new leave entries get
  consumption entries. Entries and ledger rows are written in one
  TxStore.WithTx call. Stores without transactions get a compensating delete
  of the inserted entries if the ledger write fails.

SEE ALSO:
  - validate.go: conflict and amount rules
  - commit.go: commit, trash, restore
  - leave/entries.go: ledger entry construction
*/
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/valuation"
)

// =============================================================================
// TYPES
// =============================================================================

type State string

const (
	StateDraft             State = "draft"
	StateValidated         State = "validated"
	StateCommitted         State = "committed"
	StateRejected          State = "rejected"
	StateNeedsConfirmation State = "needs_confirmation"
)

// SaveRequest is the full set of entries an employee wants on one date.
type SaveRequest struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Date       generic.TimePoint  `json:"date"`
	Entries    []staff.TimeEntry  `json:"entries"`
}

// Confirmation asks the caller for a leave override before committing.
type Confirmation struct {
	EntryIndex      int             `json:"entry_index"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
	Reason          staff.Reason    `json:"reason"`
	Message         string          `json:"message"`
}

// Warning is a soft degradation attached to a committed value.
type Warning struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Date       generic.TimePoint  `json:"date"`
	EntryID    generic.EntryID    `json:"entry_id,omitempty"`
	Reason     staff.Reason       `json:"reason"`
}

// Outcome is the result of Prepare or Save.
type Outcome struct {
	State         State                 `json:"state"`
	EmployeeID    generic.EmployeeID    `json:"employee_id"`
	Date          generic.TimePoint     `json:"date"`
	Entries       []staff.TimeEntry     `json:"entries,omitempty"`
	Replaced      []staff.TimeEntry     `json:"replaced,omitempty"`
	LedgerEntries []generic.LedgerEntry `json:"ledger_entries,omitempty"`
	Confirmations []Confirmation        `json:"confirmations,omitempty"`
	Warnings      []Warning             `json:"warnings,omitempty"`
	Rejection     *RejectionError       `json:"rejection,omitempty"`

	// baseline is the active entry ids seen at validation time.
	baseline []generic.EntryID
}

// TotalPayment sums the rounded amounts of the prepared entries.
func (o *Outcome) TotalPayment() decimal.Decimal {
	total := decimal.Zero
	for _, e := range o.Entries {
		total = total.Add(e.TotalPayment)
	}
	return total
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store       staff.Store
	LeavePolicy leave.Policy
	PayPolicy   valuation.PayPolicy
	Calendar    generic.Calendar
	Now         func() time.Time
	NewEntryID  func() generic.EntryID
}

func NewService(store staff.Store, lp leave.Policy, pp valuation.PayPolicy, cal generic.Calendar) *Service {
	return &Service{
		Store:       store,
		LeavePolicy: lp,
		PayPolicy:   pp,
		Calendar:    cal,
		Now:         func() time.Time { return time.Now().UTC() },
		NewEntryID:  func() generic.EntryID { return generic.EntryID(uuid.NewString()) },
	}
}

// Prepare validates and values a request without writing anything. A
// rejected outcome is returned together with its *RejectionError.
func (s *Service) Prepare(ctx context.Context, req SaveRequest) (*Outcome, error) {
	snap, err := staff.LoadSnapshot(ctx, s.Store, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	out, err := s.prepare(snap, req)
	if err != nil {
		return nil, err
	}
	if out.Rejection != nil {
		return out, out.Rejection
	}
	return out, nil
}

// Save prepares and, when the request is valid and needs no confirmation, commits it.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*Outcome, error) {
	out, err := s.Prepare(ctx, req)
	if err != nil || out.State != StateValidated {
		return out, err
	}
	if err := s.commit(ctx, out); err != nil {
		return nil, err
	}
	out.State = StateCommitted
	return out, nil
}

// ValidateBatch prepares many requests against one snapshot, applying each
// valid request before checking the next. Nothing is written. The error
// collects the offenses of every rejected request.
func (s *Service) ValidateBatch(ctx context.Context, reqs []SaveRequest) ([]*Outcome, error) {
	ids := make([]generic.EmployeeID, 0, len(reqs))
	seen := make(map[generic.EmployeeID]bool)
	for _, r := range reqs {
		if seen[r.EmployeeID] {
			continue
		}
		seen[r.EmployeeID] = true
		if _, err := s.Store.GetEmployee(ctx, r.EmployeeID); err != nil {
			if !generic.IsNotFound(err) {
				return nil, err
			}
			continue
		}
		ids = append(ids, r.EmployeeID)
	}

	var snap *staff.Snapshot
	if len(ids) > 0 {
		var err error
		if snap, err = staff.LoadSnapshot(ctx, s.Store, ids...); err != nil {
			return nil, err
		}
	} else {
		snap = staff.NewSnapshot(nil, nil, nil, nil, nil)
	}

	all := &RejectionError{}
	outcomes := make([]*Outcome, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := snap.Employee(r.EmployeeID); !ok {
			rej := &RejectionError{Offenses: []Offense{{
				EmployeeID: r.EmployeeID, Date: r.Date, Code: CodeUnknownEmployee, EntryIndex: -1, Message: "employee not found",
			}}}
			outcomes = append(outcomes, &Outcome{State: StateRejected, EmployeeID: r.EmployeeID, Date: r.Date, Rejection: rej})
			all.Offenses = append(all.Offenses, rej.Offenses...)
			continue
		}
		out, err := s.prepare(snap, r)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
		if out.Rejection != nil {
			all.Offenses = append(all.Offenses, out.Rejection.Offenses...)
			continue
		}
		snap = apply(snap, out)
	}
	if len(all.Offenses) > 0 {
		return outcomes, all
	}
	return outcomes, nil
}

// =============================================================================
// PREPARE
// =============================================================================

func (s *Service) prepare(snap *staff.Snapshot, req SaveRequest) (*Outcome, error) {
	out := &Outcome{State: StateDraft, EmployeeID: req.EmployeeID, Date: req.Date}
	emp, ok := snap.Employee(req.EmployeeID)
	if !ok {
		return nil, generic.ErrEmployeeNotFound
	}

	incoming := make([]staff.TimeEntry, len(req.Entries))
	for i, e := range req.Entries {
		e.EmployeeID = req.EmployeeID
		e.Date = req.Date
		incoming[i] = e
	}

	active := snap.ActiveEntriesOn(req.EmployeeID, req.Date)
	for _, e := range active {
		out.baseline = append(out.baseline, e.ID)
	}
	replaced, staying := splitDay(active, incoming)

	now := s.Now()
	ledger := snap.LedgerFor(req.EmployeeID)
	var reversals []generic.LedgerEntry
	for _, r := range replaced {
		reversals = append(reversals, leave.ReverseOutstanding(ledger, r.ID, "entry replaced", now)...)
	}

	v := &validator{emp: emp, date: req.Date, policy: s.LeavePolicy}
	v.checkEmployee()
	if len(incoming) == 0 {
		v.add(CodeInvalidAmount, -1, "request has no entries")
	}
	for i, e := range incoming {
		v.checkEntry(i, e, func(id generic.ServiceID) bool {
			_, ok := snap.Service(id)
			return ok
		})
	}
	v.checkDay(staying, incoming)
	v.checkBalance(ledger, reversals, incoming)
	if rej := v.rejection(); rej != nil {
		out.State = StateRejected
		out.Rejection = rej
		return out, nil
	}
	out.State = StateValidated

	valuer := valuation.NewEntryValuer(valuation.FromSnapshot(s.PayPolicy, snap, s.Calendar))
	salaried := newSalariedDay(emp, staying, incoming)
	out.Replaced = replaced
	out.LedgerEntries = reversals
	for i, e := range incoming {
		e.ID = s.NewEntryID()
		e.Status = staff.StatusActive
		e.DeletedAt = nil
		e.CreatedAt = now
		e.Payable = !e.IsLeave() || e.Leave.Payable()

		val, err := valuer.Value(e, emp)
		if err != nil {
			return nil, err
		}
		val = salaried.share(i, val)
		e.RateUsed = val.Rate
		e.TotalPayment = generic.RoundMoney(val.Amount)
		e.UsedFallbackRate = val.UsedFallbackRate
		out.Entries = append(out.Entries, e)

		if val.Reason.Degraded() {
			out.Warnings = append(out.Warnings, Warning{EmployeeID: emp.ID, Date: req.Date, EntryID: e.ID, Reason: val.Reason})
		}
		if s.needsConfirmation(e, val) {
			out.Confirmations = append(out.Confirmations, Confirmation{
				EntryIndex:      i,
				SuggestedAmount: generic.RoundMoney(val.Amount),
				Reason:          val.Reason,
				Message:         "leave value could not be derived from history; supply leave_value_override to confirm",
			})
		}
		if c, ok := leave.Consumption(s.LeavePolicy, e, 0, now); ok {
			out.LedgerEntries = append(out.LedgerEntries, c)
		}
	}
	if len(out.Confirmations) > 0 {
		out.State = StateNeedsConfirmation
	}
	return out, nil
}

// salariedDay pays a global employee one daily rate per date. One work entry
// carries the share left after leave credit; other work entries carry zero.
type salariedDay struct {
	carrier int
	work    map[int]bool
	portion decimal.Decimal
}

// newSalariedDay picks the carrier the way period reports do: work of the
// lowest kind first. A staying work entry of a lower kind keeps the share.
func newSalariedDay(emp staff.Employee, staying, incoming []staff.TimeEntry) *salariedDay {
	d := &salariedDay{carrier: -1, work: make(map[int]bool)}
	if emp.Type != staff.Global {
		return d
	}

	credit := decimal.Zero
	var stayingKind staff.EntryKind
	for _, e := range staying {
		credit = credit.Add(e.LeaveCredit())
		if e.Kind.IsWork() && (stayingKind == "" || e.Kind < stayingKind) {
			stayingKind = e.Kind
		}
	}
	for i, e := range incoming {
		credit = credit.Add(e.LeaveCredit())
		if !e.Kind.IsWork() {
			continue
		}
		d.work[i] = true
		if stayingKind != "" && stayingKind < e.Kind {
			continue
		}
		if d.carrier < 0 || e.Kind < incoming[d.carrier].Kind {
			d.carrier = i
		}
	}
	d.portion = decimal.Max(decimal.NewFromInt(1).Sub(decimal.Min(credit, decimal.NewFromInt(1))), decimal.Zero)
	return d
}

// share scales the value of incoming entry i to its part of the daily rate.
func (d *salariedDay) share(i int, val valuation.EntryValue) valuation.EntryValue {
	if !d.work[i] {
		return val
	}
	if i != d.carrier {
		return valuation.EntryValue{Amount: decimal.Zero, Rate: val.Rate, Reason: staff.ReasonDeduplicated}
	}
	val.Amount = val.Amount.Mul(d.portion)
	return val
}

func (s *Service) needsConfirmation(e staff.TimeEntry, val valuation.EntryValue) bool {
	if s.PayPolicy.AllowSilentFallback || !e.IsLeave() || !e.Leave.Payable() || e.HasOverride() {
		return false
	}
	return val.NeedsConfirmation()
}

// apply returns a copy of snap with a validated outcome applied, for batch validation.
func apply(snap *staff.Snapshot, out *Outcome) *staff.Snapshot {
	next := *snap
	replaced := make(map[generic.EntryID]bool, len(out.Replaced))
	for _, r := range out.Replaced {
		replaced[r.ID] = true
	}
	next.Entries = make([]staff.TimeEntry, 0, len(snap.Entries)+len(out.Entries))
	for _, e := range snap.Entries {
		if replaced[e.ID] {
			e.Status = staff.StatusTrashed
		}
		next.Entries = append(next.Entries, e)
	}
	next.Entries = append(next.Entries, out.Entries...)
	next.Ledger = append(append([]generic.LedgerEntry{}, snap.Ledger...), out.LedgerEntries...)
	return &next
}
