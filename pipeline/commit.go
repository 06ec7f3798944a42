package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/staff"
)

// =============================================================================
// COMMIT
// =============================================================================

// withWrite runs fn in a transaction when the store supports one. Otherwise fn
// runs directly and undo is called if it fails.
func (s *Service) withWrite(ctx context.Context, fn func(staff.Store) error, undo func(staff.Store) error) error {
	if tx, ok := s.Store.(staff.TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	if err := fn(s.Store); err != nil {
		if undoErr := undo(s.Store); undoErr != nil {
			return errors.Join(err, fmt.Errorf("compensating write failed: %w", undoErr))
		}
		return err
	}
	return nil
}

func (s *Service) commit(ctx context.Context, out *Outcome) error {
	now := s.Now()
	var (
		trashed  []generic.EntryID
		inserted bool
	)

	write := func(st staff.Store) error {
		if err := checkBaseline(ctx, st, out); err != nil {
			return err
		}
		for _, r := range out.Replaced {
			if err := st.SetEntryStatus(ctx, r.ID, staff.StatusTrashed, &now); err != nil {
				return fmt.Errorf("replace entry %s: %w", r.ID, err)
			}
			trashed = append(trashed, r.ID)
		}
		if err := st.InsertEntries(ctx, out.Entries); err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
		inserted = true
		if len(out.LedgerEntries) > 0 {
			if err := generic.NewLedger(st).AppendBatch(ctx, out.LedgerEntries); err != nil {
				return fmt.Errorf("append leave ledger: %w", err)
			}
		}
		return nil
	}

	// Compensating write: drop orphan entries and reactivate what was replaced.
	undo := func(st staff.Store) error {
		var errs []error
		if inserted {
			ids := make([]generic.EntryID, len(out.Entries))
			for i, e := range out.Entries {
				ids[i] = e.ID
			}
			errs = append(errs, st.DeleteEntries(ctx, ids))
		}
		for _, id := range trashed {
			errs = append(errs, st.SetEntryStatus(ctx, id, staff.StatusActive, nil))
		}
		return errors.Join(errs...)
	}

	return s.withWrite(ctx, write, undo)
}

// checkBaseline fails when the active entries on the date changed since validation.
func checkBaseline(ctx context.Context, st staff.Store, out *Outcome) error {
	current, err := st.ListEntries(ctx, staff.EntryFilter{EmployeeID: out.EmployeeID, From: out.Date, To: out.Date})
	if err != nil {
		return err
	}
	if len(current) != len(out.baseline) {
		return generic.ErrConcurrentModification
	}
	want := make(map[generic.EntryID]bool, len(out.baseline))
	for _, id := range out.baseline {
		want[id] = true
	}
	for _, e := range current {
		if !want[e.ID] {
			return generic.ErrConcurrentModification
		}
	}
	return nil
}

// =============================================================================
// TRASH / RESTORE
// =============================================================================

// Trash soft-deletes an entry and reverses its ledger effect. Trashing an
// already trashed entry is a no-op.
func (s *Service) Trash(ctx context.Context, id generic.EntryID) (staff.TimeEntry, error) {
	entry, err := s.Store.GetEntry(ctx, id)
	if err != nil {
		return staff.TimeEntry{}, err
	}
	if !entry.IsActive() {
		return entry, nil
	}

	ledger, err := s.Store.LoadLedger(ctx, entry.EmployeeID)
	if err != nil {
		return staff.TimeEntry{}, err
	}
	now := s.Now()
	reversals := leave.ReverseOutstanding(ledger, id, "entry trashed", now)

	statusSet := false
	err = s.withWrite(ctx, func(st staff.Store) error {
		if err := st.SetEntryStatus(ctx, id, staff.StatusTrashed, &now); err != nil {
			return err
		}
		statusSet = true
		if len(reversals) == 0 {
			return nil
		}
		return generic.NewLedger(st).AppendBatch(ctx, reversals)
	}, func(st staff.Store) error {
		if !statusSet {
			return nil
		}
		return st.SetEntryStatus(ctx, id, staff.StatusActive, nil)
	})
	if err != nil {
		return staff.TimeEntry{}, err
	}

	entry.Status = staff.StatusTrashed
	entry.DeletedAt = &now
	return entry, nil
}

// Restore reactivates a trashed entry after re-checking the day it returns to,
// then re-applies its ledger consumption. Restore is refused while another
// active entry of the same kind sits on that date.
func (s *Service) Restore(ctx context.Context, id generic.EntryID) (staff.TimeEntry, error) {
	entry, err := s.Store.GetEntry(ctx, id)
	if err != nil {
		return staff.TimeEntry{}, err
	}
	if entry.IsActive() {
		return entry, nil
	}

	snap, err := staff.LoadSnapshot(ctx, s.Store, entry.EmployeeID)
	if err != nil {
		return staff.TimeEntry{}, err
	}
	emp, _ := snap.Employee(entry.EmployeeID)
	ledger := snap.LedgerFor(entry.EmployeeID)

	restored := entry
	restored.Status = staff.StatusActive
	restored.DeletedAt = nil

	active := snap.ActiveEntriesOn(entry.EmployeeID, entry.Date)
	v := &validator{emp: emp, date: entry.Date, policy: s.LeavePolicy}
	v.checkEmployee()
	v.checkEntrySet(active, restored)
	v.checkDay(active, []staff.TimeEntry{restored})
	v.checkBalance(ledger, nil, []staff.TimeEntry{restored})
	if rej := v.rejection(); rej != nil {
		return staff.TimeEntry{}, rej
	}

	now := s.Now()
	consumption, hasLedger := leave.Consumption(s.LeavePolicy, restored, leave.ConsumptionCount(ledger, id), now)

	statusSet := false
	err = s.withWrite(ctx, func(st staff.Store) error {
		if err := st.SetEntryStatus(ctx, id, staff.StatusActive, nil); err != nil {
			return err
		}
		statusSet = true
		if !hasLedger {
			return nil
		}
		return generic.NewLedger(st).Append(ctx, consumption)
	}, func(st staff.Store) error {
		if !statusSet {
			return nil
		}
		return st.SetEntryStatus(ctx, id, staff.StatusTrashed, entry.DeletedAt)
	})
	if err != nil {
		return staff.TimeEntry{}, err
	}
	return restored, nil
}
