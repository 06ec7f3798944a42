/*
store.go - Persistence interface for the leave ledger

PURPOSE:
  Defines the boundary between ledger logic and the database. The staff
  package composes this with entry/rate/employee persistence into one
  staff.Store so a single transaction can cover an entry write and its
  paired ledger write.

APPEND-ONLY CONTRACT:
  - AppendLedger(): atomic multi-entry write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every ledger write carries an idempotency key. If the key already exists,
  the whole batch is rejected with ErrDuplicateIdempotencyKey.

IMPLEMENTATIONS:
  - store/memory: In-memory for tests and demos
  - store/sqlite: SQLite (mattn/go-sqlite3)
  - store/postgres: PostgreSQL (jackc/pgx)
*/
package generic

import "context"

// LedgerStore handles persistence of ledger entries.
type LedgerStore interface {
	// AppendLedger persists entries atomically. Either all succeed or none do.
	AppendLedger(ctx context.Context, entries []LedgerEntry) error

	// LoadLedger returns all entries for an employee ordered by date, then write order.
	LoadLedger(ctx context.Context, employeeID EmployeeID) ([]LedgerEntry, error)

	// LedgerKeyExists checks if an idempotency key has been used.
	LedgerKeyExists(ctx context.Context, idempotencyKey string) (bool, error)
}
