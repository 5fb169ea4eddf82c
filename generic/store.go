/*
store.go - Persistence interface for the earnings ledger

PURPOSE:
  Defines the boundary between ledger logic and the database. The store
  keeps append-only semantics: there is no Update and no Delete.

APPEND-ONLY CONTRACT:
  - Append(): single entry write
  - AppendBatch(): atomic multi-entry write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write carries an idempotency key derived from its source
  ("shift:<id>:base_salary", "monthly_bonus:<worker>:<yyyy-mm>", ...).
  A unique index on the key makes a second write of the same fact fail
  with ErrDuplicateIdempotencyKey, so a settlement that is retried or
  raced by the reconciler can never pay twice.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - generic/store/memory.go: In-memory for tests

SEE ALSO:
  - ledger.go: Higher-level interface using LedgerStore
*/
package generic

import "context"

// LedgerStore handles persistence of ledger entries.
// IMPORTANT: LedgerStore is APPEND-ONLY.
type LedgerStore interface {
	// Append persists an entry. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, entry LedgerEntry) error

	// AppendBatch persists multiple entries atomically.
	AppendBatch(ctx context.Context, entries []LedgerEntry) error

	// LoadRange returns a worker's entries with EffectiveAt in [p.Start, p.End),
	// ordered by EffectiveAt.
	LoadRange(ctx context.Context, workerID WorkerID, p Period) ([]LedgerEntry, error)

	// LoadByShift returns all entries referencing a shift.
	LoadByShift(ctx context.Context, shiftID ShiftID) ([]LedgerEntry, error)

	// Exists checks if an idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
