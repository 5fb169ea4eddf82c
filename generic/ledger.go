/*
ledger.go - Append-only earnings ledger

PURPOSE:
  The Ledger is the immutable record of money owed to workers. Every base
  pay, commission pass-through, bonus and manual adjustment is an entry.
  Totals are always computed by summing entries; there is no separate
  "balance" column that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete
  2. AUDITABLE: Every entry has a calculation trace
  3. IDEMPOTENT: Same idempotency key = same entry (no duplicates)

CORRECTIONS:
  Mistakes are corrected with a MANUAL_ADJUSTMENT entry of the opposite
  sign. Both remain in the ledger.

SEE ALSO:
  - store.go: Low-level persistence interface
  - earnings/settlement.go: Main writer
*/
package generic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - Append-only entry log
// =============================================================================

type Ledger interface {
	// Append adds an entry. Fails with ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)

	// AppendBatch adds multiple entries atomically.
	AppendBatch(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error)

	// Entries returns a worker's entries effective within p. Read-only.
	Entries(ctx context.Context, workerID WorkerID, p Period) ([]LedgerEntry, error)

	// ShiftEntries returns all entries produced for a shift. Read-only.
	ShiftEntries(ctx context.Context, shiftID ShiftID) ([]LedgerEntry, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using LedgerStore
// =============================================================================

type DefaultLedger struct {
	Store LedgerStore
	Clock Clock
}

func NewLedger(store LedgerStore, clock Clock) *DefaultLedger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &DefaultLedger{Store: store, Clock: clock}
}

func (l *DefaultLedger) Append(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	entry, err := l.prepare(entry)
	if err != nil {
		return entry, err
	}
	if entry.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, entry.IdempotencyKey)
		if err != nil {
			return entry, err
		}
		if exists {
			return entry, ErrDuplicateIdempotencyKey
		}
	}
	// The pre-check is an early exit only; the store's unique index is
	// what actually rejects a concurrent duplicate.
	return entry, l.Store.Append(ctx, entry)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error) {
	prepared := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		p, err := l.prepare(e)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	return prepared, l.Store.AppendBatch(ctx, prepared)
}

func (l *DefaultLedger) Entries(ctx context.Context, workerID WorkerID, p Period) ([]LedgerEntry, error) {
	return l.Store.LoadRange(ctx, workerID, p)
}

func (l *DefaultLedger) ShiftEntries(ctx context.Context, shiftID ShiftID) ([]LedgerEntry, error) {
	return l.Store.LoadByShift(ctx, shiftID)
}

// prepare fills defaults and rejects malformed entries.
func (l *DefaultLedger) prepare(e LedgerEntry) (LedgerEntry, error) {
	if e.WorkerID == "" {
		return e, fmt.Errorf("%w: ledger entry without worker", ErrInvalidData)
	}
	if !e.Kind.Valid() {
		return e, fmt.Errorf("%w: unknown entry kind %q", ErrInvalidData, e.Kind)
	}
	if e.Amount.Unit != UnitDollars {
		return e, fmt.Errorf("%w: ledger amounts must be in %s, got %q", ErrInvalidData, UnitDollars, e.Amount.Unit)
	}
	now := l.Clock.Now()
	if e.ID == "" {
		e.ID = EntryID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.EffectiveAt.IsZero() {
		e.EffectiveAt = now
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "system"
	}
	return e, nil
}

// =============================================================================
// TOTALS - Derived values, computed from entries
// =============================================================================

// Totals sums entries per kind and overall.
type Totals struct {
	Total  Amount
	ByKind map[EntryKind]Amount
}

func SumEntries(entries []LedgerEntry) Totals {
	t := Totals{Total: ZeroDollars(), ByKind: make(map[EntryKind]Amount)}
	for _, e := range entries {
		t.Total = t.Total.Add(e.Amount)
		cur, ok := t.ByKind[e.Kind]
		if !ok {
			cur = ZeroDollars()
		}
		t.ByKind[e.Kind] = cur.Add(e.Amount)
	}
	return t
}

// IsDuplicate reports whether err means the entry was already recorded.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}
