package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// LEDGER STORE (generic.LedgerStore interface)
// =============================================================================
// No UPDATE or DELETE statements touch ledger_entries outside Reset.

func (s *Store) Append(ctx context.Context, e generic.LedgerEntry) error {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return generic.SystemError("encode entry metadata", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO ledger_entries
		(id, worker_id, shift_id, deposit_id, kind, amount, base_amount, percentage,
		 trace, metadata_json, idempotency_key, effective_at, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.WorkerID, nullString(string(e.ShiftID)), nullString(e.DepositID), e.Kind,
		e.Amount.Value.String(), nullDecimal(e.BaseAmount), nullDecimal(e.Percentage),
		e.Trace, string(metadataJSON), nullString(e.IdempotencyKey),
		formatTime(e.EffectiveAt), formatTime(e.CreatedAt), e.CreatedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateIdempotencyKey, e.IdempotencyKey)
	}
	if err != nil {
		return generic.SystemError("append ledger entry", err)
	}
	return nil
}

// AppendBatch adds multiple entries in one transaction.
func (s *Store) AppendBatch(ctx context.Context, entries []generic.LedgerEntry) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IdempotencyKey == "" {
			continue
		}
		if seen[e.IdempotencyKey] {
			return fmt.Errorf("%w: %s repeated in batch", generic.ErrDuplicateIdempotencyKey, e.IdempotencyKey)
		}
		seen[e.IdempotencyKey] = true
	}
	return s.WithTx(ctx, func(tx *Store) error {
		for _, e := range entries {
			if err := tx.Append(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

const entryColumns = `id, worker_id, shift_id, deposit_id, kind, amount, base_amount, percentage,
	trace, metadata_json, idempotency_key, effective_at, created_at, created_by`

func (s *Store) LoadRange(ctx context.Context, workerID generic.WorkerID, p generic.Period) ([]generic.LedgerEntry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE worker_id = ? AND effective_at >= ? AND effective_at < ?
		ORDER BY effective_at, created_at, id`, workerID, formatTime(p.Start), formatTime(p.End))
}

func (s *Store) LoadByShift(ctx context.Context, shiftID generic.ShiftID) ([]generic.LedgerEntry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE shift_id = ? ORDER BY effective_at, created_at, id`, shiftID)
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE idempotency_key = ?`, idempotencyKey).Scan(&n)
	if err != nil {
		return false, generic.SystemError("check idempotency key", err)
	}
	return n > 0, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]generic.LedgerEntry, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, generic.SystemError("query ledger", err)
	}
	defer rows.Close()

	var out []generic.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, generic.SystemError("scan ledger entry", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(rows *sql.Rows) (generic.LedgerEntry, error) {
	var (
		e                      generic.LedgerEntry
		shiftID, depositID     sql.NullString
		amount                 string
		baseAmount, percentage sql.NullString
		metadataJSON           sql.NullString
		idempotencyKey         sql.NullString
		effectiveAt, createdAt string
	)
	err := rows.Scan(&e.ID, &e.WorkerID, &shiftID, &depositID, &e.Kind, &amount, &baseAmount, &percentage,
		&e.Trace, &metadataJSON, &idempotencyKey, &effectiveAt, &createdAt, &e.CreatedBy)
	if err != nil {
		return e, err
	}

	e.ShiftID = generic.ShiftID(shiftID.String)
	e.DepositID = depositID.String
	e.IdempotencyKey = idempotencyKey.String
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return e, err
	}
	e.Amount = generic.NewAmount(value, generic.UnitDollars)
	if e.BaseAmount, err = parseNullDecimal(baseAmount); err != nil {
		return e, err
	}
	if e.Percentage, err = parseNullDecimal(percentage); err != nil {
		return e, err
	}
	if e.EffectiveAt, err = parseTime(effectiveAt); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return e, err
		}
	}
	return e, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
