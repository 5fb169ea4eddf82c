package sqlstore

import (
	"context"
	"strings"
)

// schema is shared by both dialects. TSTEXT marks timestamp columns, which
// need byte-order collation on PostgreSQL.
const schema = `
-- Workforce
CREATE TABLE IF NOT EXISTS workers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	created_at TSTEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shift_templates (
	kind TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	offset_minutes INTEGER NOT NULL DEFAULT 180,
	active INTEGER NOT NULL DEFAULT 1,
	updated_at TSTEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shift_assignments (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	assigned_by TEXT NOT NULL DEFAULT '',
	created_at TSTEXT NOT NULL,
	UNIQUE (worker_id, kind)
);

-- Shifts (never deleted)
CREATE TABLE IF NOT EXISTS shifts (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	shift_date TEXT NOT NULL,
	scheduled_start TSTEXT NOT NULL,
	scheduled_end TSTEXT NOT NULL,
	actual_start TSTEXT,
	actual_end TSTEXT,
	status TEXT NOT NULL,
	auto_closed INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	created_at TSTEXT NOT NULL,
	updated_at TSTEXT NOT NULL
);

-- CRITICAL: at most one shift per worker per business day, any kind
CREATE UNIQUE INDEX IF NOT EXISTS ux_shifts_owner_date
	ON shifts(owner_id, shift_date);

-- CRITICAL: at most one active shift per worker
CREATE UNIQUE INDEX IF NOT EXISTS ux_shifts_one_active
	ON shifts(owner_id) WHERE status = 'ACTIVE';

-- Reconciler scan
CREATE INDEX IF NOT EXISTS idx_shifts_status_end
	ON shifts(status, scheduled_end);

-- Deposits (owned upstream, read-only here)
CREATE TABLE IF NOT EXISTS deposits (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL DEFAULT 'USD',
	created_at TSTEXT NOT NULL,
	commission_rate TEXT NOT NULL DEFAULT '0',
	bonus_amount TEXT NOT NULL DEFAULT '0',
	owner_earnings TEXT NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_deposits_owner_created
	ON deposits(owner_id, created_at);

-- Configuration
CREATE TABLE IF NOT EXISTS hourly_rates (
	id TEXT PRIMARY KEY,
	rate TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TSTEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tier_sets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	scope TEXT NOT NULL,
	shift_kind TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	tiers_json TEXT NOT NULL,
	created_at TSTEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tier_sets_scope_kind
	ON tier_sets(scope, shift_kind, active);

CREATE TABLE IF NOT EXISTS goals (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	metric TEXT NOT NULL,
	granularity TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	created_at TSTEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS goal_stages (
	id TEXT PRIMARY KEY,
	goal_id TEXT NOT NULL REFERENCES goals(id),
	position INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	target TEXT NOT NULL,
	reward TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_goal_stages_goal
	ON goal_stages(goal_id);

-- CRITICAL: a stage reward is paid at most once per worker per period
CREATE TABLE IF NOT EXISTS goal_achievements (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	goal_id TEXT NOT NULL,
	stage_id TEXT NOT NULL,
	period_key TEXT NOT NULL,
	observed TEXT NOT NULL,
	reward TEXT NOT NULL,
	achieved_at TSTEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_achievements
	ON goal_achievements(worker_id, stage_id, period_key);

-- Earnings ledger (append-only)
CREATE TABLE IF NOT EXISTS ledger_entries (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	shift_id TEXT,
	deposit_id TEXT,
	kind TEXT NOT NULL,
	amount TEXT NOT NULL,
	base_amount TEXT,
	percentage TEXT,
	trace TEXT NOT NULL DEFAULT '',
	metadata_json TEXT,
	idempotency_key TEXT UNIQUE,
	effective_at TSTEXT NOT NULL,
	created_at TSTEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT 'system'
);

CREATE INDEX IF NOT EXISTS idx_ledger_worker_effective
	ON ledger_entries(worker_id, effective_at);
CREATE INDEX IF NOT EXISTS idx_ledger_shift
	ON ledger_entries(shift_id) WHERE shift_id IS NOT NULL;

-- CRITICAL: one settlement per shift
CREATE TABLE IF NOT EXISTS shift_settlements (
	shift_id TEXT PRIMARY KEY,
	auto_closed INTEGER NOT NULL DEFAULT 0,
	settled_at TSTEXT NOT NULL
);
`

// migrate creates the schema. For production, use a versioned migration tool.
func (s *Store) migrate(ctx context.Context) error {
	ts := "TEXT"
	if s.dialect == DriverPostgres {
		ts = `TEXT COLLATE "C"`
	}
	_, err := s.db.ExecContext(ctx, strings.ReplaceAll(schema, "TSTEXT", ts))
	return err
}

// tables in dependency order, children first.
var tables = []string{
	"shift_settlements",
	"ledger_entries",
	"goal_achievements",
	"goal_stages",
	"goals",
	"tier_sets",
	"hourly_rates",
	"deposits",
	"shifts",
	"shift_assignments",
	"shift_templates",
	"workers",
}

// Reset deletes every row. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *Store) error {
		for _, t := range tables {
			if _, err := tx.exec(ctx, "DELETE FROM "+t); err != nil {
				return err
			}
		}
		return nil
	})
}
