/*
Package sqlstore provides the database/sql implementation of every storage
interface: shifts.Store, generic.LedgerStore and the earnings sources.

DIALECTS:
  sqlite    github.com/mattn/go-sqlite3 (default, ":memory:" for tests)
  postgres  github.com/lib/pq

  Queries are written once with "?" placeholders and rebound to $1..$n for
  PostgreSQL. The schema is shared; only timestamp collation differs.

CONCURRENCY:
  There are no in-process locks. Exclusivity comes from the schema:

  ux_shifts_owner_date    one shift per (owner, business day)
  ux_shifts_one_active    one ACTIVE shift per owner (partial index)
  ledger idempotency_key  one entry per source fact
  shift_settlements PK    one settlement per shift
  ux_achievements         one reward per (worker, stage, period)

  and from conditional updates (UPDATE ... WHERE status = ?) whose
  RowsAffected tells the caller whether it won.

  Unique violations are classified from the driver error (sqlite extended
  code, PostgreSQL SQLSTATE 23505) and mapped to sentinel errors by the
  operation that hit them.

TIME:
  Timestamps are TEXT in UTC with a fixed-width layout, so string order is
  time order in both dialects. Money is TEXT decimal, summed in Go.

USAGE:
  store, err := sqlstore.Open("sqlite", ":memory:")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/shift-engine/generic"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width so lexicographic order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces on database/sql.
type Store struct {
	db      *sql.DB
	q       querier
	dialect string
	clock   generic.Clock
}

// Open connects to the database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "sqlite3", "":
		driver = DriverSQLite
		db, err = sql.Open("sqlite3", sqliteDSN(dsn))
		if err == nil {
			// One connection: ":memory:" is per-connection, and SQLite
			// serializes writers anyway.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres, "pq":
		driver = DriverPostgres
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", generic.ErrInvalidData, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: db, dialect: driver, clock: generic.SystemClock{}}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// New opens a SQLite store at path.
func New(path string) (*Store, error) {
	return Open(DriverSQLite, path)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports the resolved driver name: "sqlite" or "postgres".
func (s *Store) Dialect() string { return s.dialect }

// SetClock replaces the clock used for created_at and updated_at stamps.
// Call it before the store is shared.
func (s *Store) SetClock(c generic.Clock) {
	if c != nil {
		s.clock = c
	}
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

// WithTx runs fn against a Store bound to one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.SystemError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, dialect: s.dialect, clock: s.clock}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return generic.SystemError("commit transaction", err)
	}
	return nil
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

// affected reports whether a conditional update changed exactly one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// isUniqueViolation recognizes unique and primary key violations of both drivers.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// =============================================================================
// VALUE ENCODING
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
