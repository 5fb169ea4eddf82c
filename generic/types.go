/*
Package generic provides the domain-agnostic core of the shift engine.

PURPOSE:
  Types and algorithms shared by the shift lifecycle and the earnings
  settlement engine: money amounts, worker/shift identifiers, the
  append-only earnings ledger, timezone-pinned periods and the tiered
  bonus resolver. Nothing in this package knows about shift templates,
  deposits or goals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit ($20.00, 8 hours, 25 deposits)
  - LedgerEntry: An immutable record of money owed to a worker
  - EntryKind: What produced a ledger entry (base pay, bonus, ...)
  - Identifiers: Type-safe worker/shift/entry IDs

DESIGN PRINCIPLES:
  1. Immutability: Ledger entries are never modified or deleted
  2. Precision: Uses decimal.Decimal, money is never a float
  3. Auditability: Every entry carries a human-readable calculation trace
  4. Idempotency: Every entry carries a key derived from its source

USAGE:
  entry := generic.LedgerEntry{
      WorkerID: "w-1",
      ShiftID:  "shift-1",
      Kind:     generic.EntryBaseSalary,
      Amount:   generic.Dollars(decimal.RequireFromString("20.00")),
      Trace:    "8.00h × $2.50 = $20.00",
  }

SEE ALSO:
  - ledger.go: Ledger interface and idempotent append
  - tiers.go: Tiered bonus resolver
  - time.go, period.go: Fixed UTC+3 clock and periods
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDollars Unit = "usd"
	UnitHours   Unit = "hours"
)

func NewAmount(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// Dollars rounds to cents.
func Dollars(value decimal.Decimal) Amount {
	return Amount{Value: value.Round(2), Unit: UnitDollars}
}

func ZeroDollars() Amount { return Amount{Value: decimal.Zero, Unit: UnitDollars} }

// DecimalOrZero parses s, yielding zero for empty or malformed input.
// Request fields are validated as numeric before they reach it.
func DecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) IsZero() bool { return a.Value.IsZero() }
func (a Amount) IsPositive() bool { return a.Value.IsPositive() }

// String renders dollars as "$20.00" and other units as "8 hours".
func (a Amount) String() string {
	if a.Unit == UnitDollars {
		return "$" + a.Value.StringFixed(2)
	}
	return a.Value.String() + " " + string(a.Unit)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type ShiftID string
type EntryID string

// =============================================================================
// LEDGER ENTRY - Immutable record of money owed
// =============================================================================

type EntryKind string

const (
	EntryBaseSalary        EntryKind = "BASE_SALARY"
	EntryDepositCommission EntryKind = "DEPOSIT_COMMISSION"
	EntryShiftBonus        EntryKind = "SHIFT_BONUS"
	EntryMonthlyBonus      EntryKind = "MONTHLY_BONUS"
	EntryAchievementBonus  EntryKind = "ACHIEVEMENT_BONUS"
	EntryOvertimeBonus     EntryKind = "OVERTIME_BONUS"
	EntryManualAdjustment  EntryKind = "MANUAL_ADJUSTMENT"
)

var entryKinds = map[EntryKind]bool{
	EntryBaseSalary:        true,
	EntryDepositCommission: true,
	EntryShiftBonus:        true,
	EntryMonthlyBonus:      true,
	EntryAchievementBonus:  true,
	EntryOvertimeBonus:     true,
	EntryManualAdjustment:  true,
}

func (k EntryKind) Valid() bool { return entryKinds[k] }

// LedgerEntry is one immutable, typed record of money owed to a worker.
type LedgerEntry struct {
	ID        EntryID
	WorkerID  WorkerID
	ShiftID   ShiftID // empty when not shift-derived
	DepositID string  // empty when not deposit-derived
	Kind      EntryKind
	Amount    Amount

	// Inputs used by the calculation, when there is one.
	BaseAmount *decimal.Decimal
	Percentage *decimal.Decimal

	// Trace reconstructs the arithmetic, e.g. "$1200.00 × 1.5% = $18.00".
	Trace          string
	Metadata       map[string]string
	IdempotencyKey string

	// EffectiveAt is the business time the entry belongs to (shift end);
	// CreatedAt is when it was written.
	EffectiveAt time.Time
	CreatedAt   time.Time
	CreatedBy   string // "system" or an admin id
}

// Metadata keys shared by writers and readers of the ledger.
const (
	MetaAutoClosed   = "auto_closed"
	MetaShiftKind    = "shift_kind"
	MetaTierName     = "tier_name"
	MetaHours        = "hours"
	MetaCurrency     = "currency"
	MetaPeriod       = "period"
	MetaGoalID       = "goal_id"
	MetaStageID      = "stage_id"
	MetaDefaultRate  = "default_rate"
	MetaCommissionPc = "commission_rate"
)
