/*
Package earnings settles completed shifts into ledger entries.

SOURCES OF EARNINGS (per completed shift):
  BASE_SALARY          worked hours × active hourly rate
  DEPOSIT_COMMISSION   precomputed owner earnings of each deposit in the window
  SHIFT_BONUS          shift volume × rate of the shift-kind tier set
  MONTHLY_BONUS        month volume × rate of the monthly tier set (last day only)
  ACHIEVEMENT_BONUS    one-time goal stage rewards

Deposits, rates, tier sets and goals are read-only inputs owned by other
subsystems. This package only reads the currently active rows.

SEE ALSO:
  - settlement.go: Engine
  - goals.go: Tracker
  - cache.go: TTL cache over the configuration source
*/
package earnings

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
)

// =============================================================================
// INPUT FACTS
// =============================================================================

// Deposit is a payment handled by a worker. Commission and bonus are
// computed upstream; OwnerEarnings is what the worker earned from it.
type Deposit struct {
	ID             string
	OwnerID        generic.WorkerID
	Amount         decimal.Decimal
	Currency       string
	CreatedAt      time.Time
	CommissionRate decimal.Decimal
	BonusAmount    decimal.Decimal
	OwnerEarnings  decimal.Decimal
}

// SumAmounts returns the total deposit volume.
func SumAmounts(deposits []Deposit) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deposits {
		total = total.Add(d.Amount)
	}
	return total
}

type HourlyRate struct {
	ID        string
	Rate      decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// GOALS
// =============================================================================

type Metric string

const (
	MetricEarnings      Metric = "earnings"
	MetricDepositCount  Metric = "deposit_count"
	MetricDepositVolume Metric = "deposit_volume"
	MetricHours         Metric = "hours"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricEarnings, MetricDepositCount, MetricDepositVolume, MetricHours:
		return true
	}
	return false
}

// Goal is a staged target over a metric and a period granularity. An empty
// Role applies to every worker.
type Goal struct {
	ID          string
	Name        string
	Metric      Metric
	Granularity generic.Granularity
	Role        string
	Active      bool
	Stages      []GoalStage
}

type GoalStage struct {
	ID       string
	GoalID   string
	Position int
	Name     string
	Target   decimal.Decimal
	Reward   decimal.Decimal
}

// GoalAchievement records that a worker reached a stage in a period.
// (WorkerID, StageID, PeriodKey) is unique.
type GoalAchievement struct {
	ID         string
	WorkerID   generic.WorkerID
	GoalID     string
	StageID    string
	PeriodKey  string
	Observed   decimal.Decimal
	Reward     decimal.Decimal
	AchievedAt time.Time
}

// =============================================================================
// COLLABORATORS
// =============================================================================

type DepositSource interface {
	// DepositsInWindow returns the owner's deposits with from <= created_at <= to.
	DepositsInWindow(ctx context.Context, ownerID generic.WorkerID, from, to time.Time) ([]Deposit, error)

	// DepositsInPeriod returns the owner's deposits with created_at in [p.Start, p.End).
	DepositsInPeriod(ctx context.Context, ownerID generic.WorkerID, p generic.Period) ([]Deposit, error)
}

// ConfigSource reads administrator-edited configuration. Each lookup returns
// generic.ErrNotFound when nothing active is configured.
type ConfigSource interface {
	ActiveHourlyRate(ctx context.Context) (HourlyRate, error)
	ActiveTierSet(ctx context.Context, scope generic.TierScope, shiftKind string) (generic.TierSet, error)
	ActiveGoals(ctx context.Context, role string) ([]Goal, error)
}

// SettlementClaims guards against settling a shift twice.
type SettlementClaims interface {
	// ClaimSettlement returns generic.ErrAlreadySettled if the shift was claimed.
	ClaimSettlement(ctx context.Context, shiftID generic.ShiftID, autoClosed bool, at time.Time) error
}

type AchievementStore interface {
	AchievementExists(ctx context.Context, workerID generic.WorkerID, stageID, periodKey string) (bool, error)

	// RecordAchievement stores the achievement and, when entry is not nil,
	// its ledger entry in one transaction. Returns generic.ErrAlreadyExists
	// if (worker, stage, period) is taken.
	RecordAchievement(ctx context.Context, a GoalAchievement, entry *generic.LedgerEntry) error
}

type HoursSource interface {
	// WorkedHours sums actual hours of completed shifts ending in p.
	WorkedHours(ctx context.Context, ownerID generic.WorkerID, p generic.Period) (decimal.Decimal, error)
}

type WorkerDirectory interface {
	Worker(ctx context.Context, id generic.WorkerID) (shifts.Worker, error)
}
