package earnings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// GOAL / STAGE TRACKER
// =============================================================================

// Tracker awards one-time stage rewards when a worker's cumulative metric
// for the current goal period reaches a stage target.
//
// Stages are independent: every reached stage without an achievement in
// the period is recorded, so reaching stage 3 first credits 1, 2 and 3 in
// one pass, and re-evaluating later credits nothing new. The unique
// (worker, stage, period) row is what keeps a racing evaluation from
// paying twice.
type Tracker struct {
	Config       ConfigSource
	Workers      WorkerDirectory
	Deposits     DepositSource
	Hours        HoursSource
	Ledger       generic.Ledger
	Achievements AchievementStore
	Clock        generic.Clock
	Log          zerolog.Logger
}

type metricKey struct {
	metric Metric
	period string
}

// Evaluate checks every active goal for the worker's role at instant at.
func (t *Tracker) Evaluate(ctx context.Context, workerID generic.WorkerID, at time.Time) ([]GoalAchievement, []generic.LedgerEntry, error) {
	// Unknown workers only see goals open to every role.
	worker, err := t.Workers.Worker(ctx, workerID)
	if err != nil && !generic.IsNotFound(err) {
		return nil, nil, err
	}
	goals, err := t.Config.ActiveGoals(ctx, worker.Role)
	if err != nil {
		return nil, nil, err
	}

	var (
		awarded []GoalAchievement
		entries []generic.LedgerEntry
		errs    []error
		values  = make(map[metricKey]decimal.Decimal)
	)
	for _, goal := range goals {
		period := generic.PeriodFor(goal.Granularity, at)
		k := metricKey{metric: goal.Metric, period: period.String()}
		value, ok := values[k]
		if !ok {
			value, err = t.Measure(ctx, workerID, goal.Metric, period)
			if err != nil {
				errs = append(errs, fmt.Errorf("goal %s: %w", goal.ID, err))
				continue
			}
			values[k] = value
		}

		for _, stage := range orderedStages(goal.Stages) {
			if value.LessThan(stage.Target) {
				break
			}
			a, e, err := t.award(ctx, workerID, goal, stage, period, value, at)
			switch {
			case errors.Is(err, generic.ErrAlreadyExists):
				continue
			case err != nil:
				errs = append(errs, fmt.Errorf("goal %s stage %s: %w", goal.ID, stage.ID, err))
				continue
			}
			awarded = append(awarded, a)
			if e != nil {
				entries = append(entries, *e)
			}
		}
	}
	return awarded, entries, errors.Join(errs...)
}

// Measure computes a worker's cumulative metric over p.
func (t *Tracker) Measure(ctx context.Context, workerID generic.WorkerID, m Metric, p generic.Period) (decimal.Decimal, error) {
	switch m {
	case MetricDepositCount:
		deposits, err := t.Deposits.DepositsInPeriod(ctx, workerID, p)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(int64(len(deposits))), nil
	case MetricDepositVolume:
		deposits, err := t.Deposits.DepositsInPeriod(ctx, workerID, p)
		if err != nil {
			return decimal.Zero, err
		}
		return SumAmounts(deposits), nil
	case MetricHours:
		return t.Hours.WorkedHours(ctx, workerID, p)
	case MetricEarnings:
		entries, err := t.Ledger.Entries(ctx, workerID, p)
		if err != nil {
			return decimal.Zero, err
		}
		total := decimal.Zero
		for _, e := range entries {
			// Stage rewards do not count towards further stages.
			if e.Kind != generic.EntryAchievementBonus {
				total = total.Add(e.Amount.Value)
			}
		}
		return total, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown metric %q", generic.ErrInvalidData, m)
	}
}

func (t *Tracker) award(ctx context.Context, workerID generic.WorkerID, goal Goal, stage GoalStage,
	period generic.Period, value decimal.Decimal, at time.Time) (GoalAchievement, *generic.LedgerEntry, error) {

	key := period.Key()
	exists, err := t.Achievements.AchievementExists(ctx, workerID, stage.ID, key)
	if err != nil {
		return GoalAchievement{}, nil, err
	}
	if exists {
		return GoalAchievement{}, nil, generic.ErrAlreadyExists
	}

	now := t.clock().Now()
	a := GoalAchievement{
		ID:         uuid.NewString(),
		WorkerID:   workerID,
		GoalID:     goal.ID,
		StageID:    stage.ID,
		PeriodKey:  key,
		Observed:   value,
		Reward:     stage.Reward.Round(2),
		AchievedAt: now,
	}

	var entry *generic.LedgerEntry
	if stage.Reward.IsPositive() {
		target := stage.Target
		trace := fmt.Sprintf("%s: %s %s ≥ %s → $%s",
			goal.Name, goal.Metric, value.String(), stage.Target.String(), stage.Reward.StringFixed(2))
		entry = &generic.LedgerEntry{
			ID:         generic.EntryID(uuid.NewString()),
			WorkerID:   workerID,
			Kind:       generic.EntryAchievementBonus,
			Amount:     generic.Dollars(stage.Reward),
			BaseAmount: &target,
			Trace:      trace,
			Metadata: map[string]string{
				generic.MetaGoalID:  goal.ID,
				generic.MetaStageID: stage.ID,
				generic.MetaPeriod:  key,
			},
			IdempotencyKey: fmt.Sprintf("achievement:%s:%s:%s", workerID, stage.ID, key),
			EffectiveAt:    at,
			CreatedAt:      now,
			CreatedBy:      "system",
		}
	}

	if err := t.Achievements.RecordAchievement(ctx, a, entry); err != nil {
		if generic.IsDuplicate(err) {
			err = generic.ErrAlreadyExists
		}
		return GoalAchievement{}, nil, err
	}

	t.Log.Info().
		Str("worker_id", string(workerID)).
		Str("goal_id", goal.ID).
		Str("stage_id", stage.ID).
		Str("period", key).
		Str("reward", a.Reward.StringFixed(2)).
		Msg("goal stage achieved")
	return a, entry, nil
}

func (t *Tracker) clock() generic.Clock {
	if t.Clock == nil {
		return generic.SystemClock{}
	}
	return t.Clock
}

// orderedStages sorts by target, then position.
func orderedStages(stages []GoalStage) []GoalStage {
	out := append([]GoalStage(nil), stages...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Target.Equal(out[j].Target) {
			return out[i].Target.LessThan(out[j].Target)
		}
		return out[i].Position < out[j].Position
	})
	return out
}
