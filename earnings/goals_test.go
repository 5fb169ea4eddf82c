package earnings_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/earnings"
	"github.com/warp/shift-engine/generic"
)

func (f *fixture) goal(id string, metric earnings.Metric, g generic.Granularity, role string, stages ...string) {
	goal := earnings.Goal{ID: id, Name: id, Metric: metric, Granularity: g, Role: role, Active: true}
	for i := 0; i+1 < len(stages); i += 2 {
		goal.Stages = append(goal.Stages, earnings.GoalStage{
			Name: fmt.Sprintf("stage %d", i/2+1), Target: d(stages[i]), Reward: d(stages[i+1]),
		})
	}
	_, err := f.store.SaveGoal(context.Background(), goal)
	require.NoError(f.t, err)
}

func (f *fixture) achievementEntries() []generic.LedgerEntry {
	entries, err := f.ledger.Entries(context.Background(), "w-1", generic.MonthOf(f.clock.Now()))
	require.NoError(f.t, err)
	var out []generic.LedgerEntry
	for _, e := range entries {
		if e.Kind == generic.EntryAchievementBonus {
			out = append(out, e)
		}
	}
	return out
}

func TestGoals_StagePaidOncePerPeriod(t *testing.T) {
	// GIVEN: A daily goal "25 deposits → $5"
	// WHEN: The worker reaches 25 deposits and is evaluated twice
	// THEN: Exactly one $5 ACHIEVEMENT_BONUS exists

	f := newFixture(t)
	f.goal("daily-deposits", earnings.MetricDepositCount, generic.GranularityDaily, "", "25", "5")
	for i := 0; i < 25; i++ {
		f.deposit(fmt.Sprintf("dep-%02d", i), on("2025-03-10", 7, i), "10", "0")
	}
	ctx := context.Background()
	f.clock.Set(on("2025-03-10", 12, 0))

	awarded, entries, err := f.tracker.Evaluate(ctx, "w-1", f.clock.Now())
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, "$5.00", entries[0].Amount.String())
	assert.Equal(t, "2025-03-10", awarded[0].PeriodKey)
	assert.Equal(t, "achievement:w-1:daily-deposits-stage-1:2025-03-10", entries[0].IdempotencyKey)

	awarded, entries, err = f.tracker.Evaluate(ctx, "w-1", f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, awarded)
	assert.Empty(t, entries)
	assert.Len(t, f.achievementEntries(), 1)
}

func TestGoals_BelowTargetAwardsNothing(t *testing.T) {
	f := newFixture(t)
	f.goal("daily-deposits", earnings.MetricDepositCount, generic.GranularityDaily, "", "25", "5")
	for i := 0; i < 24; i++ {
		f.deposit(fmt.Sprintf("dep-%02d", i), on("2025-03-10", 7, i), "10", "0")
	}

	awarded, _, err := f.tracker.Evaluate(context.Background(), "w-1", on("2025-03-10", 12, 0))
	require.NoError(t, err)
	assert.Empty(t, awarded)
}

func TestGoals_JumpingPastSeveralStagesCreditsEach(t *testing.T) {
	f := newFixture(t)
	f.goal("volume", earnings.MetricDepositVolume, generic.GranularityMonthly, "", "100", "1", "500", "3", "1000", "10")
	f.deposit("dep-big", on("2025-03-05", 9, 0), "600", "0")

	awarded, entries, err := f.tracker.Evaluate(context.Background(), "w-1", on("2025-03-05", 9, 0))
	require.NoError(t, err)
	assert.Len(t, awarded, 2)
	assert.Equal(t, "$4.00", generic.SumEntries(entries).Total.String())
}

func TestGoals_NewPeriodStartsOver(t *testing.T) {
	f := newFixture(t)
	f.goal("daily-deposits", earnings.MetricDepositCount, generic.GranularityDaily, "", "1", "2")
	f.deposit("dep-mon", on("2025-03-10", 9, 0), "10", "0")
	f.deposit("dep-tue", on("2025-03-11", 9, 0), "10", "0")
	ctx := context.Background()

	first, _, err := f.tracker.Evaluate(ctx, "w-1", on("2025-03-10", 23, 0))
	require.NoError(t, err)
	second, _, err := f.tracker.Evaluate(ctx, "w-1", on("2025-03-11", 10, 0))
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].PeriodKey, second[0].PeriodKey)
}

func TestGoals_RoleScoped(t *testing.T) {
	f := newFixture(t)
	f.goal("closers-only", earnings.MetricDepositCount, generic.GranularityDaily, "closer", "1", "5")
	f.goal("everyone", earnings.MetricDepositCount, generic.GranularityDaily, "", "1", "1")
	f.deposit("dep-1", on("2025-03-10", 9, 0), "10", "0")

	awarded, _, err := f.tracker.Evaluate(context.Background(), "w-1", on("2025-03-10", 10, 0))
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, "everyone", awarded[0].GoalID)
}

func TestGoals_ZeroRewardRecordsWithoutEntry(t *testing.T) {
	f := newFixture(t)
	f.goal("badge", earnings.MetricDepositCount, generic.GranularityDaily, "", "1", "0")
	f.deposit("dep-1", on("2025-03-10", 9, 0), "10", "0")

	awarded, entries, err := f.tracker.Evaluate(context.Background(), "w-1", on("2025-03-10", 10, 0))
	require.NoError(t, err)
	assert.Len(t, awarded, 1)
	assert.Empty(t, entries)

	stored, err := f.store.AchievementsByWorker(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestGoals_EarningsMetricIgnoresStageRewards(t *testing.T) {
	// GIVEN: An earnings goal with stages at $20 and $25, and an $8 first reward
	// WHEN: $20 of base pay is earned
	// THEN: Only stage 1 pays; its own reward does not lift earnings to $28

	f := newFixture(t)
	f.rate("2.5")
	f.goal("earner", earnings.MetricEarnings, generic.GranularityDaily, "", "20", "8", "25", "1")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))
	require.Len(t, f.entries(shift.ID, generic.EntryBaseSalary), 1)

	value, err := f.tracker.Measure(context.Background(), "w-1", earnings.MetricEarnings, generic.DayOf(on("2025-03-10", 14, 0)))
	require.NoError(t, err)
	assert.True(t, value.Equal(d("20")), "got %s", value)

	achievements := f.achievementEntries()
	require.Len(t, achievements, 1)
	assert.Equal(t, "$8.00", achievements[0].Amount.String())
}

func TestGoals_HoursMetric(t *testing.T) {
	f := newFixture(t)
	f.goal("long-day", earnings.MetricHours, generic.GranularityDaily, "", "7.5", "3")

	f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	hours, err := f.store.WorkedHours(context.Background(), "w-1", generic.DayOf(on("2025-03-10", 14, 0)))
	require.NoError(t, err)
	assert.True(t, hours.Equal(d("8")))
	assert.Len(t, f.achievementEntries(), 1, "settlement runs goal evaluation")
}
