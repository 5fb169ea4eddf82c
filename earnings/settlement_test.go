package earnings_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/earnings"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
	"github.com/warp/shift-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func on(date string, hour, minute int) time.Time {
	day, err := generic.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	t          *testing.T
	store      *sqlstore.Store
	clock      *generic.FixedClock
	ledger     *generic.DefaultLedger
	engine     *earnings.Engine
	tracker    *earnings.Tracker
	registrar  *shifts.Registrar
	controller *shifts.Controller
	reconciler *shifts.Reconciler
}

func newFixture(t *testing.T) *fixture {
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveWorker(ctx, shifts.Worker{ID: "w-1", Name: "Ana", Role: "processor", Active: true}))
	require.NoError(t, store.SaveTemplate(ctx, shifts.Template{
		Kind: "day", Name: "Day", StartTime: "06:00", EndTime: "14:00", OffsetMinutes: 180, Active: true,
	}))
	_, err = store.SaveAssignment(ctx, shifts.Assignment{WorkerID: "w-1", Kind: "day", Active: true})
	require.NoError(t, err)

	clock := generic.NewFixedClock(on("2025-03-10", 5, 0))
	ledger := generic.NewLedger(store, clock)
	tracker := &earnings.Tracker{
		Config:       store,
		Workers:      store,
		Deposits:     store,
		Hours:        store,
		Ledger:       ledger,
		Achievements: store,
		Clock:        clock,
		Log:          zerolog.Nop(),
	}
	engine := &earnings.Engine{
		Ledger:   ledger,
		Deposits: store,
		Config:   store,
		Claims:   store,
		Goals:    tracker,
		Clock:    clock,
		Log:      zerolog.Nop(),
	}
	ctrl := shifts.NewController(store, clock, engine, zerolog.Nop())
	return &fixture{
		t:          t,
		store:      store,
		clock:      clock,
		ledger:     ledger,
		engine:     engine,
		tracker:    tracker,
		registrar:  shifts.NewRegistrar(store, clock, zerolog.Nop()),
		controller: ctrl,
		reconciler: shifts.NewReconciler(ctrl, zerolog.Nop()),
	}
}

func (f *fixture) rate(r string) {
	_, err := f.store.SetHourlyRate(context.Background(), d(r), f.clock.Now())
	require.NoError(f.t, err)
}

func (f *fixture) deposit(id string, at time.Time, amount, ownerEarnings string) {
	_, err := f.store.SaveDeposit(context.Background(), earnings.Deposit{
		ID: id, OwnerID: "w-1", Amount: d(amount), CreatedAt: at,
		CommissionRate: d("1"), OwnerEarnings: d(ownerEarnings),
	})
	require.NoError(f.t, err)
}

func (f *fixture) tiers(scope generic.TierScope, kind string, pairs ...string) {
	set := generic.TierSet{Name: string(scope) + " tiers", Scope: scope, ShiftKind: kind, Active: true}
	for i := 0; i+1 < len(pairs); i += 2 {
		set.Tiers = append(set.Tiers, generic.Tier{Name: "T" + pairs[i], Threshold: d(pairs[i]), Rate: d(pairs[i+1])})
	}
	_, err := f.store.SaveTierSet(context.Background(), set)
	require.NoError(f.t, err)
}

// work registers, starts and ends a day shift on date.
func (f *fixture) work(date string, start, end time.Time) shifts.Shift {
	ctx := context.Background()
	f.clock.Set(start.Add(-time.Hour))
	shift, err := f.registrar.Register(ctx, "w-1", "day", date)
	require.NoError(f.t, err)
	f.clock.Set(start)
	_, err = f.controller.Start(ctx, shift.ID)
	require.NoError(f.t, err)
	f.clock.Set(end)
	ended, err := f.controller.End(ctx, shift.ID)
	require.NoError(f.t, err)
	return ended
}

func (f *fixture) entries(shiftID generic.ShiftID, kind generic.EntryKind) []generic.LedgerEntry {
	all, err := f.ledger.ShiftEntries(context.Background(), shiftID)
	require.NoError(f.t, err)
	var out []generic.LedgerEntry
	for _, e := range all {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// BASE PAY
// =============================================================================

func TestSettle_BasePay_EightHoursAtTwoFifty(t *testing.T) {
	// GIVEN: actual start 06:00, actual end 14:00, hourly rate $2.50
	// THEN: BASE_SALARY is exactly $20.00

	f := newFixture(t)
	f.rate("2.5")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	base := f.entries(shift.ID, generic.EntryBaseSalary)
	require.Len(t, base, 1)
	assert.True(t, base[0].Amount.Value.Equal(d("20.00")), "got %s", base[0].Amount)
	assert.Equal(t, "8.00h × $2.50 = $20.00", base[0].Trace)
	assert.Equal(t, "shift:"+string(shift.ID)+":base_salary", base[0].IdempotencyKey)
	assert.True(t, base[0].EffectiveAt.Equal(on("2025-03-10", 14, 0)))
	assert.Equal(t, "day", base[0].Metadata[generic.MetaShiftKind])
}

func TestSettle_BasePay_TraceMultipliesOutForPartialHours(t *testing.T) {
	// GIVEN: 06:00 to 13:20 (7h20m) at $10.00
	// THEN: Paid hours are 7.33 and the trace reproduces the amount

	f := newFixture(t)
	f.rate("10")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 13, 20))

	base := f.entries(shift.ID, generic.EntryBaseSalary)
	require.Len(t, base, 1)
	assert.Equal(t, "$73.30", base[0].Amount.String())
	assert.Equal(t, "7.33h × $10.00 = $73.30", base[0].Trace)
	require.NotNil(t, base[0].BaseAmount)
	assert.Equal(t, "7.33", base[0].BaseAmount.String())
	assert.True(t, base[0].BaseAmount.Mul(d("10")).Equal(base[0].Amount.Value))
}

func TestSettle_BasePay_DefaultRateWhenUnconfigured(t *testing.T) {
	f := newFixture(t)
	f.engine.DefaultRate = d("3")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 8, 30))

	base := f.entries(shift.ID, generic.EntryBaseSalary)
	require.Len(t, base, 1)
	assert.Equal(t, "$7.50", base[0].Amount.String())
	assert.Equal(t, "true", base[0].Metadata[generic.MetaDefaultRate])
}

func TestSettle_BasePay_ImplausibleDurationSkipped(t *testing.T) {
	f := newFixture(t)
	start := on("2025-03-10", 6, 0)
	end := start.Add(25 * time.Hour)
	shift := shifts.Shift{
		ID: "s-long", OwnerID: "w-1", Kind: "day", Date: "2025-03-10",
		Status: shifts.StatusCompleted, ActualStart: &start, ActualEnd: &end,
	}

	report, err := f.engine.Run(context.Background(), shift, false)
	require.NoError(t, err)
	assert.Empty(t, f.entries(shift.ID, generic.EntryBaseSalary))
	assert.Contains(t, report.Skipped[0], "base_salary")
}

// =============================================================================
// COMMISSION AND SHIFT BONUS
// =============================================================================

func TestSettle_CommissionPerDepositInWindow(t *testing.T) {
	f := newFixture(t)
	f.rate("2.5")
	f.deposit("dep-before", on("2025-03-10", 5, 59), "100", "1.00")
	f.deposit("dep-start", on("2025-03-10", 6, 0), "100", "1.00")
	f.deposit("dep-zero", on("2025-03-10", 9, 0), "50", "0")
	f.deposit("dep-end", on("2025-03-10", 14, 0), "300", "3.00")
	f.deposit("dep-after", on("2025-03-10", 14, 1), "100", "1.00")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	commissions := f.entries(shift.ID, generic.EntryDepositCommission)
	require.Len(t, commissions, 2, "window is inclusive and zero earnings are skipped")
	ids := []string{commissions[0].DepositID, commissions[1].DepositID}
	assert.ElementsMatch(t, []string{"dep-start", "dep-end"}, ids)
}

func TestSettle_ShiftBonus_TwelveHundredAtOnePointFive(t *testing.T) {
	// GIVEN: Shift-window deposits summing to $1,200 and tiers [(0, 0.5%), (1000, 1.5%)]
	// THEN: SHIFT_BONUS is exactly $18.00

	f := newFixture(t)
	f.rate("2.5")
	f.tiers(generic.ScopeShift, "day", "0", "0.5", "1000", "1.5")
	f.deposit("dep-1", on("2025-03-10", 7, 0), "700", "7.00")
	f.deposit("dep-2", on("2025-03-10", 11, 0), "500", "5.00")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	bonus := f.entries(shift.ID, generic.EntryShiftBonus)
	require.Len(t, bonus, 1)
	assert.True(t, bonus[0].Amount.Value.Equal(d("18")), "got %s", bonus[0].Amount)
	assert.Equal(t, "$1200.00 × 1.5% = $18.00", bonus[0].Trace)
	assert.Equal(t, "T1000", bonus[0].Metadata[generic.MetaTierName])
	require.NotNil(t, bonus[0].Percentage)
	assert.True(t, bonus[0].Percentage.Equal(d("1.5")))
}

func TestSettle_ShiftBonus_NoEntryBelowLowestTier(t *testing.T) {
	f := newFixture(t)
	f.tiers(generic.ScopeShift, "day", "100", "1")
	f.deposit("dep-1", on("2025-03-10", 7, 0), "99.99", "1.00")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	assert.Empty(t, f.entries(shift.ID, generic.EntryShiftBonus))
}

func TestSettle_ShiftBonus_NoEntryForZeroBonus(t *testing.T) {
	f := newFixture(t)
	f.tiers(generic.ScopeShift, "day", "0", "0")
	f.deposit("dep-1", on("2025-03-10", 7, 0), "500", "1.00")

	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	assert.Empty(t, f.entries(shift.ID, generic.EntryShiftBonus))
}

// =============================================================================
// MONTHLY BONUS
// =============================================================================

func TestSettle_MonthlyBonus_OnlyOnLastDayOfMonth(t *testing.T) {
	f := newFixture(t)
	f.tiers(generic.ScopeMonthly, "", "0", "0.5", "5000", "1")
	f.deposit("dep-feb", on("2025-02-28", 10, 0), "9000", "0")
	f.deposit("dep-early", on("2025-03-02", 10, 0), "4000", "0")
	f.deposit("dep-late", on("2025-03-31", 10, 0), "2000", "0")

	mid := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))
	assert.Empty(t, f.entries(mid.ID, generic.EntryMonthlyBonus))

	last := f.work("2025-03-31", on("2025-03-31", 6, 0), on("2025-03-31", 14, 0))
	monthly := f.entries(last.ID, generic.EntryMonthlyBonus)
	require.Len(t, monthly, 1)
	assert.Equal(t, "$60.00", monthly[0].Amount.String(), "March volume $6,000 at 1%")
	assert.Equal(t, "monthly_bonus:w-1:2025-03", monthly[0].IdempotencyKey)
	assert.Equal(t, "2025-03", monthly[0].Metadata[generic.MetaPeriod])
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestSettle_SecondRunIsRejected(t *testing.T) {
	f := newFixture(t)
	f.rate("2.5")
	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	_, err := f.engine.Run(context.Background(), shift, true)
	assert.ErrorIs(t, err, generic.ErrAlreadySettled)
	assert.Len(t, f.entries(shift.ID, generic.EntryBaseSalary), 1)
}

func TestResettle_FillsOnlyMissingEntries(t *testing.T) {
	// GIVEN: A settled shift, and a shift tier set configured afterwards
	// WHEN: Resettle runs
	// THEN: Only the shift bonus is added; base pay is not duplicated

	f := newFixture(t)
	f.rate("2.5")
	f.deposit("dep-1", on("2025-03-10", 7, 0), "1200", "0")
	shift := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))
	require.Empty(t, f.entries(shift.ID, generic.EntryShiftBonus))

	f.tiers(generic.ScopeShift, "day", "0", "0.5", "1000", "1.5")
	report, err := f.engine.Resettle(context.Background(), shift)
	require.NoError(t, err)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, generic.EntryShiftBonus, report.Entries[0].Kind)
	assert.Len(t, f.entries(shift.ID, generic.EntryBaseSalary), 1)
}

func TestSettle_RejectsIncompleteShift(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Run(context.Background(), shifts.Shift{ID: "s", Status: shifts.StatusActive}, false)
	assert.ErrorIs(t, err, generic.ErrConflict)
}

// =============================================================================
// RECONCILER PARITY
// =============================================================================

func TestSettle_AutoClosedMatchesOnTimeEnd(t *testing.T) {
	// GIVEN: Two identical days, one ended at 14:00 explicitly and one left
	//        ACTIVE and swept at 15:30
	// THEN: Both settle to the same amounts; the swept one is tagged auto-closed

	f := newFixture(t)
	f.rate("2.5")
	f.tiers(generic.ScopeShift, "day", "0", "0.5", "1000", "1.5")
	f.deposit("dep-10", on("2025-03-10", 9, 0), "1200", "12.00")
	f.deposit("dep-11", on("2025-03-11", 9, 0), "1200", "12.00")

	explicit := f.work("2025-03-10", on("2025-03-10", 6, 0), on("2025-03-10", 14, 0))

	ctx := context.Background()
	f.clock.Set(on("2025-03-11", 5, 0))
	swept, err := f.registrar.Register(ctx, "w-1", "day", "2025-03-11")
	require.NoError(t, err)
	f.clock.Set(on("2025-03-11", 6, 0))
	_, err = f.controller.Start(ctx, swept.ID)
	require.NoError(t, err)
	f.clock.Set(on("2025-03-11", 15, 30))
	_, err = f.reconciler.SweepOwner(ctx, "w-1")
	require.NoError(t, err)

	for _, kind := range []generic.EntryKind{generic.EntryBaseSalary, generic.EntryDepositCommission, generic.EntryShiftBonus} {
		a := f.entries(explicit.ID, kind)
		b := f.entries(swept.ID, kind)
		require.Len(t, a, 1, kind)
		require.Len(t, b, 1, kind)
		assert.True(t, a[0].Amount.Value.Equal(b[0].Amount.Value), kind)
		assert.Equal(t, "true", b[0].Metadata[generic.MetaAutoClosed])
		assert.Empty(t, a[0].Metadata[generic.MetaAutoClosed])
	}
}

// =============================================================================
// CONFIG CACHE
// =============================================================================

type countingConfig struct {
	earnings.ConfigSource
	rateCalls int
}

func (c *countingConfig) ActiveHourlyRate(ctx context.Context) (earnings.HourlyRate, error) {
	c.rateCalls++
	return c.ConfigSource.ActiveHourlyRate(ctx)
}

func TestCachedConfig_CachesUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := &countingConfig{ConfigSource: f.store}
	cfg := earnings.NewCachedConfig(src, time.Minute)

	_, err := cfg.ActiveHourlyRate(ctx)
	assert.ErrorIs(t, err, generic.ErrNotFound, "misses are cached too")
	_, err = cfg.ActiveHourlyRate(ctx)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.Equal(t, 1, src.rateCalls)

	f.rate("4")
	cfg.Invalidate()
	rate, err := cfg.ActiveHourlyRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(d("4")))
	assert.Equal(t, 2, src.rateCalls)
}
