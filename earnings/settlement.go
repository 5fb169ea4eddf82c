/*
settlement.go - Earnings Settlement Engine

PURPOSE:
  Turns one completed shift into ledger entries. Runs synchronously from
  shifts.Controller on every completion (explicit end or reconciler).

FLOW:
  0. Claim the settlement for the shift id (unique row). A second claim,
     from a racing end() and sweep, returns ErrAlreadySettled and stops.
  1. Base pay          BASE_SALARY        hours × rate
  2. Commission        DEPOSIT_COMMISSION one per deposit, owner earnings > 0
  3. Shift bonus       SHIFT_BONUS        volume × tier rate (kind-scoped set)
  4. Monthly bonus     MONTHLY_BONUS      only on the last day of the month
  5. Goals             ACHIEVEMENT_BONUS  see goals.go

  Every step is best-effort: an error is logged and collected, and the
  next step still runs. The shift is already COMPLETED when this starts.

IDEMPOTENCY KEYS:
  shift:<id>:base_salary
  shift:<id>:deposit_commission:<deposit id>
  shift:<id>:shift_bonus
  monthly_bonus:<worker>:<yyyy-mm>
  achievement:<worker>:<stage>:<period key>

  Resettle reruns steps 1-5 without a claim; entries that already exist
  are skipped by key, so it only fills in what a partial run left out.
*/
package earnings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
)

// MaxShiftDuration bounds base pay against clock anomalies.
const MaxShiftDuration = 24 * time.Hour

// DefaultHourlyRate applies when no hourly rate is configured.
var DefaultHourlyRate = decimal.RequireFromString("2.50")

type Engine struct {
	Ledger      generic.Ledger
	Deposits    DepositSource
	Config      ConfigSource
	Claims      SettlementClaims
	Goals       *Tracker // optional
	Clock       generic.Clock
	DefaultRate decimal.Decimal
	Log         zerolog.Logger
}

// Report lists what one settlement run wrote and skipped.
type Report struct {
	ShiftID generic.ShiftID
	Entries []generic.LedgerEntry
	Skipped []string
	Awarded []GoalAchievement
	Errors  []error
}

func (r *Report) skip(format string, args ...any) {
	r.Skipped = append(r.Skipped, fmt.Sprintf(format, args...))
}

// Err joins the step errors, nil when every step succeeded.
func (r Report) Err() error { return errors.Join(r.Errors...) }

func (r Report) Total() generic.Amount { return generic.SumEntries(r.Entries).Total }

// Settle implements shifts.Settler.
func (e *Engine) Settle(ctx context.Context, s shifts.Shift, autoClosed bool) error {
	_, err := e.Run(ctx, s, autoClosed)
	return err
}

// Run claims and settles a completed shift.
func (e *Engine) Run(ctx context.Context, s shifts.Shift, autoClosed bool) (Report, error) {
	report := Report{ShiftID: s.ID}
	if err := checkSettleable(s); err != nil {
		return report, err
	}
	if err := e.Claims.ClaimSettlement(ctx, s.ID, autoClosed, e.now()); err != nil {
		if errors.Is(err, generic.ErrAlreadySettled) {
			e.Log.Debug().Str("shift_id", string(s.ID)).Msg("settlement already claimed")
		}
		return report, err
	}
	e.settle(ctx, s, autoClosed, &report)
	return report, report.Err()
}

// Resettle reruns settlement for a completed shift without claiming it.
func (e *Engine) Resettle(ctx context.Context, s shifts.Shift) (Report, error) {
	report := Report{ShiftID: s.ID}
	if err := checkSettleable(s); err != nil {
		return report, err
	}
	e.settle(ctx, s, s.AutoClosed, &report)
	return report, report.Err()
}

func checkSettleable(s shifts.Shift) error {
	if s.Status != shifts.StatusCompleted || s.ActualStart == nil || s.ActualEnd == nil {
		return fmt.Errorf("%w: shift %s is %s, only completed shifts are settled", generic.ErrConflict, s.ID, s.Status)
	}
	return nil
}

func (e *Engine) settle(ctx context.Context, s shifts.Shift, autoClosed bool, r *Report) {
	log := e.Log.With().Str("shift_id", string(s.ID)).Str("worker_id", string(s.OwnerID)).Logger()

	e.step(ctx, log, r, "base_salary", func() error { return e.basePay(ctx, s, autoClosed, r) })

	deposits, err := e.Deposits.DepositsInWindow(ctx, s.OwnerID, *s.ActualStart, *s.ActualEnd)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("load shift deposits: %w", err))
		log.Error().Err(err).Msg("deposits unavailable, skipping commission and shift bonus")
	} else {
		e.step(ctx, log, r, "deposit_commission", func() error { return e.commissions(ctx, s, autoClosed, deposits, r) })
		e.step(ctx, log, r, "shift_bonus", func() error { return e.shiftBonus(ctx, s, autoClosed, deposits, r) })
	}

	e.step(ctx, log, r, "monthly_bonus", func() error { return e.monthlyBonus(ctx, s, autoClosed, r) })

	if e.Goals != nil {
		e.step(ctx, log, r, "goals", func() error {
			awarded, entries, err := e.Goals.Evaluate(ctx, s.OwnerID, *s.ActualEnd)
			r.Awarded = append(r.Awarded, awarded...)
			r.Entries = append(r.Entries, entries...)
			return err
		})
	}

	log.Info().
		Int("entries", len(r.Entries)).
		Int("skipped", len(r.Skipped)).
		Int("errors", len(r.Errors)).
		Str("total", r.Total().String()).
		Bool("auto_closed", autoClosed).
		Msg("shift settled")
}

func (e *Engine) step(ctx context.Context, log zerolog.Logger, r *Report, name string, fn func() error) {
	if err := ctx.Err(); err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("%s: %w", name, err))
		return
	}
	if err := fn(); err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("%s: %w", name, err))
		log.Error().Err(err).Str("step", name).Msg("settlement step failed")
	}
}

// =============================================================================
// STEP 1 - BASE PAY
// =============================================================================

var secondsPerHour = decimal.NewFromInt(3600)

func (e *Engine) basePay(ctx context.Context, s shifts.Shift, autoClosed bool, r *Report) error {
	worked := s.Worked()
	if worked <= 0 || worked > MaxShiftDuration {
		e.Log.Warn().
			Str("shift_id", string(s.ID)).
			Dur("worked", worked).
			Msg("implausible shift duration, base pay skipped")
		r.skip("base_salary: implausible duration %s", worked)
		return nil
	}

	meta := e.meta(s, autoClosed)
	rate, err := e.hourlyRate(ctx)
	if err != nil {
		return err
	}
	if rate.ID == "" {
		meta[generic.MetaDefaultRate] = "true"
	}

	// Paid hours are the rounded figure shown in the trace, so the trace
	// multiplies out to the amount.
	hours := decimal.NewFromInt(int64(worked / time.Second)).Div(secondsPerHour).Round(2)
	amount := hours.Mul(rate.Rate).Round(2)
	meta[generic.MetaHours] = hours.StringFixed(2)

	return e.write(ctx, r, generic.LedgerEntry{
		WorkerID:       s.OwnerID,
		ShiftID:        s.ID,
		Kind:           generic.EntryBaseSalary,
		Amount:         generic.Dollars(amount),
		BaseAmount:     &hours,
		Trace:          fmt.Sprintf("%sh × $%s = $%s", hours.StringFixed(2), rate.Rate.StringFixed(2), amount.StringFixed(2)),
		Metadata:       meta,
		IdempotencyKey: fmt.Sprintf("shift:%s:base_salary", s.ID),
		EffectiveAt:    *s.ActualEnd,
	})
}

func (e *Engine) hourlyRate(ctx context.Context) (HourlyRate, error) {
	rate, err := e.Config.ActiveHourlyRate(ctx)
	if errors.Is(err, generic.ErrNotFound) {
		def := e.DefaultRate
		if def.IsZero() {
			def = DefaultHourlyRate
		}
		return HourlyRate{Rate: def, Active: true}, nil
	}
	return rate, err
}

// =============================================================================
// STEP 2 - COMMISSION PASS-THROUGH
// =============================================================================

func (e *Engine) commissions(ctx context.Context, s shifts.Shift, autoClosed bool, deposits []Deposit, r *Report) error {
	var errs []error
	for _, d := range deposits {
		if !d.OwnerEarnings.IsPositive() {
			continue
		}
		meta := e.meta(s, autoClosed)
		if d.Currency != "" {
			meta[generic.MetaCurrency] = d.Currency
		}
		meta[generic.MetaCommissionPc] = d.CommissionRate.String()
		amount := d.Amount
		rate := d.CommissionRate
		err := e.write(ctx, r, generic.LedgerEntry{
			WorkerID:       s.OwnerID,
			ShiftID:        s.ID,
			DepositID:      d.ID,
			Kind:           generic.EntryDepositCommission,
			Amount:         generic.Dollars(d.OwnerEarnings),
			BaseAmount:     &amount,
			Percentage:     &rate,
			Trace:          fmt.Sprintf("deposit %s: $%s → $%s", d.ID, d.Amount.StringFixed(2), d.OwnerEarnings.StringFixed(2)),
			Metadata:       meta,
			IdempotencyKey: fmt.Sprintf("shift:%s:deposit_commission:%s", s.ID, d.ID),
			EffectiveAt:    *s.ActualEnd,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// STEP 3 - SHIFT VOLUME BONUS
// =============================================================================

func (e *Engine) shiftBonus(ctx context.Context, s shifts.Shift, autoClosed bool, deposits []Deposit, r *Report) error {
	volume := SumAmounts(deposits)
	set, err := e.Config.ActiveTierSet(ctx, generic.ScopeShift, string(s.Kind))
	if errors.Is(err, generic.ErrNotFound) {
		r.skip("shift_bonus: no tier set for kind %s", s.Kind)
		return nil
	}
	if err != nil {
		return err
	}
	return e.tierBonus(ctx, r, set, volume, generic.EntryShiftBonus, s, autoClosed,
		fmt.Sprintf("shift:%s:shift_bonus", s.ID), "")
}

// =============================================================================
// STEP 4 - MONTHLY VOLUME BONUS
// =============================================================================

func (e *Engine) monthlyBonus(ctx context.Context, s shifts.Shift, autoClosed bool, r *Report) error {
	day, err := generic.ParseDate(s.Date)
	if err != nil {
		return fmt.Errorf("%w: shift date %q", generic.ErrInvalidData, s.Date)
	}
	if !generic.IsLastDayOfMonth(day) {
		return nil
	}

	month := generic.MonthOf(day)
	deposits, err := e.Deposits.DepositsInPeriod(ctx, s.OwnerID, month)
	if err != nil {
		return err
	}
	set, err := e.Config.ActiveTierSet(ctx, generic.ScopeMonthly, "")
	if errors.Is(err, generic.ErrNotFound) {
		r.skip("monthly_bonus: no monthly tier set")
		return nil
	}
	if err != nil {
		return err
	}
	monthKey := month.Start.Format("2006-01")
	return e.tierBonus(ctx, r, set, SumAmounts(deposits), generic.EntryMonthlyBonus, s, autoClosed,
		fmt.Sprintf("monthly_bonus:%s:%s", s.OwnerID, monthKey), monthKey)
}

// tierBonus resolves volume against set and writes nothing when no tier
// applies or the bonus rounds to zero.
func (e *Engine) tierBonus(ctx context.Context, r *Report, set generic.TierSet, volume decimal.Decimal,
	kind generic.EntryKind, s shifts.Shift, autoClosed bool, key, period string) error {

	tier, ok := set.Resolve(volume)
	if !ok {
		r.skip("%s: volume $%s below lowest tier of %q", kind, volume.StringFixed(2), set.Name)
		return nil
	}
	bonus := tier.Apply(volume)
	if !bonus.IsPositive() {
		r.skip("%s: zero bonus at tier %q", kind, tier.Name)
		return nil
	}

	meta := e.meta(s, autoClosed)
	meta[generic.MetaTierName] = tier.Name
	if period != "" {
		meta[generic.MetaPeriod] = period
	}
	rate := tier.Rate
	return e.write(ctx, r, generic.LedgerEntry{
		WorkerID:       s.OwnerID,
		ShiftID:        s.ID,
		Kind:           kind,
		Amount:         generic.Dollars(bonus),
		BaseAmount:     &volume,
		Percentage:     &rate,
		Trace:          tier.Trace(volume),
		Metadata:       meta,
		IdempotencyKey: key,
		EffectiveAt:    *s.ActualEnd,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// write appends an entry; an existing idempotency key counts as done.
func (e *Engine) write(ctx context.Context, r *Report, entry generic.LedgerEntry) error {
	written, err := e.Ledger.Append(ctx, entry)
	if generic.IsDuplicate(err) {
		r.skip("%s: already recorded", entry.IdempotencyKey)
		return nil
	}
	if err != nil {
		return err
	}
	r.Entries = append(r.Entries, written)
	return nil
}

func (e *Engine) meta(s shifts.Shift, autoClosed bool) map[string]string {
	m := map[string]string{generic.MetaShiftKind: string(s.Kind)}
	if autoClosed {
		m[generic.MetaAutoClosed] = "true"
	}
	return m
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}
