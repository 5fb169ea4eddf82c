package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/earnings"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
)

// =============================================================================
// DEPOSITS (earnings.DepositSource)
// =============================================================================

// SaveDeposit ingests a deposit produced upstream. Re-saving the same id is a no-op.
func (s *Store) SaveDeposit(ctx context.Context, d earnings.Deposit) (earnings.Deposit, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Currency == "" {
		d.Currency = "USD"
	}
	_, err := s.exec(ctx, `
		INSERT INTO deposits (id, owner_id, amount, currency, created_at, commission_rate, bonus_amount, owner_earnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.OwnerID, d.Amount.String(), d.Currency, formatTime(d.CreatedAt),
		d.CommissionRate.String(), d.BonusAmount.String(), d.OwnerEarnings.String())
	if err != nil {
		return d, generic.SystemError("save deposit", err)
	}
	return d, nil
}

const depositColumns = `id, owner_id, amount, currency, created_at, commission_rate, bonus_amount, owner_earnings`

func (s *Store) DepositsInWindow(ctx context.Context, ownerID generic.WorkerID, from, to time.Time) ([]earnings.Deposit, error) {
	return s.queryDeposits(ctx, `SELECT `+depositColumns+` FROM deposits
		WHERE owner_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at, id`, ownerID, formatTime(from), formatTime(to))
}

func (s *Store) DepositsInPeriod(ctx context.Context, ownerID generic.WorkerID, p generic.Period) ([]earnings.Deposit, error) {
	return s.queryDeposits(ctx, `SELECT `+depositColumns+` FROM deposits
		WHERE owner_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at, id`, ownerID, formatTime(p.Start), formatTime(p.End))
}

func (s *Store) queryDeposits(ctx context.Context, query string, args ...any) ([]earnings.Deposit, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, generic.SystemError("query deposits", err)
	}
	defer rows.Close()

	var out []earnings.Deposit
	for rows.Next() {
		var (
			d                                  earnings.Deposit
			amount, rate, bonus, ownerEarnings string
			createdAt                          string
		)
		if err := rows.Scan(&d.ID, &d.OwnerID, &amount, &d.Currency, &createdAt, &rate, &bonus, &ownerEarnings); err != nil {
			return nil, generic.SystemError("scan deposit", err)
		}
		var errs []error
		d.Amount, err = decimal.NewFromString(amount)
		errs = append(errs, err)
		d.CommissionRate, err = decimal.NewFromString(rate)
		errs = append(errs, err)
		d.BonusAmount, err = decimal.NewFromString(bonus)
		errs = append(errs, err)
		d.OwnerEarnings, err = decimal.NewFromString(ownerEarnings)
		errs = append(errs, err)
		d.CreatedAt, err = parseTime(createdAt)
		errs = append(errs, err)
		if err := errors.Join(errs...); err != nil {
			return nil, generic.SystemError("decode deposit "+d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// =============================================================================
// HOURLY RATE (earnings.ConfigSource)
// =============================================================================

// SetHourlyRate activates a new rate and deactivates the previous ones.
func (s *Store) SetHourlyRate(ctx context.Context, rate decimal.Decimal, at time.Time) (earnings.HourlyRate, error) {
	if !rate.IsPositive() {
		return earnings.HourlyRate{}, fmt.Errorf("%w: hourly rate must be positive", generic.ErrInvalidData)
	}
	r := earnings.HourlyRate{ID: uuid.NewString(), Rate: rate, Active: true, CreatedAt: at}
	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx, `UPDATE hourly_rates SET active = 0 WHERE active = 1`); err != nil {
			return err
		}
		_, err := tx.exec(ctx, `INSERT INTO hourly_rates (id, rate, active, created_at) VALUES (?, ?, 1, ?)`,
			r.ID, rate.String(), formatTime(at))
		return err
	})
	if err != nil {
		return r, generic.SystemError("set hourly rate", err)
	}
	return r, nil
}

func (s *Store) ActiveHourlyRate(ctx context.Context) (earnings.HourlyRate, error) {
	var (
		r               earnings.HourlyRate
		rate, createdAt string
	)
	err := s.queryRow(ctx, `SELECT id, rate, created_at FROM hourly_rates
		WHERE active = 1 ORDER BY created_at DESC LIMIT 1`).Scan(&r.ID, &rate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: no active hourly rate", generic.ErrNotFound)
	}
	if err != nil {
		return r, generic.SystemError("load hourly rate", err)
	}
	r.Active = true
	if r.Rate, err = decimal.NewFromString(rate); err != nil {
		return r, generic.SystemError("decode hourly rate", err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, generic.SystemError("decode hourly rate", err)
	}
	return r, nil
}

// =============================================================================
// TIER SETS (earnings.ConfigSource)
// =============================================================================

type tierRecord struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Rate      string `json:"rate"`
}

// SaveTierSet stores a tier set. An active set replaces the previously
// active set with the same scope and shift kind.
func (s *Store) SaveTierSet(ctx context.Context, set generic.TierSet) (generic.TierSet, error) {
	if err := set.Validate(); err != nil {
		return set, err
	}
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	if set.Scope == generic.ScopeMonthly {
		set.ShiftKind = ""
	}
	records := make([]tierRecord, 0, len(set.Tiers))
	for _, t := range set.Tiers {
		records = append(records, tierRecord{Name: t.Name, Threshold: t.Threshold.String(), Rate: t.Rate.String()})
	}
	tiersJSON, err := json.Marshal(records)
	if err != nil {
		return set, generic.SystemError("encode tiers", err)
	}

	err = s.WithTx(ctx, func(tx *Store) error {
		if set.Active {
			if _, err := tx.exec(ctx, `UPDATE tier_sets SET active = 0
				WHERE scope = ? AND shift_kind = ? AND id <> ?`, set.Scope, set.ShiftKind, set.ID); err != nil {
				return err
			}
		}
		_, err := tx.exec(ctx, `
			INSERT INTO tier_sets (id, name, scope, shift_kind, active, tiers_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, scope = excluded.scope, shift_kind = excluded.shift_kind,
				active = excluded.active, tiers_json = excluded.tiers_json
		`, set.ID, set.Name, set.Scope, set.ShiftKind, boolInt(set.Active), string(tiersJSON), formatTime(s.now()))
		return err
	})
	if err != nil {
		return set, generic.SystemError("save tier set", err)
	}
	return set, nil
}

const tierSetColumns = `id, name, scope, shift_kind, active, tiers_json`

func scanTierSet(row interface{ Scan(...any) error }) (generic.TierSet, error) {
	var (
		set       generic.TierSet
		active    int
		tiersJSON string
	)
	if err := row.Scan(&set.ID, &set.Name, &set.Scope, &set.ShiftKind, &active, &tiersJSON); err != nil {
		return set, err
	}
	set.Active = active == 1

	var records []tierRecord
	if err := json.Unmarshal([]byte(tiersJSON), &records); err != nil {
		return set, fmt.Errorf("decode tiers of %s: %w", set.ID, err)
	}
	for _, r := range records {
		threshold, err := decimal.NewFromString(r.Threshold)
		if err != nil {
			return set, err
		}
		rate, err := decimal.NewFromString(r.Rate)
		if err != nil {
			return set, err
		}
		set.Tiers = append(set.Tiers, generic.Tier{Name: r.Name, Threshold: threshold, Rate: rate})
	}
	return set, nil
}

func (s *Store) ActiveTierSet(ctx context.Context, scope generic.TierScope, shiftKind string) (generic.TierSet, error) {
	if scope == generic.ScopeMonthly {
		shiftKind = ""
	}
	set, err := scanTierSet(s.queryRow(ctx, `SELECT `+tierSetColumns+` FROM tier_sets
		WHERE scope = ? AND shift_kind = ? AND active = 1
		ORDER BY created_at DESC LIMIT 1`, scope, shiftKind))
	if errors.Is(err, sql.ErrNoRows) {
		return set, fmt.Errorf("%w: no active %s tier set for %q", generic.ErrNotFound, scope, shiftKind)
	}
	if err != nil {
		return set, generic.SystemError("load tier set", err)
	}
	return set, nil
}

func (s *Store) ListTierSets(ctx context.Context) ([]generic.TierSet, error) {
	rows, err := s.query(ctx, `SELECT `+tierSetColumns+` FROM tier_sets ORDER BY scope, shift_kind, created_at`)
	if err != nil {
		return nil, generic.SystemError("list tier sets", err)
	}
	defer rows.Close()

	var out []generic.TierSet
	for rows.Next() {
		set, err := scanTierSet(rows)
		if err != nil {
			return nil, generic.SystemError("scan tier set", err)
		}
		out = append(out, set)
	}
	return out, rows.Err()
}

// =============================================================================
// GOALS (earnings.ConfigSource)
// =============================================================================

// SaveGoal upserts a goal and replaces its stages.
func (s *Store) SaveGoal(ctx context.Context, g earnings.Goal) (earnings.Goal, error) {
	if !g.Metric.Valid() {
		return g, fmt.Errorf("%w: unknown goal metric %q", generic.ErrInvalidData, g.Metric)
	}
	if !g.Granularity.Valid() {
		return g, fmt.Errorf("%w: unknown goal granularity %q", generic.ErrInvalidData, g.Granularity)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	for i := range g.Stages {
		st := &g.Stages[i]
		if st.ID == "" {
			st.ID = fmt.Sprintf("%s-stage-%d", g.ID, i+1)
		}
		if st.Position == 0 {
			st.Position = i + 1
		}
		st.GoalID = g.ID
		if st.Target.IsNegative() || st.Reward.IsNegative() {
			return g, fmt.Errorf("%w: stage %s has a negative target or reward", generic.ErrInvalidData, st.ID)
		}
	}

	err := s.WithTx(ctx, func(tx *Store) error {
		_, err := tx.exec(ctx, `
			INSERT INTO goals (id, name, metric, granularity, role, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, metric = excluded.metric, granularity = excluded.granularity,
				role = excluded.role, active = excluded.active
		`, g.ID, g.Name, g.Metric, g.Granularity, g.Role, boolInt(g.Active), formatTime(s.now()))
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM goal_stages WHERE goal_id = ?`, g.ID); err != nil {
			return err
		}
		for _, st := range g.Stages {
			_, err := tx.exec(ctx, `
				INSERT INTO goal_stages (id, goal_id, position, name, target, reward)
				VALUES (?, ?, ?, ?, ?, ?)
			`, st.ID, g.ID, st.Position, st.Name, st.Target.String(), st.Reward.String())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return g, generic.SystemError("save goal", err)
	}
	return g, nil
}

// ActiveGoals returns active goals for role plus goals open to every role.
func (s *Store) ActiveGoals(ctx context.Context, role string) ([]earnings.Goal, error) {
	return s.queryGoals(ctx, `SELECT id, name, metric, granularity, role, active FROM goals
		WHERE active = 1 AND (role = '' OR role = ?) ORDER BY created_at, id`, role)
}

func (s *Store) ListGoals(ctx context.Context) ([]earnings.Goal, error) {
	return s.queryGoals(ctx, `SELECT id, name, metric, granularity, role, active FROM goals ORDER BY created_at, id`)
}

func (s *Store) queryGoals(ctx context.Context, query string, args ...any) ([]earnings.Goal, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, generic.SystemError("query goals", err)
	}
	var goals []earnings.Goal
	for rows.Next() {
		var (
			g      earnings.Goal
			active int
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Metric, &g.Granularity, &g.Role, &active); err != nil {
			rows.Close()
			return nil, generic.SystemError("scan goal", err)
		}
		g.Active = active == 1
		goals = append(goals, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, generic.SystemError("query goals", err)
	}

	// Stages are loaded after closing the goal cursor: SQLite runs on one connection.
	for i := range goals {
		stages, err := s.goalStages(ctx, goals[i].ID)
		if err != nil {
			return nil, err
		}
		goals[i].Stages = stages
	}
	return goals, nil
}

func (s *Store) goalStages(ctx context.Context, goalID string) ([]earnings.GoalStage, error) {
	rows, err := s.query(ctx, `SELECT id, goal_id, position, name, target, reward FROM goal_stages
		WHERE goal_id = ? ORDER BY position`, goalID)
	if err != nil {
		return nil, generic.SystemError("query goal stages", err)
	}
	defer rows.Close()

	var out []earnings.GoalStage
	for rows.Next() {
		var (
			st             earnings.GoalStage
			target, reward string
		)
		if err := rows.Scan(&st.ID, &st.GoalID, &st.Position, &st.Name, &target, &reward); err != nil {
			return nil, generic.SystemError("scan goal stage", err)
		}
		if st.Target, err = decimal.NewFromString(target); err != nil {
			return nil, generic.SystemError("decode stage target", err)
		}
		if st.Reward, err = decimal.NewFromString(reward); err != nil {
			return nil, generic.SystemError("decode stage reward", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// ACHIEVEMENTS (earnings.AchievementStore)
// =============================================================================

func (s *Store) AchievementExists(ctx context.Context, workerID generic.WorkerID, stageID, periodKey string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM goal_achievements
		WHERE worker_id = ? AND stage_id = ? AND period_key = ?`, workerID, stageID, periodKey).Scan(&n)
	if err != nil {
		return false, generic.SystemError("check achievement", err)
	}
	return n > 0, nil
}

// RecordAchievement writes the achievement row and its ledger entry atomically.
func (s *Store) RecordAchievement(ctx context.Context, a earnings.GoalAchievement, entry *generic.LedgerEntry) error {
	return s.WithTx(ctx, func(tx *Store) error {
		_, err := tx.exec(ctx, `
			INSERT INTO goal_achievements (id, worker_id, goal_id, stage_id, period_key, observed, reward, achieved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.WorkerID, a.GoalID, a.StageID, a.PeriodKey, a.Observed.String(), a.Reward.String(), formatTime(a.AchievedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: stage %s already achieved by %s in %s", generic.ErrAlreadyExists, a.StageID, a.WorkerID, a.PeriodKey)
		}
		if err != nil {
			return generic.SystemError("record achievement", err)
		}
		if entry == nil {
			return nil
		}
		return tx.Append(ctx, *entry)
	})
}

func (s *Store) AchievementsByWorker(ctx context.Context, workerID generic.WorkerID) ([]earnings.GoalAchievement, error) {
	rows, err := s.query(ctx, `SELECT id, worker_id, goal_id, stage_id, period_key, observed, reward, achieved_at
		FROM goal_achievements WHERE worker_id = ? ORDER BY achieved_at`, workerID)
	if err != nil {
		return nil, generic.SystemError("list achievements", err)
	}
	defer rows.Close()

	var out []earnings.GoalAchievement
	for rows.Next() {
		var (
			a                    earnings.GoalAchievement
			observed, reward, at string
		)
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.GoalID, &a.StageID, &a.PeriodKey, &observed, &reward, &at); err != nil {
			return nil, generic.SystemError("scan achievement", err)
		}
		a.Observed, _ = decimal.NewFromString(observed)
		a.Reward, _ = decimal.NewFromString(reward)
		if a.AchievedAt, err = parseTime(at); err != nil {
			return nil, generic.SystemError("decode achievement", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// SETTLEMENT CLAIMS (earnings.SettlementClaims)
// =============================================================================

func (s *Store) ClaimSettlement(ctx context.Context, shiftID generic.ShiftID, autoClosed bool, at time.Time) error {
	_, err := s.exec(ctx, `INSERT INTO shift_settlements (shift_id, auto_closed, settled_at) VALUES (?, ?, ?)`,
		shiftID, boolInt(autoClosed), formatTime(at))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", generic.ErrAlreadySettled, shiftID)
	}
	if err != nil {
		return generic.SystemError("claim settlement", err)
	}
	return nil
}

// =============================================================================
// HOURS (earnings.HoursSource)
// =============================================================================

var secondsPerHour = decimal.NewFromInt(3600)

func (s *Store) WorkedHours(ctx context.Context, ownerID generic.WorkerID, p generic.Period) (decimal.Decimal, error) {
	rows, err := s.query(ctx, `SELECT actual_start, actual_end FROM shifts
		WHERE owner_id = ? AND status = ? AND actual_start IS NOT NULL
		  AND actual_end >= ? AND actual_end < ?`,
		ownerID, shifts.StatusCompleted, formatTime(p.Start), formatTime(p.End))
	if err != nil {
		return decimal.Zero, generic.SystemError("query worked hours", err)
	}
	defer rows.Close()

	var seconds int64
	for rows.Next() {
		var start, end string
		if err := rows.Scan(&start, &end); err != nil {
			return decimal.Zero, generic.SystemError("scan worked hours", err)
		}
		st, err1 := parseTime(start)
		en, err2 := parseTime(end)
		if err := errors.Join(err1, err2); err != nil {
			return decimal.Zero, generic.SystemError("decode worked hours", err)
		}
		if d := en.Sub(st); d > 0 {
			seconds += int64(d / time.Second)
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, generic.SystemError("query worked hours", err)
	}
	return decimal.NewFromInt(seconds).Div(secondsPerHour).Round(2), nil
}
