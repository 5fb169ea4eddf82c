/*
Package factory provides YAML to Go catalog conversion.

PURPOSE:
  Converts a YAML catalog of workers, shift templates, assignments, pay
  configuration, goals and deposits into domain types and loads it into a
  store. Used for seeding a fresh database, for demo scenarios and as
  fixtures in tests.

YAML SCHEMA:
  hourly_rate: "2.50"
  workers:
    - {id: w-1, name: Ana, role: processor}
  templates:
    - {kind: day, name: Day, start: "06:00", end: "14:00", offset_minutes: 180}
  assignments:
    - {worker: w-1, kind: day}
  tier_sets:
    - name: Day volume
      scope: shift            # shift | monthly
      shift_kind: day         # shift scope only
      tiers:
        - {name: Bronze, threshold: "0", rate: "0.5"}
        - {name: Silver, threshold: "1000", rate: "1.5"}
  goals:
    - id: daily-deposits
      name: Daily deposits
      metric: deposit_count   # earnings | deposit_count | deposit_volume | hours
      granularity: daily      # daily | weekly | monthly
      stages:
        - {name: First 25, target: "25", reward: "5"}
  deposits:
    - {id: dep-1, worker: w-1, amount: "1200", at: "2025-03-10T09:00:00+03:00",
       commission_rate: "1", owner_earnings: "12.00"}

  Money, rates and targets are strings so no value passes through a float.
  Unknown keys are rejected.

USAGE:
  catalog, err := factory.ParseCatalog(data)
  if err != nil {
      return err
  }
  summary, err := factory.Apply(ctx, store, catalog, clock.Now())

SEE ALSO:
  - store/sqlstore: the CatalogStore implementation
  - api/scenarios.go: built-in catalogs
*/
package factory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/earnings"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shifts"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

type Catalog struct {
	HourlyRate  string           `yaml:"hourly_rate,omitempty"`
	Workers     []WorkerYAML     `yaml:"workers,omitempty"`
	Templates   []TemplateYAML   `yaml:"templates,omitempty"`
	Assignments []AssignmentYAML `yaml:"assignments,omitempty"`
	TierSets    []TierSetYAML    `yaml:"tier_sets,omitempty"`
	Goals       []GoalYAML       `yaml:"goals,omitempty"`
	Deposits    []DepositYAML    `yaml:"deposits,omitempty"`
}

type WorkerYAML struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role,omitempty"`
	Inactive bool   `yaml:"inactive,omitempty"`
}

type TemplateYAML struct {
	Kind          string `yaml:"kind"`
	Name          string `yaml:"name"`
	Start         string `yaml:"start"`
	End           string `yaml:"end"`
	OffsetMinutes *int   `yaml:"offset_minutes,omitempty"` // default: business zone
	Inactive      bool   `yaml:"inactive,omitempty"`
}

type AssignmentYAML struct {
	Worker   string `yaml:"worker"`
	Kind     string `yaml:"kind"`
	Inactive bool   `yaml:"inactive,omitempty"`
}

type TierSetYAML struct {
	Name      string     `yaml:"name"`
	Scope     string     `yaml:"scope"`
	ShiftKind string     `yaml:"shift_kind,omitempty"`
	Tiers     []TierYAML `yaml:"tiers"`
}

type TierYAML struct {
	Name      string `yaml:"name"`
	Threshold string `yaml:"threshold"`
	Rate      string `yaml:"rate"`
}

type GoalYAML struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Metric      string      `yaml:"metric"`
	Granularity string      `yaml:"granularity"`
	Role        string      `yaml:"role,omitempty"`
	Stages      []StageYAML `yaml:"stages"`
}

type StageYAML struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	Reward string `yaml:"reward"`
}

type DepositYAML struct {
	ID             string `yaml:"id"`
	Worker         string `yaml:"worker"`
	Amount         string `yaml:"amount"`
	Currency       string `yaml:"currency,omitempty"`
	At             string `yaml:"at"` // RFC 3339
	CommissionRate string `yaml:"commission_rate,omitempty"`
	BonusAmount    string `yaml:"bonus_amount,omitempty"`
	OwnerEarnings  string `yaml:"owner_earnings,omitempty"`
}

// ParseCatalog decodes a YAML catalog, rejecting unknown keys.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("%w: invalid catalog YAML: %v", generic.ErrInvalidData, err)
	}
	return c, nil
}

// =============================================================================
// CONVERSION
// =============================================================================

func parseDecimal(field, s string, def decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return def, fmt.Errorf("%w: %s %q is not a decimal", generic.ErrInvalidData, field, s)
	}
	return v, nil
}

func (w WorkerYAML) Worker() (shifts.Worker, error) {
	if w.ID == "" {
		return shifts.Worker{}, fmt.Errorf("%w: worker without id", generic.ErrInvalidData)
	}
	return shifts.Worker{ID: generic.WorkerID(w.ID), Name: w.Name, Role: w.Role, Active: !w.Inactive}, nil
}

func (t TemplateYAML) Template() (shifts.Template, error) {
	offset := int(generic.BusinessOffset / time.Minute)
	if t.OffsetMinutes != nil {
		offset = *t.OffsetMinutes
	}
	tpl := shifts.Template{
		Kind:          shifts.Kind(t.Kind),
		Name:          t.Name,
		StartTime:     t.Start,
		EndTime:       t.End,
		OffsetMinutes: offset,
		Active:        !t.Inactive,
	}
	return tpl, tpl.Validate()
}

func (a AssignmentYAML) Assignment() (shifts.Assignment, error) {
	if a.Worker == "" || a.Kind == "" {
		return shifts.Assignment{}, fmt.Errorf("%w: assignment needs worker and kind", generic.ErrInvalidData)
	}
	return shifts.Assignment{
		WorkerID:   generic.WorkerID(a.Worker),
		Kind:       shifts.Kind(a.Kind),
		Active:     !a.Inactive,
		AssignedBy: "catalog",
	}, nil
}

func (s TierSetYAML) TierSet() (generic.TierSet, error) {
	set := generic.TierSet{
		Name:      s.Name,
		Scope:     generic.TierScope(s.Scope),
		ShiftKind: s.ShiftKind,
		Active:    true,
	}
	for _, t := range s.Tiers {
		threshold, err := parseDecimal("tier threshold", t.Threshold, decimal.Zero)
		if err != nil {
			return set, err
		}
		rate, err := parseDecimal("tier rate", t.Rate, decimal.Zero)
		if err != nil {
			return set, err
		}
		set.Tiers = append(set.Tiers, generic.Tier{Name: t.Name, Threshold: threshold, Rate: rate})
	}
	return set, set.Validate()
}

func (g GoalYAML) Goal() (earnings.Goal, error) {
	goal := earnings.Goal{
		ID:          g.ID,
		Name:        g.Name,
		Metric:      earnings.Metric(g.Metric),
		Granularity: generic.Granularity(g.Granularity),
		Role:        g.Role,
		Active:      true,
	}
	if !goal.Metric.Valid() {
		return goal, fmt.Errorf("%w: goal %s: unknown metric %q", generic.ErrInvalidData, g.ID, g.Metric)
	}
	if !goal.Granularity.Valid() {
		return goal, fmt.Errorf("%w: goal %s: unknown granularity %q", generic.ErrInvalidData, g.ID, g.Granularity)
	}
	for i, st := range g.Stages {
		target, err := parseDecimal("stage target", st.Target, decimal.Zero)
		if err != nil {
			return goal, err
		}
		reward, err := parseDecimal("stage reward", st.Reward, decimal.Zero)
		if err != nil {
			return goal, err
		}
		goal.Stages = append(goal.Stages, earnings.GoalStage{Position: i + 1, Name: st.Name, Target: target, Reward: reward})
	}
	return goal, nil
}

func (d DepositYAML) Deposit() (earnings.Deposit, error) {
	at, err := time.Parse(time.RFC3339, d.At)
	if err != nil {
		return earnings.Deposit{}, fmt.Errorf("%w: deposit %s: time %q is not RFC 3339", generic.ErrInvalidData, d.ID, d.At)
	}
	dep := earnings.Deposit{ID: d.ID, OwnerID: generic.WorkerID(d.Worker), Currency: d.Currency, CreatedAt: at}
	var errs []error
	dep.Amount, err = parseDecimal("deposit amount", d.Amount, decimal.Zero)
	errs = append(errs, err)
	dep.CommissionRate, err = parseDecimal("commission rate", d.CommissionRate, decimal.Zero)
	errs = append(errs, err)
	dep.BonusAmount, err = parseDecimal("bonus amount", d.BonusAmount, decimal.Zero)
	errs = append(errs, err)
	dep.OwnerEarnings, err = parseDecimal("owner earnings", d.OwnerEarnings, decimal.Zero)
	errs = append(errs, err)
	return dep, errors.Join(errs...)
}

// =============================================================================
// APPLY
// =============================================================================

// CatalogStore is the write side of the store a catalog is loaded into.
type CatalogStore interface {
	SaveWorker(ctx context.Context, w shifts.Worker) error
	SaveTemplate(ctx context.Context, t shifts.Template) error
	SaveAssignment(ctx context.Context, a shifts.Assignment) (shifts.Assignment, error)
	SetHourlyRate(ctx context.Context, rate decimal.Decimal, at time.Time) (earnings.HourlyRate, error)
	SaveTierSet(ctx context.Context, set generic.TierSet) (generic.TierSet, error)
	SaveGoal(ctx context.Context, g earnings.Goal) (earnings.Goal, error)
	SaveDeposit(ctx context.Context, d earnings.Deposit) (earnings.Deposit, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	Workers     int  `json:"workers"`
	Templates   int  `json:"templates"`
	Assignments int  `json:"assignments"`
	TierSets    int  `json:"tier_sets"`
	Goals       int  `json:"goals"`
	Deposits    int  `json:"deposits"`
	HourlyRate  bool `json:"hourly_rate"`
}

// Apply converts and saves every catalog item, in dependency order. It
// stops at the first invalid item; items before it stay saved.
func Apply(ctx context.Context, store CatalogStore, c Catalog, at time.Time) (Summary, error) {
	var sum Summary

	for _, w := range c.Workers {
		worker, err := w.Worker()
		if err != nil {
			return sum, err
		}
		if err := store.SaveWorker(ctx, worker); err != nil {
			return sum, err
		}
		sum.Workers++
	}
	for _, t := range c.Templates {
		tpl, err := t.Template()
		if err != nil {
			return sum, err
		}
		if err := store.SaveTemplate(ctx, tpl); err != nil {
			return sum, err
		}
		sum.Templates++
	}
	for _, a := range c.Assignments {
		assignment, err := a.Assignment()
		if err != nil {
			return sum, err
		}
		if _, err := store.SaveAssignment(ctx, assignment); err != nil {
			return sum, err
		}
		sum.Assignments++
	}
	if c.HourlyRate != "" {
		rate, err := parseDecimal("hourly rate", c.HourlyRate, decimal.Zero)
		if err != nil {
			return sum, err
		}
		if _, err := store.SetHourlyRate(ctx, rate, at); err != nil {
			return sum, err
		}
		sum.HourlyRate = true
	}
	for _, s := range c.TierSets {
		set, err := s.TierSet()
		if err != nil {
			return sum, err
		}
		if _, err := store.SaveTierSet(ctx, set); err != nil {
			return sum, err
		}
		sum.TierSets++
	}
	for _, g := range c.Goals {
		goal, err := g.Goal()
		if err != nil {
			return sum, err
		}
		if _, err := store.SaveGoal(ctx, goal); err != nil {
			return sum, err
		}
		sum.Goals++
	}
	for _, d := range c.Deposits {
		dep, err := d.Deposit()
		if err != nil {
			return sum, err
		}
		if _, err := store.SaveDeposit(ctx, dep); err != nil {
			return sum, err
		}
		sum.Deposits++
	}
	return sum, nil
}
