/*
tiers.go - Tiered bonus resolution

PURPOSE:
  A tier set is an ordered list of (minimum threshold -> rate) rules. Given
  an observed volume, exactly one rate applies: the tier with the highest
  threshold not exceeding the observed value. The same resolver serves
  shift-volume bonuses (tier sets scoped to a shift kind) and
  monthly-volume bonuses (unscoped tier sets).

BOUNDARIES:
  A threshold is inclusive: with tiers [(0, 0.5%), (500, 1.0%)], an
  observed value of exactly 500 resolves to 1.0%.

  Below the lowest threshold nothing resolves and callers must not write
  a zero-bonus ledger entry.

  Two tiers with the same threshold: the higher rate wins, so resolution
  never depends on the order tiers were entered in.

EXAMPLE:
  set := TierSet{Tiers: []Tier{
      {Name: "Bronze", Threshold: d("0"), Rate: d("0.5")},
      {Name: "Silver", Threshold: d("500"), Rate: d("1.0")},
      {Name: "Gold", Threshold: d("1000"), Rate: d("1.5")},
  }}
  tier, ok := set.Resolve(d("1200")) // Gold, true
  bonus := tier.Apply(d("1200"))     // 18.00
*/
package generic

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER SET
// =============================================================================

type TierScope string

const (
	ScopeShift   TierScope = "shift"
	ScopeMonthly TierScope = "monthly"
)

func (s TierScope) Valid() bool { return s == ScopeShift || s == ScopeMonthly }

// Tier is a single rule. Rate is a percentage: 1.5 means 1.5%.
type Tier struct {
	Name      string
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Apply returns value × Rate%, rounded to cents.
func (t Tier) Apply(value decimal.Decimal) decimal.Decimal {
	return value.Mul(t.Rate).Div(hundred).Round(2)
}

// Trace renders the arithmetic of Apply, e.g. "$1200.00 × 1.5% = $18.00".
func (t Tier) Trace(value decimal.Decimal) string {
	return fmt.Sprintf("$%s × %s%% = $%s", value.StringFixed(2), t.Rate.String(), t.Apply(value).StringFixed(2))
}

// TierSet is an ordered collection of tiers, optionally scoped to a shift kind.
type TierSet struct {
	ID        string
	Name      string
	Scope     TierScope
	ShiftKind string // only for ScopeShift
	Active    bool
	Tiers     []Tier
}

// Validate rejects sets that can never resolve deterministically.
func (s TierSet) Validate() error {
	if !s.Scope.Valid() {
		return fmt.Errorf("%w: unknown tier scope %q", ErrInvalidData, s.Scope)
	}
	if s.Scope == ScopeShift && s.ShiftKind == "" {
		return fmt.Errorf("%w: shift-scoped tier set requires a shift kind", ErrInvalidData)
	}
	if len(s.Tiers) == 0 {
		return fmt.Errorf("%w: tier set %q has no tiers", ErrInvalidData, s.Name)
	}
	for _, t := range s.Tiers {
		if t.Threshold.IsNegative() || t.Rate.IsNegative() {
			return fmt.Errorf("%w: tier %q has a negative threshold or rate", ErrInvalidData, t.Name)
		}
	}
	return nil
}

// Sorted returns the tiers ordered by descending threshold, then rate.
func (s TierSet) Sorted() []Tier {
	tiers := append([]Tier(nil), s.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool {
		if !tiers[i].Threshold.Equal(tiers[j].Threshold) {
			return tiers[i].Threshold.GreaterThan(tiers[j].Threshold)
		}
		return tiers[i].Rate.GreaterThan(tiers[j].Rate)
	})
	return tiers
}

// Resolve returns the first tier, in descending threshold order, whose
// threshold does not exceed observed.
func (s TierSet) Resolve(observed decimal.Decimal) (Tier, bool) {
	for _, t := range s.Sorted() {
		if t.Threshold.LessThanOrEqual(observed) {
			return t, true
		}
	}
	return Tier{}, false
}
