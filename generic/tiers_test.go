package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/generic"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func threeTierSet() generic.TierSet {
	return generic.TierSet{
		Name:      "day volume",
		Scope:     generic.ScopeShift,
		ShiftKind: "day",
		Active:    true,
		Tiers: []generic.Tier{
			{Name: "Bronze", Threshold: d("0"), Rate: d("0.5")},
			{Name: "Silver", Threshold: d("500"), Rate: d("1.0")},
			{Name: "Gold", Threshold: d("1000"), Rate: d("1.5")},
		},
	}
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestTierSet_Resolve_Monotonic(t *testing.T) {
	// GIVEN: Tiers [(0, 0.5%), (500, 1.0%), (1000, 1.5%)]
	// WHEN: Resolving values across every band
	// THEN: Each value gets the rate of the highest threshold not above it

	set := threeTierSet()
	cases := []struct {
		observed string
		rate     string
	}{
		{"0", "0.5"},
		{"250", "0.5"},
		{"499.99", "0.5"},
		{"500", "1.0"},
		{"999.99", "1.0"},
		{"1000", "1.5"},
		{"250000", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.observed, func(t *testing.T) {
			tier, ok := set.Resolve(d(tc.observed))
			require.True(t, ok)
			assert.True(t, tier.Rate.Equal(d(tc.rate)), "got %s", tier.Rate)
		})
	}
}

func TestTierSet_Resolve_OrderIndependent(t *testing.T) {
	set := threeTierSet()
	set.Tiers = []generic.Tier{set.Tiers[2], set.Tiers[0], set.Tiers[1]}

	tier, ok := set.Resolve(d("700"))
	require.True(t, ok)
	assert.Equal(t, "Silver", tier.Name)
}

func TestTierSet_Resolve_BelowLowestThreshold(t *testing.T) {
	// GIVEN: A set whose lowest tier starts at 100
	// WHEN: The observed value is 99.99
	// THEN: Nothing resolves

	set := generic.TierSet{Scope: generic.ScopeMonthly, Tiers: []generic.Tier{
		{Name: "Starter", Threshold: d("100"), Rate: d("1")},
	}}

	_, ok := set.Resolve(d("99.99"))
	assert.False(t, ok)
}

func TestTierSet_Resolve_SameThreshold_HigherRateWins(t *testing.T) {
	set := generic.TierSet{Scope: generic.ScopeMonthly, Tiers: []generic.Tier{
		{Name: "Low", Threshold: d("500"), Rate: d("1.0")},
		{Name: "High", Threshold: d("500"), Rate: d("2.0")},
		{Name: "Base", Threshold: d("0"), Rate: d("0.1")},
	}}

	tier, ok := set.Resolve(d("500"))
	require.True(t, ok)
	assert.Equal(t, "High", tier.Name)
}

// =============================================================================
// ARITHMETIC TESTS
// =============================================================================

func TestTier_ApplyAndTrace(t *testing.T) {
	// GIVEN: Shift volume $1,200 and tiers [(0, 0.5%), (1000, 1.5%)]
	// THEN: Bonus is exactly $18.00 and the trace shows the arithmetic

	set := generic.TierSet{Scope: generic.ScopeShift, ShiftKind: "day", Tiers: []generic.Tier{
		{Name: "Base", Threshold: d("0"), Rate: d("0.5")},
		{Name: "Top", Threshold: d("1000"), Rate: d("1.5")},
	}}

	tier, ok := set.Resolve(d("1200"))
	require.True(t, ok)
	assert.True(t, tier.Apply(d("1200")).Equal(d("18.00")))
	assert.Equal(t, "$1200.00 × 1.5% = $18.00", tier.Trace(d("1200")))
}

func TestTier_Apply_RoundsToCents(t *testing.T) {
	tier := generic.Tier{Rate: d("1.25")}
	assert.Equal(t, "1.54", tier.Apply(d("123.45")).StringFixed(2))
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestTierSet_Validate(t *testing.T) {
	assert.NoError(t, threeTierSet().Validate())

	noKind := threeTierSet()
	noKind.ShiftKind = ""
	assert.ErrorIs(t, noKind.Validate(), generic.ErrInvalidData)

	empty := generic.TierSet{Scope: generic.ScopeMonthly}
	assert.ErrorIs(t, empty.Validate(), generic.ErrInvalidData)

	negative := generic.TierSet{Scope: generic.ScopeMonthly, Tiers: []generic.Tier{
		{Name: "Bad", Threshold: d("-1"), Rate: d("1")},
	}}
	assert.ErrorIs(t, negative.Validate(), generic.ErrInvalidData)

	badScope := threeTierSet()
	badScope.Scope = "yearly"
	assert.ErrorIs(t, badScope.Validate(), generic.ErrInvalidData)
}
