/*
tier.go - Commission tier resolution

PURPOSE:
  Maps a rep's rolling 30-day non-renewal signup count to a commission
  tier. Two tiers: base (0.15) below the threshold, bonus (0.20) at or
  above it. The threshold defaults to 7 signups.

WINDOW SEMANTICS:
  The trailing window is the 30 days ending at t, inclusive of t's own
  calendar day: sale dates are day-truncated, so a sale recorded earlier
  the same day is visible to a later one. Only non-renewal, non-void
  signups count, so renewals and voided sales never move a rep up or
  down a tier.

TIERS ARE DERIVED, NEVER STORED:
  A tier is resolved fresh from the ledger at compute time. Storing it
  would let later sales rewrite historical commission rates.

SEE ALSO:
  - commission.go: Applies the resolved rate
  - ledger.go: Reports current tier and signups-until-bonus
*/
package crm

import "github.com/shopspring/decimal"

// =============================================================================
// TIER CONFIG
// =============================================================================

// TierConfig defines the two-tier rate schedule.
type TierConfig struct {
	// BonusThreshold is the trailing-30-day signup count at which the bonus
	// rate kicks in.
	BonusThreshold int

	BaseRate  decimal.Decimal
	BonusRate decimal.Decimal

	// RenewalRate, when non-nil, overrides the tier rate for renewal sales.
	// When nil, renewals pay the rate currently in effect for the rep.
	RenewalRate *decimal.Decimal
}

// DefaultTierConfig is 0.15 base, 0.20 bonus at 7 signups, renewals at the
// rep's current tier rate.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		BonusThreshold: 7,
		BaseRate:       MustParseRate("0.15"),
		BonusRate:      MustParseRate("0.20"),
	}
}

// Tier labels.
const (
	TierBase  = "base"
	TierBonus = "bonus"
)

// =============================================================================
// TIER RESOLVER
// =============================================================================

// TierFor resolves the tier for a trailing-30-day signup count.
func (c TierConfig) TierFor(signupsInTrailing30Days int) Tier {
	if signupsInTrailing30Days >= c.BonusThreshold {
		return Tier{Label: TierBonus, Rate: c.BonusRate}
	}
	return Tier{Label: TierBase, Rate: c.BaseRate}
}

// SignupsUntilBonus returns how many more non-renewal signups reach the
// bonus tier. Zero once the tier is reached, never negative.
func (c TierConfig) SignupsUntilBonus(signupsInTrailing30Days int) int {
	remaining := c.BonusThreshold - signupsInTrailing30Days
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RateFor resolves the effective rate for a sale: the tier rate, unless the
// sale is a renewal and a fixed renewal rate is configured.
func (c TierConfig) RateFor(signupsInTrailing30Days int, isRenewal bool) decimal.Decimal {
	if isRenewal && c.RenewalRate != nil {
		return *c.RenewalRate
	}
	return c.TierFor(signupsInTrailing30Days).Rate
}
