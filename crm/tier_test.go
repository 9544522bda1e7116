package crm

import "testing"

func TestTier_Threshold(t *testing.T) {
	// GIVEN: The default two-tier schedule with threshold 7
	// WHEN: Resolving tiers around the threshold
	// THEN: 6 and below pay 0.15, 7 and above pay 0.20

	cfg := DefaultTierConfig()

	for _, tc := range []struct {
		signups   int
		wantLabel string
		wantRate  string
	}{
		{0, TierBase, "0.15"},
		{6, TierBase, "0.15"},
		{7, TierBonus, "0.2"},
		{12, TierBonus, "0.2"},
	} {
		tier := cfg.TierFor(tc.signups)
		if tier.Label != tc.wantLabel {
			t.Errorf("TierFor(%d).Label = %s, want %s", tc.signups, tier.Label, tc.wantLabel)
		}
		if tier.Rate.String() != tc.wantRate {
			t.Errorf("TierFor(%d).Rate = %s, want %s", tc.signups, tier.Rate, tc.wantRate)
		}
	}
}

func TestTier_SignupsUntilBonus(t *testing.T) {
	// GIVEN: The default threshold of 7
	// WHEN: Reporting signups-until-bonus
	// THEN: Counts down to zero and never goes negative

	cfg := DefaultTierConfig()

	for _, tc := range []struct {
		signups int
		want    int
	}{
		{0, 7},
		{6, 1},
		{7, 0},
		{20, 0},
	} {
		if got := cfg.SignupsUntilBonus(tc.signups); got != tc.want {
			t.Errorf("SignupsUntilBonus(%d) = %d, want %d", tc.signups, got, tc.want)
		}
	}
}

func TestTier_RenewalUsesCurrentRateByDefault(t *testing.T) {
	// GIVEN: No fixed renewal rate configured
	// WHEN: Resolving the rate for a renewal at bonus standing
	// THEN: The renewal pays the rate currently in effect for the rep

	cfg := DefaultTierConfig()

	if got := cfg.RateFor(7, true); got.String() != "0.2" {
		t.Errorf("renewal at bonus standing should pay 0.20, got %s", got)
	}
	if got := cfg.RateFor(3, true); got.String() != "0.15" {
		t.Errorf("renewal at base standing should pay 0.15, got %s", got)
	}
}

func TestTier_FixedRenewalRateOverride(t *testing.T) {
	// GIVEN: A fixed 0.10 renewal rate configured
	// WHEN: Resolving rates
	// THEN: Renewals pay 0.10 regardless of standing; new sales unaffected

	fixed := MustParseRate("0.10")
	cfg := DefaultTierConfig()
	cfg.RenewalRate = &fixed

	if got := cfg.RateFor(10, true); got.String() != "0.1" {
		t.Errorf("renewal should pay fixed rate, got %s", got)
	}
	if got := cfg.RateFor(10, false); got.String() != "0.2" {
		t.Errorf("new sale should still pay tier rate, got %s", got)
	}
}
