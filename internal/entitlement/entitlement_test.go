package entitlement

import (
	"errors"
	"testing"
)

func TestCatalogNumericCapsMonotonic(t *testing.T) {
	for _, feature := range NumericFeatures {
		for i := 0; i < len(Tiers); i++ {
			for j := i + 1; j < len(Tiers); j++ {
				lower, err := GetFeatureLimits(Tiers[i])
				if err != nil {
					t.Fatalf("limits for %s: %v", Tiers[i], err)
				}
				higher, err := GetFeatureLimits(Tiers[j])
				if err != nil {
					t.Fatalf("limits for %s: %v", Tiers[j], err)
				}
				lowCap, err := lower.Cap(feature)
				if err != nil {
					t.Fatalf("cap %s for %s: %v", feature, Tiers[i], err)
				}
				highCap, err := higher.Cap(feature)
				if err != nil {
					t.Fatalf("cap %s for %s: %v", feature, Tiers[j], err)
				}
				if lowCap == Unlimited && highCap != Unlimited {
					t.Fatalf("%s: tier %s is unlimited but higher tier %s caps at %d", feature, Tiers[i], Tiers[j], highCap)
				}
				if lowCap != Unlimited && highCap != Unlimited && highCap < lowCap {
					t.Fatalf("%s: tier %s cap %d below tier %s cap %d", feature, Tiers[j], highCap, Tiers[i], lowCap)
				}
			}
		}
	}
}

func TestCatalogFlagsMonotonic(t *testing.T) {
	for _, feature := range BoolFeatures {
		for i := 0; i < len(Tiers); i++ {
			for j := i + 1; j < len(Tiers); j++ {
				lowFlag, err := CanAccessFeature(Tiers[i], feature)
				if err != nil {
					t.Fatalf("flag %s for %s: %v", feature, Tiers[i], err)
				}
				highFlag, err := CanAccessFeature(Tiers[j], feature)
				if err != nil {
					t.Fatalf("flag %s for %s: %v", feature, Tiers[j], err)
				}
				if lowFlag && !highFlag {
					t.Fatalf("%s: available on %s but not on higher tier %s", feature, Tiers[i], Tiers[j])
				}
			}
		}
	}
}

func TestGetFeatureLimitsUnknownTier(t *testing.T) {
	if _, err := GetFeatureLimits("platinum"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestGetFeatureLimitsFreeScenario(t *testing.T) {
	limits, err := GetFeatureLimits(TierFree)
	if err != nil {
		t.Fatalf("free limits: %v", err)
	}
	if limits.MaxTeams != 1 {
		t.Fatalf("free max teams = %d, want 1", limits.MaxTeams)
	}
	if limits.MaxProjects != 3 {
		t.Fatalf("free max projects = %d, want 3", limits.MaxProjects)
	}
	if limits.AnalyticsAccess {
		t.Fatal("free tier must not include analytics")
	}
	reached, err := HasReachedLimit(TierFree, FeatureMaxTeams, 1)
	if err != nil {
		t.Fatalf("limit check: %v", err)
	}
	if !reached {
		t.Fatal("free tier with 1 team must be at its team limit")
	}
}

func TestCanAccessFeatureRejectsNumericCap(t *testing.T) {
	if _, err := CanAccessFeature(TierPro, FeatureMaxProjects); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for numeric cap, got %v", err)
	}
}

func TestCanAccessFeatureUnknownFeature(t *testing.T) {
	if _, err := CanAccessFeature(TierPro, "teleportation"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if _, err := CanAccessFeature("gold", FeatureAPIAccess); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for unknown tier, got %v", err)
	}
}

func TestHasReachedLimitAtBoundary(t *testing.T) {
	for _, tier := range Tiers {
		limits, err := GetFeatureLimits(tier)
		if err != nil {
			t.Fatalf("limits for %s: %v", tier, err)
		}
		for _, feature := range NumericFeatures {
			capValue, err := limits.Cap(feature)
			if err != nil {
				t.Fatalf("cap %s for %s: %v", feature, tier, err)
			}
			if capValue == Unlimited {
				continue
			}
			atCap, err := HasReachedLimit(tier, feature, capValue)
			if err != nil {
				t.Fatalf("limit check %s/%s: %v", tier, feature, err)
			}
			if !atCap {
				t.Fatalf("%s/%s: count %d at cap must block creation", tier, feature, capValue)
			}
			belowCap, err := HasReachedLimit(tier, feature, capValue-1)
			if err != nil {
				t.Fatalf("limit check %s/%s: %v", tier, feature, err)
			}
			if belowCap {
				t.Fatalf("%s/%s: count %d must leave room for one more", tier, feature, capValue-1)
			}
		}
	}
}

func TestHasReachedLimitUnlimited(t *testing.T) {
	for _, feature := range NumericFeatures {
		reached, err := HasReachedLimit(TierEnterprise, feature, 1_000_000)
		if err != nil {
			t.Fatalf("limit check %s: %v", feature, err)
		}
		if reached {
			t.Fatalf("%s: enterprise is unlimited, huge counts must never block", feature)
		}
	}
}

func TestHasReachedLimitProScenario(t *testing.T) {
	reached, err := HasReachedLimit(TierPro, FeatureMaxProjects, 50)
	if err != nil {
		t.Fatalf("limit check: %v", err)
	}
	if !reached {
		t.Fatal("pro tier with 50 projects must be at its project limit")
	}
	reached, err = HasReachedLimit(TierPro, FeatureMaxProjects, 49)
	if err != nil {
		t.Fatalf("limit check: %v", err)
	}
	if reached {
		t.Fatal("pro tier with 49 projects must have room for one more")
	}
}

func TestHasReachedLimitRejectsNegativeCount(t *testing.T) {
	if _, err := HasReachedLimit(TierFree, FeatureMaxTeams, -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for negative count, got %v", err)
	}
}

func TestHasReachedLimitRejectsCapabilityFlag(t *testing.T) {
	if _, err := HasReachedLimit(TierPro, FeatureAnalyticsAccess, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for capability flag, got %v", err)
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("starter")
	if err != nil {
		t.Fatalf("parse starter: %v", err)
	}
	if tier != TierStarter {
		t.Fatalf("parsed %q, want starter", tier)
	}
	if _, err := ParseTier("premium"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for premium, got %v", err)
	}
}

func TestTierOrdering(t *testing.T) {
	if !TierEnterprise.AtLeast(TierFree) {
		t.Fatal("enterprise must rank at or above free")
	}
	if TierFree.AtLeast(TierStarter) {
		t.Fatal("free must rank below starter")
	}
	if TierFree.Paid() {
		t.Fatal("free is not a paid tier")
	}
	if !TierStarter.Paid() {
		t.Fatal("starter is a paid tier")
	}
}
