package entitlement

import "fmt"

// SubscriptionTier identifies a billing plan level.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierStarter    SubscriptionTier = "starter"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// tierRank orders tiers by capability. Every bounded cap and capability
// flag is non-decreasing along this order.
var tierRank = map[SubscriptionTier]int{
	TierFree:       0,
	TierStarter:    1,
	TierPro:        2,
	TierEnterprise: 3,
}

// Tiers lists all tiers in ascending capability order.
var Tiers = []SubscriptionTier{TierFree, TierStarter, TierPro, TierEnterprise}

// ParseTier validates a stored tier string.
func ParseTier(s string) (SubscriptionTier, error) {
	tier := SubscriptionTier(s)
	if !tier.Valid() {
		return "", fmt.Errorf("%w: subscription tier %q", ErrUnknownKey, s)
	}
	return tier, nil
}

// Valid reports whether the tier is a known plan level.
func (t SubscriptionTier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// String returns the persisted representation.
func (t SubscriptionTier) String() string {
	return string(t)
}

// Paid reports whether the tier is any plan above free.
func (t SubscriptionTier) Paid() bool {
	return t.Valid() && t != TierFree
}

// AtLeast reports whether t sits at or above other in the tier order.
// Both tiers must be valid; unknown tiers compare as below everything.
func (t SubscriptionTier) AtLeast(other SubscriptionTier) bool {
	tr, ok := tierRank[t]
	if !ok {
		return false
	}
	or, ok := tierRank[other]
	if !ok {
		return false
	}
	return tr >= or
}
