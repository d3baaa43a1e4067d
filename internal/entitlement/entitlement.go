// Package entitlement resolves subscription-tier entitlements: which
// capabilities a plan unlocks and how many of each resource it allows.
// Every function is a pure lookup over an immutable catalog; callers
// check entitlements before touching storage, never after.
package entitlement

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey reports a tier or feature name outside the closed enum.
	// Never defaulted over: a silent wrong answer here is an authorization bug.
	ErrUnknownKey = errors.New("entitlement: unknown key")

	// ErrInvalidArgument reports a malformed caller input, such as a negative
	// usage count or a capability check against a numeric cap.
	ErrInvalidArgument = errors.New("entitlement: invalid argument")
)

// CanAccessFeature reports whether the tier unlocks the named capability
// flag. It only answers for boolean features; numeric caps have no
// accessible/inaccessible reading and are rejected.
func CanAccessFeature(tier SubscriptionTier, feature Feature) (bool, error) {
	limits, err := GetFeatureLimits(tier)
	if err != nil {
		return false, err
	}
	return limits.Flag(feature)
}

// HasReachedLimit reports whether currentCount has exhausted the tier's cap
// for the named numeric feature. A count equal to the cap blocks creating
// one more; the Unlimited sentinel never blocks anything.
func HasReachedLimit(tier SubscriptionTier, feature Feature, currentCount int) (bool, error) {
	if currentCount < 0 {
		return false, fmt.Errorf("%w: negative count %d for feature %q", ErrInvalidArgument, currentCount, feature)
	}
	limits, err := GetFeatureLimits(tier)
	if err != nil {
		return false, err
	}
	limit, err := limits.Cap(feature)
	if err != nil {
		return false, err
	}
	if limit == Unlimited {
		return false, nil
	}
	return currentCount >= limit, nil
}
