package access

import (
	"fmt"

	"github.com/crewdesk/crewdesk/internal/entitlement"
)

// TransitionResult is the outcome of a role-change request. A rejection is
// a normal control-flow value, not an error; Reason is user-facing copy the
// UI shows verbatim.
type TransitionResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Stable rejection copy. Tests and the UI depend on the exact wording.
const (
	ReasonOwnerImmutable    = "Cannot change team owner role"
	ReasonOwnerAssignsOwner = "Only team owner can assign ownership"
	ReasonAdminNeedsPaid    = "Admin role requires paid subscription"
	ReasonInsufficient      = "Insufficient permissions"
)

func rejected(reason string) TransitionResult {
	return TransitionResult{Valid: false, Reason: reason}
}

// ValidateRoleTransition decides whether actorRole may move a member from
// fromRole to toRole under the given tier. The rules run strictly in order:
// the owner-protection vetoes first, then the tier ceiling, then actor
// authority, so that even an owner is blocked from assigning admin on a
// free plan.
func ValidateRoleTransition(fromRole, toRole, actorRole Role, tier entitlement.SubscriptionTier) (TransitionResult, error) {
	for _, role := range []Role{fromRole, toRole, actorRole} {
		if !role.Valid() {
			return TransitionResult{}, fmt.Errorf("%w: role %q", ErrUnknownKey, role)
		}
	}
	if !tier.Valid() {
		return TransitionResult{}, fmt.Errorf("%w: subscription tier %q", ErrUnknownKey, tier)
	}

	// Owner role is terminal here; ownership transfer is a separate flow.
	if fromRole == RoleOwner {
		return rejected(ReasonOwnerImmutable), nil
	}
	if toRole == RoleOwner && actorRole != RoleOwner {
		return rejected(ReasonOwnerAssignsOwner), nil
	}
	if toRole == RoleAdmin {
		ceiling, err := MaxAssignableRole(tier)
		if err != nil {
			return TransitionResult{}, err
		}
		if ceiling != RoleAdmin {
			return rejected(ReasonAdminNeedsPaid), nil
		}
	}
	if actorRole == RoleAdmin {
		return TransitionResult{Valid: true}, nil
	}
	if actorRole == RoleOwner {
		return TransitionResult{Valid: true}, nil
	}
	return rejected(ReasonInsufficient), nil
}
