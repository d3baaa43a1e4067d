package access

import (
	"errors"
	"testing"

	"github.com/crewdesk/crewdesk/internal/entitlement"
)

func TestOwnerRoleIsImmutable(t *testing.T) {
	for _, to := range Roles {
		for _, actor := range Roles {
			for _, tier := range entitlement.Tiers {
				result, err := ValidateRoleTransition(RoleOwner, to, actor, tier)
				if err != nil {
					t.Fatalf("owner->%s by %s on %s: %v", to, actor, tier, err)
				}
				if result.Valid {
					t.Fatalf("owner->%s by %s on %s must be rejected", to, actor, tier)
				}
				if result.Reason != ReasonOwnerImmutable {
					t.Fatalf("owner->%s reason = %q, want %q", to, result.Reason, ReasonOwnerImmutable)
				}
			}
		}
	}
}

func TestOnlyOwnerAssignsOwnership(t *testing.T) {
	for _, from := range []Role{RoleAdmin, RoleMember, RoleViewer} {
		for _, actor := range []Role{RoleAdmin, RoleMember, RoleViewer} {
			result, err := ValidateRoleTransition(from, RoleOwner, actor, entitlement.TierEnterprise)
			if err != nil {
				t.Fatalf("%s->owner by %s: %v", from, actor, err)
			}
			if result.Valid {
				t.Fatalf("%s->owner by %s must be rejected", from, actor)
			}
			if result.Reason != ReasonOwnerAssignsOwner {
				t.Fatalf("%s->owner reason = %q, want %q", from, result.Reason, ReasonOwnerAssignsOwner)
			}
		}
	}
}

func TestAdminAssignmentRequiresPaidTier(t *testing.T) {
	// The tier ceiling is checked before actor authority: even the owner
	// cannot promote to admin on the free plan.
	result, err := ValidateRoleTransition(RoleMember, RoleAdmin, RoleOwner, entitlement.TierFree)
	if err != nil {
		t.Fatalf("member->admin by owner on free: %v", err)
	}
	if result.Valid {
		t.Fatal("member->admin on free tier must be rejected")
	}
	if result.Reason != ReasonAdminNeedsPaid {
		t.Fatalf("reason = %q, want %q", result.Reason, ReasonAdminNeedsPaid)
	}

	result, err = ValidateRoleTransition(RoleMember, RoleAdmin, RoleOwner, entitlement.TierStarter)
	if err != nil {
		t.Fatalf("member->admin by owner on starter: %v", err)
	}
	if !result.Valid {
		t.Fatalf("member->admin on starter must be allowed, got reason %q", result.Reason)
	}
}

func TestAdminMayReassignNonOwnerRoles(t *testing.T) {
	result, err := ValidateRoleTransition(RoleViewer, RoleMember, RoleAdmin, entitlement.TierStarter)
	if err != nil {
		t.Fatalf("viewer->member by admin: %v", err)
	}
	if !result.Valid {
		t.Fatalf("viewer->member by admin must be allowed, got reason %q", result.Reason)
	}

	result, err = ValidateRoleTransition(RoleMember, RoleViewer, RoleAdmin, entitlement.TierPro)
	if err != nil {
		t.Fatalf("member->viewer by admin: %v", err)
	}
	if !result.Valid {
		t.Fatalf("member->viewer by admin must be allowed, got reason %q", result.Reason)
	}
}

func TestPlainMembersCannotChangeRoles(t *testing.T) {
	result, err := ValidateRoleTransition(RoleViewer, RoleMember, RoleMember, entitlement.TierPro)
	if err != nil {
		t.Fatalf("viewer->member by member: %v", err)
	}
	if result.Valid {
		t.Fatal("plain members must not change roles")
	}
	if result.Reason != ReasonInsufficient {
		t.Fatalf("reason = %q, want %q", result.Reason, ReasonInsufficient)
	}

	result, err = ValidateRoleTransition(RoleMember, RoleViewer, RoleViewer, entitlement.TierEnterprise)
	if err != nil {
		t.Fatalf("member->viewer by viewer: %v", err)
	}
	if result.Valid {
		t.Fatal("viewers must not change roles")
	}
}

func TestOwnerMayReassignNonOwnerRoles(t *testing.T) {
	result, err := ValidateRoleTransition(RoleAdmin, RoleMember, RoleOwner, entitlement.TierPro)
	if err != nil {
		t.Fatalf("admin->member by owner: %v", err)
	}
	if !result.Valid {
		t.Fatalf("admin->member by owner must be allowed, got reason %q", result.Reason)
	}
}

func TestOwnerMayPromoteDirectlyToOwner(t *testing.T) {
	// Rule 2 vetoes only non-owner actors, so an owner can hand ownership
	// to a member in one step. This holds on every tier, the free plan
	// included: the admin ceiling applies to the admin role, not ownership.
	for _, tier := range entitlement.Tiers {
		result, err := ValidateRoleTransition(RoleMember, RoleOwner, RoleOwner, tier)
		if err != nil {
			t.Fatalf("member->owner by owner on %s: %v", tier, err)
		}
		if !result.Valid {
			t.Fatalf("member->owner by owner on %s must be allowed, got reason %q", tier, result.Reason)
		}
	}
}

func TestValidateRoleTransitionUnknownInputs(t *testing.T) {
	if _, err := ValidateRoleTransition("root", RoleMember, RoleOwner, entitlement.TierPro); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for from role, got %v", err)
	}
	if _, err := ValidateRoleTransition(RoleMember, RoleViewer, RoleOwner, "gold"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for tier, got %v", err)
	}
}
