package access

import (
	"fmt"

	"github.com/crewdesk/crewdesk/internal/entitlement"
)

// Context carries everything a permission check needs about one actor.
// It is built fresh per request from a single consistent snapshot of the
// membership and subscription records, used for one decision, and dropped.
type Context struct {
	Role           Role
	Tier           entitlement.SubscriptionTier
	IsTeamOwner    bool
	IsProjectOwner bool
	IsTaskCreator  bool
}

// HasPermission reports whether the actor's role grants the named action.
// On the free tier the whole role system collapses to an owner/everyone-else
// split: non-owners are denied every permission regardless of their role's
// nominal flags. Role-based access control is a paid feature.
func HasPermission(ctx Context, perm Permission) (bool, error) {
	if !ctx.Role.Valid() {
		return false, fmt.Errorf("%w: role %q", ErrUnknownKey, ctx.Role)
	}
	if !ctx.Tier.Valid() {
		return false, fmt.Errorf("%w: subscription tier %q", ErrUnknownKey, ctx.Tier)
	}
	if ctx.Tier == entitlement.TierFree && ctx.Role != RoleOwner {
		// Still reject unknown permission names before answering.
		perms := roleCatalog[ctx.Role]
		if _, err := perms.Allows(perm); err != nil {
			return false, err
		}
		return false, nil
	}
	perms := roleCatalog[ctx.Role]
	return perms.Allows(perm)
}

// CanManageProject reports whether the actor may modify a project. Project
// owners may always act on their own projects, whatever their role grants.
func CanManageProject(ctx Context) (bool, error) {
	allowed, err := HasPermission(ctx, PermManageProjects)
	if err != nil {
		return false, err
	}
	return allowed || ctx.IsProjectOwner, nil
}

// CanManageTask reports whether the actor may modify a task. Task creators
// may always act on tasks they created.
func CanManageTask(ctx Context) (bool, error) {
	allowed, err := HasPermission(ctx, PermManageTasks)
	if err != nil {
		return false, err
	}
	return allowed || ctx.IsTaskCreator, nil
}

// CanViewAnalytics reports whether the actor may open the analytics views.
// Analytics is additionally gated on the tier itself: on the free plan even
// the team owner is denied, which the generic free-tier collapse alone would
// not do. Intended product policy, not a redundancy.
func CanViewAnalytics(ctx Context) (bool, error) {
	if !ctx.Tier.Valid() {
		return false, fmt.Errorf("%w: subscription tier %q", ErrUnknownKey, ctx.Tier)
	}
	if ctx.Tier == entitlement.TierFree {
		return false, nil
	}
	return HasPermission(ctx, PermViewAnalytics)
}

// CanManageBilling reports whether the actor may change the subscription.
func CanManageBilling(ctx Context) (bool, error) {
	return HasPermission(ctx, PermManageBilling)
}

// CanManageTeam reports whether the actor may edit team settings.
func CanManageTeam(ctx Context) (bool, error) {
	return HasPermission(ctx, PermManageTeam)
}

// CanInviteMembers reports whether the actor may invite new members.
func CanInviteMembers(ctx Context) (bool, error) {
	return HasPermission(ctx, PermInviteMembers)
}

// CanRemoveMembers reports whether the actor may remove members.
func CanRemoveMembers(ctx Context) (bool, error) {
	return HasPermission(ctx, PermRemoveMembers)
}

// CanDeleteTeam reports whether the actor may delete the team outright.
func CanDeleteTeam(ctx Context) (bool, error) {
	return HasPermission(ctx, PermDeleteTeam)
}
