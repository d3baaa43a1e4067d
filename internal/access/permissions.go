package access

import (
	"fmt"

	"github.com/crewdesk/crewdesk/internal/entitlement"
)

// Permission names an action a role may or may not perform.
type Permission string

const (
	PermManageTeam     Permission = "can_manage_team"
	PermManageProjects Permission = "can_manage_projects"
	PermManageTasks    Permission = "can_manage_tasks"
	PermManageMembers  Permission = "can_manage_members"
	PermViewAnalytics  Permission = "can_view_analytics"
	PermManageBilling  Permission = "can_manage_billing"
	PermDeleteTeam     Permission = "can_delete_team"
	PermInviteMembers  Permission = "can_invite_members"
	PermRemoveMembers  Permission = "can_remove_members"
	PermChangeRoles    Permission = "can_change_roles"
	PermManageSettings Permission = "can_manage_settings"
)

// Permissions lists every action the role catalog knows.
var Permissions = []Permission{
	PermManageTeam,
	PermManageProjects,
	PermManageTasks,
	PermManageMembers,
	PermViewAnalytics,
	PermManageBilling,
	PermDeleteTeam,
	PermInviteMembers,
	PermRemoveMembers,
	PermChangeRoles,
	PermManageSettings,
}

// RolePermissions describes the actions one role may perform.
type RolePermissions struct {
	CanManageTeam     bool `json:"can_manage_team"`
	CanManageProjects bool `json:"can_manage_projects"`
	CanManageTasks    bool `json:"can_manage_tasks"`
	CanManageMembers  bool `json:"can_manage_members"`
	CanViewAnalytics  bool `json:"can_view_analytics"`
	CanManageBilling  bool `json:"can_manage_billing"`
	CanDeleteTeam     bool `json:"can_delete_team"`
	CanInviteMembers  bool `json:"can_invite_members"`
	CanRemoveMembers  bool `json:"can_remove_members"`
	CanChangeRoles    bool `json:"can_change_roles"`
	CanManageSettings bool `json:"can_manage_settings"`
}

// roleCatalog maps each role to its nominal permissions. Billing and team
// deletion stay owner-only; admins run day-to-day membership and content.
// Defined once at init and never mutated; safe for concurrent reads.
var roleCatalog = map[Role]RolePermissions{
	RoleOwner: {
		CanManageTeam:     true,
		CanManageProjects: true,
		CanManageTasks:    true,
		CanManageMembers:  true,
		CanViewAnalytics:  true,
		CanManageBilling:  true,
		CanDeleteTeam:     true,
		CanInviteMembers:  true,
		CanRemoveMembers:  true,
		CanChangeRoles:    true,
		CanManageSettings: true,
	},
	RoleAdmin: {
		CanManageTeam:     true,
		CanManageProjects: true,
		CanManageTasks:    true,
		CanManageMembers:  true,
		CanViewAnalytics:  true,
		CanInviteMembers:  true,
		CanRemoveMembers:  true,
		CanChangeRoles:    true,
		CanManageSettings: true,
	},
	RoleMember: {
		CanManageTasks: true,
	},
	RoleViewer: {},
}

// GetRolePermissions returns the full nominal permission record for a role,
// before any tier gating.
func GetRolePermissions(role Role) (RolePermissions, error) {
	perms, ok := roleCatalog[role]
	if !ok {
		return RolePermissions{}, fmt.Errorf("%w: role %q", ErrUnknownKey, role)
	}
	return perms, nil
}

// Allows returns the flag named by perm.
func (p RolePermissions) Allows(perm Permission) (bool, error) {
	switch perm {
	case PermManageTeam:
		return p.CanManageTeam, nil
	case PermManageProjects:
		return p.CanManageProjects, nil
	case PermManageTasks:
		return p.CanManageTasks, nil
	case PermManageMembers:
		return p.CanManageMembers, nil
	case PermViewAnalytics:
		return p.CanViewAnalytics, nil
	case PermManageBilling:
		return p.CanManageBilling, nil
	case PermDeleteTeam:
		return p.CanDeleteTeam, nil
	case PermInviteMembers:
		return p.CanInviteMembers, nil
	case PermRemoveMembers:
		return p.CanRemoveMembers, nil
	case PermChangeRoles:
		return p.CanChangeRoles, nil
	case PermManageSettings:
		return p.CanManageSettings, nil
	default:
		return false, fmt.Errorf("%w: permission %q", ErrUnknownKey, perm)
	}
}

// MaxAssignableRole returns the highest role a tier allows assigning to a
// member. The free plan collapses roles to a plain owner/member split; any
// paid plan with the team-roles capability unlocks admins.
func MaxAssignableRole(tier entitlement.SubscriptionTier) (Role, error) {
	limits, err := entitlement.GetFeatureLimits(tier)
	if err != nil {
		return "", fmt.Errorf("%w: subscription tier %q", ErrUnknownKey, tier)
	}
	if limits.TeamRoles {
		return RoleAdmin, nil
	}
	return RoleMember, nil
}
