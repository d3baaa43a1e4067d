// Package access answers role and permission questions for team members:
// whether an actor may perform an action given their role, the account's
// subscription tier, and what they own. All checks are pure functions over
// immutable catalogs; handlers call them before every storage mutation.
package access

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey reports a role or permission name outside the closed enum.
	ErrUnknownKey = errors.New("access: unknown key")

	// ErrInvalidArgument reports a malformed caller input.
	ErrInvalidArgument = errors.New("access: invalid argument")
)

// Role is a member's authority level within a team, independent of billing.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Roles lists all roles, highest authority first.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}

// ParseRole validates a stored role string.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("%w: role %q", ErrUnknownKey, s)
	}
	return role, nil
}

// Valid reports whether the role is a known authority level.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// String returns the persisted representation.
func (r Role) String() string {
	return string(r)
}
