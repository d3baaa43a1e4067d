package domain

import "time"

// Team represents a collaborative workspace. Resource quotas are not stored
// on the team; they derive from the owner's subscription tier.
type Team struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	TeamID    string
	UserID    string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
