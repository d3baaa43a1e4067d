package domain

import "time"

// Project groups tasks under a team.
type Project struct {
	ID          string
	TeamID      string
	OwnerID     string
	Name        string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Project statuses.
const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)
