package domain

import "time"

// ActivityEvent records a mutation for the team activity feed and the
// analytics summaries.
type ActivityEvent struct {
	ID         string
	TeamID     string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	CreatedAt  time.Time
}

// Activity target types.
const (
	TargetTeam    = "team"
	TargetMember  = "member"
	TargetProject = "project"
	TargetTask    = "task"
	TargetComment = "comment"
	TargetFile    = "file"
)
