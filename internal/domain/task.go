package domain

import "time"

// Task is a unit of work inside a project.
type Task struct {
	ID          string
	ProjectID   string
	CreatorID   string
	AssigneeID  string
	Title       string
	Description string
	Status      string
	Priority    string
	DueAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task priorities.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Comment is a discussion entry on a task.
type Comment struct {
	ID        string
	TaskID    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
