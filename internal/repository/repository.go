package repository

import (
	"context"
	"time"

	"github.com/crewdesk/crewdesk/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// SubscriptionRepository persists billing plan state per account.
type SubscriptionRepository interface {
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error)
}

// TeamRepository manages teams and memberships.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error)
	DeleteTeam(ctx context.Context, teamID string) error
	CountTeamsByOwner(ctx context.Context, ownerID string) (int, error)

	UpsertMember(ctx context.Context, member *domain.TeamMember) error
	GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error)
	DeleteMember(ctx context.Context, teamID, userID string) error
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	DeleteProject(ctx context.Context, projectID string) error
	ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error)
	CountProjects(ctx context.Context, teamID string) (int, error)
}

// TaskRepository persists tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, taskID string) error
	ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error)
	CountTasks(ctx context.Context, projectID string) (int, error)
}

// CommentRepository persists task comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *domain.Comment) error
	GetCommentByID(ctx context.Context, commentID string) (*domain.Comment, error)
	UpdateComment(ctx context.Context, comment *domain.Comment) error
	DeleteComment(ctx context.Context, commentID string) error
	ListCommentsByTask(ctx context.Context, taskID string) ([]domain.Comment, error)
}

// FileRepository persists attachment metadata.
type FileRepository interface {
	CreateFile(ctx context.Context, file *domain.FileObject) error
	GetFileByID(ctx context.Context, fileID string) (*domain.FileObject, error)
	DeleteFile(ctx context.Context, fileID string) error
	ListFilesByProject(ctx context.Context, projectID string) ([]domain.FileObject, error)
	SumFileSizesByTeam(ctx context.Context, teamID string) (int64, error)
}

// ActivityRepository persists the activity feed.
type ActivityRepository interface {
	InsertActivity(ctx context.Context, event *domain.ActivityEvent) error
	ListActivityByTeam(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityEvent, error)
	CountActivityByAction(ctx context.Context, teamID string, since time.Time) (map[string]int, error)
}
