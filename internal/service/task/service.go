package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/internal/access"
	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/entitlement"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/internal/service/authz"
)

// CreateInput encapsulates task creation attributes.
type CreateInput struct {
	ProjectID   string
	Title       string
	Description string
	Priority    string
	AssigneeID  string
	DueAt       *time.Time
}

// UpdateInput carries mutable task fields.
type UpdateInput struct {
	TaskID      string
	Title       string
	Description string
	Status      string
	Priority    string
	AssigneeID  string
	DueAt       *time.Time
}

// Service orchestrates tasks and their comments.
type Service struct {
	tasks    repository.TaskRepository
	comments repository.CommentRepository
	projects repository.ProjectRepository
	activity repository.ActivityRepository
	authz    authz.Service
	logger   *slog.Logger
}

// New returns a task service.
func New(tasks repository.TaskRepository, comments repository.CommentRepository, projects repository.ProjectRepository, activity repository.ActivityRepository, authzSvc authz.Service, logger *slog.Logger) Service {
	return Service{tasks: tasks, comments: comments, projects: projects, activity: activity, authz: authzSvc, logger: logger}
}

var (
	errInvalidTitle     = errors.New("task title is required")
	errInvalidStatus    = errors.New("task status must be todo, in_progress or done")
	errInvalidPriority  = errors.New("task priority must be low, medium or high")
	errMissingTaskID    = errors.New("task id required")
	errMissingProjectID = errors.New("project id required")
	errEmptyComment     = errors.New("comment body is required")
	errNotCommentAuthor = errors.New("only the author can edit a comment")
)

// Create adds a task to a project, bounded by the plan's per-project quota.
// Any member may create tasks; viewers may not.
func (s Service) Create(ctx context.Context, actorID string, input CreateInput) (*domain.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errInvalidTitle
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, errMissingProjectID
	}
	project, err := s.projects.GetProjectByID(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	actx, _, err := s.authz.ContextForTeam(ctx, project.TeamID, actorID)
	if err != nil {
		return nil, err
	}
	allowed, err := access.HasPermission(actx, access.PermManageTasks)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: create task", authz.ErrPermissionDenied)
	}
	count, err := s.tasks.CountTasks(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	reached, err := entitlement.HasReachedLimit(actx.Tier, entitlement.FeatureMaxTasksPerProject, count)
	if err != nil {
		return nil, err
	}
	if reached {
		return nil, fmt.Errorf("%w: tasks per project on the %s plan", authz.ErrQuotaExceeded, actx.Tier)
	}
	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !validPriority(priority) {
		return nil, errInvalidPriority
	}
	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.NewString(),
		ProjectID:   input.ProjectID,
		CreatorID:   actorID,
		AssigneeID:  strings.TrimSpace(input.AssigneeID),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TaskStatusTodo,
		Priority:    priority,
		DueAt:       input.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.record(ctx, project.TeamID, actorID, "task.created", domain.TargetTask, task.ID)
	s.logger.Info("task created", "task_id", task.ID, "project_id", input.ProjectID)
	return task, nil
}

// Get returns a task visible to the actor.
func (s Service) Get(ctx context.Context, taskID, actorID string) (*domain.Task, error) {
	task, _, _, err := s.load(ctx, taskID, actorID)
	return task, err
}

// ListByProject returns a project's tasks.
func (s Service) ListByProject(ctx context.Context, projectID, actorID string) ([]domain.Task, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errMissingProjectID
	}
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.ContextForTeam(ctx, project.TeamID, actorID); err != nil {
		return nil, err
	}
	return s.tasks.ListTasksByProject(ctx, projectID)
}

// Update mutates task fields. Task creators may always edit their own tasks
// regardless of role.
func (s Service) Update(ctx context.Context, actorID string, input UpdateInput) (*domain.Task, error) {
	task, project, actx, err := s.load(ctx, input.TaskID, actorID)
	if err != nil {
		return nil, err
	}
	allowed, err := access.CanManageTask(actx)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: update task", authz.ErrPermissionDenied)
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		task.Title = title
	}
	if input.Description != "" {
		task.Description = strings.TrimSpace(input.Description)
	}
	if input.Status != "" {
		if !validStatus(input.Status) {
			return nil, errInvalidStatus
		}
		task.Status = input.Status
	}
	if input.Priority != "" {
		if !validPriority(input.Priority) {
			return nil, errInvalidPriority
		}
		task.Priority = input.Priority
	}
	if input.AssigneeID != "" {
		task.AssigneeID = strings.TrimSpace(input.AssigneeID)
	}
	if input.DueAt != nil {
		task.DueAt = input.DueAt
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	s.record(ctx, project.TeamID, actorID, "task.updated", domain.TargetTask, task.ID)
	return task, nil
}

// Delete removes a task.
func (s Service) Delete(ctx context.Context, taskID, actorID string) error {
	task, project, actx, err := s.load(ctx, taskID, actorID)
	if err != nil {
		return err
	}
	allowed, err := access.CanManageTask(actx)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: delete task", authz.ErrPermissionDenied)
	}
	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.record(ctx, project.TeamID, actorID, "task.deleted", domain.TargetTask, task.ID)
	return nil
}

// AddComment appends a comment to a task. Any team member can comment.
func (s Service) AddComment(ctx context.Context, taskID, actorID, body string) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errEmptyComment
	}
	task, project, _, err := s.load(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		AuthorID:  actorID,
		Body:      strings.TrimSpace(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	s.record(ctx, project.TeamID, actorID, "comment.created", domain.TargetComment, comment.ID)
	return comment, nil
}

// ListComments returns a task's comments, oldest first.
func (s Service) ListComments(ctx context.Context, taskID, actorID string) ([]domain.Comment, error) {
	if _, _, _, err := s.load(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	return s.comments.ListCommentsByTask(ctx, taskID)
}

// EditComment replaces a comment body. Comments are author-owned: nobody
// else edits them, whatever their role.
func (s Service) EditComment(ctx context.Context, commentID, actorID, body string) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errEmptyComment
	}
	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actorID {
		return nil, errNotCommentAuthor
	}
	comment.Body = strings.TrimSpace(body)
	comment.UpdatedAt = time.Now().UTC()
	if err := s.comments.UpdateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment. Authors delete their own; team admins
// may moderate through the task-management permission.
func (s Service) DeleteComment(ctx context.Context, commentID, actorID string) error {
	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != actorID {
		_, _, actx, err := s.load(ctx, comment.TaskID, actorID)
		if err != nil {
			return err
		}
		allowed, err := access.HasPermission(actx, access.PermManageTasks)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: delete comment", authz.ErrPermissionDenied)
		}
	}
	return s.comments.DeleteComment(ctx, commentID)
}

func (s Service) load(ctx context.Context, taskID, actorID string) (*domain.Task, *domain.Project, access.Context, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, nil, access.Context{}, errMissingTaskID
	}
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, nil, access.Context{}, err
	}
	project, err := s.projects.GetProjectByID(ctx, task.ProjectID)
	if err != nil {
		return nil, nil, access.Context{}, err
	}
	actx, _, err := s.authz.ContextForTeam(ctx, project.TeamID, actorID)
	if err != nil {
		return nil, nil, access.Context{}, err
	}
	return task, project, authz.WithTask(actx, task, actorID), nil
}

func validStatus(status string) bool {
	switch status {
	case domain.TaskStatusTodo, domain.TaskStatusInProgress, domain.TaskStatusDone:
		return true
	}
	return false
}

func validPriority(priority string) bool {
	switch priority {
	case domain.TaskPriorityLow, domain.TaskPriorityMedium, domain.TaskPriorityHigh:
		return true
	}
	return false
}

func (s Service) record(ctx context.Context, teamID, actorID, action, targetType, targetID string) {
	event := &domain.ActivityEvent{
		ID:         uuid.NewString(),
		TeamID:     teamID,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.activity.InsertActivity(ctx, event); err != nil {
		s.logger.Warn("activity insert failed", "action", action, "team_id", teamID, "error", err)
	}
}
