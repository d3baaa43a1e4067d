package project

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

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	TeamID      string
	Name        string
	Description string
}

// UpdateInput carries mutable project fields.
type UpdateInput struct {
	ProjectID   string
	Name        string
	Description string
	Status      string
}

// Service orchestrates project management.
type Service struct {
	projects repository.ProjectRepository
	activity repository.ActivityRepository
	authz    authz.Service
	logger   *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, activity repository.ActivityRepository, authzSvc authz.Service, logger *slog.Logger) Service {
	return Service{projects: projects, activity: activity, authz: authzSvc, logger: logger}
}

var (
	errInvalidProjectName = errors.New("project name is required")
	errInvalidStatus      = errors.New("project status must be active or archived")
	errMissingTeamID      = errors.New("team id required")
	errMissingProjectID   = errors.New("project id required")
)

// Create registers a new project respecting the plan's project quota.
func (s Service) Create(ctx context.Context, actorID string, input CreateInput) (*domain.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errInvalidProjectName
	}
	if strings.TrimSpace(input.TeamID) == "" {
		return nil, errMissingTeamID
	}
	actx, _, err := s.authz.ContextForTeam(ctx, input.TeamID, actorID)
	if err != nil {
		return nil, err
	}
	allowed, err := access.HasPermission(actx, access.PermManageProjects)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: create project", authz.ErrPermissionDenied)
	}
	count, err := s.projects.CountProjects(ctx, input.TeamID)
	if err != nil {
		return nil, err
	}
	reached, err := entitlement.HasReachedLimit(actx.Tier, entitlement.FeatureMaxProjects, count)
	if err != nil {
		return nil, err
	}
	if reached {
		return nil, fmt.Errorf("%w: projects on the %s plan", authz.ErrQuotaExceeded, actx.Tier)
	}
	now := time.Now().UTC()
	project := &domain.Project{
		ID:          uuid.NewString(),
		TeamID:      input.TeamID,
		OwnerID:     actorID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.ProjectStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	s.record(ctx, input.TeamID, actorID, "project.created", project.ID)
	s.logger.Info("project created", "project_id", project.ID, "team_id", input.TeamID)
	return project, nil
}

// Get returns a project visible to the actor.
func (s Service) Get(ctx context.Context, projectID, actorID string) (*domain.Project, error) {
	project, _, err := s.load(ctx, projectID, actorID)
	return project, err
}

// ListByTeam returns a team's projects.
func (s Service) ListByTeam(ctx context.Context, teamID, actorID string) ([]domain.Project, error) {
	if strings.TrimSpace(teamID) == "" {
		return nil, errMissingTeamID
	}
	if _, _, err := s.authz.ContextForTeam(ctx, teamID, actorID); err != nil {
		return nil, err
	}
	return s.projects.ListProjectsByTeam(ctx, teamID)
}

// Update mutates project metadata. Project owners may always edit their own
// projects regardless of role.
func (s Service) Update(ctx context.Context, actorID string, input UpdateInput) (*domain.Project, error) {
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, errMissingProjectID
	}
	project, actx, err := s.load(ctx, input.ProjectID, actorID)
	if err != nil {
		return nil, err
	}
	allowed, err := access.CanManageProject(actx)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: update project", authz.ErrPermissionDenied)
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		project.Name = name
	}
	if input.Description != "" {
		project.Description = strings.TrimSpace(input.Description)
	}
	if input.Status != "" {
		if input.Status != domain.ProjectStatusActive && input.Status != domain.ProjectStatusArchived {
			return nil, errInvalidStatus
		}
		project.Status = input.Status
	}
	project.UpdatedAt = time.Now().UTC()
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	s.record(ctx, project.TeamID, actorID, "project.updated", project.ID)
	return project, nil
}

// Delete removes a project and its tasks.
func (s Service) Delete(ctx context.Context, projectID, actorID string) error {
	project, actx, err := s.load(ctx, projectID, actorID)
	if err != nil {
		return err
	}
	allowed, err := access.CanManageProject(actx)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: delete project", authz.ErrPermissionDenied)
	}
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.record(ctx, project.TeamID, actorID, "project.deleted", projectID)
	s.logger.Info("project deleted", "project_id", projectID, "team_id", project.TeamID)
	return nil
}

// load fetches the project and builds the actor's permission context from
// the same request snapshot.
func (s Service) load(ctx context.Context, projectID, actorID string) (*domain.Project, access.Context, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, access.Context{}, errMissingProjectID
	}
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, access.Context{}, err
	}
	actx, _, err := s.authz.ContextForTeam(ctx, project.TeamID, actorID)
	if err != nil {
		return nil, access.Context{}, err
	}
	return project, authz.WithProject(actx, project, actorID), nil
}

func (s Service) record(ctx context.Context, teamID, actorID, action, targetID string) {
	event := &domain.ActivityEvent{
		ID:         uuid.NewString(),
		TeamID:     teamID,
		ActorID:    actorID,
		Action:     action,
		TargetType: domain.TargetProject,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.activity.InsertActivity(ctx, event); err != nil {
		s.logger.Warn("activity insert failed", "action", action, "team_id", teamID, "error", err)
	}
}
