package analytics

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/crewdesk/crewdesk/internal/access"
	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/internal/service/authz"
)

// Summary aggregates a team's recent activity for the analytics views.
type Summary struct {
	TeamID       string         `json:"team_id"`
	WindowDays   int            `json:"window_days"`
	ActionCounts map[string]int `json:"action_counts"`
	ProjectCount int            `json:"project_count"`
	MemberCount  int            `json:"member_count"`
}

// Service serves analytics behind the tier-gated analytics permission.
type Service struct {
	activity   repository.ActivityRepository
	projects   repository.ProjectRepository
	teams      repository.TeamRepository
	authz      authz.Service
	logger     *slog.Logger
	windowDays int
}

// New returns an analytics service.
func New(activity repository.ActivityRepository, projects repository.ProjectRepository, teams repository.TeamRepository, authzSvc authz.Service, logger *slog.Logger, windowDays int) Service {
	if windowDays <= 0 {
		windowDays = 30
	}
	return Service{activity: activity, projects: projects, teams: teams, authz: authzSvc, logger: logger, windowDays: windowDays}
}

// TeamSummary builds the activity summary. Analytics stays locked on the
// free plan for everyone, the owner included.
func (s Service) TeamSummary(ctx context.Context, teamID, actorID string) (*Summary, error) {
	actx, _, err := s.authz.ContextForTeam(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}
	allowed, err := access.CanViewAnalytics(actx)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: analytics on the %s plan", authz.ErrPermissionDenied, actx.Tier)
	}
	since := time.Now().UTC().AddDate(0, 0, -s.windowDays)
	counts, err := s.activity.CountActivityByAction(ctx, teamID, since)
	if err != nil {
		return nil, err
	}
	projectCount, err := s.projects.CountProjects(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		TeamID:       teamID,
		WindowDays:   s.windowDays,
		ActionCounts: counts,
		ProjectCount: projectCount,
		MemberCount:  len(members),
	}, nil
}

// Feed returns the recent activity events for a team, visible to any member.
func (s Service) Feed(ctx context.Context, teamID, actorID string, limit, offset int) ([]domain.ActivityEvent, error) {
	if _, _, err := s.authz.ContextForTeam(ctx, teamID, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.activity.ListActivityByTeam(ctx, teamID, limit, offset)
}
