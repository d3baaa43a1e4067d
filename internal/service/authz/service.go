package authz

import (
	"context"
	"errors"

	"log/slog"

	"github.com/crewdesk/crewdesk/internal/access"
	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/entitlement"
	"github.com/crewdesk/crewdesk/internal/repository"
)

// Service assembles permission contexts for the evaluators. Each context is
// built from one read sequence inside a single request so role and tier come
// from the same snapshot; callers must not cache contexts across requests.
type Service struct {
	teams  repository.TeamRepository
	subs   repository.SubscriptionRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(teams repository.TeamRepository, subs repository.SubscriptionRepository, logger *slog.Logger) Service {
	return Service{teams: teams, subs: subs, logger: logger}
}

var (
	// ErrNotMember reports that the user has no membership in the team.
	ErrNotMember = errors.New("authz: not a team member")

	// ErrPermissionDenied reports that the evaluators denied the action.
	ErrPermissionDenied = errors.New("authz: permission denied")

	// ErrQuotaExceeded reports that the subscription tier's limit blocks the
	// action; handlers turn it into an upgrade prompt, never a retry.
	ErrQuotaExceeded = errors.New("authz: plan limit reached")
)

// TierForUser resolves a user's own subscription tier. Accounts without a
// subscription row are treated as free; a stored tier outside the catalog is
// surfaced, never defaulted over.
func (s Service) TierForUser(ctx context.Context, userID string) (entitlement.SubscriptionTier, error) {
	sub, err := s.subs.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return entitlement.TierFree, nil
		}
		return "", err
	}
	return entitlement.ParseTier(sub.Tier)
}

// ContextForTeam builds the permission context for an actor inside a team.
// The team's effective tier is the team owner's subscription tier.
func (s Service) ContextForTeam(ctx context.Context, teamID, userID string) (access.Context, *domain.Team, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return access.Context{}, nil, err
	}
	member, err := s.teams.GetMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return access.Context{}, nil, ErrNotMember
		}
		return access.Context{}, nil, err
	}
	role, err := access.ParseRole(member.Role)
	if err != nil {
		return access.Context{}, nil, err
	}
	tier, err := s.TierForUser(ctx, team.OwnerID)
	if err != nil {
		return access.Context{}, nil, err
	}
	return access.Context{
		Role:        role,
		Tier:        tier,
		IsTeamOwner: team.OwnerID == userID,
	}, team, nil
}

// WithProject marks the context with project ownership.
func WithProject(actx access.Context, project *domain.Project, userID string) access.Context {
	actx.IsProjectOwner = project != nil && project.OwnerID == userID
	return actx
}

// WithTask marks the context with task authorship.
func WithTask(actx access.Context, task *domain.Task, userID string) access.Context {
	actx.IsTaskCreator = task != nil && task.CreatorID == userID
	return actx
}
