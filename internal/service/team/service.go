package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/internal/access"
	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/entitlement"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/internal/service/authz"
)

// Service handles team workflows. Every mutation asks the entitlement and
// access evaluators before touching storage.
type Service struct {
	repo     repository.TeamRepository
	activity repository.ActivityRepository
	authz    authz.Service
	logger   *slog.Logger
}

// New constructs a Service.
func New(repo repository.TeamRepository, activity repository.ActivityRepository, authzSvc authz.Service, logger *slog.Logger) Service {
	return Service{repo: repo, activity: activity, authz: authzSvc, logger: logger}
}

var (
	errInvalidTeamName = errors.New("team name is required")
	errOwnerProtected  = errors.New("team owner cannot be removed")
)

// Create registers a team for the owner, bounded by the owner's plan.
func (s Service) Create(ctx context.Context, ownerID, name string) (*domain.Team, error) {
	if name == "" {
		return nil, errInvalidTeamName
	}
	tier, err := s.authz.TierForUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountTeamsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	reached, err := entitlement.HasReachedLimit(tier, entitlement.FeatureMaxTeams, count)
	if err != nil {
		return nil, err
	}
	if reached {
		return nil, fmt.Errorf("%w: teams on the %s plan", authz.ErrQuotaExceeded, tier)
	}
	now := time.Now().UTC()
	team := &domain.Team{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	member := &domain.TeamMember{
		TeamID:    team.ID,
		UserID:    ownerID,
		Role:      access.RoleOwner.String(),
		CreatedAt: now,
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return nil, err
	}
	s.record(ctx, team.ID, ownerID, "team.created", domain.TargetTeam, team.ID)
	s.logger.Info("team created", "team_id", team.ID, "owner_id", ownerID)
	return team, nil
}

// Get returns a team the actor belongs to.
func (s Service) Get(ctx context.Context, teamID, actorID string) (*domain.Team, error) {
	_, team, err := s.authz.ContextForTeam(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}
	return team, nil
}

// ListByUser returns teams the user belongs to.
func (s Service) ListByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	return s.repo.ListTeamsByUser(ctx, userID)
}

// ListMembers returns the team roster, visible to any member.
func (s Service) ListMembers(ctx context.Context, teamID, actorID string) ([]domain.TeamMember, error) {
	if _, _, err := s.authz.ContextForTeam(ctx, teamID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, teamID)
}

// InviteMember adds a user to the team with the given role. The role may not
// exceed what the plan's ceiling allows, and ownership is never assignable
// through invites.
func (s Service) InviteMember(ctx context.Context, teamID, actorID, userID, roleName string) error {
	actx, _, err := s.authz.ContextForTeam(ctx, teamID, actorID)
	if err != nil {
		return err
	}
	allowed, err := access.CanInviteMembers(actx)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: invite members", authz.ErrPermissionDenied)
	}
	role, err := access.ParseRole(roleName)
	if err != nil {
		return err
	}
	if role == access.RoleOwner {
		return fmt.Errorf("%w: invite as owner", authz.ErrPermissionDenied)
	}
	if role == access.RoleAdmin {
		ceiling, err := access.MaxAssignableRole(actx.Tier)
		if err != nil {
			return err
		}
		if ceiling != access.RoleAdmin {
			return fmt.Errorf("%w: admin seats on the %s plan", authz.ErrQuotaExceeded, actx.Tier)
		}
	}
	member := &domain.TeamMember{
		TeamID:    teamID,
		UserID:    userID,
		Role:      role.String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return err
	}
	s.record(ctx, teamID, actorID, "member.invited", domain.TargetMember, userID)
	s.logger.Info("member invited", "team_id", teamID, "user_id", userID, "role", role)
	return nil
}

// ChangeRole moves a member to a new role. A policy rejection comes back as
// a TransitionResult value with its user-facing reason, not an error.
func (s Service) ChangeRole(ctx context.Context, teamID, actorID, targetUserID, newRoleName string) (access.TransitionResult, error) {
	actx, _, err := s.authz.ContextForTeam(ctx, teamID, actorID)
	if err != nil {
		return access.TransitionResult{}, err
	}
	target, err := s.repo.GetMember(ctx, teamID, targetUserID)
	if err != nil {
		return access.TransitionResult{}, err
	}
	fromRole, err := access.ParseRole(target.Role)
	if err != nil {
		return access.TransitionResult{}, err
	}
	toRole, err := access.ParseRole(newRoleName)
	if err != nil {
		return access.TransitionResult{}, err
	}
	result, err := access.ValidateRoleTransition(fromRole, toRole, actx.Role, actx.Tier)
	if err != nil {
		return access.TransitionResult{}, err
	}
	if !result.Valid {
		return result, nil
	}
	member := &domain.TeamMember{
		TeamID:    teamID,
		UserID:    targetUserID,
		Role:      toRole.String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return access.TransitionResult{}, err
	}
	s.record(ctx, teamID, actorID, "member.role_changed", domain.TargetMember, targetUserID)
	s.logger.Info("member role changed", "team_id", teamID, "user_id", targetUserID, "from", fromRole, "to", toRole)
	return result, nil
}

// RemoveMember removes a user from the team. The owner is untouchable.
func (s Service) RemoveMember(ctx context.Context, teamID, actorID, targetUserID string) error {
	actx, team, err := s.authz.ContextForTeam(ctx, teamID, actorID)
	if err != nil {
		return err
	}
	allowed, err := access.CanRemoveMembers(actx)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: remove members", authz.ErrPermissionDenied)
	}
	if targetUserID == team.OwnerID {
		return errOwnerProtected
	}
	if err := s.repo.DeleteMember(ctx, teamID, targetUserID); err != nil {
		return err
	}
	s.record(ctx, teamID, actorID, "member.removed", domain.TargetMember, targetUserID)
	s.logger.Info("member removed", "team_id", teamID, "user_id", targetUserID)
	return nil
}

// Delete tears down the team; everything under it cascades in storage.
func (s Service) Delete(ctx context.Context, teamID, actorID string) error {
	actx, _, err := s.authz.ContextForTeam(ctx, teamID, actorID)
	if err != nil {
		return err
	}
	allowed, err := access.CanDeleteTeam(actx)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: delete team", authz.ErrPermissionDenied)
	}
	if err := s.repo.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	s.logger.Info("team deleted", "team_id", teamID, "actor_id", actorID)
	return nil
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
