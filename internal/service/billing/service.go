package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/entitlement"
	"github.com/crewdesk/crewdesk/internal/repository"
)

// TierChange is the confirmed outcome of a payment-processor event. The
// processor integration itself lives outside this service; by the time a
// change arrives here it has already been verified against the processor.
type TierChange struct {
	UserID           string
	Tier             string
	Status           string
	CustomerRef      string
	CurrentPeriodEnd *time.Time
}

// Plan describes one subscription option for the pricing UI.
type Plan struct {
	Tier   entitlement.SubscriptionTier `json:"tier"`
	Limits entitlement.FeatureLimits    `json:"limits"`
}

// Service owns subscription state. Tiers move only through confirmed
// processor events or administrative action, never direct user input.
type Service struct {
	subs   repository.SubscriptionRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(subs repository.SubscriptionRepository, logger *slog.Logger) Service {
	return Service{subs: subs, logger: logger}
}

var errMissingUserID = errors.New("user id required")

// ApplyTierChange persists a verified tier change.
func (s Service) ApplyTierChange(ctx context.Context, change TierChange) error {
	if change.UserID == "" {
		return errMissingUserID
	}
	tier, err := entitlement.ParseTier(change.Tier)
	if err != nil {
		return err
	}
	status := change.Status
	if status == "" {
		status = domain.SubscriptionStatusActive
	}
	now := time.Now().UTC()
	sub := &domain.Subscription{
		UserID:           change.UserID,
		Tier:             tier.String(),
		Status:           status,
		CustomerRef:      change.CustomerRef,
		CurrentPeriodEnd: change.CurrentPeriodEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.subs.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	s.logger.Info("subscription updated", "user_id", change.UserID, "tier", tier, "status", status)
	return nil
}

// Subscription returns the stored subscription, defaulting absent accounts
// to an active free plan.
func (s Service) Subscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, errMissingUserID
	}
	sub, err := s.subs.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.Subscription{
				UserID: userID,
				Tier:   entitlement.TierFree.String(),
				Status: domain.SubscriptionStatusActive,
			}, nil
		}
		return nil, err
	}
	return sub, nil
}

// Plans lists every tier with its limits, in ascending order.
func (s Service) Plans() []Plan {
	plans := make([]Plan, 0, len(entitlement.Tiers))
	for _, tier := range entitlement.Tiers {
		limits, err := entitlement.GetFeatureLimits(tier)
		if err != nil {
			// The tier list and catalog are both static; a miss is a bug.
			panic(fmt.Sprintf("missing catalog entry for tier %s: %v", tier, err))
		}
		plans = append(plans, Plan{Tier: tier, Limits: limits})
	}
	return plans
}
