package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/entitlement"
	"github.com/crewdesk/crewdesk/internal/repository"
)

type stubSubscriptionRepository struct {
	subs     map[string]domain.Subscription
	upserted *domain.Subscription
}

func (s *stubSubscriptionRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	s.upserted = sub
	return nil
}

func (s *stubSubscriptionRepository) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	if sub, ok := s.subs[userID]; ok {
		return &sub, nil
	}
	return nil, repository.ErrNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyTierChangeValidatesInput(t *testing.T) {
	repo := &stubSubscriptionRepository{}
	svc := New(repo, testLogger())

	if err := svc.ApplyTierChange(context.Background(), TierChange{Tier: "pro"}); !errors.Is(err, errMissingUserID) {
		t.Fatalf("expected missing user id error, got %v", err)
	}
	if err := svc.ApplyTierChange(context.Background(), TierChange{UserID: "user-1", Tier: "platinum"}); !errors.Is(err, entitlement.ErrUnknownKey) {
		t.Fatalf("expected unknown tier error, got %v", err)
	}
	if repo.upserted != nil {
		t.Fatal("rejected changes must not be persisted")
	}
}

func TestApplyTierChangePersists(t *testing.T) {
	repo := &stubSubscriptionRepository{}
	svc := New(repo, testLogger())

	err := svc.ApplyTierChange(context.Background(), TierChange{
		UserID:      "user-1",
		Tier:        "pro",
		CustomerRef: "cus_123",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if repo.upserted == nil {
		t.Fatal("expected an upserted subscription")
	}
	if repo.upserted.Tier != "pro" {
		t.Fatalf("expected tier pro, got %s", repo.upserted.Tier)
	}
	if repo.upserted.Status != domain.SubscriptionStatusActive {
		t.Fatalf("expected default active status, got %s", repo.upserted.Status)
	}
	if repo.upserted.CustomerRef != "cus_123" {
		t.Fatalf("expected customer ref to carry through, got %s", repo.upserted.CustomerRef)
	}
}

func TestSubscriptionDefaultsToFree(t *testing.T) {
	repo := &stubSubscriptionRepository{subs: map[string]domain.Subscription{
		"user-2": {UserID: "user-2", Tier: "enterprise", Status: domain.SubscriptionStatusActive},
	}}
	svc := New(repo, testLogger())

	sub, err := svc.Subscription(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	if sub.Tier != "free" || sub.Status != domain.SubscriptionStatusActive {
		t.Fatalf("expected active free default, got %+v", sub)
	}

	sub, err = svc.Subscription(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	if sub.Tier != "enterprise" {
		t.Fatalf("expected stored tier, got %s", sub.Tier)
	}

	if _, err := svc.Subscription(context.Background(), ""); !errors.Is(err, errMissingUserID) {
		t.Fatalf("expected missing user id error, got %v", err)
	}
}

func TestPlansListsTiersAscending(t *testing.T) {
	svc := New(&stubSubscriptionRepository{}, testLogger())

	plans := svc.Plans()
	if len(plans) != 4 {
		t.Fatalf("expected 4 plans, got %d", len(plans))
	}
	order := []entitlement.SubscriptionTier{
		entitlement.TierFree,
		entitlement.TierStarter,
		entitlement.TierPro,
		entitlement.TierEnterprise,
	}
	for i, tier := range order {
		if plans[i].Tier != tier {
			t.Fatalf("plan %d: expected %s, got %s", i, tier, plans[i].Tier)
		}
	}
	if plans[0].Limits.MaxProjects != 3 {
		t.Fatalf("expected free plan limits, got %+v", plans[0].Limits)
	}
	if plans[3].Limits.MaxStorageGB != entitlement.Unlimited {
		t.Fatalf("expected unlimited enterprise storage, got %+v", plans[3].Limits)
	}
}
