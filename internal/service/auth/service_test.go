package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/pkg/config"
)

type stubUserRepository struct {
	byEmail map[string]domain.User
	byID    map[string]domain.User
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if s.byEmail == nil {
		s.byEmail = make(map[string]domain.User)
		s.byID = make(map[string]domain.User)
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return repository.ErrDuplicate
	}
	s.byEmail[user.Email] = *user
	s.byID[user.ID] = *user
	return nil
}

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.byID[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

type stubSubscriptionRepository struct {
	upserted *domain.Subscription
}

func (s *stubSubscriptionRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	s.upserted = sub
	return nil
}

func (s *stubSubscriptionRepository) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	if s.upserted != nil && s.upserted.UserID == userID {
		return s.upserted, nil
	}
	return nil, repository.ErrNotFound
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSignupStartsOnFreePlan(t *testing.T) {
	users := &stubUserRepository{}
	subs := &stubSubscriptionRepository{}
	svc := New(users, subs, testLogger(), testConfig())

	user, tokens, err := svc.Signup(context.Background(), " Dana@Example.com ", "Dana", "hunter22")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "dana@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if string(user.PasswordHash) == "hunter22" || len(user.PasswordHash) == 0 {
		t.Fatal("password must be stored hashed")
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected issued tokens")
	}
	if subs.upserted == nil || subs.upserted.Tier != "free" {
		t.Fatalf("expected a free subscription, got %+v", subs.upserted)
	}
	if subs.upserted.Status != domain.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", subs.upserted.Status)
	}
}

func TestSignupValidatesInput(t *testing.T) {
	svc := New(&stubUserRepository{}, &stubSubscriptionRepository{}, testLogger(), testConfig())

	if _, _, err := svc.Signup(context.Background(), "", "Dana", "pw"); !errors.Is(err, errEmailRequired) {
		t.Fatalf("expected email error, got %v", err)
	}
	if _, _, err := svc.Signup(context.Background(), "dana@example.com", "Dana", ""); !errors.Is(err, errPasswordRequired) {
		t.Fatalf("expected password error, got %v", err)
	}
}

func TestLoginChecksCredentials(t *testing.T) {
	users := &stubUserRepository{}
	svc := New(users, &stubSubscriptionRepository{}, testLogger(), testConfig())

	if _, _, err := svc.Signup(context.Background(), "dana@example.com", "Dana", "hunter22"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "dana@example.com", "wrong"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter22"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}

	user, tokens, err := svc.Login(context.Background(), "DANA@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "dana@example.com" || tokens.AccessToken == "" {
		t.Fatalf("unexpected login result: %+v", user)
	}
}

func TestAuthorizeRoundTrip(t *testing.T) {
	users := &stubUserRepository{}
	svc := New(users, &stubSubscriptionRepository{}, testLogger(), testConfig())

	user, tokens, err := svc.Signup(context.Background(), "dana@example.com", "Dana", "hunter22")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	got, claims, err := svc.Authorize(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if got.ID != user.ID || claims.UserID != user.ID {
		t.Fatalf("expected user %s, got %s / %s", user.ID, got.ID, claims.UserID)
	}

	if _, _, err := svc.Authorize(context.Background(), "not-a-token"); err == nil {
		t.Fatal("expected rejection of a malformed token")
	}
}
