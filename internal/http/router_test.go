package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/internal/service/analytics"
	"github.com/crewdesk/crewdesk/internal/service/auth"
	"github.com/crewdesk/crewdesk/internal/service/billing"
	"github.com/crewdesk/crewdesk/internal/service/file"
	"github.com/crewdesk/crewdesk/internal/service/project"
	"github.com/crewdesk/crewdesk/internal/service/task"
	"github.com/crewdesk/crewdesk/internal/service/team"
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type routerFixture struct {
	router *Router
	subs   *stubSubscriptionRepository
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	cfg := config.APIConfig{
		JWTSecret:       "router-test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
	users := &stubUserRepository{}
	subs := &stubSubscriptionRepository{}
	authSvc := auth.New(users, subs, testLogger(), cfg)
	billingSvc := billing.New(subs, testLogger())
	router := NewRouter(
		testLogger(),
		authSvc,
		team.Service{},
		project.Service{},
		task.Service{},
		file.Service{},
		analytics.Service{},
		billingSvc,
		NewMemoryRateLimiter(),
		"hook-secret",
		nil,
	)
	t.Cleanup(router.Close)
	return routerFixture{router: router, subs: subs}
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", payload["status"])
	}
}

func TestPlansArePublic(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/plans", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var plans []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&plans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plans) != 4 {
		t.Fatalf("expected 4 plans, got %d", len(plans))
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teams", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teams", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestSignupAndSubscription(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"email":"dana@example.com","name":"Dana","password":"hunter22"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	req.RemoteAddr = "10.0.0.1:55000"
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var signup struct {
		Tokens struct {
			AccessToken string `json:"AccessToken"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&signup); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if signup.Tokens.AccessToken == "" {
		t.Fatal("expected an access token")
	}

	// The new account should read back as a free subscription.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/billing/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+signup.Tokens.AccessToken)
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var sub struct {
		Tier string `json:"Tier"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.Tier != "free" {
		t.Fatalf("expected free tier, got %s", sub.Tier)
	}
}

func TestSignupRateLimited(t *testing.T) {
	f := newRouterFixture(t)

	var last int
	for i := 0; i < rateLimitSignup+1; i++ {
		rec := httptest.NewRecorder()
		body := strings.NewReader(`{"email":"","password":""}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
		req.RemoteAddr = "10.0.0.9:55000"
		f.router.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the burst, got %d", last)
	}
}

func TestBillingWebhookRequiresKey(t *testing.T) {
	f := newRouterFixture(t)

	payload := `{"user_id":"user-1","tier":"pro","customer_ref":"cus_9"}`

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(payload)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(payload))
	req.Header.Set("X-Billing-Key", "wrong")
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(payload))
	req.Header.Set("X-Billing-Key", "hook-secret")
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.subs.upserted == nil || f.subs.upserted.Tier != "pro" {
		t.Fatalf("expected pro subscription applied, got %+v", f.subs.upserted)
	}
}

func TestBillingWebhookRejectsUnknownTier(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{"user_id":"user-1","tier":"platinum"}`))
	req.Header.Set("X-Billing-Key", "hook-secret")
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
