package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the crewdesk API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string        `json:"AccessToken"`
	RefreshToken string        `json:"RefreshToken"`
	ExpiresIn    time.Duration `json:"ExpiresIn"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, email, name, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// Team represents a collaborative workspace.
type Team struct {
	ID        string    `json:"ID"`
	Name      string    `json:"Name"`
	OwnerID   string    `json:"OwnerID"`
	CreatedAt time.Time `json:"CreatedAt"`
}

// ListTeams returns all teams for the authenticated user.
func (c *Client) ListTeams(ctx context.Context, token string) ([]Team, error) {
	var teams []Team
	if err := c.do(ctx, http.MethodGet, "/teams", nil, token, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// CreateTeam provisions a new team owned by the caller.
func (c *Client) CreateTeam(ctx context.Context, token, name string) (Team, error) {
	body := map[string]string{"name": name}
	var team Team
	if err := c.do(ctx, http.MethodPost, "/teams", body, token, &team); err != nil {
		return Team{}, err
	}
	return team, nil
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	TeamID    string    `json:"TeamID"`
	UserID    string    `json:"UserID"`
	Role      string    `json:"Role"`
	CreatedAt time.Time `json:"CreatedAt"`
}

// ListMembers returns the team roster.
func (c *Client) ListMembers(ctx context.Context, token, teamID string) ([]TeamMember, error) {
	path := fmt.Sprintf("/teams/%s/members", url.PathEscape(teamID))
	var members []TeamMember
	if err := c.do(ctx, http.MethodGet, path, nil, token, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// Project describes a unit of work grouping tasks.
type Project struct {
	ID          string    `json:"ID"`
	TeamID      string    `json:"TeamID"`
	OwnerID     string    `json:"OwnerID"`
	Name        string    `json:"Name"`
	Description string    `json:"Description"`
	Status      string    `json:"Status"`
	CreatedAt   time.Time `json:"CreatedAt"`
}

// ListProjects returns projects for the specified team.
func (c *Client) ListProjects(ctx context.Context, token, teamID string) ([]Project, error) {
	path := fmt.Sprintf("/teams/%s/projects", url.PathEscape(teamID))
	var projects []Project
	if err := c.do(ctx, http.MethodGet, path, nil, token, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches detailed information about a project.
func (c *Client) GetProject(ctx context.Context, token, projectID string) (Project, error) {
	path := fmt.Sprintf("/projects/%s", url.PathEscape(projectID))
	var project Project
	if err := c.do(ctx, http.MethodGet, path, nil, token, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// CreateProjectInput captures the payload for project creation.
type CreateProjectInput struct {
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateProject provisions a new project.
func (c *Client) CreateProject(ctx context.Context, token string, input CreateProjectInput) (Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodPost, "/projects", input, token, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// Task models an API task payload.
type Task struct {
	ID          string     `json:"ID"`
	ProjectID   string     `json:"ProjectID"`
	CreatorID   string     `json:"CreatorID"`
	AssigneeID  string     `json:"AssigneeID"`
	Title       string     `json:"Title"`
	Description string     `json:"Description"`
	Status      string     `json:"Status"`
	Priority    string     `json:"Priority"`
	DueAt       *time.Time `json:"DueAt"`
	CreatedAt   time.Time  `json:"CreatedAt"`
}

// ListTasks returns tasks within a project.
func (c *Client) ListTasks(ctx context.Context, token, projectID string) ([]Task, error) {
	path := fmt.Sprintf("/projects/%s/tasks", url.PathEscape(projectID))
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, path, nil, token, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTaskInput captures the payload for task creation.
type CreateTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssigneeID  string     `json:"assignee_id"`
	DueAt       *time.Time `json:"due_at"`
}

// CreateTask adds a task to the project.
func (c *Client) CreateTask(ctx context.Context, token, projectID string, input CreateTaskInput) (Task, error) {
	path := fmt.Sprintf("/projects/%s/tasks", url.PathEscape(projectID))
	var task Task
	if err := c.do(ctx, http.MethodPost, path, input, token, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// AnalyticsSummary aggregates recent team activity.
type AnalyticsSummary struct {
	TeamID       string         `json:"team_id"`
	WindowDays   int            `json:"window_days"`
	ActionCounts map[string]int `json:"action_counts"`
	ProjectCount int            `json:"project_count"`
	MemberCount  int            `json:"member_count"`
}

// TeamAnalytics fetches the team activity summary. Requires a paid tier.
func (c *Client) TeamAnalytics(ctx context.Context, token, teamID string) (AnalyticsSummary, error) {
	path := fmt.Sprintf("/teams/%s/analytics", url.PathEscape(teamID))
	var summary AnalyticsSummary
	if err := c.do(ctx, http.MethodGet, path, nil, token, &summary); err != nil {
		return AnalyticsSummary{}, err
	}
	return summary, nil
}

// Plan describes one subscription option.
type Plan struct {
	Tier   string          `json:"tier"`
	Limits json.RawMessage `json:"limits"`
}

// Plans lists the public subscription catalog. No authentication required.
func (c *Client) Plans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	if err := c.do(ctx, http.MethodGet, "/billing/plans", nil, "", &plans); err != nil {
		return nil, err
	}
	return plans, nil
}
