package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crewdesk/crewdesk/internal/access"
	"github.com/crewdesk/crewdesk/internal/entitlement"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/internal/service/analytics"
	"github.com/crewdesk/crewdesk/internal/service/auth"
	"github.com/crewdesk/crewdesk/internal/service/authz"
	"github.com/crewdesk/crewdesk/internal/service/billing"
	"github.com/crewdesk/crewdesk/internal/service/file"
	"github.com/crewdesk/crewdesk/internal/service/project"
	"github.com/crewdesk/crewdesk/internal/service/task"
	"github.com/crewdesk/crewdesk/internal/service/team"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	auth       auth.Service
	teams      team.Service
	projects   project.Service
	tasks      task.Service
	files      file.Service
	analytics  analytics.Service
	billing    billing.Service
	limiter    RateLimiter
	webhookKey string
	dbHealth   func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitWebhook   = 120
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, teamSvc team.Service, projectSvc project.Service, taskSvc task.Service, fileSvc file.Service, analyticsSvc analytics.Service, billingSvc billing.Service, limiter RateLimiter, webhookKey string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:        http.NewServeMux(),
		logger:     logger,
		auth:       authSvc,
		teams:      teamSvc,
		projects:   projectSvc,
		tasks:      taskSvc,
		files:      fileSvc,
		analytics:  analyticsSvc,
		billing:    billingSvc,
		limiter:    limiter,
		webhookKey: strings.TrimSpace(webhookKey),
		dbHealth:   dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/teams", r.audit("/teams", r.handlerAuthRate("/teams", rateLimitUserWrite, rateWindowDefault, r.handleTeams)))
	r.mux.HandleFunc("/teams/", r.audit("/teams/", r.handlerAuthRate("/teams/", rateLimitUserWrite, rateWindowDefault, r.handleTeamSubroutes)))
	r.mux.HandleFunc("/projects", r.audit("/projects", r.handlerAuthRate("/projects", rateLimitUserWrite, rateWindowDefault, r.handleProjects)))
	r.mux.HandleFunc("/projects/", r.audit("/projects/", r.handlerAuthRate("/projects/", rateLimitUserWrite, rateWindowDefault, r.handleProjectSubroutes)))
	r.mux.HandleFunc("/tasks/", r.audit("/tasks/", r.handlerAuthRate("/tasks/", rateLimitUserWrite, rateWindowDefault, r.handleTaskSubroutes)))
	r.mux.HandleFunc("/comments/", r.audit("/comments/", r.handlerAuthRate("/comments/", rateLimitUserWrite, rateWindowDefault, r.handleCommentSubroutes)))
	r.mux.HandleFunc("/files/", r.audit("/files/", r.handlerAuthRate("/files/", rateLimitUserRead, rateWindowDefault, r.handleFileSubroutes)))
	r.mux.HandleFunc("/billing/plans", r.audit("/billing/plans", r.handlePlans))
	r.mux.HandleFunc("/billing/subscription", r.audit("/billing/subscription", r.handlerAuthRate("/billing/subscription", rateLimitUserRead, rateWindowDefault, r.handleSubscription)))
	r.mux.HandleFunc("/billing/webhook", r.audit("/billing/webhook", r.withRateLimit("/billing/webhook", rateLimitWebhook, rateWindowDefault, rateLimitKeyIP, r.handleBillingWebhook)))
}

// writeServiceError translates service sentinels into HTTP statuses. Quota
// rejections use 402 so clients can surface an upgrade prompt distinct from
// a plain permission failure.
func (r *Router) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authz.ErrNotMember):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrQuotaExceeded):
		writeError(w, http.StatusPaymentRequired, "plan limit reached, upgrade to continue")
	case errors.Is(err, entitlement.ErrUnknownKey), errors.Is(err, entitlement.ErrInvalidArgument),
		errors.Is(err, access.ErrUnknownKey), errors.Is(err, access.ErrInvalidArgument),
		errors.Is(err, repository.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload.Email, payload.Name, payload.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
		"tokens": tokens,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
		"tokens": tokens,
	})
}

func (r *Router) handleTeams(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.teams.Create(req.Context(), info.UserID, payload.Name)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		teams, err := r.teams.ListByUser(req.Context(), info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, teams)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/teams/")
	parts := strings.Split(trimmed, "/")
	teamID := parts[0]
	if teamID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch {
	case len(parts) == 1:
		r.handleTeam(w, req, teamID, info)
	case len(parts) == 2 && parts[1] == "members":
		r.handleTeamMembers(w, req, teamID, info)
	case len(parts) == 3 && parts[1] == "members":
		r.handleTeamMember(w, req, teamID, parts[2], info)
	case len(parts) == 2 && parts[1] == "projects":
		r.handleTeamProjects(w, req, teamID, info)
	case len(parts) == 2 && parts[1] == "analytics":
		r.handleTeamAnalytics(w, req, teamID, info)
	case len(parts) == 2 && parts[1] == "activity":
		r.handleTeamActivity(w, req, teamID, info)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTeam(w http.ResponseWriter, req *http.Request, teamID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		found, err := r.teams.Get(req.Context(), teamID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	case http.MethodDelete:
		if err := r.teams.Delete(req.Context(), teamID, info.UserID); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamMembers(w http.ResponseWriter, req *http.Request, teamID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		members, err := r.teams.ListMembers(req.Context(), teamID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, members)
	case http.MethodPost:
		var payload struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := r.teams.InviteMember(req.Context(), teamID, info.UserID, payload.UserID, payload.Role); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "invited"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamMember(w http.ResponseWriter, req *http.Request, teamID, memberID string, info authInfo) {
	switch req.Method {
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		result, err := r.teams.ChangeRole(req.Context(), teamID, info.UserID, memberID, payload.Role)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		if !result.Valid {
			writeJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodDelete:
		if err := r.teams.RemoveMember(req.Context(), teamID, info.UserID, memberID); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamProjects(w http.ResponseWriter, req *http.Request, teamID string, info authInfo) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	projects, err := r.projects.ListByTeam(req.Context(), teamID, info.UserID)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (r *Router) handleTeamAnalytics(w http.ResponseWriter, req *http.Request, teamID string, info authInfo) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	summary, err := r.analytics.TeamSummary(req.Context(), teamID, info.UserID)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleTeamActivity(w http.ResponseWriter, req *http.Request, teamID string, info authInfo) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	events, err := r.analytics.Feed(req.Context(), teamID, info.UserID, limit, offset)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		TeamID      string `json:"team_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	proj, err := r.projects.Create(req.Context(), info.UserID, project.CreateInput{
		TeamID:      payload.TeamID,
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, proj)
}

func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/projects/")
	parts := strings.Split(trimmed, "/")
	projectID := parts[0]
	if projectID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch {
	case len(parts) == 1:
		r.handleProject(w, req, projectID, info)
	case len(parts) == 2 && parts[1] == "tasks":
		r.handleProjectTasks(w, req, projectID, info)
	case len(parts) == 2 && parts[1] == "files":
		r.handleProjectFiles(w, req, projectID, info)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request, projectID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		proj, err := r.projects.Get(req.Context(), projectID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proj)
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Status      string `json:"status"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proj, err := r.projects.Update(req.Context(), info.UserID, project.UpdateInput{
			ProjectID:   projectID,
			Name:        payload.Name,
			Description: payload.Description,
			Status:      payload.Status,
		})
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proj)
	case http.MethodDelete:
		if err := r.projects.Delete(req.Context(), projectID, info.UserID); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectTasks(w http.ResponseWriter, req *http.Request, projectID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		tasks, err := r.tasks.ListByProject(req.Context(), projectID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	case http.MethodPost:
		var payload struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			Priority    string     `json:"priority"`
			AssigneeID  string     `json:"assignee_id"`
			DueAt       *time.Time `json:"due_at"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.tasks.Create(req.Context(), info.UserID, task.CreateInput{
			ProjectID:   projectID,
			Title:       payload.Title,
			Description: payload.Description,
			Priority:    payload.Priority,
			AssigneeID:  payload.AssigneeID,
			DueAt:       payload.DueAt,
		})
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectFiles(w http.ResponseWriter, req *http.Request, projectID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		files, err := r.files.ListByProject(req.Context(), projectID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, files)
	case http.MethodPost:
		var payload struct {
			TaskID      string `json:"task_id"`
			Name        string `json:"name"`
			ContentType string `json:"content_type"`
			SizeBytes   int64  `json:"size_bytes"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		upload, err := r.files.RequestUpload(req.Context(), info.UserID, file.UploadInput{
			ProjectID:   projectID,
			TaskID:      payload.TaskID,
			Name:        payload.Name,
			ContentType: payload.ContentType,
			SizeBytes:   payload.SizeBytes,
		})
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, upload)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTaskSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/tasks/")
	parts := strings.Split(trimmed, "/")
	taskID := parts[0]
	if taskID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch {
	case len(parts) == 1:
		r.handleTask(w, req, taskID, info)
	case len(parts) == 2 && parts[1] == "comments":
		r.handleTaskComments(w, req, taskID, info)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTask(w http.ResponseWriter, req *http.Request, taskID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		found, err := r.tasks.Get(req.Context(), taskID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			Status      string     `json:"status"`
			Priority    string     `json:"priority"`
			AssigneeID  string     `json:"assignee_id"`
			DueAt       *time.Time `json:"due_at"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := r.tasks.Update(req.Context(), info.UserID, task.UpdateInput{
			TaskID:      taskID,
			Title:       payload.Title,
			Description: payload.Description,
			Status:      payload.Status,
			Priority:    payload.Priority,
			AssigneeID:  payload.AssigneeID,
			DueAt:       payload.DueAt,
		})
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.tasks.Delete(req.Context(), taskID, info.UserID); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTaskComments(w http.ResponseWriter, req *http.Request, taskID string, info authInfo) {
	switch req.Method {
	case http.MethodGet:
		comments, err := r.tasks.ListComments(req.Context(), taskID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comments)
	case http.MethodPost:
		var payload struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		comment, err := r.tasks.AddComment(req.Context(), taskID, info.UserID, payload.Body)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleCommentSubroutes(w http.ResponseWriter, req *http.Request) {
	commentID := strings.TrimPrefix(req.URL.Path, "/comments/")
	if commentID == "" || strings.Contains(commentID, "/") {
		r.notFound(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		comment, err := r.tasks.EditComment(req.Context(), commentID, info.UserID, payload.Body)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comment)
	case http.MethodDelete:
		if err := r.tasks.DeleteComment(req.Context(), commentID, info.UserID); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleFileSubroutes(w http.ResponseWriter, req *http.Request) {
	fileID := strings.TrimPrefix(req.URL.Path, "/files/")
	if fileID == "" || strings.Contains(fileID, "/") {
		r.notFound(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		url, err := r.files.DownloadURL(req.Context(), fileID, info.UserID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
	case http.MethodDelete:
		if err := r.files.Delete(req.Context(), fileID, info.UserID); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handlePlans(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, r.billing.Plans())
}

func (r *Router) handleSubscription(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	sub, err := r.billing.Subscription(req.Context(), info.UserID)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (r *Router) handleBillingWebhook(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if !r.verifyWebhookKey(w, req) {
		return
	}
	var payload struct {
		UserID           string     `json:"user_id"`
		Tier             string     `json:"tier"`
		Status           string     `json:"status"`
		CustomerRef      string     `json:"customer_ref"`
		CurrentPeriodEnd *time.Time `json:"current_period_end"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	change := billing.TierChange{
		UserID:           payload.UserID,
		Tier:             payload.Tier,
		Status:           payload.Status,
		CustomerRef:      payload.CustomerRef,
		CurrentPeriodEnd: payload.CurrentPeriodEnd,
	}
	if err := r.billing.ApplyTierChange(req.Context(), change); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "applied"})
}

// verifyWebhookKey ensures billing callbacks include the configured shared key.
func (r *Router) verifyWebhookKey(w http.ResponseWriter, req *http.Request) bool {
	expected := r.webhookKey
	if expected == "" {
		r.logger.Error("billing webhook key not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "webhook authentication misconfigured")
		return false
	}
	key := strings.TrimSpace(req.Header.Get("X-Billing-Key"))
	if len(key) != len(expected) || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
		r.logger.Warn("billing webhook key mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid webhook key")
		return false
	}
	return true
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) mustAuthInfo(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return authInfo{}, false
	}
	return info, true
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		} else if strings.HasPrefix(req.URL.Path, "/billing/webhook") {
			actor = "billing"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
