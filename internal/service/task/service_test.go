package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/internal/service/authz"
)

type stubTaskRepository struct {
	tasks   map[string]domain.Task
	count   int
	deleted []string
}

func (s *stubTaskRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	if s.tasks == nil {
		s.tasks = make(map[string]domain.Task)
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *stubTaskRepository) GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error) {
	if task, ok := s.tasks[taskID]; ok {
		return &task, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubTaskRepository) UpdateTask(ctx context.Context, task *domain.Task) error {
	s.tasks[task.ID] = *task
	return nil
}

func (s *stubTaskRepository) DeleteTask(ctx context.Context, taskID string) error {
	delete(s.tasks, taskID)
	s.deleted = append(s.deleted, taskID)
	return nil
}

func (s *stubTaskRepository) ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	var tasks []domain.Task
	for _, task := range s.tasks {
		if task.ProjectID == projectID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (s *stubTaskRepository) CountTasks(ctx context.Context, projectID string) (int, error) {
	return s.count, nil
}

type stubCommentRepository struct {
	comments map[string]domain.Comment
	deleted  []string
}

func (s *stubCommentRepository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	if s.comments == nil {
		s.comments = make(map[string]domain.Comment)
	}
	s.comments[comment.ID] = *comment
	return nil
}

func (s *stubCommentRepository) GetCommentByID(ctx context.Context, commentID string) (*domain.Comment, error) {
	if comment, ok := s.comments[commentID]; ok {
		return &comment, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubCommentRepository) UpdateComment(ctx context.Context, comment *domain.Comment) error {
	s.comments[comment.ID] = *comment
	return nil
}

func (s *stubCommentRepository) DeleteComment(ctx context.Context, commentID string) error {
	delete(s.comments, commentID)
	s.deleted = append(s.deleted, commentID)
	return nil
}

func (s *stubCommentRepository) ListCommentsByTask(ctx context.Context, taskID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	for _, comment := range s.comments {
		if comment.TaskID == taskID {
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

type stubProjectRepository struct {
	projects map[string]domain.Project
}

func (s *stubProjectRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	return nil
}
func (s *stubProjectRepository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	if project, ok := s.projects[projectID]; ok {
		return &project, nil
	}
	return nil, repository.ErrNotFound
}
func (s *stubProjectRepository) UpdateProject(ctx context.Context, project *domain.Project) error {
	return nil
}
func (s *stubProjectRepository) DeleteProject(ctx context.Context, projectID string) error {
	return nil
}
func (s *stubProjectRepository) ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	return nil, nil
}
func (s *stubProjectRepository) CountProjects(ctx context.Context, teamID string) (int, error) {
	return 0, nil
}

type stubTeamRepository struct {
	teams   map[string]domain.Team
	members map[string]domain.TeamMember
}

func memberKey(teamID, userID string) string { return teamID + "/" + userID }

func (s *stubTeamRepository) CreateTeam(ctx context.Context, team *domain.Team) error { return nil }
func (s *stubTeamRepository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	if team, ok := s.teams[teamID]; ok {
		return &team, nil
	}
	return nil, repository.ErrNotFound
}
func (s *stubTeamRepository) ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	return nil, nil
}
func (s *stubTeamRepository) DeleteTeam(ctx context.Context, teamID string) error { return nil }
func (s *stubTeamRepository) CountTeamsByOwner(ctx context.Context, ownerID string) (int, error) {
	return 0, nil
}
func (s *stubTeamRepository) UpsertMember(ctx context.Context, member *domain.TeamMember) error {
	return nil
}
func (s *stubTeamRepository) GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	if member, ok := s.members[memberKey(teamID, userID)]; ok {
		return &member, nil
	}
	return nil, repository.ErrNotFound
}
func (s *stubTeamRepository) DeleteMember(ctx context.Context, teamID, userID string) error {
	return nil
}
func (s *stubTeamRepository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	return nil, nil
}

type stubSubscriptionRepository struct {
	tiers map[string]string
}

func (s *stubSubscriptionRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	return nil
}
func (s *stubSubscriptionRepository) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	if tier, ok := s.tiers[userID]; ok {
		return &domain.Subscription{UserID: userID, Tier: tier}, nil
	}
	return nil, repository.ErrNotFound
}

type activityStub struct{}

func (activityStub) InsertActivity(ctx context.Context, event *domain.ActivityEvent) error {
	return nil
}
func (activityStub) ListActivityByTeam(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityEvent, error) {
	return nil, nil
}
func (activityStub) CountActivityByAction(ctx context.Context, teamID string, since time.Time) (map[string]int, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	tasks    *stubTaskRepository
	comments *stubCommentRepository
	svc      Service
}

func newFixture(ownerTier string, members map[string]string) fixture {
	teams := &stubTeamRepository{
		teams:   map[string]domain.Team{"team-1": {ID: "team-1", OwnerID: "owner-1"}},
		members: map[string]domain.TeamMember{memberKey("team-1", "owner-1"): {TeamID: "team-1", UserID: "owner-1", Role: "owner"}},
	}
	for userID, role := range members {
		teams.members[memberKey("team-1", userID)] = domain.TeamMember{TeamID: "team-1", UserID: userID, Role: role}
	}
	subs := &stubSubscriptionRepository{tiers: map[string]string{"owner-1": ownerTier}}
	projects := &stubProjectRepository{projects: map[string]domain.Project{
		"proj-1": {ID: "proj-1", TeamID: "team-1", OwnerID: "owner-1", Status: domain.ProjectStatusActive},
	}}
	tasks := &stubTaskRepository{}
	comments := &stubCommentRepository{}
	authzSvc := authz.New(teams, subs, testLogger())
	svc := New(tasks, comments, projects, activityStub{}, authzSvc, testLogger())
	return fixture{tasks: tasks, comments: comments, svc: svc}
}

func TestCreateEnforcesTaskQuota(t *testing.T) {
	f := newFixture("free", nil)
	f.tasks.count = 50

	_, err := f.svc.Create(context.Background(), "owner-1", CreateInput{ProjectID: "proj-1", Title: "Ship it"})
	if !errors.Is(err, authz.ErrQuotaExceeded) {
		t.Fatalf("expected quota error at the free task cap, got %v", err)
	}

	f.tasks.count = 49
	task, err := f.svc.Create(context.Background(), "owner-1", CreateInput{ProjectID: "proj-1", Title: "Ship it"})
	if err != nil {
		t.Fatalf("create under cap: %v", err)
	}
	if task.Status != domain.TaskStatusTodo {
		t.Fatalf("expected new task todo, got %s", task.Status)
	}
	if task.Priority != domain.TaskPriorityMedium {
		t.Fatalf("expected default medium priority, got %s", task.Priority)
	}
}

func TestCreateAllowsMembersBlocksViewers(t *testing.T) {
	f := newFixture("pro", map[string]string{"user-2": "member", "user-3": "viewer"})

	if _, err := f.svc.Create(context.Background(), "user-2", CreateInput{ProjectID: "proj-1", Title: "Write docs"}); err != nil {
		t.Fatalf("member create: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), "user-3", CreateInput{ProjectID: "proj-1", Title: "Write docs"}); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Fatalf("expected denial for viewer, got %v", err)
	}
}

func TestUpdateAllowsTaskCreatorWithoutRole(t *testing.T) {
	f := newFixture("pro", map[string]string{"user-2": "viewer", "user-3": "viewer"})
	f.tasks.tasks = map[string]domain.Task{
		"task-1": {ID: "task-1", ProjectID: "proj-1", CreatorID: "user-2", Title: "Draft", Status: domain.TaskStatusTodo, Priority: domain.TaskPriorityMedium},
	}

	// A viewer who created the task can still move it along.
	updated, err := f.svc.Update(context.Background(), "user-2", UpdateInput{TaskID: "task-1", Status: domain.TaskStatusInProgress})
	if err != nil {
		t.Fatalf("creator update: %v", err)
	}
	if updated.Status != domain.TaskStatusInProgress {
		t.Fatalf("status not updated, got %s", updated.Status)
	}

	if _, err := f.svc.Update(context.Background(), "user-3", UpdateInput{TaskID: "task-1", Status: domain.TaskStatusDone}); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Fatalf("expected denial for unrelated viewer, got %v", err)
	}
}

func TestUpdateValidatesStatusAndPriority(t *testing.T) {
	f := newFixture("pro", nil)
	f.tasks.tasks = map[string]domain.Task{
		"task-1": {ID: "task-1", ProjectID: "proj-1", CreatorID: "owner-1", Status: domain.TaskStatusTodo, Priority: domain.TaskPriorityMedium},
	}

	if _, err := f.svc.Update(context.Background(), "owner-1", UpdateInput{TaskID: "task-1", Status: "blocked"}); !errors.Is(err, errInvalidStatus) {
		t.Fatalf("expected status validation error, got %v", err)
	}
	if _, err := f.svc.Update(context.Background(), "owner-1", UpdateInput{TaskID: "task-1", Priority: "urgent"}); !errors.Is(err, errInvalidPriority) {
		t.Fatalf("expected priority validation error, got %v", err)
	}
}

func TestCommentsAreAuthorOwned(t *testing.T) {
	f := newFixture("pro", map[string]string{"user-2": "member", "user-3": "admin"})
	f.tasks.tasks = map[string]domain.Task{
		"task-1": {ID: "task-1", ProjectID: "proj-1", CreatorID: "owner-1"},
	}

	comment, err := f.svc.AddComment(context.Background(), "task-1", "user-2", "looks good")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	// Even an admin cannot edit someone else's comment.
	if _, err := f.svc.EditComment(context.Background(), comment.ID, "user-3", "rewritten"); !errors.Is(err, errNotCommentAuthor) {
		t.Fatalf("expected author-only edit, got %v", err)
	}
	edited, err := f.svc.EditComment(context.Background(), comment.ID, "user-2", "looks great")
	if err != nil {
		t.Fatalf("author edit: %v", err)
	}
	if edited.Body != "looks great" {
		t.Fatalf("body not updated, got %q", edited.Body)
	}
}

func TestDeleteCommentAllowsModeration(t *testing.T) {
	f := newFixture("pro", map[string]string{"user-2": "member", "user-3": "admin", "user-4": "viewer"})
	f.tasks.tasks = map[string]domain.Task{
		"task-1": {ID: "task-1", ProjectID: "proj-1", CreatorID: "owner-1"},
	}
	f.comments.comments = map[string]domain.Comment{
		"comment-1": {ID: "comment-1", TaskID: "task-1", AuthorID: "user-2", Body: "spam"},
		"comment-2": {ID: "comment-2", TaskID: "task-1", AuthorID: "user-2", Body: "more spam"},
	}

	// Admins moderate through the task-management permission.
	if err := f.svc.DeleteComment(context.Background(), "comment-1", "user-3"); err != nil {
		t.Fatalf("admin moderation: %v", err)
	}
	// Viewers cannot.
	if err := f.svc.DeleteComment(context.Background(), "comment-2", "user-4"); !errors.Is(err, authz.ErrPermissionDenied) {
		t.Fatalf("expected denial for viewer, got %v", err)
	}
	// Authors delete their own.
	if err := f.svc.DeleteComment(context.Background(), "comment-2", "user-2"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
}

func TestListByProjectRequiresMembership(t *testing.T) {
	f := newFixture("pro", nil)

	if _, err := f.svc.ListByProject(context.Background(), "proj-1", "stranger"); !errors.Is(err, authz.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}
