package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository         = (*Repository)(nil)
	_ repository.SubscriptionRepository = (*Repository)(nil)
	_ repository.TeamRepository         = (*Repository)(nil)
	_ repository.ProjectRepository      = (*Repository)(nil)
	_ repository.TaskRepository         = (*Repository)(nil)
	_ repository.CommentRepository      = (*Repository)(nil)
	_ repository.FileRepository         = (*Repository)(nil)
	_ repository.ActivityRepository     = (*Repository)(nil)
)

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrDuplicate
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt)
	return mapWriteError(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertSubscription saves the billing plan state for an account.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	const query = `INSERT INTO subscriptions (user_id, tier, status, customer_ref, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			customer_ref = EXCLUDED.customer_ref,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, sub.UserID, sub.Tier, sub.Status, sub.CustomerRef, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt)
	return mapWriteError(err)
}

// GetSubscriptionByUser returns the account subscription.
func (r *Repository) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	const query = `SELECT user_id, tier, status, customer_ref, current_period_end, created_at, updated_at
		FROM subscriptions WHERE user_id = $1`
	row := r.pool.QueryRow(ctx, query, userID)
	var s domain.Subscription
	if err := row.Scan(&s.UserID, &s.Tier, &s.Status, &s.CustomerRef, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CreateTeam creates a team record.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	const query = `INSERT INTO teams (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, team.ID, team.Name, team.OwnerID, team.CreatedAt)
	return mapWriteError(err)
}

// GetTeamByID returns a team by identifier.
func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	const query = `SELECT id, name, owner_id, created_at FROM teams WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, teamID)
	var team domain.Team
	if err := row.Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// ListTeamsByUser returns teams the user belongs to.
func (r *Repository) ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	const query = `SELECT t.id, t.name, t.owner_id, t.created_at
		FROM teams t
		INNER JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1
		ORDER BY t.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// DeleteTeam removes a team; memberships, projects, tasks and files cascade.
func (r *Repository) DeleteTeam(ctx context.Context, teamID string) error {
	const query = `DELETE FROM teams WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, teamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountTeamsByOwner counts teams owned by a user, for quota checks.
func (r *Repository) CountTeamsByOwner(ctx context.Context, ownerID string) (int, error) {
	const query = `SELECT COUNT(1) FROM teams WHERE owner_id = $1`
	row := r.pool.QueryRow(ctx, query, ownerID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpsertMember adds a member to a team or updates their role.
func (r *Repository) UpsertMember(ctx context.Context, member *domain.TeamMember) error {
	const query = `INSERT INTO team_members (team_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, member.TeamID, member.UserID, member.Role, member.CreatedAt)
	return mapWriteError(err)
}

// GetMember returns a team membership record.
func (r *Repository) GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	const query = `SELECT team_id, user_id, role, created_at, updated_at
		FROM team_members WHERE team_id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, teamID, userID)
	var m domain.TeamMember
	if err := row.Scan(&m.TeamID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// DeleteMember removes a membership.
func (r *Repository) DeleteMember(ctx context.Context, teamID, userID string) error {
	const query = `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, teamID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListMembers returns all memberships for a team.
func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	const query = `SELECT team_id, user_id, role, created_at, updated_at
		FROM team_members WHERE team_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.TeamMember, 0)
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, team_id, owner_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := r.pool.Exec(ctx, query, project.ID, project.TeamID, project.OwnerID, project.Name, project.Description, project.Status, project.CreatedAt)
	return mapWriteError(err)
}

// GetProjectByID fetches project details.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT id, team_id, owner_id, name, description, status, created_at, updated_at
		FROM projects WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, projectID)
	var project domain.Project
	if err := row.Scan(&project.ID, &project.TeamID, &project.OwnerID, &project.Name, &project.Description, &project.Status, &project.CreatedAt, &project.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// UpdateProject mutates project metadata.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects
		SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, project.ID, project.Name, project.Description, project.Status, project.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteProject removes a project and its tasks.
func (r *Repository) DeleteProject(ctx context.Context, projectID string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListProjectsByTeam returns projects for the provided team.
func (r *Repository) ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	const query = `SELECT id, team_id, owner_id, name, description, status, created_at, updated_at
		FROM projects WHERE team_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var project domain.Project
		if err := rows.Scan(&project.ID, &project.TeamID, &project.OwnerID, &project.Name, &project.Description, &project.Status, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// CountProjects counts projects assigned to a team.
func (r *Repository) CountProjects(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(1) FROM projects WHERE team_id = $1`
	row := r.pool.QueryRow(ctx, query, teamID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateTask inserts a task.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	const query = `INSERT INTO tasks (id, project_id, creator_id, assignee_id, title, description, status, priority, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	_, err := r.pool.Exec(ctx, query, task.ID, task.ProjectID, task.CreatorID, emptyToNil(task.AssigneeID), task.Title, task.Description, task.Status, task.Priority, task.DueAt, task.CreatedAt)
	return mapWriteError(err)
}

// GetTaskByID fetches a task.
func (r *Repository) GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error) {
	const query = `SELECT id, project_id, creator_id, COALESCE(assignee_id, ''), title, description, status, priority, due_at, created_at, updated_at
		FROM tasks WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, taskID)
	var task domain.Task
	if err := row.Scan(&task.ID, &task.ProjectID, &task.CreatorID, &task.AssigneeID, &task.Title, &task.Description, &task.Status, &task.Priority, &task.DueAt, &task.CreatedAt, &task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// UpdateTask mutates task fields.
func (r *Repository) UpdateTask(ctx context.Context, task *domain.Task) error {
	const query = `UPDATE tasks
		SET assignee_id = $2, title = $3, description = $4, status = $5, priority = $6, due_at = $7, updated_at = $8
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, task.ID, emptyToNil(task.AssigneeID), task.Title, task.Description, task.Status, task.Priority, task.DueAt, task.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, taskID string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListTasksByProject returns a project's tasks.
func (r *Repository) ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	const query = `SELECT id, project_id, creator_id, COALESCE(assignee_id, ''), title, description, status, priority, due_at, created_at, updated_at
		FROM tasks WHERE project_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(&task.ID, &task.ProjectID, &task.CreatorID, &task.AssigneeID, &task.Title, &task.Description, &task.Status, &task.Priority, &task.DueAt, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CountTasks counts tasks in a project.
func (r *Repository) CountTasks(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(1) FROM tasks WHERE project_id = $1`
	row := r.pool.QueryRow(ctx, query, projectID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateComment inserts a task comment.
func (r *Repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	const query = `INSERT INTO comments (id, task_id, author_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`
	_, err := r.pool.Exec(ctx, query, comment.ID, comment.TaskID, comment.AuthorID, comment.Body, comment.CreatedAt)
	return mapWriteError(err)
}

// GetCommentByID fetches a comment.
func (r *Repository) GetCommentByID(ctx context.Context, commentID string) (*domain.Comment, error) {
	const query = `SELECT id, task_id, author_id, body, created_at, updated_at FROM comments WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, commentID)
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateComment replaces a comment body.
func (r *Repository) UpdateComment(ctx context.Context, comment *domain.Comment) error {
	const query = `UPDATE comments SET body = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, comment.ID, comment.Body, comment.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteComment removes a comment.
func (r *Repository) DeleteComment(ctx context.Context, commentID string) error {
	const query = `DELETE FROM comments WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, commentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListCommentsByTask returns comments for a task, oldest first.
func (r *Repository) ListCommentsByTask(ctx context.Context, taskID string) ([]domain.Comment, error) {
	const query = `SELECT id, task_id, author_id, body, created_at, updated_at
		FROM comments WHERE task_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateFile records attachment metadata.
func (r *Repository) CreateFile(ctx context.Context, file *domain.FileObject) error {
	const query = `INSERT INTO files (id, team_id, project_id, task_id, uploader_id, name, content_type, size_bytes, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query, file.ID, file.TeamID, file.ProjectID, emptyToNil(file.TaskID), file.UploaderID, file.Name, file.ContentType, file.SizeBytes, file.StorageKey, file.CreatedAt)
	return mapWriteError(err)
}

// GetFileByID fetches attachment metadata.
func (r *Repository) GetFileByID(ctx context.Context, fileID string) (*domain.FileObject, error) {
	const query = `SELECT id, team_id, project_id, COALESCE(task_id, ''), uploader_id, name, content_type, size_bytes, storage_key, created_at
		FROM files WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, fileID)
	var f domain.FileObject
	if err := row.Scan(&f.ID, &f.TeamID, &f.ProjectID, &f.TaskID, &f.UploaderID, &f.Name, &f.ContentType, &f.SizeBytes, &f.StorageKey, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// DeleteFile removes attachment metadata.
func (r *Repository) DeleteFile(ctx context.Context, fileID string) error {
	const query = `DELETE FROM files WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, fileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListFilesByProject returns attachment metadata for a project.
func (r *Repository) ListFilesByProject(ctx context.Context, projectID string) ([]domain.FileObject, error) {
	const query = `SELECT id, team_id, project_id, COALESCE(task_id, ''), uploader_id, name, content_type, size_bytes, storage_key, created_at
		FROM files WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]domain.FileObject, 0)
	for rows.Next() {
		var f domain.FileObject
		if err := rows.Scan(&f.ID, &f.TeamID, &f.ProjectID, &f.TaskID, &f.UploaderID, &f.Name, &f.ContentType, &f.SizeBytes, &f.StorageKey, &f.CreatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// SumFileSizesByTeam totals stored bytes for a team, for storage quota checks.
func (r *Repository) SumFileSizesByTeam(ctx context.Context, teamID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE team_id = $1`
	row := r.pool.QueryRow(ctx, query, teamID)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// InsertActivity appends an activity feed event.
func (r *Repository) InsertActivity(ctx context.Context, event *domain.ActivityEvent) error {
	const query = `INSERT INTO activity_events (id, team_id, actor_id, action, target_type, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, event.ID, event.TeamID, event.ActorID, event.Action, event.TargetType, event.TargetID, event.CreatedAt)
	return mapWriteError(err)
}

// ListActivityByTeam returns recent activity, newest first.
func (r *Repository) ListActivityByTeam(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityEvent, error) {
	const query = `SELECT id, team_id, actor_id, action, target_type, target_id, created_at
		FROM activity_events WHERE team_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, teamID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.ActivityEvent, 0)
	for rows.Next() {
		var e domain.ActivityEvent
		if err := rows.Scan(&e.ID, &e.TeamID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountActivityByAction aggregates event counts per action since a cutoff.
func (r *Repository) CountActivityByAction(ctx context.Context, teamID string, since time.Time) (map[string]int, error) {
	const query = `SELECT action, COUNT(1) FROM activity_events
		WHERE team_id = $1 AND created_at >= $2 GROUP BY action`
	rows, err := r.pool.Query(ctx, query, teamID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func emptyToNil(value string) any {
	if value == "" {
		return nil
	}
	return value
}
