package file

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/internal/access"
	"github.com/crewdesk/crewdesk/internal/domain"
	"github.com/crewdesk/crewdesk/internal/entitlement"
	"github.com/crewdesk/crewdesk/internal/repository"
	"github.com/crewdesk/crewdesk/internal/service/authz"
)

const (
	mega = 1 << 20
	giga = 1 << 30
)

// ObjectStore is the narrow surface of the external blob storage. The bytes
// never pass through this service; clients upload and download against
// presigned URLs.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// UploadInput describes a requested attachment upload.
type UploadInput struct {
	ProjectID   string
	TaskID      string
	Name        string
	ContentType string
	SizeBytes   int64
}

// Upload pairs stored metadata with the URL the client pushes bytes to.
type Upload struct {
	File      *domain.FileObject
	UploadURL string
}

// Service registers attachment metadata and enforces storage quotas.
type Service struct {
	files    repository.FileRepository
	projects repository.ProjectRepository
	activity repository.ActivityRepository
	authz    authz.Service
	store    ObjectStore
	logger   *slog.Logger
	urlTTL   time.Duration
}

// New returns a file service.
func New(files repository.FileRepository, projects repository.ProjectRepository, activity repository.ActivityRepository, authzSvc authz.Service, store ObjectStore, logger *slog.Logger, urlTTL time.Duration) Service {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return Service{files: files, projects: projects, activity: activity, authz: authzSvc, store: store, logger: logger, urlTTL: urlTTL}
}

var (
	errInvalidFileName  = errors.New("file name is required")
	errInvalidFileSize  = errors.New("file size must be positive")
	errMissingProjectID = errors.New("project id required")
)

// RequestUpload checks the per-file and total-storage quotas, records the
// metadata, and hands back a presigned upload URL.
func (s Service) RequestUpload(ctx context.Context, actorID string, input UploadInput) (*Upload, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errInvalidFileName
	}
	if input.SizeBytes <= 0 {
		return nil, errInvalidFileSize
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, errMissingProjectID
	}
	project, err := s.projects.GetProjectByID(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	actx, _, err := s.authz.ContextForTeam(ctx, project.TeamID, actorID)
	if err != nil {
		return nil, err
	}
	allowed, err := access.HasPermission(actx, access.PermManageTasks)
	if err != nil {
		return nil, err
	}
	if !allowed && !actx.IsTeamOwner {
		return nil, fmt.Errorf("%w: upload files", authz.ErrPermissionDenied)
	}

	// Per-file cap: a file whose megabyte size reaches the cap is too big.
	sizeMB := int(input.SizeBytes / mega)
	tooBig, err := entitlement.HasReachedLimit(actx.Tier, entitlement.FeatureMaxFileUploadMB, sizeMB)
	if err != nil {
		return nil, err
	}
	if tooBig {
		return nil, fmt.Errorf("%w: file size on the %s plan", authz.ErrQuotaExceeded, actx.Tier)
	}

	// Total-storage cap, measured against what the team already holds.
	usedBytes, err := s.files.SumFileSizesByTeam(ctx, project.TeamID)
	if err != nil {
		return nil, err
	}
	usedGB := int(usedBytes / giga)
	full, err := entitlement.HasReachedLimit(actx.Tier, entitlement.FeatureMaxStorageGB, usedGB)
	if err != nil {
		return nil, err
	}
	if full {
		return nil, fmt.Errorf("%w: storage on the %s plan", authz.ErrQuotaExceeded, actx.Tier)
	}

	now := time.Now().UTC()
	file := &domain.FileObject{
		ID:          uuid.NewString(),
		TeamID:      project.TeamID,
		ProjectID:   project.ID,
		TaskID:      strings.TrimSpace(input.TaskID),
		UploaderID:  actorID,
		Name:        strings.TrimSpace(input.Name),
		ContentType: strings.TrimSpace(input.ContentType),
		SizeBytes:   input.SizeBytes,
		StorageKey:  fmt.Sprintf("teams/%s/projects/%s/%s", project.TeamID, project.ID, uuid.NewString()),
		CreatedAt:   now,
	}
	uploadURL, err := s.store.PresignUpload(ctx, file.StorageKey, file.ContentType, s.urlTTL)
	if err != nil {
		return nil, err
	}
	if err := s.files.CreateFile(ctx, file); err != nil {
		return nil, err
	}
	s.record(ctx, project.TeamID, actorID, "file.uploaded", file.ID)
	s.logger.Info("upload registered", "file_id", file.ID, "project_id", project.ID, "size_bytes", input.SizeBytes)
	return &Upload{File: file, UploadURL: uploadURL}, nil
}

// DownloadURL returns a presigned URL for an attachment the actor can see.
func (s Service) DownloadURL(ctx context.Context, fileID, actorID string) (string, error) {
	file, err := s.files.GetFileByID(ctx, fileID)
	if err != nil {
		return "", err
	}
	if _, _, err := s.authz.ContextForTeam(ctx, file.TeamID, actorID); err != nil {
		return "", err
	}
	return s.store.PresignDownload(ctx, file.StorageKey, s.urlTTL)
}

// ListByProject returns attachment metadata for a project.
func (s Service) ListByProject(ctx context.Context, projectID, actorID string) ([]domain.FileObject, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errMissingProjectID
	}
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.ContextForTeam(ctx, project.TeamID, actorID); err != nil {
		return nil, err
	}
	return s.files.ListFilesByProject(ctx, projectID)
}

// Delete removes attachment metadata. Uploaders delete their own files;
// otherwise project management rights are required.
func (s Service) Delete(ctx context.Context, fileID, actorID string) error {
	file, err := s.files.GetFileByID(ctx, fileID)
	if err != nil {
		return err
	}
	actx, _, err := s.authz.ContextForTeam(ctx, file.TeamID, actorID)
	if err != nil {
		return err
	}
	if file.UploaderID != actorID {
		allowed, err := access.CanManageProject(actx)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: delete file", authz.ErrPermissionDenied)
		}
	}
	if err := s.files.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	s.record(ctx, file.TeamID, actorID, "file.deleted", fileID)
	return nil
}

func (s Service) record(ctx context.Context, teamID, actorID, action, targetID string) {
	event := &domain.ActivityEvent{
		ID:         uuid.NewString(),
		TeamID:     teamID,
		ActorID:    actorID,
		Action:     action,
		TargetType: domain.TargetFile,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.activity.InsertActivity(ctx, event); err != nil {
		s.logger.Warn("activity insert failed", "action", action, "team_id", teamID, "error", err)
	}
}
