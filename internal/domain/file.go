package domain

import "time"

// FileObject is upload metadata for an attachment. The bytes live in
// external object storage; only the key and size are kept here.
type FileObject struct {
	ID          string
	TeamID      string
	ProjectID   string
	TaskID      string
	UploaderID  string
	Name        string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	CreatedAt   time.Time
}
