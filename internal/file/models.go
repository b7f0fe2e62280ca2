package file

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the record through its blob-store write. It never gates
// access via the share token, but only uploaded records carry a quota
// credit, so the sweeper consults it before debiting.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
	StatusError     Status = "error"
)

// Record is the metadata row behind one uploaded object. All fields except
// DownloadCount and ThumbnailPath are write-once at creation.
type Record struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	MimeType      string    `json:"mime_type"`
	StoragePath   string    `json:"storage_path"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	ShareToken    string    `json:"share_token"`
	Status        Status    `json:"status"`
	DownloadCount int64     `json:"download_count"`
	UploadedAt    time.Time `json:"uploaded_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Accessible reports whether the record may still be served. Both conditions
// are evaluated against live values, never cached.
func (r Record) Accessible(now time.Time, maxDownloads int64) bool {
	return now.Before(r.ExpiresAt) && r.DownloadCount < maxDownloads
}
