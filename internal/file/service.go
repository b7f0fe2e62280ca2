package file

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quicksend/quicksend/internal/config"
	"github.com/quicksend/quicksend/internal/metrics"
	"github.com/quicksend/quicksend/internal/quota"
	"github.com/quicksend/quicksend/internal/storage"
	"github.com/quicksend/quicksend/internal/token"
	"go.uber.org/zap"
)

// metadataStore abstracts the file record persistence layer.
type metadataStore interface {
	Create(ctx context.Context, rec Record) (Record, error)
	GetByToken(ctx context.Context, shareToken string) (Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error)
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) (Record, error)
}

// blobStore abstracts the object storage backend.
type blobStore interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string, metadata map[string]string) error
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Remove(ctx context.Context, objectName string) error
	PresignedGet(ctx context.Context, objectName string, ttl time.Duration, filename string) (string, error)
}

// quotaLedger abstracts the per-owner storage accounting.
type quotaLedger interface {
	Provision(ctx context.Context, ownerID uuid.UUID) error
	Reserve(ctx context.Context, ownerID uuid.UUID, incomingSize int64) (quota.Profile, bool, error)
	Credit(ctx context.Context, ownerID uuid.UUID, delta int64) error
	Debit(ctx context.Context, ownerID uuid.UUID, delta int64) error
}

// eventPublisher emits upload-completion events for the thumbnail pipeline.
type eventPublisher interface {
	PublishUploaded(ev UploadedEvent) error
}

// Service owns the file record lifecycle: creation, access evaluation,
// download accounting, deletion.
type Service struct {
	repo    metadataStore
	blobs   blobStore
	ledger  quotaLedger
	events  eventPublisher
	policy  config.PolicyConfig
	log     *zap.Logger
	nowFunc func() time.Time
}

// NewService constructs a file service. events may be nil when no pipeline
// is wired (uploads then simply never get thumbnails).
func NewService(repo metadataStore, blobs blobStore, ledger quotaLedger, events eventPublisher, policy config.PolicyConfig, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		blobs:   blobs,
		ledger:  ledger,
		events:  events,
		policy:  policy,
		log:     log,
		nowFunc: time.Now,
	}
}

// Upload creates the record with its share token and expiry, streams the
// bytes into the blob store, then marks the record uploaded and credits the
// owner's quota. The record leads the blob so its status can follow the
// write: uploading while in flight, error when the blob store rejects it.
// The credit is only applied after the blob write is confirmed.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, fileHeader *multipart.FileHeader) (Record, error) {
	if fileHeader == nil {
		return Record{}, fmt.Errorf("missing file payload")
	}

	size := fileHeader.Size
	if size <= 0 {
		return Record{}, ErrEmptyFile
	}
	if size > s.policy.MaxUploadSize {
		return Record{}, ErrFileTooLarge
	}

	// Profiles are provisioned lazily; a failure here fails the upload rather
	// than proceeding with unaccounted storage.
	if err := s.ledger.Provision(ctx, ownerID); err != nil {
		return Record{}, fmt.Errorf("provision profile: %w", err)
	}

	profile, allowed, err := s.ledger.Reserve(ctx, ownerID, size)
	if err != nil {
		return Record{}, fmt.Errorf("check quota: %w", err)
	}
	if !allowed {
		return Record{}, &QuotaExceededError{
			Used:     profile.UsedStorage,
			Quota:    profile.StorageQuota,
			Incoming: size,
		}
	}

	fileID := uuid.New()
	objectName := fmt.Sprintf("files/%s%s", fileID, strings.ToLower(filepath.Ext(fileHeader.Filename)))
	contentType := detectContentType(fileHeader)

	shareToken, err := token.Generate()
	if err != nil {
		return Record{}, fmt.Errorf("generate share token: %w", err)
	}

	now := s.nowFunc()
	rec := Record{
		ID:          fileID,
		OwnerID:     ownerID,
		Name:        sanitizeFilename(fileHeader.Filename),
		Size:        size,
		MimeType:    contentType,
		StoragePath: objectName,
		ShareToken:  shareToken,
		Status:      StatusUploading,
		UploadedAt:  now,
		ExpiresAt:   now.Add(s.policy.RetentionWindow),
	}

	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}

	src, err := fileHeader.Open()
	if err != nil {
		s.markError(ctx, stored.ID)
		return Record{}, fmt.Errorf("open upload file: %w", err)
	}
	defer src.Close()

	// The record id rides along as object metadata so the thumbnail pipeline
	// can find its way back without guessing.
	if err := s.blobs.Put(ctx, objectName, src, size, contentType, map[string]string{
		"file-id": fileID.String(),
	}); err != nil {
		// The record stays behind in error state with no blob and no credit;
		// the sweeper reclaims it at expiry without debiting.
		s.markError(ctx, stored.ID)
		return Record{}, fmt.Errorf("store object: %w", err)
	}

	if err := s.repo.SetStatus(ctx, stored.ID, StatusUploaded); err != nil {
		s.log.Warn("status transition failed after upload",
			zap.String("file_id", stored.ID.String()),
			zap.Error(err))
	}
	stored.Status = StatusUploaded

	if err := s.ledger.Credit(ctx, ownerID, size); err != nil {
		// Record and blob exist; log with enough detail for reconciliation
		// rather than attempting a multi-step rollback.
		s.log.Error("quota credit failed after upload",
			zap.String("file_id", stored.ID.String()),
			zap.String("owner_id", ownerID.String()),
			zap.Int64("size", size),
			zap.Error(err))
	}

	s.publishUploaded(stored)
	metrics.UploadsTotal.Inc()
	metrics.UploadedBytes.Add(float64(size))

	return stored, nil
}

// InfoByToken returns the record behind a share token if it is still
// accessible. A pure read: the download count is not touched.
func (s *Service) InfoByToken(ctx context.Context, shareToken string) (Record, error) {
	rec, err := s.repo.GetByToken(ctx, shareToken)
	if err != nil {
		return Record{}, err
	}
	if err := s.checkAccessible(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Download authorizes a transfer and opens the blob stream. The download
// count is incremented exactly once at authorization time; an aborted
// client-side transfer does not un-count it.
func (s *Service) Download(ctx context.Context, shareToken string) (Record, io.ReadCloser, error) {
	rec, err := s.repo.GetByToken(ctx, shareToken)
	if err != nil {
		return Record{}, nil, err
	}
	if err := s.checkAccessible(rec); err != nil {
		return Record{}, nil, err
	}

	reader, err := s.blobs.Get(ctx, rec.StoragePath)
	if err != nil {
		return Record{}, nil, fmt.Errorf("fetch object: %w", err)
	}

	if err := s.repo.IncrementDownloadCount(ctx, rec.ID); err != nil {
		reader.Close()
		return Record{}, nil, fmt.Errorf("record download: %w", err)
	}
	rec.DownloadCount++

	metrics.DownloadsTotal.Inc()
	return rec, reader, nil
}

// SignedURL authorizes access and returns a short-lived presigned read URL.
// Issuing the URL counts as a download authorization.
func (s *Service) SignedURL(ctx context.Context, shareToken string) (string, error) {
	rec, err := s.repo.GetByToken(ctx, shareToken)
	if err != nil {
		return "", err
	}
	if err := s.checkAccessible(rec); err != nil {
		return "", err
	}

	u, err := s.blobs.PresignedGet(ctx, rec.StoragePath, s.policy.SignedURLTTL, rec.Name)
	if err != nil {
		return "", err
	}

	if err := s.repo.IncrementDownloadCount(ctx, rec.ID); err != nil {
		return "", fmt.Errorf("record download: %w", err)
	}

	metrics.DownloadsTotal.Inc()
	return u, nil
}

// ListByOwner returns the caller's live records.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Delete removes an owned file: blob first, then metadata, then the quota
// debit. Failures past the blob delete are logged for reconciliation, not
// rolled back.
func (s *Service) Delete(ctx context.Context, ownerID, fileID uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		return ErrForbidden
	}

	if err := s.blobs.Remove(ctx, rec.StoragePath); err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	if rec.ThumbnailPath != nil {
		if err := s.blobs.Remove(ctx, *rec.ThumbnailPath); err != nil && !storage.IsNotFound(err) {
			s.log.Warn("thumbnail blob removal failed",
				zap.String("file_id", rec.ID.String()),
				zap.String("thumbnail_path", *rec.ThumbnailPath),
				zap.Error(err))
		}
	}

	if _, err := s.repo.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}

	if err := s.ledger.Debit(ctx, ownerID, rec.Size); err != nil {
		s.log.Error("quota debit failed after delete",
			zap.String("file_id", rec.ID.String()),
			zap.String("owner_id", ownerID.String()),
			zap.Int64("size", rec.Size),
			zap.Error(err))
	}

	return nil
}

func (s *Service) checkAccessible(rec Record) error {
	now := s.nowFunc()
	if rec.Accessible(now, s.policy.MaxDownloads) {
		return nil
	}
	return &GoneError{
		Expired:   !now.Before(rec.ExpiresAt),
		ExpiresAt: rec.ExpiresAt,
		Downloads: rec.DownloadCount,
		Limit:     s.policy.MaxDownloads,
	}
}

func (s *Service) publishUploaded(rec Record) {
	if s.events == nil {
		return
	}
	err := s.events.PublishUploaded(UploadedEvent{
		FileID:      rec.ID.String(),
		ObjectName:  rec.StoragePath,
		ContentType: rec.MimeType,
		Size:        rec.Size,
	})
	if err != nil {
		s.log.Warn("upload event publish failed",
			zap.String("file_id", rec.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) markError(ctx context.Context, id uuid.UUID) {
	if err := s.repo.SetStatus(ctx, id, StatusError); err != nil {
		s.log.Warn("status transition failed after aborted upload",
			zap.String("file_id", id.String()),
			zap.Error(err))
	}
}

func detectContentType(fileHeader *multipart.FileHeader) string {
	if contentType := fileHeader.Header.Get("Content-Type"); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload"
	}
	return name
}
