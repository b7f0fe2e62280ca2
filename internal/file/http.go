package file

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quicksend/quicksend/internal/auth"
	"github.com/quicksend/quicksend/internal/notify"
	"github.com/quicksend/quicksend/internal/quota"
	"go.uber.org/zap"
)

// HandlerDeps groups the collaborators of the HTTP surface.
type HandlerDeps struct {
	Service   *Service
	Ledger    *quota.Ledger
	Mailer    notify.Mailer
	PublicURL string
	Log       *zap.Logger
}

// RegisterRoutes mounts file operations. Share-token endpoints are public;
// upload, listing and deletion require the verified principal.
func RegisterRoutes(public, protected *gin.RouterGroup, deps HandlerDeps) {
	handler := &httpHandler{deps: deps}

	public.GET("/files/:shareToken", handler.fileInfo)
	public.GET("/files/:shareToken/url", handler.signedURL)
	public.GET("/download/:shareToken", handler.downloadFile)

	protected.POST("/upload", handler.uploadFile)
	protected.GET("/my-files", handler.listMyFiles)
	protected.DELETE("/files/:fileID", handler.deleteFile)
}

type httpHandler struct {
	deps HandlerDeps
}

type uploadResponse struct {
	ID         uuid.UUID `json:"id"`
	ShareToken string    `json:"share_token"`
	ExpiryDate string    `json:"expiry_date"`
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	rec, err := h.deps.Service.Upload(c.Request.Context(), userID, fileHeader)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	if recipient := c.PostForm("notify_email"); recipient != "" {
		h.sendShareNotification(rec, recipient)
	}

	c.JSON(http.StatusCreated, uploadResponse{
		ID:         rec.ID,
		ShareToken: rec.ShareToken,
		ExpiryDate: rec.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *httpHandler) writeUploadError(c *gin.Context, err error) {
	var quotaErr *QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":          "storage quota exceeded",
			"used_bytes":     quotaErr.Used,
			"quota_bytes":    quotaErr.Quota,
			"incoming_bytes": quotaErr.Incoming,
		})
	case errors.Is(err, ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
	case errors.Is(err, ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
	default:
		h.deps.Log.Error("upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
	}
}

func (h *httpHandler) sendShareNotification(rec Record, recipient string) {
	if h.deps.Mailer == nil {
		return
	}
	err := h.deps.Mailer.SendShareNotification(notify.ShareNotification{
		Recipient: recipient,
		Filename:  rec.Name,
		ShareLink: fmt.Sprintf("%s/v1/files/%s", h.deps.PublicURL, rec.ShareToken),
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		h.deps.Log.Warn("share notification failed",
			zap.String("file_id", rec.ID.String()),
			zap.Error(err))
	}
}

func (h *httpHandler) fileInfo(c *gin.Context) {
	rec, err := h.deps.Service.InfoByToken(c.Request.Context(), c.Param("shareToken"))
	if err != nil {
		h.writeLookupError(c, err, "failed to get file info")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename":    rec.Name,
		"size":        rec.Size,
		"mime_type":   rec.MimeType,
		"upload_date": rec.UploadedAt,
		"expiry_date": rec.ExpiresAt,
		"downloads":   rec.DownloadCount,
	})
}

func (h *httpHandler) signedURL(c *gin.Context) {
	u, err := h.deps.Service.SignedURL(c.Request.Context(), c.Param("shareToken"))
	if err != nil {
		h.writeLookupError(c, err, "failed to sign download url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": u})
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	rec, reader, err := h.deps.Service.Download(c.Request.Context(), c.Param("shareToken"))
	if err != nil {
		h.writeLookupError(c, err, "failed to download file")
		return
	}
	defer reader.Close()

	c.Header("Content-Type", rec.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Name))
	c.Header("Content-Length", fmt.Sprintf("%d", rec.Size))

	if _, err := io.Copy(c.Writer, reader); err != nil {
		// Client aborts mid-transfer land here; the download was already
		// counted at authorization.
		c.Status(http.StatusInternalServerError)
		return
	}
}

func (h *httpHandler) writeLookupError(c *gin.Context, err error, fallback string) {
	var goneErr *GoneError
	switch {
	case errors.Is(err, ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.As(err, &goneErr):
		c.JSON(http.StatusGone, gin.H{"error": goneErr.Error()})
	case errors.Is(err, ErrFileGone):
		c.JSON(http.StatusGone, gin.H{"error": "file expired or download limit reached"})
	default:
		h.deps.Log.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (h *httpHandler) listMyFiles(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	records, err := h.deps.Service.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		h.deps.Log.Error("list files failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	resp := gin.H{"files": records}
	if profile, err := h.deps.Ledger.Usage(c.Request.Context(), userID); err == nil {
		resp["used_storage"] = profile.UsedStorage
		resp["storage_quota"] = profile.StorageQuota
	} else if !errors.Is(err, quota.ErrProfileNotFound) {
		h.deps.Log.Warn("usage lookup failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	if err := h.deps.Service.Delete(c.Request.Context(), userID, fileID); err != nil {
		switch {
		case errors.Is(err, ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		case errors.Is(err, ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "not the file owner"})
		default:
			h.deps.Log.Error("delete failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
