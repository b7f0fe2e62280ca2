package thumbnail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/quicksend/quicksend/internal/file"
	"github.com/quicksend/quicksend/internal/metrics"
	"go.uber.org/zap"
)

// Prefix marks derived assets so the pipeline never retriggers on its own
// output.
const Prefix = "thumb_"

// objectStore is the blob access the pipeline needs.
type objectStore interface {
	FGet(ctx context.Context, objectName, localPath string) error
	FPut(ctx context.Context, objectName, localPath, contentType string) error
}

// recordStore attaches the derived asset path back to the originating record.
type recordStore interface {
	SetThumbnailPath(ctx context.Context, id uuid.UUID, thumbnailPath string) error
}

// Worker consumes upload events and produces bounded-dimension previews for
// image uploads. Fully decoupled from the upload path: every failure is
// logged and drops the event, never retried, never surfaced to the uploader.
type Worker struct {
	blobs   objectStore
	records recordStore
	maxW    int
	maxH    int
	log     *zap.Logger
}

// NewWorker constructs a thumbnail worker.
func NewWorker(blobs objectStore, records recordStore, maxW, maxH int, log *zap.Logger) *Worker {
	return &Worker{
		blobs:   blobs,
		records: records,
		maxW:    maxW,
		maxH:    maxH,
		log:     log,
	}
}

// Subscribe attaches the worker to the upload-event subject.
func (w *Worker) Subscribe(conn *nats.Conn, subject string) (*nats.Subscription, error) {
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev file.UploadedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			w.log.Warn("invalid upload event payload", zap.Error(err))
			return
		}
		if err := w.Process(context.Background(), ev); err != nil {
			w.log.Warn("thumbnail generation failed",
				zap.String("object", ev.ObjectName),
				zap.Error(err))
		}
	})
}

// Process runs the pipeline for one stored object. Non-image objects, the
// pipeline's own outputs, and events without an originating record id are
// skipped without side effects.
func (w *Worker) Process(ctx context.Context, ev file.UploadedEvent) error {
	if !strings.HasPrefix(ev.ContentType, "image/") {
		return nil
	}

	baseName := path.Base(ev.ObjectName)
	if strings.HasPrefix(baseName, Prefix) {
		return nil
	}

	if ev.FileID == "" {
		// Without the originating record id there is nothing safe to update.
		w.log.Warn("upload event missing file id, skipping",
			zap.String("object", ev.ObjectName))
		return nil
	}
	fileID, err := uuid.Parse(ev.FileID)
	if err != nil {
		w.log.Warn("upload event carries malformed file id, skipping",
			zap.String("object", ev.ObjectName),
			zap.String("file_id", ev.FileID))
		return nil
	}

	tempDir, err := os.MkdirTemp("", "quicksend-thumb-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	// Temporary artifacts are released on every exit path.
	defer os.RemoveAll(tempDir)

	localOriginal := path.Join(tempDir, baseName)
	if err := w.blobs.FGet(ctx, ev.ObjectName, localOriginal); err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	img, err := imaging.Open(localOriginal)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	// Fit preserves aspect ratio and never upscales.
	thumb := imaging.Fit(img, w.maxW, w.maxH, imaging.Lanczos)

	thumbName := Prefix + baseName
	contentType := ev.ContentType
	if path.Ext(baseName) == "" {
		// The encoder picks its format from the extension.
		thumbName += ".jpg"
		contentType = "image/jpeg"
	}

	localThumb := path.Join(tempDir, thumbName)
	if err := imaging.Save(thumb, localThumb); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	thumbObject := path.Join(path.Dir(ev.ObjectName), thumbName)
	if err := w.blobs.FPut(ctx, thumbObject, localThumb, contentType); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}

	if err := w.records.SetThumbnailPath(ctx, fileID, thumbObject); err != nil {
		return fmt.Errorf("attach thumbnail path: %w", err)
	}

	metrics.ThumbnailsTotal.Inc()
	w.log.Info("thumbnail generated",
		zap.String("file_id", ev.FileID),
		zap.String("thumbnail", thumbObject))
	return nil
}
