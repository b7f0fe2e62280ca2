package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quicksend/quicksend/internal/file"
	"github.com/quicksend/quicksend/internal/metrics"
	"github.com/quicksend/quicksend/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reclaimParallelism = 4

// recordIndex provides the metadata operations the sweeper needs.
type recordIndex interface {
	ListReclaimable(ctx context.Context, now time.Time, maxDownloads int64) ([]file.Record, error)
	Delete(ctx context.Context, id uuid.UUID) (file.Record, error)
}

// objectStore removes blobs.
type objectStore interface {
	Remove(ctx context.Context, objectName string) error
}

// quotaLedger debits reclaimed storage.
type quotaLedger interface {
	Debit(ctx context.Context, ownerID uuid.UUID, delta int64) error
}

// Sweeper reclaims expired or download-exhausted files: blob, metadata
// record, and the owner's quota. The sweep body is idempotent and makes no
// assumption about invocation frequency.
type Sweeper struct {
	records      recordIndex
	blobs        objectStore
	ledger       quotaLedger
	maxDownloads int64
	log          *zap.Logger
	nowFunc      func() time.Time
}

// New constructs a sweeper.
func New(records recordIndex, blobs objectStore, ledger quotaLedger, maxDownloads int64, log *zap.Logger) *Sweeper {
	return &Sweeper{
		records:      records,
		blobs:        blobs,
		ledger:       ledger,
		maxDownloads: maxDownloads,
		log:          log,
		nowFunc:      time.Now,
	}
}

// Sweep reclaims every record that is expired or has exhausted its download
// limit, returning how many were reclaimed. Each record is independent:
// partial failure on one never aborts the rest.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	metrics.SweepsTotal.Inc()

	candidates, err := s.records.ListReclaimable(ctx, s.nowFunc(), s.maxDownloads)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	var reclaimed atomic.Int64

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(reclaimParallelism)
	for _, rec := range candidates {
		rec := rec
		group.Go(func() error {
			if s.reclaim(ctx, rec) {
				reclaimed.Add(1)
			}
			return nil
		})
	}
	_ = group.Wait()

	count := int(reclaimed.Load())
	metrics.ReclaimedTotal.Add(float64(count))
	if count > 0 {
		s.log.Info("retention sweep completed",
			zap.Int("candidates", len(candidates)),
			zap.Int("reclaimed", count))
	}
	return count, nil
}

// reclaim runs the three-step reclamation for one record. A missing blob is
// not fatal; a missing record means a concurrent sweep already reclaimed it
// and the quota must not be double-debited.
func (s *Sweeper) reclaim(ctx context.Context, rec file.Record) bool {
	if err := s.blobs.Remove(ctx, rec.StoragePath); err != nil && !storage.IsNotFound(err) {
		s.log.Warn("blob removal failed, continuing reclamation",
			zap.String("file_id", rec.ID.String()),
			zap.String("object", rec.StoragePath),
			zap.Error(err))
	}
	if rec.ThumbnailPath != nil {
		if err := s.blobs.Remove(ctx, *rec.ThumbnailPath); err != nil && !storage.IsNotFound(err) {
			s.log.Warn("thumbnail removal failed, continuing reclamation",
				zap.String("file_id", rec.ID.String()),
				zap.String("object", *rec.ThumbnailPath),
				zap.Error(err))
		}
	}

	if _, err := s.records.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, file.ErrFileNotFound) {
			return false
		}
		s.log.Error("record deletion failed",
			zap.String("file_id", rec.ID.String()),
			zap.Error(err))
		return false
	}

	// Only uploaded records ever received a quota credit; debiting an
	// aborted upload would shrink the owner's balance for bytes never counted.
	if rec.Status != file.StatusUploaded {
		return true
	}

	if err := s.ledger.Debit(ctx, rec.OwnerID, rec.Size); err != nil {
		s.log.Error("quota debit failed during reclamation",
			zap.String("file_id", rec.ID.String()),
			zap.String("owner_id", rec.OwnerID.String()),
			zap.Int64("size", rec.Size),
			zap.Error(err))
	}

	return true
}

// Run invokes Sweep on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}
