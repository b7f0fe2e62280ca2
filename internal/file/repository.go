package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const recordColumns = `id, owner_id, name, size_bytes, mime_type, storage_path, thumbnail_path, share_token, status, download_count, uploaded_at, expires_at`

// Repository provides access to file metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Name,
		&rec.Size,
		&rec.MimeType,
		&rec.StoragePath,
		&rec.ThumbnailPath,
		&rec.ShareToken,
		&rec.Status,
		&rec.DownloadCount,
		&rec.UploadedAt,
		&rec.ExpiresAt,
	)
	return rec, err
}

// Create inserts a new record in a single write.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO files (id, owner_id, name, size_bytes, mime_type, storage_path, share_token, status, download_count, uploaded_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)
RETURNING ` + recordColumns + `;`

	stored, err := scanRecord(r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.Name,
		rec.Size,
		rec.MimeType,
		rec.StoragePath,
		rec.ShareToken,
		rec.Status,
		rec.UploadedAt,
		rec.ExpiresAt,
	))
	if err != nil {
		return Record{}, fmt.Errorf("create file record: %w", err)
	}
	return stored, nil
}

// GetByToken fetches the record matching a share token.
func (r *Repository) GetByToken(ctx context.Context, shareToken string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM files WHERE share_token = $1;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, shareToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("get file by token: %w", err)
	}
	return rec, nil
}

// GetByID fetches a record by id, used for ownership checks before deletion.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM files WHERE id = $1;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("get file by id: %w", err)
	}
	return rec, nil
}

// ListByOwner returns the owner's live records, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM files WHERE owner_id = $1 ORDER BY uploaded_at DESC;`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return records, nil
}

// IncrementDownloadCount bumps the counter by exactly one as a single atomic
// statement. Concurrent callers never lose updates.
func (r *Repository) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE files SET download_count = download_count + 1 WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SetStatus moves the record through its upload lifecycle.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE files SET status = $2 WHERE id = $1;`, id, status)
	if err != nil {
		return fmt.Errorf("set file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SetThumbnailPath attaches the derived asset path. A single-column write
// independent of the rest of the record.
func (r *Repository) SetThumbnailPath(ctx context.Context, id uuid.UUID, thumbnailPath string) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE files SET thumbnail_path = $2 WHERE id = $1;`, id, thumbnailPath)
	if err != nil {
		return fmt.Errorf("set thumbnail path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Delete removes the record and returns it so callers can reclaim the blob
// and debit quota. Does not cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `DELETE FROM files WHERE id = $1 RETURNING ` + recordColumns + `;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("delete file record: %w", err)
	}
	return rec, nil
}

// ListReclaimable returns records that are expired or have exhausted their
// download limit as of now.
func (r *Repository) ListReclaimable(ctx context.Context, now time.Time, maxDownloads int64) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM files WHERE expires_at < $1 OR download_count >= $2;`

	rows, err := r.pool.Query(ctx, query, now, maxDownloads)
	if err != nil {
		return nil, fmt.Errorf("list reclaimable files: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reclaimable files: %w", err)
	}
	return records, nil
}
