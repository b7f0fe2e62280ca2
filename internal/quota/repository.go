package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository persists owner profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a quota repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches the owner's profile.
func (r *Repository) Get(ctx context.Context, ownerID uuid.UUID) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT owner_id, storage_quota, used_storage, created_at, last_activity_at
FROM user_profiles
WHERE owner_id = $1;`

	var p Profile
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(
		&p.OwnerID,
		&p.StorageQuota,
		&p.UsedStorage,
		&p.CreatedAt,
		&p.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// CreateIfAbsent provisions a profile with zero usage. Concurrent calls for
// the same owner result in exactly one row; the conditional insert makes the
// operation idempotent.
func (r *Repository) CreateIfAbsent(ctx context.Context, ownerID uuid.UUID, storageQuota int64) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO user_profiles (owner_id, storage_quota, used_storage, created_at, last_activity_at)
VALUES ($1, $2, 0, NOW(), NOW())
ON CONFLICT (owner_id) DO NOTHING;`

	if _, err := r.pool.Exec(ctx, query, ownerID, storageQuota); err != nil {
		return fmt.Errorf("provision profile: %w", err)
	}
	return nil
}

// AdjustUsage applies delta to used_storage as a single atomic increment.
// Negative results are clamped to zero so a missed credit can never corrupt
// future quota checks.
func (r *Repository) AdjustUsage(ctx context.Context, ownerID uuid.UUID, delta int64) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
UPDATE user_profiles
SET used_storage = GREATEST(used_storage + $2, 0),
    last_activity_at = NOW()
WHERE owner_id = $1;`

	tag, err := r.pool.Exec(ctx, query, ownerID, delta)
	if err != nil {
		return fmt.Errorf("adjust usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ReconcileUsage recomputes used_storage for every profile from the live
// file records and rewrites the profiles that drifted. Returns how many
// profiles were corrected. Intended as a one-shot maintenance operation, not
// part of any request path; no lock is taken against concurrent uploads, so
// run it while the system is quiet.
func (r *Repository) ReconcileUsage(ctx context.Context) (int64, error) {
	query := `
UPDATE user_profiles p
SET used_storage = COALESCE(
	(SELECT SUM(f.size_bytes) FROM files f WHERE f.owner_id = p.owner_id), 0)
WHERE p.used_storage IS DISTINCT FROM COALESCE(
	(SELECT SUM(f.size_bytes) FROM files f WHERE f.owner_id = p.owner_id), 0);`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("reconcile usage: %w", err)
	}
	return tag.RowsAffected(), nil
}
