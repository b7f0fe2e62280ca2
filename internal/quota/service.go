package quota

import (
	"context"

	"github.com/google/uuid"
)

// profileStore abstracts the persistence layer.
type profileStore interface {
	Get(ctx context.Context, ownerID uuid.UUID) (Profile, error)
	CreateIfAbsent(ctx context.Context, ownerID uuid.UUID, storageQuota int64) error
	AdjustUsage(ctx context.Context, ownerID uuid.UUID, delta int64) error
	ReconcileUsage(ctx context.Context) (int64, error)
}

// Ledger owns per-owner storage accounting.
type Ledger struct {
	store        profileStore
	defaultQuota int64
}

// NewLedger constructs a quota ledger.
func NewLedger(store profileStore, defaultQuota int64) *Ledger {
	return &Ledger{store: store, defaultQuota: defaultQuota}
}

// Provision creates the owner's profile with zero usage if it does not exist.
// Safe to call concurrently for the same owner.
func (l *Ledger) Provision(ctx context.Context, ownerID uuid.UUID) error {
	return l.store.CreateIfAbsent(ctx, ownerID, l.defaultQuota)
}

// Usage returns the owner's current accounting.
func (l *Ledger) Usage(ctx context.Context, ownerID uuid.UUID) (Profile, error) {
	return l.store.Get(ctx, ownerID)
}

// Reserve reports whether incomingSize fits within the owner's quota. This is
// a check, not a reservation: no lock is held between the check and the later
// Credit, so two in-flight uploads can both pass before either credits. The
// transient overcommit is bounded by the number of concurrent uploads for the
// owner and is preferred over counting storage that was never written.
func (l *Ledger) Reserve(ctx context.Context, ownerID uuid.UUID, incomingSize int64) (Profile, bool, error) {
	p, err := l.store.Get(ctx, ownerID)
	if err != nil {
		return Profile{}, false, err
	}
	return p, incomingSize <= p.Remaining(), nil
}

// Credit adds delta bytes to the owner's used storage after a confirmed blob
// write. Implemented as a single atomic increment.
func (l *Ledger) Credit(ctx context.Context, ownerID uuid.UUID, delta int64) error {
	return l.store.AdjustUsage(ctx, ownerID, delta)
}

// Debit subtracts delta bytes after a deletion. The store clamps at zero.
func (l *Ledger) Debit(ctx context.Context, ownerID uuid.UUID, delta int64) error {
	return l.store.AdjustUsage(ctx, ownerID, -delta)
}

// Reconcile rewrites every owner's used storage from the live file records,
// repairing drift left by missed credits or debits. Returns the number of
// profiles corrected.
func (l *Ledger) Reconcile(ctx context.Context) (int64, error) {
	return l.store.ReconcileUsage(ctx)
}
