package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestReserveWithinQuota(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, 1_000_000_000)

	ownerID := uuid.New()
	if err := ledger.Provision(context.Background(), ownerID); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	_, allowed, err := ledger.Reserve(context.Background(), ownerID, 10*1024*1024)
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected 10MB upload to fit in empty 1GB quota")
	}

	if err := ledger.Credit(context.Background(), ownerID, 10*1024*1024); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	p, err := ledger.Usage(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("Usage returned error: %v", err)
	}
	if p.UsedStorage != 10*1024*1024 {
		t.Fatalf("expected used storage 10MB, got %d", p.UsedStorage)
	}
}

func TestReserveRejectsOverQuota(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, 1_000_000_000)

	ownerID := uuid.New()
	if err := ledger.Provision(context.Background(), ownerID); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if err := ledger.Credit(context.Background(), ownerID, 995_000_000); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	_, allowed, err := ledger.Reserve(context.Background(), ownerID, 10_000_000)
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if allowed {
		t.Fatalf("expected 10MB upload to be rejected at 995MB/1GB")
	}

	p, _ := ledger.Usage(context.Background(), ownerID)
	if p.UsedStorage != 995_000_000 {
		t.Fatalf("usage changed by a rejected reserve: %d", p.UsedStorage)
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, 500)

	ownerID := uuid.New()
	for i := 0; i < 5; i++ {
		if err := ledger.Provision(context.Background(), ownerID); err != nil {
			t.Fatalf("Provision returned error: %v", err)
		}
	}
	if err := ledger.Credit(context.Background(), ownerID, 100); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if err := ledger.Provision(context.Background(), ownerID); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	p, err := ledger.Usage(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("Usage returned error: %v", err)
	}
	if p.UsedStorage != 100 {
		t.Fatalf("re-provision reset usage: got %d", p.UsedStorage)
	}
}

func TestDebitClampsAtZero(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, 1000)

	ownerID := uuid.New()
	if err := ledger.Provision(context.Background(), ownerID); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if err := ledger.Credit(context.Background(), ownerID, 50); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if err := ledger.Debit(context.Background(), ownerID, 200); err != nil {
		t.Fatalf("Debit returned error: %v", err)
	}

	p, _ := ledger.Usage(context.Background(), ownerID)
	if p.UsedStorage != 0 {
		t.Fatalf("expected usage clamped at 0, got %d", p.UsedStorage)
	}
}

func TestReconcileRepairsDriftedUsage(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, 1_000_000_000)

	drifted := uuid.New()
	correct := uuid.New()
	for _, ownerID := range []uuid.UUID{drifted, correct} {
		if err := ledger.Provision(context.Background(), ownerID); err != nil {
			t.Fatalf("Provision returned error: %v", err)
		}
	}

	// drifted carries a stale balance; correct matches its file records.
	if err := ledger.Credit(context.Background(), drifted, 900); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if err := ledger.Credit(context.Background(), correct, 250); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	store.liveSizes[drifted] = 300
	store.liveSizes[correct] = 250

	corrected, err := ledger.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if corrected != 1 {
		t.Fatalf("expected 1 corrected profile, got %d", corrected)
	}

	p, err := ledger.Usage(context.Background(), drifted)
	if err != nil {
		t.Fatalf("Usage returned error: %v", err)
	}
	if p.UsedStorage != 300 {
		t.Fatalf("expected drifted usage rewritten to 300, got %d", p.UsedStorage)
	}

	// A second pass finds nothing to repair.
	corrected, err = ledger.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if corrected != 0 {
		t.Fatalf("expected idempotent second pass, corrected %d", corrected)
	}
}

func TestUsageUnknownOwner(t *testing.T) {
	ledger := NewLedger(newFakeStore(), 1000)

	if _, err := ledger.Usage(context.Background(), uuid.New()); err != ErrProfileNotFound {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

// --- fakes ---

type fakeStore struct {
	mu        sync.Mutex
	profiles  map[uuid.UUID]*Profile
	liveSizes map[uuid.UUID]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:  make(map[uuid.UUID]*Profile),
		liveSizes: make(map[uuid.UUID]int64),
	}
}

func (f *fakeStore) Get(ctx context.Context, ownerID uuid.UUID) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[ownerID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return *p, nil
}

func (f *fakeStore) CreateIfAbsent(ctx context.Context, ownerID uuid.UUID, storageQuota int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[ownerID]; ok {
		return nil
	}
	f.profiles[ownerID] = &Profile{OwnerID: ownerID, StorageQuota: storageQuota}
	return nil
}

func (f *fakeStore) AdjustUsage(ctx context.Context, ownerID uuid.UUID, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[ownerID]
	if !ok {
		return ErrProfileNotFound
	}
	p.UsedStorage += delta
	if p.UsedStorage < 0 {
		p.UsedStorage = 0
	}
	return nil
}

func (f *fakeStore) ReconcileUsage(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var corrected int64
	for ownerID, p := range f.profiles {
		actual := f.liveSizes[ownerID]
		if p.UsedStorage != actual {
			p.UsedStorage = actual
			corrected++
		}
	}
	return corrected, nil
}
