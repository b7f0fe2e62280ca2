package quota

import (
	"time"

	"github.com/google/uuid"
)

// Profile tracks a single owner's storage accounting. UsedStorage is the
// running sum of the sizes of the owner's live files.
type Profile struct {
	OwnerID        uuid.UUID `json:"owner_id"`
	StorageQuota   int64     `json:"storage_quota"`
	UsedStorage    int64     `json:"used_storage"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Remaining reports how many bytes the owner may still store.
func (p Profile) Remaining() int64 {
	if p.UsedStorage >= p.StorageQuota {
		return 0
	}
	return p.StorageQuota - p.UsedStorage
}
