package file

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFileNotFound signals that no record matches the given id or token.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileGone signals the record exists but is expired or has exhausted
	// its download limit.
	ErrFileGone = errors.New("file expired or download limit reached")
	// ErrForbidden indicates an ownership mismatch on a delete.
	ErrForbidden = errors.New("not the file owner")
	// ErrFileTooLarge signals that the upload exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrEmptyFile rejects zero-byte uploads.
	ErrEmptyFile = errors.New("file is empty")
)

// QuotaExceededError carries enough context for the caller to explain the
// rejection without re-querying usage.
type QuotaExceededError struct {
	Used     int64
	Quota    int64
	Incoming int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded: %d bytes used of %d, upload of %d bytes rejected",
		e.Used, e.Quota, e.Incoming)
}

// GoneError wraps ErrFileGone with the reason and the relevant boundary.
type GoneError struct {
	Expired   bool
	ExpiresAt time.Time
	Downloads int64
	Limit     int64
}

func (e *GoneError) Error() string {
	if e.Expired {
		return fmt.Sprintf("file expired at %s", e.ExpiresAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("download limit reached: %d of %d", e.Downloads, e.Limit)
}

func (e *GoneError) Unwrap() error { return ErrFileGone }
