package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// shareTokenBytes is the raw entropy behind a share token. 32 bytes keeps the
// collision probability negligible and the rendered token at 64 hex characters.
const shareTokenBytes = 32

// Length is the rendered length of a share token in characters.
const Length = shareTokenBytes * 2

// Generate produces an unguessable share token from the system's
// cryptographically secure random source. An exhausted entropy source is the
// only failure mode and is not recoverable.
func Generate() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
