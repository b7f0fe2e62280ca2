package token

import (
	"encoding/hex"
	"testing"
)

func TestGenerateLengthAndEncoding(t *testing.T) {
	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(tok) != Length {
		t.Fatalf("expected token length %d, got %d", Length, len(tok))
	}
	if _, err := hex.DecodeString(tok); err != nil {
		t.Fatalf("token is not valid hex: %v", err)
	}
}

func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token generated: %s", tok)
		}
		seen[tok] = struct{}{}
	}
}
