package token

import (
	"strings"
	"testing"
)

func TestRandomIsURLSafeAndUnique(t *testing.T) {
	a, err := Random(32)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	b, _ := Random(32)
	if a == b {
		t.Fatal("expected distinct tokens")
	}
	if len(a) != 43 || strings.ContainsAny(a, "+/=") {
		t.Fatalf("unexpected token %q", a)
	}
}

func TestNewAPIKey(t *testing.T) {
	key, err := NewAPIKey("rpk_")
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	if !strings.HasPrefix(key.Plaintext, "rpk_") || len(key.Plaintext) != 4+64 {
		t.Fatalf("unexpected plaintext %q", key.Plaintext)
	}
	if key.Hash != HashSHA256(key.Plaintext) {
		t.Fatal("hash mismatch")
	}
	if !strings.HasPrefix(key.Plaintext, key.Prefix) || len(key.Prefix) != 12 {
		t.Fatalf("unexpected prefix %q", key.Prefix)
	}
	if !Equal(key.Hash, HashSHA256(key.Plaintext)) || Equal(key.Hash, "x") {
		t.Fatal("Equal returned the wrong result")
	}
}
