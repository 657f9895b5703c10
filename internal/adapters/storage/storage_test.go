package storage

import (
	"strings"
	"testing"
)

func TestObjectKeySanitisesNames(t *testing.T) {
	key := ObjectKey("leads/42", `C:\Users\moi\Plan de masse (v2).PDF`)
	if !strings.HasPrefix(key, "leads/42/Plan-de-masse--v2-_") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if k := ObjectKey("x", "../../etc/passwd"); strings.Contains(k, "..") {
		t.Fatalf("path traversal kept in %q", k)
	}
}

func TestValidation(t *testing.T) {
	if err := ValidateContentType("application/pdf; charset=binary"); err != nil {
		t.Fatalf("pdf rejected: %v", err)
	}
	if err := ValidateContentType("video/mp4"); err == nil {
		t.Fatal("video accepted")
	}
	if err := ValidateFileSize(0, 10); err == nil {
		t.Fatal("empty file accepted")
	}
	if err := ValidateFileSize(11, 10); err == nil {
		t.Fatal("oversized file accepted")
	}
}
