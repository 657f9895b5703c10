package storage

import (
	"fmt"
	"strings"
)

// documentTypes are the formats accepted for connection documents: site
// plans, identity papers and Kbis extracts.
var documentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
}

// NormalizeContentType lowercases a MIME type and drops its parameters.
func NormalizeContentType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}

func ValidateContentType(contentType string) error {
	if !documentTypes[NormalizeContentType(contentType)] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

func ValidateFileSize(sizeBytes, maxBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > maxBytes {
		return fmt.Errorf("file size %d bytes exceeds the %d bytes limit", sizeBytes, maxBytes)
	}
	return nil
}
