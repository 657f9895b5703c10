// Package storage wraps the S3-compatible object store holding customer
// documents.
package storage

import (
	"context"
	"errors"
	"time"
)

// PresignedTTL bounds how long an upload or download link stays valid.
const PresignedTTL = 15 * time.Minute

// ErrDisabled is returned when no object store is configured.
var ErrDisabled = errors.New("object storage is not configured")

// ErrNotFound is returned by Stat when the object was never uploaded.
var ErrNotFound = errors.New("object not found")

type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is the object storage used by the leads module.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PresignUpload(ctx context.Context, bucket, folder, fileName string) (PresignedURL, error)
	PresignDownload(ctx context.Context, bucket, fileKey, downloadName string) (PresignedURL, error)
	Stat(ctx context.Context, bucket, fileKey string) (ObjectInfo, error)
	Delete(ctx context.Context, bucket, fileKey string) error
}

type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}

// Disabled is used when MinIO is not configured; every call fails with
// ErrDisabled.
type Disabled struct{}

func (Disabled) EnsureBucket(context.Context, string) error { return nil }

func (Disabled) PresignUpload(context.Context, string, string, string) (PresignedURL, error) {
	return PresignedURL{}, ErrDisabled
}

func (Disabled) PresignDownload(context.Context, string, string, string) (PresignedURL, error) {
	return PresignedURL{}, ErrDisabled
}

func (Disabled) Stat(context.Context, string, string) (ObjectInfo, error) {
	return ObjectInfo{}, ErrDisabled
}

func (Disabled) Delete(context.Context, string, string) error { return ErrDisabled }
