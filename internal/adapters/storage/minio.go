package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO implements Store on a MinIO (or any S3-compatible) endpoint.
type MinIO struct {
	client *minio.Client
}

func NewMinIO(cfg Config) (*MinIO, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, ErrDisabled
	}
	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{client: client}, nil
}

func (s *MinIO) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// PresignUpload returns a PUT URL for a new object under folder. The key
// gets a random suffix so uploads never overwrite each other.
func (s *MinIO) PresignUpload(ctx context.Context, bucket, folder, fileName string) (PresignedURL, error) {
	key := ObjectKey(folder, fileName)
	u, err := s.client.PresignedPutObject(ctx, bucket, key, PresignedTTL)
	if err != nil {
		return PresignedURL{}, fmt.Errorf("presign upload: %w", err)
	}
	return PresignedURL{URL: u.String(), FileKey: key, ExpiresAt: time.Now().Add(PresignedTTL)}, nil
}

func (s *MinIO) PresignDownload(ctx context.Context, bucket, fileKey, downloadName string) (PresignedURL, error) {
	params := make(url.Values)
	if downloadName != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, fileKey, PresignedTTL, params)
	if err != nil {
		return PresignedURL{}, fmt.Errorf("presign download: %w", err)
	}
	return PresignedURL{URL: u.String(), FileKey: fileKey, ExpiresAt: time.Now().Add(PresignedTTL)}, nil
}

func (s *MinIO) Stat(ctx context.Context, bucket, fileKey string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, fileKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", fileKey, err)
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ContentType: info.ContentType}, nil
}

func (s *MinIO) Delete(ctx context.Context, bucket, fileKey string) error {
	if err := s.client.RemoveObject(ctx, bucket, fileKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", fileKey, err)
	}
	return nil
}

// ObjectKey builds folder/<name>_<8 hex chars><ext> from a client file name.
func ObjectKey(folder, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	ext := strings.ToLower(path.Ext(base))
	name := strings.TrimSuffix(base, path.Ext(base))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, name)
	if name == "" || name == "." {
		name = "document"
	}
	return path.Join(folder, fmt.Sprintf("%s_%s%s", name, uuid.NewString()[:8], ext))
}

var _ Store = (*MinIO)(nil)
