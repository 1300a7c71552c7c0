package remote

import (
	"context"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio is a Mirror backed by a MinIO or other S3-compatible server.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio creates a MinIO mirror for cfg.Endpoint.
func NewMinio(bucket string, cfg Config) (*Minio, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio: endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Minio{client: client, bucket: bucket}, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound" || code == "NoSuchBucket"
}

func (m *Minio) Stat(ctx context.Context, key string) (Object, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("stat %s/%s: %w", m.bucket, key, err)
	}
	return Object{Key: key, Size: info.Size, ModTime: info.LastModified}, nil
}

func (m *Minio) Download(ctx context.Context, key, dst string) (int64, error) {
	if err := m.client.FGetObject(ctx, m.bucket, key, dst, minio.GetObjectOptions{}); err != nil {
		if isNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("download %s/%s: %w", m.bucket, key, err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (m *Minio) Upload(ctx context.Context, src, key string) error {
	if _, err := m.client.FPutObject(ctx, m.bucket, key, src, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return fmt.Errorf("upload %s/%s: %w", m.bucket, key, err)
	}
	return nil
}
