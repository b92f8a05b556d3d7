// Package blobport stores message payloads as objects in a MinIO bucket
package blobport

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
)

var _ secondary.BlobStore = (*BlobStore)(nil)

const objectPrefix = "messages/"

type BlobStore struct {
	client *minio.Client
	bucket string
	logger primary.Logger
}

// NewBlobStore connects to the endpoint and creates the bucket if missing
func NewBlobStore(ctx context.Context, cfg *config.MinioConfig, logger primary.Logger) (*BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("Created blob bucket", "bucket", cfg.Bucket)
	}

	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func objectName(key string) string {
	return objectPrefix + key
}

func (b *BlobStore) PutBlob(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, objectName(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		b.logger.Error("Failed to put blob", "key", key, "error", err)
		return fmt.Errorf("failed to put blob: %w", err)
	}
	return nil
}

func (b *BlobStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		b.logger.Error("Failed to get blob", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("blob %s not found", key)
		}
		b.logger.Error("Failed to read blob", "key", key, "error", err)
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// DeleteBlob succeeds for missing objects
func (b *BlobStore) DeleteBlob(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, objectName(key), minio.RemoveObjectOptions{}); err != nil {
		b.logger.Error("Failed to delete blob", "key", key, "error", err)
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
