// Package blobrepository stores message payloads in a PostgreSQL table
package blobrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
)

var _ secondary.BlobStore = (*BlobRepository)(nil)

type BlobRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

func NewBlobRepository(db *sqlx.DB, logger primary.Logger) *BlobRepository {
	return &BlobRepository{
		db:     db,
		logger: logger,
	}
}

// PutBlob is idempotent; keys are content addresses
func (r *BlobRepository) PutBlob(ctx context.Context, key string, data []byte) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO message_blobs (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING`, key, data); err != nil {
		r.logger.Error("Failed to put blob", "key", key, "error", err)
		return fmt.Errorf("failed to put blob: %w", err)
	}
	return nil
}

func (r *BlobRepository) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.db.GetContext(ctx, &data, `SELECT data FROM message_blobs WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	if err != nil {
		r.logger.Error("Failed to get blob", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return data, nil
}

func (r *BlobRepository) DeleteBlob(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM message_blobs WHERE key = $1`, key); err != nil {
		r.logger.Error("Failed to delete blob", "key", key, "error", err)
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
