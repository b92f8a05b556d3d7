// Package messagerepository keeps message records and their reference counts in PostgreSQL
package messagerepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/baseline-2025.net/internal/adapter/postgres"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var _ secondary.MessageRepository = (*MessageRepository)(nil)

type MessageRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

func NewMessageRepository(db *sqlx.DB, logger primary.Logger) *MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

func (r *MessageRepository) AcquireMessage(ctx context.Context, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET ref_count = ref_count + 1 WHERE hash = $1`, hash)
	if err != nil {
		r.logger.Error("Failed to acquire message", "hash", hash, "error", err)
		return false, fmt.Errorf("failed to acquire message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to acquire message: %w", err)
	}
	return n > 0, nil
}

// CreateMessage inserts the record or bumps the count of a concurrent insert.
// xmax is zero only for a freshly inserted row.
func (r *MessageRepository) CreateMessage(ctx context.Context, msg *domain.Message, decoded *domain.ElementData) (bool, error) {
	body, err := json.Marshal(decoded)
	if err != nil {
		return false, fmt.Errorf("failed to marshal decoded message: %w", err)
	}

	var inserted bool
	err = r.db.GetContext(ctx, &inserted, `
		INSERT INTO messages (hash, size, ref_count, decoded, created_at)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (hash) DO UPDATE SET ref_count = messages.ref_count + 1
		RETURNING (xmax = 0)`, msg.Hash, msg.Size, body, msg.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create message", "hash", msg.Hash, "error", err)
		return false, fmt.Errorf("failed to create message: %w", err)
	}
	return inserted, nil
}

func (r *MessageRepository) GetMessage(ctx context.Context, hash string) (*domain.Message, *domain.ElementData, error) {
	var row struct {
		domain.Message
		Decoded []byte `db:"decoded"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT hash, size, ref_count, decoded, created_at FROM messages WHERE hash = $1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get message", "hash", hash, "error", err)
		return nil, nil, fmt.Errorf("failed to get message: %w", err)
	}

	var decoded domain.ElementData
	if err := json.Unmarshal(row.Decoded, &decoded); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal decoded message %s: %w", hash, err)
	}
	msg := row.Message
	return &msg, &decoded, nil
}

// ReleaseMessage holds the row lock while onZero runs, so a concurrent
// acquire waits and then finds the message gone
func (r *MessageRepository) ReleaseMessage(ctx context.Context, hash string, onZero func(ctx context.Context) error) (int, error) {
	remaining := 0
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var count int
		err := tx.GetContext(ctx, &count, `SELECT ref_count FROM messages WHERE hash = $1 FOR UPDATE`, hash)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock message: %w", err)
		}

		if count > 1 {
			if err := tx.GetContext(ctx, &remaining, `
				UPDATE messages SET ref_count = ref_count - 1 WHERE hash = $1 RETURNING ref_count`, hash); err != nil {
				return fmt.Errorf("decrement message: %w", err)
			}
			return nil
		}

		remaining = count
		if onZero != nil {
			if err := onZero(ctx); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE hash = $1`, hash); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		remaining = 0
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to release message", "hash", hash, "error", err)
		return remaining, fmt.Errorf("failed to release message: %w", err)
	}
	return remaining, nil
}
