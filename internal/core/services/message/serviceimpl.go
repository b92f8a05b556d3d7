package message

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ IMessageStore = (*MessageStore)(nil)

// MessageStore keeps one record per distinct payload. The record carries the
// reference count and decoded data; the raw bytes live in the blob store.
type MessageStore struct {
	repo   secondary.MessageRepository
	blobs  secondary.BlobStore
	hasher primary.Hasher
	logger primary.Logger
	now    func() time.Time
}

func NewMessageStore(
	repo secondary.MessageRepository,
	blobs secondary.BlobStore,
	hasher primary.Hasher,
	logger primary.Logger,
) *MessageStore {
	return &MessageStore{
		repo:   repo,
		blobs:  blobs,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

func (s *MessageStore) Hash(payload []byte) string {
	return s.hasher.Sum(primary.HashMessage, payload)
}

func (s *MessageStore) Decode(payload []byte) (*domain.ElementData, error) {
	return decode(payload)
}

func (s *MessageStore) Store(ctx context.Context, payload []byte) (*domain.MessageRef, error) {
	hash := s.Hash(payload)

	reused, err := s.repo.AcquireMessage(ctx, hash)
	if err != nil {
		s.logger.Error("Failed to acquire message", "hash", hash, "error", err)
		return nil, fmt.Errorf("failed to acquire message: %w", err)
	}
	if reused {
		s.logger.Debug("Reusing stored message", "hash", hash)
		data, err := s.Load(ctx, hash)
		if err != nil {
			if releaseErr := s.Release(ctx, hash); releaseErr != nil {
				s.logger.Warn("Failed to release reused message", "hash", hash, "error", releaseErr)
			}
			return nil, err
		}
		return &domain.MessageRef{Hash: hash, Reused: true, Testcase: data.Testcase}, nil
	}

	data, err := decode(payload)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Hash:      hash,
		Size:      int64(len(payload)),
		CreatedAt: s.now(),
	}
	// The record goes first so a concurrent release cannot drop the blob
	// while we still hold a reference.
	created, err := s.repo.CreateMessage(ctx, msg, data)
	if err != nil {
		s.logger.Error("Failed to create message", "hash", hash, "error", err)
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if err := s.blobs.PutBlob(ctx, hash, payload); err != nil {
		s.logger.Error("Failed to write message blob", "hash", hash, "error", err)
		if releaseErr := s.Release(ctx, hash); releaseErr != nil {
			s.logger.Warn("Failed to release message after blob failure", "hash", hash, "error", releaseErr)
		}
		return nil, fmt.Errorf("failed to write message blob: %w", err)
	}

	return &domain.MessageRef{Hash: hash, Reused: !created, Testcase: data.Testcase}, nil
}

func (s *MessageStore) Load(ctx context.Context, hash string) (*domain.ElementData, error) {
	msg, data, err := s.repo.GetMessage(ctx, hash)
	if err != nil {
		s.logger.Error("Failed to get message", "hash", hash, "error", err)
		return nil, errs.Transient(fmt.Errorf("failed to get message %s: %w", hash, err))
	}
	if msg == nil {
		return nil, errs.Transient(fmt.Errorf("message %s not found", hash))
	}
	if data != nil {
		return data, nil
	}

	raw, err := s.blobs.GetBlob(ctx, hash)
	if err != nil {
		s.logger.Error("Failed to read message blob", "hash", hash, "error", err)
		return nil, errs.Transient(fmt.Errorf("failed to read message blob %s: %w", hash, err))
	}
	data, err = decode(raw)
	if err != nil {
		return nil, errs.Permanent(err)
	}
	return data, nil
}

func (s *MessageStore) Acquire(ctx context.Context, hash string) error {
	ok, err := s.repo.AcquireMessage(ctx, hash)
	if err != nil {
		s.logger.Error("Failed to acquire message", "hash", hash, "error", err)
		return fmt.Errorf("failed to acquire message: %w", err)
	}
	if !ok {
		return fmt.Errorf("message %s not found", hash)
	}
	return nil
}

func (s *MessageStore) Release(ctx context.Context, hash string) error {
	remaining, err := s.repo.ReleaseMessage(ctx, hash, func(ctx context.Context) error {
		return s.blobs.DeleteBlob(ctx, hash)
	})
	if err != nil {
		s.logger.Error("Failed to release message", "hash", hash, "error", err)
		return fmt.Errorf("failed to release message: %w", err)
	}
	if remaining == 0 {
		s.logger.Debug("Message deleted", "hash", hash)
	}
	return nil
}
