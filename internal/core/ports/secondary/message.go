package secondary

import (
	"context"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// MessageRepository keeps message records with their reference counts
type MessageRepository interface {
	// AcquireMessage takes a reference on an existing message
	AcquireMessage(ctx context.Context, hash string) (bool, error)

	// CreateMessage inserts the message with one reference, or takes a
	// reference if it was inserted concurrently
	CreateMessage(ctx context.Context, msg *domain.Message, decoded *domain.ElementData) (bool, error)

	GetMessage(ctx context.Context, hash string) (*domain.Message, *domain.ElementData, error)

	// ReleaseMessage drops a reference. When the count reaches zero,
	// onZero runs while the record is still locked and the record is deleted.
	ReleaseMessage(ctx context.Context, hash string, onZero func(ctx context.Context) error) (int, error)
}

// BlobStore keeps raw message payloads by content address
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
	DeleteBlob(ctx context.Context, key string) error
}
