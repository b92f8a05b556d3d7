package message

import (
	"context"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// IMessageStore stores submitted payloads by content address
type IMessageStore interface {
	// Store persists payload and takes one reference on it. An already
	// stored payload is not decoded again.
	Store(ctx context.Context, payload []byte) (*domain.MessageRef, error)

	// Decode parses a payload without storing it
	Decode(payload []byte) (*domain.ElementData, error)

	// Load returns the decoded data of a stored message
	Load(ctx context.Context, hash string) (*domain.ElementData, error)

	// Acquire takes an extra reference on a stored message
	Acquire(ctx context.Context, hash string) error

	// Release drops a reference, deleting record and blob at zero
	Release(ctx context.Context, hash string) error
}
