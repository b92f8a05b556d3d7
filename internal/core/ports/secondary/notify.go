package secondary

import (
	"context"
	"time"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// Notifier delivers pipeline events to external subscribers
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// Cache holds listing and overview results for the query boundary
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}
