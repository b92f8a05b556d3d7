package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
)

type SuiteRepository interface {
	// CreateSuite inserts the suite or returns the existing one with the same team and slug
	CreateSuite(ctx context.Context, suite *domain.Suite) (*domain.Suite, bool, error)

	GetSuite(ctx context.Context, suiteID uuid.UUID) (*domain.Suite, error)

	GetSuiteBySlug(ctx context.Context, teamSlug, suiteSlug string) (*domain.Suite, error)

	ListSuites(ctx context.Context, teamSlug string) ([]*domain.Suite, error)

	// AddSubscriber is idempotent
	AddSubscriber(ctx context.Context, suiteID uuid.UUID, subscriber string) error

	RemoveSubscriber(ctx context.Context, suiteID uuid.UUID, subscriber string) error

	// DeleteSuite removes the suite, its subscriptions and promotion log
	DeleteSuite(ctx context.Context, suiteID uuid.UUID) error
}
