package suite

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
)

type ISuiteService interface {
	// CreateSuite returns the existing suite when the slug is taken
	CreateSuite(ctx context.Context, teamSlug, slug, name string) (*domain.Suite, error)
	GetSuite(ctx context.Context, suiteID uuid.UUID) (*domain.Suite, error)
	GetSuiteBySlug(ctx context.Context, teamSlug, slug string) (*domain.Suite, error)
	ListSuites(ctx context.Context, teamSlug string) ([]*domain.Suite, error)
	Subscribe(ctx context.Context, suiteID uuid.UUID, subscriber string) (*domain.Suite, error)
	Unsubscribe(ctx context.Context, suiteID uuid.UUID, subscriber string) (*domain.Suite, error)
	ListPromotions(ctx context.Context, suiteID uuid.UUID) ([]*domain.PromotionRecord, error)
}
