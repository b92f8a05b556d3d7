package batch

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// IBatchService drives the batch lifecycle
type IBatchService interface {
	// AddElement records a stored message as the testcase element of the
	// open batch for version, opening the batch (and sealing the previous
	// open one) when needed, and enqueues its comparison
	AddElement(ctx context.Context, suite *domain.Suite, version string, testcase string, messageHash string) (*domain.Element, error)

	RequestSeal(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error)

	// CheckDrain seals a sealing batch once all its elements are compared
	CheckDrain(ctx context.Context, batchID uuid.UUID) error

	// OnJobTerminal is the queue's terminal notifier
	OnJobTerminal(ctx context.Context, job *domain.Job)

	RequestPromotion(ctx context.Context, batchID uuid.UUID, actor string) (*domain.Batch, error)

	ArchiveBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error)

	RemoveBatch(ctx context.Context, batchID uuid.UUID, actor string) error

	RemoveSuite(ctx context.Context, suiteID uuid.UUID, actor string) error

	GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error)

	ListBatches(ctx context.Context, suiteID uuid.UUID) ([]*domain.Batch, error)

	ListElements(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error)

	GetBatchOverview(ctx context.Context, batchID uuid.UUID) (*domain.BatchOverview, error)

	GetComparisonResult(ctx context.Context, elementID uuid.UUID) (*domain.ElementComparison, error)

	// Reconcile repairs work lost to crashes between atomic steps
	Reconcile(ctx context.Context, limit int) error
}
