package secondary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// BatchRepository owns batches, their elements and the promotion log
type BatchRepository interface {
	// OpenBatch returns the open batch for version, creating it if needed.
	// Creating a batch moves any other open batch of the suite to sealing
	// and captures the suite baseline, in one atomic step. Fails with
	// errs.BatchNotOpen if the version exists but no longer accepts elements.
	OpenBatch(ctx context.Context, suiteID uuid.UUID, version string, now time.Time) (*domain.OpenedBatch, error)

	GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error)

	GetBatchByVersion(ctx context.Context, suiteID uuid.UUID, version string) (*domain.Batch, error)

	// ListBatches returns the suite batches, newest first
	ListBatches(ctx context.Context, suiteID uuid.UUID) ([]*domain.Batch, error)

	// ListBatchesByState returns batches of any suite in state, oldest first
	ListBatchesByState(ctx context.Context, state domain.BatchState, limit int) ([]*domain.Batch, error)

	// TransitionBatch moves the batch to `to` if its state is one of from.
	// It returns the batch as stored after the call and whether it changed.
	TransitionBatch(ctx context.Context, batchID uuid.UUID, from []domain.BatchState, to domain.BatchState, now time.Time) (*domain.Batch, bool, error)

	// ArchiveBatch moves a sealed or promoted batch that is not the suite
	// baseline to archived. The baseline check and the transition are atomic.
	ArchiveBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, bool, error)

	// RequestPromotion flags a sealing batch for promotion once sealed
	RequestPromotion(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error)

	// PromoteBatch moves a sealed batch to promoted, sets the suite baseline
	// under a version check and appends the promotion record atomically
	PromoteBatch(ctx context.Context, batchID uuid.UUID, change domain.BaselineChange) error

	// MarkRemoved checks that no open batch captured the batch as its
	// baseline, applies the optional baseline change and moves the batch to
	// removed, all atomically
	MarkRemoved(ctx context.Context, removal domain.Removal) (*domain.Batch, error)

	// DeleteBatch deletes a removed batch and its elements
	DeleteBatch(ctx context.Context, batchID uuid.UUID) error

	// UpsertElement adds or replaces the element for testcase in an open batch
	UpsertElement(ctx context.Context, batchID uuid.UUID, testcase string, messageHash string, now time.Time) (*domain.ElementUpsert, error)

	GetElement(ctx context.Context, elementID uuid.UUID) (*domain.Element, error)

	GetElementByTestcase(ctx context.Context, batchID uuid.UUID, testcase string) (*domain.Element, error)

	ListElements(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error)

	// DeleteElement deletes one element of a removed batch
	DeleteElement(ctx context.Context, elementID uuid.UUID) error

	// CountUndrained counts elements without a succeeded or failed job for their current content
	CountUndrained(ctx context.Context, batchID uuid.UUID) (int, error)

	// ListElementsWithoutJob returns elements that have no live or succeeded job for their content
	ListElementsWithoutJob(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error)

	ListPromotions(ctx context.Context, suiteID uuid.UUID) ([]*domain.PromotionRecord, error)
}
