package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

func (s *BatchService) RemoveBatch(ctx context.Context, batchID uuid.UUID, actor string) error {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	suite, err := s.getSuite(ctx, batch.SuiteID)
	if err != nil {
		return err
	}

	removed, change, err := s.markRemoved(ctx, batch, actor, false)
	if err != nil {
		return err
	}

	s.logger.Info("Batch removed", "suite", suite.Slug, "version", removed.Version, "actor", actor)
	if change != nil && change.NewBaseline != nil {
		if next, err := s.batchRepo.GetBatch(ctx, *change.NewBaseline); err == nil && next != nil {
			s.emit(ctx, suite, domain.EventBatchPromoted, next, nil)
		}
	}

	if err := s.finishRemoval(ctx, removed); err != nil {
		// reconciliation retries batches left in removed
		s.logger.Warn("Removal cascade incomplete", "batchId", batchID, "error", err)
	}
	s.emit(ctx, suite, domain.EventBatchRemoved, removed, nil)
	s.invalidate(ctx, suite)
	return nil
}

// markRemoved moves the batch to removed together with the baseline change
// it implies. With force the baseline is cleared instead of re-elected and
// open batches depending on the batch do not block the removal.
func (s *BatchService) markRemoved(ctx context.Context, batch *domain.Batch, actor string, force bool) (*domain.Batch, *domain.BaselineChange, error) {
	for attempt := 0; attempt < maxBaselineRetries; attempt++ {
		suite, err := s.getSuite(ctx, batch.SuiteID)
		if err != nil {
			return nil, nil, err
		}

		removal := domain.Removal{BatchID: batch.ID, Force: force}
		if suite.BaselineBatchID != nil && *suite.BaselineBatchID == batch.ID {
			change, err := s.baselineAfterRemoval(ctx, suite, batch, actor, force)
			if err != nil {
				return nil, nil, err
			}
			removal.Baseline = change
		}

		removed, err := s.batchRepo.MarkRemoved(ctx, removal)
		if errors.Is(err, errs.ConcurrentUpdate) {
			s.logger.Debug("Baseline changed concurrently, retrying removal", "batchId", batch.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			if errors.Is(err, errs.BaselineMisconfiguration) {
				s.logger.Warn("Removal refused", "batchId", batch.ID, "error", err)
				return nil, nil, err
			}
			s.logger.Error("Failed to mark batch removed", "batchId", batch.ID, "error", err)
			return nil, nil, fmt.Errorf("failed to mark batch removed: %w", err)
		}
		return removed, removal.Baseline, nil
	}
	return nil, nil, fmt.Errorf("%w: baseline of suite kept changing", errs.ConcurrentUpdate)
}

// baselineAfterRemoval re-elects the most recent other promoted batch, else
// the most recent sealed one, else leaves the suite without baseline
func (s *BatchService) baselineAfterRemoval(ctx context.Context, suite *domain.Suite, removed *domain.Batch, actor string, force bool) (*domain.BaselineChange, error) {
	change := &domain.BaselineChange{
		SuiteID:         suite.ID,
		ExpectedVersion: suite.BaselineVersion,
		Record: domain.PromotionRecord{
			ID:              uuid.New(),
			SuiteID:         suite.ID,
			PreviousBatchID: suite.BaselineBatchID,
			Rule:            domain.PromotionCleared,
			Actor:           actor,
			CreatedAt:       s.now(),
		},
	}
	if force {
		change.Record.Reason = "suite removed"
		return change, nil
	}

	batches, err := s.batchRepo.ListBatches(ctx, suite.ID)
	if err != nil {
		s.logger.Error("Failed to list batches", "suiteId", suite.ID, "error", err)
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	var elected *domain.Batch
	for _, state := range []domain.BatchState{domain.BatchStatePromoted, domain.BatchStateSealed} {
		for _, b := range batches {
			if b.ID != removed.ID && b.State == state {
				elected = b
				break
			}
		}
		if elected != nil {
			break
		}
	}

	if elected == nil {
		change.Record.Reason = fmt.Sprintf("baseline %s removed, no candidate left", removed.Version)
		return change, nil
	}
	id := elected.ID
	change.NewBaseline = &id
	change.Record.BatchID = &id
	change.Record.Rule = domain.PromotionReelect
	change.Record.Reason = fmt.Sprintf("baseline %s removed, re-elected %s", removed.Version, elected.Version)
	return change, nil
}

// finishRemoval cancels the jobs of a removed batch, detaches its elements
// from their messages and deletes it. Each step tolerates being repeated.
func (s *BatchService) finishRemoval(ctx context.Context, batch *domain.Batch) error {
	if _, err := s.queue.Cancel(ctx, batch.ID); err != nil {
		return err
	}

	elements, err := s.batchRepo.ListElements(ctx, batch.ID)
	if err != nil {
		s.logger.Error("Failed to list elements", "batchId", batch.ID, "error", err)
		return fmt.Errorf("failed to list elements: %w", err)
	}
	for _, e := range elements {
		// delete first: a crash in between leaks a reference, never frees early
		if err := s.batchRepo.DeleteElement(ctx, e.ID); err != nil {
			s.logger.Error("Failed to delete element", "elementId", e.ID, "error", err)
			return fmt.Errorf("failed to delete element: %w", err)
		}
		if err := s.messages.Release(ctx, e.MessageHash); err != nil {
			return err
		}
	}

	if err := s.jobRepo.DeleteBatchJobs(ctx, batch.ID); err != nil {
		s.logger.Error("Failed to delete batch jobs", "batchId", batch.ID, "error", err)
		return fmt.Errorf("failed to delete batch jobs: %w", err)
	}
	if err := s.batchRepo.DeleteBatch(ctx, batch.ID); err != nil {
		s.logger.Error("Failed to delete batch", "batchId", batch.ID, "error", err)
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	s.logger.Debug("Batch deleted", "batchId", batch.ID, "elements", len(elements))
	return nil
}

func (s *BatchService) RemoveSuite(ctx context.Context, suiteID uuid.UUID, actor string) error {
	suite, err := s.getSuite(ctx, suiteID)
	if err != nil {
		return err
	}

	batches, err := s.ListBatches(ctx, suiteID)
	if err != nil {
		return err
	}
	for _, b := range batches {
		removed, _, err := s.markRemoved(ctx, b, actor, true)
		if err != nil {
			return err
		}
		if err := s.finishRemoval(ctx, removed); err != nil {
			s.logger.Error("Failed to remove batch of suite", "suite", suite.Slug, "version", b.Version, "error", err)
			return err
		}
	}

	if err := s.suiteRepo.DeleteSuite(ctx, suiteID); err != nil {
		s.logger.Error("Failed to delete suite", "suite", suite.Slug, "error", err)
		return fmt.Errorf("failed to delete suite: %w", err)
	}

	s.logger.Info("Suite removed", "team", suite.TeamSlug, "suite", suite.Slug, "batches", len(batches), "actor", actor)
	s.emit(ctx, suite, domain.EventSuiteRemoved, nil, nil)
	s.invalidate(ctx, suite)
	return nil
}
