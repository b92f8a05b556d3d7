package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

const systemActor = "system"

// afterSeal runs a pending promotion request or the automatic policy
func (s *BatchService) afterSeal(ctx context.Context, suite *domain.Suite, sealed *domain.Batch) error {
	if sealed.PromoteRequested {
		return s.promote(ctx, sealed, domain.PromotionManual, "promotion requested while sealing", systemActor)
	}

	if s.policy.FirstBatch && suite.BaselineBatchID == nil {
		return s.promote(ctx, sealed, domain.PromotionAutoFirstBatch, "suite had no baseline", systemActor)
	}

	if s.policy.AllPass {
		overview, err := s.computeOverview(ctx, sealed)
		if err != nil {
			return err
		}
		if overview.PassCount > 0 && overview.FailCount == 0 && overview.BrokenCount == 0 && overview.PendingCount == 0 {
			reason := fmt.Sprintf("all %d elements passed", overview.PassCount)
			return s.promote(ctx, sealed, domain.PromotionAutoAllPass, reason, systemActor)
		}
	}
	return nil
}

func (s *BatchService) RequestPromotion(ctx context.Context, batchID uuid.UUID, actor string) (*domain.Batch, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	switch batch.State {
	case domain.BatchStateOpen, domain.BatchStateArchived, domain.BatchStateRemoved:
		return nil, fmt.Errorf("%w: cannot promote %s batch", errs.InvalidTransition, batch.State)
	case domain.BatchStateSealing:
		flagged, err := s.batchRepo.RequestPromotion(ctx, batchID)
		if err != nil {
			s.logger.Error("Failed to request promotion", "batchId", batchID, "error", err)
			return nil, fmt.Errorf("failed to request promotion: %w", err)
		}
		if flagged.State == domain.BatchStateSealing {
			s.logger.Info("Promotion recorded until seal completes", "batchId", batchID, "actor", actor)
			return flagged, nil
		}
		// sealed in the meantime
		if flagged.State != domain.BatchStateSealed && flagged.State != domain.BatchStatePromoted {
			return nil, fmt.Errorf("%w: cannot promote %s batch", errs.InvalidTransition, flagged.State)
		}
		batch = flagged
	}

	if err := s.promote(ctx, batch, domain.PromotionManual, "requested by operator", actor); err != nil {
		return nil, err
	}
	return s.GetBatch(ctx, batchID)
}

// promote points the suite baseline at batch. The write is version checked
// and retried when another baseline change won the race.
func (s *BatchService) promote(ctx context.Context, batch *domain.Batch, rule domain.PromotionRule, reason, actor string) error {
	for attempt := 0; attempt < maxBaselineRetries; attempt++ {
		suite, err := s.getSuite(ctx, batch.SuiteID)
		if err != nil {
			return err
		}
		if suite.BaselineBatchID != nil && *suite.BaselineBatchID == batch.ID {
			return nil
		}
		if rule == domain.PromotionAutoFirstBatch && suite.BaselineBatchID != nil {
			return nil
		}

		batchID := batch.ID
		change := domain.BaselineChange{
			SuiteID:         suite.ID,
			ExpectedVersion: suite.BaselineVersion,
			NewBaseline:     &batchID,
			Record: domain.PromotionRecord{
				ID:              uuid.New(),
				SuiteID:         suite.ID,
				BatchID:         &batchID,
				PreviousBatchID: suite.BaselineBatchID,
				Rule:            rule,
				Reason:          reason,
				Actor:           actor,
				CreatedAt:       s.now(),
			},
		}
		err = s.batchRepo.PromoteBatch(ctx, batch.ID, change)
		if errors.Is(err, errs.ConcurrentUpdate) {
			s.logger.Debug("Baseline changed concurrently, retrying", "batchId", batch.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			if errors.Is(err, errs.InvalidTransition) {
				return err
			}
			s.logger.Error("Failed to promote batch", "batchId", batch.ID, "error", err)
			return fmt.Errorf("failed to promote batch: %w", err)
		}

		s.logger.Info("Batch promoted",
			"suite", suite.Slug,
			"version", batch.Version,
			"rule", rule,
			"actor", actor)
		promoted := *batch
		promoted.State = domain.BatchStatePromoted
		promoted.Promoted = true
		s.emit(ctx, suite, domain.EventBatchPromoted, &promoted, nil)
		s.invalidate(ctx, suite)
		return nil
	}
	return fmt.Errorf("%w: baseline of suite kept changing", errs.ConcurrentUpdate)
}

func (s *BatchService) ArchiveBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	archived, changed, err := s.batchRepo.ArchiveBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, errs.BatchNotFound) || errors.Is(err, errs.InvalidTransition) {
			return nil, err
		}
		s.logger.Error("Failed to archive batch", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to archive batch: %w", err)
	}
	if !changed {
		return archived, nil
	}

	suite, err := s.getSuite(ctx, archived.SuiteID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Batch archived", "suite", suite.Slug, "version", archived.Version)
	s.invalidate(ctx, suite)
	return archived, nil
}
