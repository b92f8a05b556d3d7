package batch

import (
	"context"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// Reconcile enqueues elements of live batches that have no job, re-runs the
// drain check of sealing batches and finishes interrupted removals
func (s *BatchService) Reconcile(ctx context.Context, limit int) error {
	for _, state := range []domain.BatchState{domain.BatchStateOpen, domain.BatchStateSealing} {
		batches, err := s.batchRepo.ListBatchesByState(ctx, state, limit)
		if err != nil {
			s.logger.Error("Failed to list batches", "state", state, "error", err)
			return err
		}
		for _, b := range batches {
			s.enqueueMissing(ctx, b)
			if state == domain.BatchStateSealing {
				if err := s.CheckDrain(ctx, b.ID); err != nil {
					s.logger.Warn("Failed to check drain", "batchId", b.ID, "error", err)
				}
			}
		}
	}

	removed, err := s.batchRepo.ListBatchesByState(ctx, domain.BatchStateRemoved, limit)
	if err != nil {
		s.logger.Error("Failed to list removed batches", "error", err)
		return err
	}
	for _, b := range removed {
		s.logger.Info("Finishing interrupted removal", "batchId", b.ID, "version", b.Version)
		if err := s.finishRemoval(ctx, b); err != nil {
			s.logger.Warn("Removal cascade incomplete", "batchId", b.ID, "error", err)
		}
	}
	return nil
}

func (s *BatchService) enqueueMissing(ctx context.Context, b *domain.Batch) {
	elements, err := s.batchRepo.ListElementsWithoutJob(ctx, b.ID)
	if err != nil {
		s.logger.Warn("Failed to list elements without job", "batchId", b.ID, "error", err)
		return
	}
	for _, e := range elements {
		if err := s.enqueue(ctx, b, e); err != nil {
			s.logger.Warn("Failed to enqueue comparison", "elementId", e.ID, "error", err)
			continue
		}
		s.logger.Info("Enqueued missing comparison", "batchId", b.ID, "testcase", e.Testcase)
	}
}
