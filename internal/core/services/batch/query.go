package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

func (s *BatchService) GetBatchOverview(ctx context.Context, batchID uuid.UUID) (*domain.BatchOverview, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	suite, err := s.getSuite(ctx, batch.SuiteID)
	if err != nil {
		return nil, err
	}

	// Only sealed batches are cached: their verdicts no longer change.
	key := domain.BatchOverviewCacheKey(suite.TeamSlug, suite.Slug, batchID)
	if batch.State.Sealed() {
		var cached domain.BatchOverview
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("Failed to read overview cache", "key", key, "error", err)
		} else if found && cached.State == batch.State {
			return &cached, nil
		}
	}

	overview, err := s.computeOverview(ctx, batch)
	if err != nil {
		return nil, err
	}
	if batch.State.Sealed() {
		if err := s.cache.Set(ctx, key, overview, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to write overview cache", "key", key, "error", err)
		}
	}
	return overview, nil
}

func (s *BatchService) computeOverview(ctx context.Context, batch *domain.Batch) (*domain.BatchOverview, error) {
	elements, err := s.batchRepo.ListElements(ctx, batch.ID)
	if err != nil {
		s.logger.Error("Failed to list elements", "batchId", batch.ID, "error", err)
		return nil, fmt.Errorf("failed to list elements: %w", err)
	}

	overview := &domain.BatchOverview{
		BatchID:      batch.ID,
		State:        batch.State,
		ElementCount: len(elements),
	}

	keys := make([]string, 0, len(elements))
	for _, e := range elements {
		j, err := s.jobRepo.LatestJobForElement(ctx, e.ID, e.MessageHash)
		if err != nil {
			s.logger.Error("Failed to get element job", "elementId", e.ID, "error", err)
			return nil, fmt.Errorf("failed to get element job: %w", err)
		}
		switch {
		case j == nil || !j.Status.Terminal():
			overview.PendingCount++
		case j.Status == domain.JobStatusFailed:
			overview.BrokenCount++
		case j.Status == domain.JobStatusSucceeded && j.ResultKey != nil:
			keys = append(keys, *j.ResultKey)
		default:
			overview.PendingCount++
		}
	}

	results, err := s.jobRepo.GetResults(ctx, keys)
	if err != nil {
		s.logger.Error("Failed to get results", "batchId", batch.ID, "error", err)
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	for _, key := range keys {
		result, ok := results[key]
		if !ok {
			overview.PendingCount++
			continue
		}
		switch result.Verdict {
		case domain.VerdictPass:
			overview.PassCount++
		case domain.VerdictFail:
			overview.FailCount++
		case domain.VerdictNoBaseline:
			overview.NoBaselineCount++
		}
	}
	return overview, nil
}

func (s *BatchService) GetComparisonResult(ctx context.Context, elementID uuid.UUID) (*domain.ElementComparison, error) {
	element, err := s.batchRepo.GetElement(ctx, elementID)
	if err != nil {
		s.logger.Error("Failed to get element", "elementId", elementID, "error", err)
		return nil, fmt.Errorf("failed to get element: %w", err)
	}
	if element == nil {
		return nil, errs.ElementNotFound
	}

	out := &domain.ElementComparison{Element: element}
	j, err := s.jobRepo.LatestJobForElement(ctx, elementID, element.MessageHash)
	if err != nil {
		s.logger.Error("Failed to get element job", "elementId", elementID, "error", err)
		return nil, fmt.Errorf("failed to get element job: %w", err)
	}
	out.Job = j
	if j == nil || j.ResultKey == nil {
		return out, nil
	}

	result, err := s.jobRepo.GetResult(ctx, *j.ResultKey)
	if err != nil {
		s.logger.Error("Failed to get result", "resultKey", *j.ResultKey, "error", err)
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	out.Result = result
	return out, nil
}
