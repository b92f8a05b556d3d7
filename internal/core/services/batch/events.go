package batch

import (
	"context"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// emit hands an event to the notifier. Delivery failures never undo the
// transition that produced the event.
func (s *BatchService) emit(ctx context.Context, suite *domain.Suite, eventType domain.EventType, batch *domain.Batch, element *domain.Element) {
	event := domain.Event{
		Type:          eventType,
		TeamSlug:      suite.TeamSlug,
		SuiteSlug:     suite.Slug,
		SuiteID:       suite.ID,
		SubscriberIDs: append([]string(nil), suite.Subscribers...),
		OccurredAt:    s.now(),
	}
	if batch != nil {
		id := batch.ID
		event.BatchID = &id
		event.Version = batch.Version
	}
	if element != nil {
		id := element.ID
		event.ElementID = &id
		event.Testcase = element.Testcase
	}

	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("Failed to deliver event", "type", eventType, "suite", suite.Slug, "error", err)
	}
}

func (s *BatchService) invalidate(ctx context.Context, suite *domain.Suite) {
	for _, prefix := range []string{
		domain.SuiteCachePrefix(suite.TeamSlug, suite.Slug),
		domain.TeamSuitesCachePrefix(suite.TeamSlug),
	} {
		if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
			s.logger.Warn("Failed to invalidate cache", "prefix", prefix, "error", err)
		}
	}
}
