package suite

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ ISuiteService = (*SuiteService)(nil)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// ValidSlug reports whether s can name a team or suite
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

type SuiteService struct {
	suiteRepo secondary.SuiteRepository
	batchRepo secondary.BatchRepository
	cache     secondary.Cache
	cacheTTL  time.Duration
	logger    primary.Logger
	now       func() time.Time
}

func NewSuiteService(
	suiteRepo secondary.SuiteRepository,
	batchRepo secondary.BatchRepository,
	cache secondary.Cache,
	cacheTTL time.Duration,
	logger primary.Logger,
) *SuiteService {
	return &SuiteService{
		suiteRepo: suiteRepo,
		batchRepo: batchRepo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

func lookupKey(teamSlug, slug string) string {
	return domain.SuiteCachePrefix(teamSlug, slug) + "info"
}

func listKey(teamSlug string) string {
	return domain.TeamSuitesCachePrefix(teamSlug) + "list"
}

func (s *SuiteService) CreateSuite(ctx context.Context, teamSlug, slug, name string) (*domain.Suite, error) {
	if !ValidSlug(teamSlug) || !ValidSlug(slug) {
		return nil, fmt.Errorf("%w: invalid team or suite slug %q/%q", errs.InvalidArgument, teamSlug, slug)
	}
	if name == "" {
		name = slug
	}

	suite, created, err := s.suiteRepo.CreateSuite(ctx, &domain.Suite{
		ID:        uuid.New(),
		TeamSlug:  teamSlug,
		Slug:      slug,
		Name:      name,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Error("Failed to create suite", "team", teamSlug, "suite", slug, "error", err)
		return nil, fmt.Errorf("failed to create suite: %w", err)
	}
	if created {
		s.logger.Info("Suite created", "team", teamSlug, "suite", slug, "suiteId", suite.ID)
		s.invalidate(ctx, suite)
	}
	return suite, nil
}

func (s *SuiteService) GetSuite(ctx context.Context, suiteID uuid.UUID) (*domain.Suite, error) {
	suite, err := s.suiteRepo.GetSuite(ctx, suiteID)
	if err != nil {
		s.logger.Error("Failed to get suite", "suiteId", suiteID, "error", err)
		return nil, fmt.Errorf("failed to get suite: %w", err)
	}
	if suite == nil {
		return nil, errs.SuiteNotFound
	}
	return suite, nil
}

func (s *SuiteService) GetSuiteBySlug(ctx context.Context, teamSlug, slug string) (*domain.Suite, error) {
	key := lookupKey(teamSlug, slug)
	var cached domain.Suite
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("Failed to read suite cache", "key", key, "error", err)
	} else if found {
		return &cached, nil
	}

	suite, err := s.suiteRepo.GetSuiteBySlug(ctx, teamSlug, slug)
	if err != nil {
		s.logger.Error("Failed to get suite", "team", teamSlug, "suite", slug, "error", err)
		return nil, fmt.Errorf("failed to get suite: %w", err)
	}
	if suite == nil {
		return nil, errs.SuiteNotFound
	}
	if err := s.cache.Set(ctx, key, suite, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to write suite cache", "key", key, "error", err)
	}
	return suite, nil
}

func (s *SuiteService) ListSuites(ctx context.Context, teamSlug string) ([]*domain.Suite, error) {
	key := listKey(teamSlug)
	var cached []*domain.Suite
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("Failed to read suite list cache", "key", key, "error", err)
	} else if found {
		return cached, nil
	}

	suites, err := s.suiteRepo.ListSuites(ctx, teamSlug)
	if err != nil {
		s.logger.Error("Failed to list suites", "team", teamSlug, "error", err)
		return nil, fmt.Errorf("failed to list suites: %w", err)
	}
	if err := s.cache.Set(ctx, key, suites, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to write suite list cache", "key", key, "error", err)
	}
	return suites, nil
}

func (s *SuiteService) Subscribe(ctx context.Context, suiteID uuid.UUID, subscriber string) (*domain.Suite, error) {
	if subscriber == "" {
		return nil, fmt.Errorf("%w: empty subscriber", errs.InvalidArgument)
	}
	if err := s.suiteRepo.AddSubscriber(ctx, suiteID, subscriber); err != nil {
		return nil, s.wrap("subscribe", suiteID, err)
	}
	return s.refreshed(ctx, suiteID)
}

func (s *SuiteService) Unsubscribe(ctx context.Context, suiteID uuid.UUID, subscriber string) (*domain.Suite, error) {
	if err := s.suiteRepo.RemoveSubscriber(ctx, suiteID, subscriber); err != nil {
		return nil, s.wrap("unsubscribe", suiteID, err)
	}
	return s.refreshed(ctx, suiteID)
}

func (s *SuiteService) ListPromotions(ctx context.Context, suiteID uuid.UUID) ([]*domain.PromotionRecord, error) {
	if _, err := s.GetSuite(ctx, suiteID); err != nil {
		return nil, err
	}
	records, err := s.batchRepo.ListPromotions(ctx, suiteID)
	if err != nil {
		s.logger.Error("Failed to list promotions", "suiteId", suiteID, "error", err)
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	return records, nil
}

func (s *SuiteService) refreshed(ctx context.Context, suiteID uuid.UUID) (*domain.Suite, error) {
	suite, err := s.GetSuite(ctx, suiteID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, suite)
	return suite, nil
}

func (s *SuiteService) wrap(op string, suiteID uuid.UUID, err error) error {
	if errors.Is(err, errs.SuiteNotFound) {
		return err
	}
	s.logger.Error("Failed to "+op, "suiteId", suiteID, "error", err)
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *SuiteService) invalidate(ctx context.Context, suite *domain.Suite) {
	for _, prefix := range []string{
		domain.SuiteCachePrefix(suite.TeamSlug, suite.Slug),
		domain.TeamSuitesCachePrefix(suite.TeamSlug),
	} {
		if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
			s.logger.Warn("Failed to invalidate cache", "prefix", prefix, "error", err)
		}
	}
}
