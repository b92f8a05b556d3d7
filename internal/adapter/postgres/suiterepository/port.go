// Package suiterepository implements the suite repository with PostgreSQL
package suiterepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/baseline-2025.net/internal/adapter/postgres"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var _ secondary.SuiteRepository = (*SuiteRepository)(nil)

const suiteColumns = `id, team_slug, slug, name, baseline_batch_id, baseline_version, created_at`

type SuiteRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

func NewSuiteRepository(db *sqlx.DB, logger primary.Logger) *SuiteRepository {
	return &SuiteRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSuite inserts the suite unless the team already has the slug
func (r *SuiteRepository) CreateSuite(ctx context.Context, suite *domain.Suite) (*domain.Suite, bool, error) {
	query := `
		INSERT INTO suites (id, team_slug, slug, name, baseline_version, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (team_slug, slug) DO NOTHING
		RETURNING ` + suiteColumns

	var created domain.Suite
	err := r.db.GetContext(ctx, &created, query, suite.ID, suite.TeamSlug, suite.Slug, suite.Name, suite.CreatedAt)
	if err == nil {
		created.Subscribers = []string{}
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Failed to insert suite", "team", suite.TeamSlug, "suite", suite.Slug, "error", err)
		return nil, false, fmt.Errorf("failed to insert suite: %w", err)
	}

	existing, err := r.GetSuiteBySlug(ctx, suite.TeamSlug, suite.Slug)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("suite %s/%s vanished after conflict", suite.TeamSlug, suite.Slug)
	}
	return existing, false, nil
}

func (r *SuiteRepository) GetSuite(ctx context.Context, suiteID uuid.UUID) (*domain.Suite, error) {
	return r.getOne(ctx, `SELECT `+suiteColumns+` FROM suites WHERE id = $1`, suiteID)
}

func (r *SuiteRepository) GetSuiteBySlug(ctx context.Context, teamSlug, suiteSlug string) (*domain.Suite, error) {
	return r.getOne(ctx, `SELECT `+suiteColumns+` FROM suites WHERE team_slug = $1 AND slug = $2`, teamSlug, suiteSlug)
}

func (r *SuiteRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Suite, error) {
	var suite domain.Suite
	if err := r.db.GetContext(ctx, &suite, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get suite", "error", err)
		return nil, fmt.Errorf("failed to get suite: %w", err)
	}
	if err := r.loadSubscribers(ctx, []*domain.Suite{&suite}); err != nil {
		return nil, err
	}
	return &suite, nil
}

func (r *SuiteRepository) ListSuites(ctx context.Context, teamSlug string) ([]*domain.Suite, error) {
	suites := make([]*domain.Suite, 0)
	query := `SELECT ` + suiteColumns + ` FROM suites WHERE team_slug = $1 ORDER BY slug`
	if err := r.db.SelectContext(ctx, &suites, query, teamSlug); err != nil {
		r.logger.Error("Failed to list suites", "team", teamSlug, "error", err)
		return nil, fmt.Errorf("failed to list suites: %w", err)
	}
	if err := r.loadSubscribers(ctx, suites); err != nil {
		return nil, err
	}
	return suites, nil
}

func (r *SuiteRepository) loadSubscribers(ctx context.Context, suites []*domain.Suite) error {
	if len(suites) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Suite, len(suites))
	ids := make([]uuid.UUID, 0, len(suites))
	for _, s := range suites {
		s.Subscribers = []string{}
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	query, args, err := sqlx.In(`SELECT suite_id, subscriber FROM suite_subscribers WHERE suite_id IN (?) ORDER BY subscriber`, ids)
	if err != nil {
		return fmt.Errorf("failed to build subscriber query: %w", err)
	}
	var rows []struct {
		SuiteID    uuid.UUID `db:"suite_id"`
		Subscriber string    `db:"subscriber"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to load subscribers", "error", err)
		return fmt.Errorf("failed to load subscribers: %w", err)
	}
	for _, row := range rows {
		if s, ok := byID[row.SuiteID]; ok {
			s.Subscribers = append(s.Subscribers, row.Subscriber)
		}
	}
	return nil
}

func (r *SuiteRepository) AddSubscriber(ctx context.Context, suiteID uuid.UUID, subscriber string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO suite_subscribers (suite_id, subscriber) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, suiteID, subscriber)
	if err != nil {
		r.logger.Error("Failed to add subscriber", "suiteId", suiteID, "error", err)
		return fmt.Errorf("failed to add subscriber: %w", err)
	}
	return nil
}

func (r *SuiteRepository) RemoveSubscriber(ctx context.Context, suiteID uuid.UUID, subscriber string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM suite_subscribers WHERE suite_id = $1 AND subscriber = $2`, suiteID, subscriber)
	if err != nil {
		r.logger.Error("Failed to remove subscriber", "suiteId", suiteID, "error", err)
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}
	return nil
}

func (r *SuiteRepository) DeleteSuite(ctx context.Context, suiteID uuid.UUID) error {
	return postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var remaining int
		if err := tx.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM batches WHERE suite_id = $1`, suiteID); err != nil {
			r.logger.Error("Failed to count suite batches", "suiteId", suiteID, "error", err)
			return fmt.Errorf("failed to count suite batches: %w", err)
		}
		if remaining > 0 {
			return fmt.Errorf("suite %s still has %d batches", suiteID, remaining)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM suites WHERE id = $1`, suiteID); err != nil {
			r.logger.Error("Failed to delete suite", "suiteId", suiteID, "error", err)
			return fmt.Errorf("failed to delete suite: %w", err)
		}
		return nil
	})
}
