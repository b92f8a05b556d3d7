package baseline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ IBaselineResolver = (*Resolver)(nil)

type Resolver struct {
	suiteRepo secondary.SuiteRepository
	batchRepo secondary.BatchRepository
	logger    primary.Logger
}

func NewResolver(suiteRepo secondary.SuiteRepository, batchRepo secondary.BatchRepository, logger primary.Logger) *Resolver {
	return &Resolver{
		suiteRepo: suiteRepo,
		batchRepo: batchRepo,
		logger:    logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, suiteID uuid.UUID, testcase string) (*domain.ElementRef, error) {
	suite, err := r.suiteRepo.GetSuite(ctx, suiteID)
	if err != nil {
		r.logger.Error("Failed to get suite", "suiteId", suiteID, "error", err)
		return nil, fmt.Errorf("failed to get suite: %w", err)
	}
	if suite == nil {
		return nil, errs.SuiteNotFound
	}
	return r.ResolveIn(ctx, suite.BaselineBatchID, testcase)
}

func (r *Resolver) ResolveIn(ctx context.Context, baselineBatchID *uuid.UUID, testcase string) (*domain.ElementRef, error) {
	if baselineBatchID == nil {
		return nil, nil
	}

	element, err := r.batchRepo.GetElementByTestcase(ctx, *baselineBatchID, testcase)
	if err != nil {
		r.logger.Error("Failed to get baseline element", "batchId", *baselineBatchID, "testcase", testcase, "error", err)
		return nil, fmt.Errorf("failed to get baseline element: %w", err)
	}
	if element == nil {
		r.logger.Debug("Testcase has no baseline counterpart", "batchId", *baselineBatchID, "testcase", testcase)
		return nil, nil
	}

	return &domain.ElementRef{
		ElementID:   element.ID,
		BatchID:     element.BatchID,
		MessageHash: element.MessageHash,
	}, nil
}
