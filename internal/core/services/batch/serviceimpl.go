package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/core/services/baseline"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ IBatchService = (*BatchService)(nil)

// maxBaselineRetries bounds optimistic retries of a baseline pointer write
const maxBaselineRetries = 5

type BatchService struct {
	suiteRepo secondary.SuiteRepository
	batchRepo secondary.BatchRepository
	jobRepo   secondary.JobRepository
	queue     job.IJobQueue
	messages  message.IMessageStore
	resolver  baseline.IBaselineResolver
	notifier  secondary.Notifier
	cache     secondary.Cache
	policy    config.PromotionPolicy
	cacheTTL  time.Duration
	logger    primary.Logger
	now       func() time.Time
}

type Deps struct {
	SuiteRepo secondary.SuiteRepository
	BatchRepo secondary.BatchRepository
	JobRepo   secondary.JobRepository
	Queue     job.IJobQueue
	Messages  message.IMessageStore
	Resolver  baseline.IBaselineResolver
	Notifier  secondary.Notifier
	Cache     secondary.Cache
}

func NewBatchService(deps Deps, policy config.PromotionPolicy, cacheTTL time.Duration, logger primary.Logger) *BatchService {
	return &BatchService{
		suiteRepo: deps.SuiteRepo,
		batchRepo: deps.BatchRepo,
		jobRepo:   deps.JobRepo,
		queue:     deps.Queue,
		messages:  deps.Messages,
		resolver:  deps.Resolver,
		notifier:  deps.Notifier,
		cache:     deps.Cache,
		policy:    policy,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (s *BatchService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *BatchService) AddElement(ctx context.Context, suite *domain.Suite, version string, testcase string, messageHash string) (*domain.Element, error) {
	opened, err := s.batchRepo.OpenBatch(ctx, suite.ID, version, s.now())
	if err != nil {
		if errors.Is(err, errs.BatchNotOpen) || errors.Is(err, errs.SuiteNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to open batch", "suite", suite.Slug, "version", version, "error", err)
		return nil, fmt.Errorf("failed to open batch: %w", err)
	}
	batch := opened.Batch

	if opened.Created {
		s.logger.Info("Batch opened", "suite", suite.Slug, "version", version, "batchId", batch.ID)
		s.emit(ctx, suite, domain.EventSuiteNewBatch, batch, nil)
	}
	if opened.Created || len(opened.Sealing) > 0 {
		s.invalidate(ctx, suite)
	}
	for _, prior := range opened.Sealing {
		s.logger.Info("Sealing previous batch", "suite", suite.Slug, "version", prior.Version, "batchId", prior.ID)
		if err := s.CheckDrain(ctx, prior.ID); err != nil {
			s.logger.Warn("Failed to check drain of previous batch", "batchId", prior.ID, "error", err)
		}
	}

	up, err := s.batchRepo.UpsertElement(ctx, batch.ID, testcase, messageHash, s.now())
	if err != nil {
		if errors.Is(err, errs.BatchNotOpen) {
			return nil, err
		}
		s.logger.Error("Failed to upsert element", "batchId", batch.ID, "testcase", testcase, "error", err)
		return nil, fmt.Errorf("failed to upsert element: %w", err)
	}
	element := up.Element

	if up.ReplacedHash != "" {
		// The caller's reference now belongs to the element. The one held
		// for the previous content is dropped.
		if up.ReplacedHash != messageHash {
			if _, err := s.queue.CancelElement(ctx, element.ID, messageHash); err != nil {
				s.logger.Warn("Failed to cancel superseded jobs", "elementId", element.ID, "error", err)
			}
			s.logger.Info("Element resubmitted", "elementId", element.ID, "testcase", testcase)
		}
		if err := s.messages.Release(ctx, up.ReplacedHash); err != nil {
			s.logger.Warn("Failed to release replaced message", "hash", up.ReplacedHash, "error", err)
		}
	}

	if err := s.enqueue(ctx, batch, element); err != nil {
		// reconciliation enqueues elements left without a job
		s.logger.Warn("Failed to enqueue comparison", "elementId", element.ID, "error", err)
	}
	return element, nil
}

// enqueue compares the element against the baseline captured by its batch
func (s *BatchService) enqueue(ctx context.Context, batch *domain.Batch, element *domain.Element) error {
	ref, err := s.resolver.ResolveIn(ctx, batch.CapturedBaselineID, element.Testcase)
	if err != nil {
		return err
	}
	_, err = s.queue.Enqueue(ctx, domain.EnqueueRequest{
		BatchID:            batch.ID,
		SubmittedElementID: element.ID,
		SubmittedHash:      element.MessageHash,
		Baseline:           ref,
	})
	return err
}

func (s *BatchService) RequestSeal(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	batch, changed, err := s.batchRepo.TransitionBatch(ctx, batchID,
		[]domain.BatchState{domain.BatchStateOpen}, domain.BatchStateSealing, s.now())
	if err != nil {
		if errors.Is(err, errs.BatchNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to request seal", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to request seal: %w", err)
	}
	if !changed {
		if batch.State == domain.BatchStateRemoved {
			return nil, fmt.Errorf("%w: batch %s is removed", errs.InvalidTransition, batchID)
		}
		return batch, nil
	}

	s.logger.Info("Seal requested", "batchId", batchID, "version", batch.Version)
	if suite, err := s.getSuite(ctx, batch.SuiteID); err != nil {
		s.logger.Warn("Failed to load suite for cache invalidation", "batchId", batchID, "error", err)
	} else {
		s.invalidate(ctx, suite)
	}
	if err := s.CheckDrain(ctx, batchID); err != nil {
		s.logger.Warn("Failed to check drain", "batchId", batchID, "error", err)
	}
	return s.GetBatch(ctx, batchID)
}

func (s *BatchService) CheckDrain(ctx context.Context, batchID uuid.UUID) error {
	batch, err := s.batchRepo.GetBatch(ctx, batchID)
	if err != nil {
		s.logger.Error("Failed to get batch", "batchId", batchID, "error", err)
		return fmt.Errorf("failed to get batch: %w", err)
	}
	if batch == nil || batch.State != domain.BatchStateSealing {
		return nil
	}

	pending, err := s.batchRepo.CountUndrained(ctx, batchID)
	if err != nil {
		s.logger.Error("Failed to count undrained elements", "batchId", batchID, "error", err)
		return fmt.Errorf("failed to count undrained elements: %w", err)
	}
	if pending > 0 {
		s.logger.Debug("Batch still draining", "batchId", batchID, "pending", pending)
		return nil
	}

	sealed, changed, err := s.batchRepo.TransitionBatch(ctx, batchID,
		[]domain.BatchState{domain.BatchStateSealing}, domain.BatchStateSealed, s.now())
	if err != nil {
		s.logger.Error("Failed to seal batch", "batchId", batchID, "error", err)
		return fmt.Errorf("failed to seal batch: %w", err)
	}
	if !changed {
		return nil
	}

	suite, err := s.getSuite(ctx, sealed.SuiteID)
	if err != nil {
		return err
	}
	s.logger.Info("Batch sealed", "suite", suite.Slug, "version", sealed.Version, "batchId", sealed.ID)
	s.emit(ctx, suite, domain.EventBatchSealed, sealed, nil)
	s.invalidate(ctx, suite)

	return s.afterSeal(ctx, suite, sealed)
}

func (s *BatchService) OnJobTerminal(ctx context.Context, j *domain.Job) {
	if j.Status == domain.JobStatusSucceeded && j.ResultKey != nil {
		s.reportRegression(ctx, j)
	}
	if err := s.CheckDrain(ctx, j.BatchID); err != nil {
		s.logger.Warn("Failed to check drain", "batchId", j.BatchID, "jobId", j.ID, "error", err)
	}
}

func (s *BatchService) reportRegression(ctx context.Context, j *domain.Job) {
	result, err := s.jobRepo.GetResult(ctx, *j.ResultKey)
	if err != nil || result == nil || result.Verdict != domain.VerdictFail {
		return
	}
	element, err := s.batchRepo.GetElement(ctx, j.SubmittedElementID)
	if err != nil || element == nil {
		return
	}
	batch, err := s.batchRepo.GetBatch(ctx, j.BatchID)
	if err != nil || batch == nil {
		return
	}
	suite, err := s.getSuite(ctx, batch.SuiteID)
	if err != nil {
		return
	}
	s.emit(ctx, suite, domain.EventElementRegression, batch, element)
}

func (s *BatchService) getSuite(ctx context.Context, suiteID uuid.UUID) (*domain.Suite, error) {
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

func (s *BatchService) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	batch, err := s.batchRepo.GetBatch(ctx, batchID)
	if err != nil {
		s.logger.Error("Failed to get batch", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	if batch == nil {
		return nil, errs.BatchNotFound
	}
	return batch, nil
}

func (s *BatchService) ListBatches(ctx context.Context, suiteID uuid.UUID) ([]*domain.Batch, error) {
	batches, err := s.batchRepo.ListBatches(ctx, suiteID)
	if err != nil {
		s.logger.Error("Failed to list batches", "suiteId", suiteID, "error", err)
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

func (s *BatchService) ListElements(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	elements, err := s.batchRepo.ListElements(ctx, batchID)
	if err != nil {
		s.logger.Error("Failed to list elements", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to list elements: %w", err)
	}
	return elements, nil
}
