package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ IJobQueue = (*JobQueue)(nil)

const noBaseline = "none"

// JobQueue implements IJobQueue on top of a JobRepository. Every job holds a
// reference on the messages it compares until it reaches a terminal status.
type JobQueue struct {
	jobRepo          secondary.JobRepository
	refs             MessageRefs
	hasher           primary.Hasher
	cfg              config.QueueCfg
	logger           primary.Logger
	now              func() time.Time
	workerNotifier   func()
	terminalNotifier func(ctx context.Context, job *domain.Job)
}

func NewJobQueue(
	jobRepo secondary.JobRepository,
	refs MessageRefs,
	hasher primary.Hasher,
	cfg *config.QueueCfg,
	logger primary.Logger,
) *JobQueue {
	return &JobQueue{
		jobRepo: jobRepo,
		refs:    refs,
		hasher:  hasher,
		cfg:     *cfg,
		logger:  logger,
		now:     time.Now,
		// Default no-op notifiers
		workerNotifier:   func() {},
		terminalNotifier: func(ctx context.Context, job *domain.Job) {},
	}
}

// SetWorkerNotifier sets the function to call when jobs become available
func (s *JobQueue) SetWorkerNotifier(notifier func()) {
	if notifier != nil {
		s.workerNotifier = notifier
	}
}

// SetTerminalNotifier sets the function called after a job reaches a
// terminal status. It runs synchronously on the caller's goroutine.
func (s *JobQueue) SetTerminalNotifier(notifier func(ctx context.Context, job *domain.Job)) {
	if notifier != nil {
		s.terminalNotifier = notifier
	}
}

// SetClock replaces the time source
func (s *JobQueue) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *JobQueue) ResultKey(submittedHash string, baselineHash *string) string {
	base := noBaseline
	if baselineHash != nil {
		base = *baselineHash
	}
	return s.hasher.Sum(primary.HashResult, []byte(submittedHash), []byte(base))
}

func (s *JobQueue) dedupeKey(req domain.EnqueueRequest) string {
	baseElement, baseHash := []byte(noBaseline), []byte(noBaseline)
	if req.Baseline != nil {
		baseElement = req.Baseline.ElementID[:]
		baseHash = []byte(req.Baseline.MessageHash)
	}
	return s.hasher.Sum(primary.HashDedupe,
		req.SubmittedElementID[:],
		baseElement,
		[]byte(req.SubmittedHash),
		baseHash,
	)
}

func jobHashes(job *domain.Job) []string {
	hashes := []string{job.SubmittedHash}
	if job.BaselineHash != nil {
		hashes = append(hashes, *job.BaselineHash)
	}
	return hashes
}

func (s *JobQueue) acquire(ctx context.Context, hashes []string) error {
	for i, hash := range hashes {
		if err := s.refs.Acquire(ctx, hash); err != nil {
			s.release(ctx, hashes[:i])
			return err
		}
	}
	return nil
}

func (s *JobQueue) release(ctx context.Context, hashes []string) {
	for _, hash := range hashes {
		if err := s.refs.Release(ctx, hash); err != nil {
			s.logger.Warn("Failed to release message reference", "hash", hash, "error", err)
		}
	}
}

// finished runs the terminal side effects of a job exactly once per transition
func (s *JobQueue) finished(ctx context.Context, job *domain.Job) {
	s.release(ctx, jobHashes(job))
	s.terminalNotifier(ctx, job)
}

func (s *JobQueue) wake() {
	// Notify workers asynchronously to avoid blocking the caller
	go s.workerNotifier()
}

func (s *JobQueue) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.EnqueueOutcome, error) {
	now := s.now()
	job := &domain.Job{
		ID:                 uuid.New(),
		BatchID:            req.BatchID,
		SubmittedElementID: req.SubmittedElementID,
		SubmittedHash:      req.SubmittedHash,
		DedupeKey:          s.dedupeKey(req),
		Status:             domain.JobStatusQueued,
		MaxAttempts:        s.cfg.MaxAttempts,
		AvailableAt:        now,
		CreatedAt:          now,
	}
	if req.Baseline != nil {
		elementID := req.Baseline.ElementID
		hash := req.Baseline.MessageHash
		job.BaselineElementID = &elementID
		job.BaselineHash = &hash
	}

	resultKey := s.ResultKey(job.SubmittedHash, job.BaselineHash)
	cached, err := s.jobRepo.GetResult(ctx, resultKey)
	if err != nil {
		s.logger.Error("Failed to look up cached result", "resultKey", resultKey, "error", err)
		return nil, fmt.Errorf("failed to look up cached result: %w", err)
	}
	if cached != nil {
		job.Status = domain.JobStatusSucceeded
		job.ResultKey = &resultKey
		job.CompletedAt = &now
	}

	hashes := jobHashes(job)
	if err := s.acquire(ctx, hashes); err != nil {
		s.logger.Error("Failed to acquire compared messages", "elementId", req.SubmittedElementID, "error", err)
		return nil, errs.Transient(fmt.Errorf("failed to acquire compared messages: %w", err))
	}

	stored, created, err := s.jobRepo.CreateJob(ctx, job)
	if err != nil {
		s.release(ctx, hashes)
		s.logger.Error("Failed to create job", "elementId", req.SubmittedElementID, "error", err)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if !created {
		s.release(ctx, hashes)
		s.logger.Debug("Duplicate comparison ignored",
			"jobId", stored.ID,
			"elementId", req.SubmittedElementID,
			"status", stored.Status)
		return &domain.EnqueueOutcome{Job: stored, Duplicate: true}, nil
	}

	if stored.Status == domain.JobStatusSucceeded {
		s.logger.Debug("Job satisfied by cached result", "jobId", stored.ID, "resultKey", resultKey)
		s.finished(ctx, stored)
		return &domain.EnqueueOutcome{Job: stored}, nil
	}

	s.logger.Info("Job enqueued", "jobId", stored.ID, "batchId", stored.BatchID, "elementId", stored.SubmittedElementID)
	s.wake()
	return &domain.EnqueueOutcome{Job: stored}, nil
}

func (s *JobQueue) Claim(ctx context.Context, workerID string) (*domain.Job, error) {
	job, err := s.jobRepo.ClaimJob(ctx, workerID, s.cfg.LeaseDuration, s.now())
	if err != nil {
		s.logger.Error("Failed to claim job", "workerId", workerID, "error", err)
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if job != nil {
		s.logger.Debug("Job claimed", "jobId", job.ID, "workerId", workerID, "attempt", job.Attempts)
	}
	return job, nil
}

func (s *JobQueue) Complete(ctx context.Context, job *domain.Job, result *domain.ComparisonResult) (*domain.Job, error) {
	stored := *result
	stored.Key = s.ResultKey(job.SubmittedHash, job.BaselineHash)
	stored.SubmittedHash = job.SubmittedHash
	stored.BaselineHash = job.BaselineHash
	stored.CreatedAt = s.now()

	done, err := s.jobRepo.CompleteJob(ctx, job.Lease(), &stored, s.now())
	if err != nil {
		if discarded(err) {
			s.logger.Info("Discarding result", "jobId", job.ID, "reason", err)
			return nil, err
		}
		s.logger.Error("Failed to complete job", "jobId", job.ID, "error", err)
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}

	s.logger.Info("Job succeeded", "jobId", done.ID, "verdict", result.Verdict, "score", result.Score)
	s.finished(ctx, done)
	return done, nil
}

// Backoff returns the delay before the next attempt after attempts tries
func (s *JobQueue) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := s.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= s.cfg.BackoffMax {
			return s.cfg.BackoffMax
		}
	}
	if delay > s.cfg.BackoffMax {
		return s.cfg.BackoffMax
	}
	return delay
}

func (s *JobQueue) Fail(ctx context.Context, job *domain.Job, cause error) (*domain.Job, error) {
	now := s.now()
	msg := cause.Error()

	if errs.IsTransient(cause) && job.Attempts < job.MaxAttempts {
		availableAt := now.Add(s.Backoff(job.Attempts))
		retried, err := s.jobRepo.RetryJob(ctx, job.Lease(), msg, availableAt)
		if err != nil {
			return nil, s.leaseError(job, "retry", err)
		}
		s.logger.Warn("Job failed, retrying",
			"jobId", job.ID,
			"attempt", job.Attempts,
			"availableAt", availableAt,
			"error", cause)
		return retried, nil
	}

	class := domain.ErrorClass(errs.ClassOf(cause))
	failed, err := s.jobRepo.FailJob(ctx, job.Lease(), msg, class, now)
	if err != nil {
		return nil, s.leaseError(job, "fail", err)
	}
	s.logger.Error("Job failed", "jobId", job.ID, "attempts", job.Attempts, "class", class, "error", cause)
	s.finished(ctx, failed)
	return failed, nil
}

// discarded reports whether err means the caller no longer holds the job
func discarded(err error) bool {
	return errors.Is(err, errs.JobCancelled) || errors.Is(err, errs.LeaseLost) || errors.Is(err, errs.JobNotFound)
}

func (s *JobQueue) leaseError(job *domain.Job, op string, err error) error {
	if discarded(err) {
		s.logger.Info("Job no longer held", "jobId", job.ID, "op", op, "reason", err)
		return err
	}
	s.logger.Error("Failed to "+op+" job", "jobId", job.ID, "error", err)
	return fmt.Errorf("failed to %s job: %w", op, err)
}

func (s *JobQueue) Cancel(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error) {
	cancelled, err := s.jobRepo.CancelBatchJobs(ctx, batchID, s.now())
	if err != nil {
		s.logger.Error("Failed to cancel batch jobs", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to cancel batch jobs: %w", err)
	}
	for _, job := range cancelled {
		s.finished(ctx, job)
	}
	if len(cancelled) > 0 {
		s.logger.Info("Jobs cancelled", "batchId", batchID, "count", len(cancelled))
	}
	return cancelled, nil
}

func (s *JobQueue) CancelElement(ctx context.Context, elementID uuid.UUID, keepHash string) ([]*domain.Job, error) {
	cancelled, err := s.jobRepo.CancelElementJobs(ctx, elementID, keepHash, s.now())
	if err != nil {
		s.logger.Error("Failed to cancel element jobs", "elementId", elementID, "error", err)
		return nil, fmt.Errorf("failed to cancel element jobs: %w", err)
	}
	for _, job := range cancelled {
		s.finished(ctx, job)
	}
	return cancelled, nil
}

func (s *JobQueue) ReclaimExpired(ctx context.Context, limit int) ([]*domain.Job, error) {
	reclaimed, err := s.jobRepo.ReclaimExpired(ctx, s.now(), limit)
	if err != nil {
		s.logger.Error("Failed to reclaim expired jobs", "error", err)
		return nil, fmt.Errorf("failed to reclaim expired jobs: %w", err)
	}

	requeued := 0
	for _, job := range reclaimed {
		if job.Status.Terminal() {
			s.logger.Warn("Job failed after lease expiry", "jobId", job.ID, "attempts", job.Attempts)
			s.finished(ctx, job)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		s.logger.Info("Expired jobs re-queued", "count", requeued)
		s.wake()
	}
	return reclaimed, nil
}

func (s *JobQueue) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobRepo.GetJob(ctx, jobID)
	if err != nil {
		s.logger.Error("Failed to get job", "jobId", jobID, "error", err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *JobQueue) ListJobs(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error) {
	jobs, err := s.jobRepo.ListJobsByBatch(ctx, batchID)
	if err != nil {
		s.logger.Error("Failed to list jobs", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
