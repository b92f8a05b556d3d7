package job

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// IJobQueue is the durable comparison job queue
type IJobQueue interface {
	// Enqueue creates a job for the pair, or returns the live or succeeded
	// job already covering it with Duplicate set
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.EnqueueOutcome, error)

	// Claim leases the oldest available job to workerID, nil when idle
	Claim(ctx context.Context, workerID string) (*domain.Job, error)

	// Complete stores the result of a job still leased by the caller
	Complete(ctx context.Context, job *domain.Job, result *domain.ComparisonResult) (*domain.Job, error)

	// Fail retries the job with backoff or marks it failed
	Fail(ctx context.Context, job *domain.Job, cause error) (*domain.Job, error)

	// Cancel cancels every non-terminal job of a batch
	Cancel(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error)

	// CancelElement cancels jobs comparing content other than keepHash
	CancelElement(ctx context.Context, elementID uuid.UUID, keepHash string) ([]*domain.Job, error)

	// ReclaimExpired recovers jobs whose worker stopped renewing the lease
	ReclaimExpired(ctx context.Context, limit int) ([]*domain.Job, error)

	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	ListJobs(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error)

	// ResultKey addresses the result of comparing the two messages
	ResultKey(submittedHash string, baselineHash *string) string
}

// MessageRefs is the part of the message store the queue needs to keep the
// compared messages alive while a job is pending
type MessageRefs interface {
	Acquire(ctx context.Context, hash string) error
	Release(ctx context.Context, hash string) error
}
