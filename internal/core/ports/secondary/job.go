package secondary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// JobRepository persists comparison jobs and their results. Every state
// change is a single conditional write so concurrent workers cannot lose
// updates.
type JobRepository interface {
	// CreateJob inserts job unless a queued, running or succeeded job with
	// the same dedupe key exists, in which case that job is returned and
	// created is false
	CreateJob(ctx context.Context, job *domain.Job) (existing *domain.Job, created bool, err error)

	// GetJob retrieves a job by ID
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// ClaimJob moves the oldest available queued job to running under a new lease
	ClaimJob(ctx context.Context, owner string, lease time.Duration, now time.Time) (*domain.Job, error)

	// CompleteJob saves result and marks the job succeeded if the lease is still held
	CompleteJob(ctx context.Context, lease domain.Lease, result *domain.ComparisonResult, now time.Time) (*domain.Job, error)

	// RetryJob puts a running job back to queued, available at availableAt
	RetryJob(ctx context.Context, lease domain.Lease, lastError string, availableAt time.Time) (*domain.Job, error)

	// FailJob marks a running job failed
	FailJob(ctx context.Context, lease domain.Lease, lastError string, class domain.ErrorClass, now time.Time) (*domain.Job, error)

	// CancelBatchJobs cancels all non-terminal jobs of a batch
	CancelBatchJobs(ctx context.Context, batchID uuid.UUID, now time.Time) ([]*domain.Job, error)

	// CancelElementJobs cancels non-terminal jobs of an element whose content is not keepHash
	CancelElementJobs(ctx context.Context, elementID uuid.UUID, keepHash string, now time.Time) ([]*domain.Job, error)

	// ReclaimExpired re-queues running jobs whose lease expired, or fails
	// them once their attempts are exhausted
	ReclaimExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error)

	// LatestJobForElement returns the newest non-cancelled job for the element content
	LatestJobForElement(ctx context.Context, elementID uuid.UUID, submittedHash string) (*domain.Job, error)

	// ListJobsByBatch retrieves all jobs of a batch
	ListJobsByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error)

	// DeleteBatchJobs deletes the terminal jobs of a batch and the results no other job references
	DeleteBatchJobs(ctx context.Context, batchID uuid.UUID) error

	// GetResult retrieves a comparison result by key
	GetResult(ctx context.Context, key string) (*domain.ComparisonResult, error)

	// GetResults retrieves comparison results by keys
	GetResults(ctx context.Context, keys []string) (map[string]*domain.ComparisonResult, error)
}
