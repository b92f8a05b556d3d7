// Package jobrepository contains the PostgreSQL implementation of the comparison job queue storage
package jobrepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/baseline-2025.net/internal/adapter/postgres"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ secondary.JobRepository = (*JobRepository)(nil)

var jobColumns = func() string {
	t := domain.GetJobTable()
	return strings.Join([]string{
		t.ID, t.BatchID, t.SubmittedElementID, t.BaselineElementID, t.SubmittedHash, t.BaselineHash,
		t.DedupeKey, t.Status, t.Attempts, t.MaxAttempts, t.LastError, t.ErrorClass, t.AvailableAt,
		t.LeaseOwner, t.LeaseToken, t.LeaseExpiresAt, t.ResultKey, t.CreatedAt, t.StartedAt, t.CompletedAt,
	}, ", ")
}()

// JobRepository implements the JobRepository interface with PostgreSQL
type JobRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

// NewJobRepository creates a new PostgreSQL job repository
func NewJobRepository(db *sqlx.DB, logger primary.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
	}
}

func getJob(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*domain.Job, error) {
	var j domain.Job
	if err := sqlx.GetContext(ctx, q, &j, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts the job unless the dedupe index already holds a live or succeeded job
func (r *JobRepository) CreateJob(ctx context.Context, job *domain.Job) (*domain.Job, bool, error) {
	insert, args, err := sqlx.Named(`
		INSERT INTO comparison_jobs (`+jobColumns+`)
		VALUES (:id, :batch_id, :submitted_element_id, :baseline_element_id, :submitted_hash, :baseline_hash,
			:dedupe_key, :status, :attempts, :max_attempts, :last_error, :error_class, :available_at,
			:lease_owner, :lease_token, :lease_expires_at, :result_key, :created_at, :started_at, :completed_at)
		ON CONFLICT (dedupe_key) WHERE status IN ('queued', 'running', 'succeeded') DO NOTHING
		RETURNING `+jobColumns, job)
	if err != nil {
		return nil, false, fmt.Errorf("failed to bind job insert: %w", err)
	}
	insert = r.db.Rebind(insert)

	// the conflicting job may leave the index between the insert and the lookup
	for attempt := 0; attempt < 3; attempt++ {
		created, err := getJob(ctx, r.db, insert, args...)
		if err != nil {
			r.logger.Error("Failed to create job", "jobId", job.ID, "error", err)
			return nil, false, fmt.Errorf("failed to create job: %w", err)
		}
		if created != nil {
			return created, true, nil
		}

		existing, err := getJob(ctx, r.db, `
			SELECT `+jobColumns+` FROM comparison_jobs
			WHERE dedupe_key = $1 AND status IN ('queued', 'running', 'succeeded')`, job.DedupeKey)
		if err != nil {
			r.logger.Error("Failed to get duplicate job", "dedupeKey", job.DedupeKey, "error", err)
			return nil, false, fmt.Errorf("failed to get duplicate job: %w", err)
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, fmt.Errorf("%w: dedupe key %s kept changing", errs.ConcurrentUpdate, job.DedupeKey)
}

// GetJob retrieves a job by ID
func (r *JobRepository) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	j, err := getJob(ctx, r.db, `SELECT `+jobColumns+` FROM comparison_jobs WHERE id = $1`, jobID)
	if err != nil {
		r.logger.Error("Failed to get job", "jobId", jobID, "error", err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ClaimJob leases the oldest available queued job. Concurrent claimers skip
// rows already locked by another claimer.
func (r *JobRepository) ClaimJob(ctx context.Context, owner string, lease time.Duration, now time.Time) (*domain.Job, error) {
	query := `
		UPDATE comparison_jobs
		SET status = 'running', attempts = attempts + 1,
			lease_owner = $1, lease_token = $2, lease_expires_at = $3, started_at = $4
		WHERE id = (
			SELECT id FROM comparison_jobs
			WHERE status = 'queued' AND available_at <= $4
			ORDER BY available_at, seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	j, err := getJob(ctx, r.db, query, owner, uuid.New(), now.Add(lease), now)
	if err != nil {
		r.logger.Error("Failed to claim job", "owner", owner, "error", err)
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return j, nil
}

// leaseError explains why a lease-conditional update matched no row
func (r *JobRepository) leaseError(ctx context.Context, q sqlx.QueryerContext, jobID uuid.UUID) error {
	var status domain.JobStatus
	err := sqlx.GetContext(ctx, q, &status, `SELECT status FROM comparison_jobs WHERE id = $1`, jobID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errs.JobNotFound
	case err != nil:
		return fmt.Errorf("failed to check job lease: %w", err)
	case status == domain.JobStatusCancelled:
		return errs.JobCancelled
	default:
		return errs.LeaseLost
	}
}

func (r *JobRepository) CompleteJob(ctx context.Context, lease domain.Lease, result *domain.ComparisonResult, now time.Time) (*domain.Job, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comparison result: %w", err)
	}

	var out *domain.Job
	err = postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comparison_results (key, body, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO NOTHING`, result.Key, body, result.CreatedAt); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		j, err := getJob(ctx, tx, `
			UPDATE comparison_jobs
			SET status = 'succeeded', result_key = $3, completed_at = $4,
				lease_owner = NULL, lease_token = NULL, lease_expires_at = NULL
			WHERE id = $1 AND status = 'running' AND lease_token = $2
			RETURNING `+jobColumns, lease.JobID, lease.Token, result.Key, now)
		if err != nil {
			return fmt.Errorf("mark job succeeded: %w", err)
		}
		if j == nil {
			return r.leaseError(ctx, tx, lease.JobID)
		}
		out = j
		return nil
	})
	if err != nil {
		if isLeaseErr(err) {
			return nil, err
		}
		r.logger.Error("Failed to complete job", "jobId", lease.JobID, "error", err)
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}
	return out, nil
}

func isLeaseErr(err error) bool {
	return errors.Is(err, errs.LeaseLost) || errors.Is(err, errs.JobCancelled) || errors.Is(err, errs.JobNotFound)
}

// updateLeased runs a lease-conditional update returning the job
func (r *JobRepository) updateLeased(ctx context.Context, op string, lease domain.Lease, set string, args ...interface{}) (*domain.Job, error) {
	query := `UPDATE comparison_jobs SET ` + set + `,
			lease_owner = NULL, lease_token = NULL, lease_expires_at = NULL
		WHERE id = $1 AND status = 'running' AND lease_token = $2
		RETURNING ` + jobColumns
	j, err := getJob(ctx, r.db, query, append([]interface{}{lease.JobID, lease.Token}, args...)...)
	if err != nil {
		r.logger.Error("Failed to "+op, "jobId", lease.JobID, "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	if j == nil {
		return nil, r.leaseError(ctx, r.db, lease.JobID)
	}
	return j, nil
}

func (r *JobRepository) RetryJob(ctx context.Context, lease domain.Lease, lastError string, availableAt time.Time) (*domain.Job, error) {
	return r.updateLeased(ctx, "retry job", lease,
		`status = 'queued', last_error = $3, error_class = $4, available_at = $5`,
		lastError, domain.ErrorClassTransient, availableAt)
}

func (r *JobRepository) FailJob(ctx context.Context, lease domain.Lease, lastError string, class domain.ErrorClass, now time.Time) (*domain.Job, error) {
	return r.updateLeased(ctx, "fail job", lease,
		`status = 'failed', last_error = $3, error_class = $4, completed_at = $5`,
		lastError, class, now)
}

func (r *JobRepository) selectJobs(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Job, error) {
	jobs := make([]*domain.Job, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.Error("Failed to "+op, "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return jobs, nil
}

func (r *JobRepository) CancelBatchJobs(ctx context.Context, batchID uuid.UUID, now time.Time) ([]*domain.Job, error) {
	return r.selectJobs(ctx, "cancel batch jobs", `
		UPDATE comparison_jobs SET status = 'cancelled', completed_at = $2
		WHERE batch_id = $1 AND status IN ('queued', 'running')
		RETURNING `+jobColumns, batchID, now)
}

func (r *JobRepository) CancelElementJobs(ctx context.Context, elementID uuid.UUID, keepHash string, now time.Time) ([]*domain.Job, error) {
	return r.selectJobs(ctx, "cancel element jobs", `
		UPDATE comparison_jobs SET status = 'cancelled', completed_at = $3
		WHERE submitted_element_id = $1 AND submitted_hash <> $2 AND status IN ('queued', 'running')
		RETURNING `+jobColumns, elementID, keepHash, now)
}

// ReclaimExpired requeues running jobs past their lease, failing those out of attempts
func (r *JobRepository) ReclaimExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	return r.selectJobs(ctx, "reclaim expired jobs", `
		UPDATE comparison_jobs
		SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'queued' END,
			completed_at = CASE WHEN attempts >= max_attempts THEN $1 ELSE completed_at END,
			available_at = CASE WHEN attempts >= max_attempts THEN available_at ELSE $1 END,
			last_error = 'lease expired', error_class = 'transient',
			lease_owner = NULL, lease_token = NULL, lease_expires_at = NULL
		WHERE id IN (
			SELECT id FROM comparison_jobs
			WHERE status = 'running' AND lease_expires_at < $1
			ORDER BY seq
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, now, limit)
}

func (r *JobRepository) LatestJobForElement(ctx context.Context, elementID uuid.UUID, submittedHash string) (*domain.Job, error) {
	j, err := getJob(ctx, r.db, `
		SELECT `+jobColumns+` FROM comparison_jobs
		WHERE submitted_element_id = $1 AND submitted_hash = $2 AND status <> 'cancelled'
		ORDER BY seq DESC
		LIMIT 1`, elementID, submittedHash)
	if err != nil {
		r.logger.Error("Failed to get latest element job", "elementId", elementID, "error", err)
		return nil, fmt.Errorf("failed to get latest element job: %w", err)
	}
	return j, nil
}

// ListJobsByBatch retrieves all jobs of a batch in creation order
func (r *JobRepository) ListJobsByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error) {
	return r.selectJobs(ctx, "list batch jobs",
		`SELECT `+jobColumns+` FROM comparison_jobs WHERE batch_id = $1 ORDER BY seq`, batchID)
}

func (r *JobRepository) DeleteBatchJobs(ctx context.Context, batchID uuid.UUID) error {
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var keys []sql.NullString
		if err := tx.SelectContext(ctx, &keys, `
			DELETE FROM comparison_jobs
			WHERE batch_id = $1 AND status IN ('succeeded', 'failed', 'cancelled')
			RETURNING result_key`, batchID); err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}

		orphaned := make([]string, 0, len(keys))
		for _, k := range keys {
			if k.Valid {
				orphaned = append(orphaned, k.String)
			}
		}
		if len(orphaned) == 0 {
			return nil
		}
		query, args, err := sqlx.In(`
			DELETE FROM comparison_results r
			WHERE r.key IN (?) AND NOT EXISTS (SELECT 1 FROM comparison_jobs j WHERE j.result_key = r.key)`, orphaned)
		if err != nil {
			return fmt.Errorf("build result delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete batch jobs", "batchId", batchID, "error", err)
		return fmt.Errorf("failed to delete batch jobs: %w", err)
	}
	return nil
}

func decodeResult(body []byte) (*domain.ComparisonResult, error) {
	var res domain.ComparisonResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal comparison result: %w", err)
	}
	return &res, nil
}

func (r *JobRepository) GetResult(ctx context.Context, key string) (*domain.ComparisonResult, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM comparison_results WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get result", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return decodeResult(body)
}

func (r *JobRepository) GetResults(ctx context.Context, keys []string) (map[string]*domain.ComparisonResult, error) {
	out := make(map[string]*domain.ComparisonResult, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT key, body FROM comparison_results WHERE key IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build result query: %w", err)
	}
	var rows []struct {
		Key  string `db:"key"`
		Body []byte `db:"body"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to get results", "error", err)
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	for _, row := range rows {
		res, err := decodeResult(row.Body)
		if err != nil {
			return nil, err
		}
		out[row.Key] = res
	}
	return out, nil
}
