// Package batchrepository implements the batch repository with PostgreSQL.
// Operations touching the suite baseline lock the suite row before any of its
// batches so concurrent promotions, removals and batch creation serialize per
// suite without deadlocking.
package batchrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/baseline-2025.net/internal/adapter/postgres"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ secondary.BatchRepository = (*BatchRepository)(nil)

const (
	batchColumns = `id, suite_id, version, state, submitted_at, seal_requested_at, sealed_at,
		promoted, promote_requested, captured_baseline_id`
	elementColumns   = `id, batch_id, suite_id, testcase, message_hash, submitted_at`
	promotionColumns = `id, suite_id, batch_id, previous_batch_id, rule, reason, actor, created_at`
)

type BatchRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

func NewBatchRepository(db *sqlx.DB, logger primary.Logger) *BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

func getBatch(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*domain.Batch, error) {
	var b domain.Batch
	if err := sqlx.GetContext(ctx, q, &b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// lockSuite takes the suite row lock and returns its baseline pointer
func lockSuite(ctx context.Context, tx *sqlx.Tx, suiteID uuid.UUID) (*domain.Suite, error) {
	var s domain.Suite
	err := tx.GetContext(ctx, &s, `
		SELECT id, team_slug, slug, name, baseline_batch_id, baseline_version, created_at
		FROM suites WHERE id = $1 FOR UPDATE`, suiteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.SuiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock suite: %w", err)
	}
	return &s, nil
}

func (r *BatchRepository) OpenBatch(ctx context.Context, suiteID uuid.UUID, version string, now time.Time) (*domain.OpenedBatch, error) {
	var opened *domain.OpenedBatch
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		suite, err := lockSuite(ctx, tx, suiteID)
		if err != nil {
			return err
		}

		existing, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE suite_id = $1 AND version = $2`, suiteID, version)
		if err != nil {
			return fmt.Errorf("get batch by version: %w", err)
		}
		if existing != nil {
			if existing.State != domain.BatchStateOpen {
				return fmt.Errorf("%w: version %s is %s", errs.BatchNotOpen, version, existing.State)
			}
			opened = &domain.OpenedBatch{Batch: existing}
			return nil
		}

		sealing := make([]*domain.Batch, 0)
		if err := tx.SelectContext(ctx, &sealing, `
			UPDATE batches SET state = $3, seal_requested_at = $4
			WHERE suite_id = $1 AND state = $2
			RETURNING `+batchColumns,
			suiteID, domain.BatchStateOpen, domain.BatchStateSealing, now); err != nil {
			return fmt.Errorf("seal previous batches: %w", err)
		}

		batch := &domain.Batch{
			ID:                 uuid.New(),
			SuiteID:            suiteID,
			Version:            version,
			State:              domain.BatchStateOpen,
			SubmittedAt:        now,
			CapturedBaselineID: suite.BaselineBatchID,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO batches (id, suite_id, version, state, submitted_at, captured_baseline_id)
			VALUES (:id, :suite_id, :version, :state, :submitted_at, :captured_baseline_id)`, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		opened = &domain.OpenedBatch{Batch: batch, Created: true, Sealing: sealing}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.SuiteNotFound) || errors.Is(err, errs.BatchNotOpen) {
			return nil, err
		}
		r.logger.Error("Failed to open batch", "suiteId", suiteID, "version", version, "error", err)
		return nil, fmt.Errorf("failed to open batch: %w", err)
	}
	return opened, nil
}

func (r *BatchRepository) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	b, err := getBatch(ctx, r.db, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, batchID)
	if err != nil {
		r.logger.Error("Failed to get batch", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

func (r *BatchRepository) GetBatchByVersion(ctx context.Context, suiteID uuid.UUID, version string) (*domain.Batch, error) {
	b, err := getBatch(ctx, r.db, `SELECT `+batchColumns+` FROM batches WHERE suite_id = $1 AND version = $2`, suiteID, version)
	if err != nil {
		r.logger.Error("Failed to get batch by version", "suiteId", suiteID, "version", version, "error", err)
		return nil, fmt.Errorf("failed to get batch by version: %w", err)
	}
	return b, nil
}

func (r *BatchRepository) ListBatches(ctx context.Context, suiteID uuid.UUID) ([]*domain.Batch, error) {
	batches := make([]*domain.Batch, 0)
	if err := r.db.SelectContext(ctx, &batches, `SELECT `+batchColumns+` FROM batches WHERE suite_id = $1 ORDER BY seq DESC`, suiteID); err != nil {
		r.logger.Error("Failed to list batches", "suiteId", suiteID, "error", err)
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

func (r *BatchRepository) ListBatchesByState(ctx context.Context, state domain.BatchState, limit int) ([]*domain.Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	batches := make([]*domain.Batch, 0)
	if err := r.db.SelectContext(ctx, &batches, `SELECT `+batchColumns+` FROM batches WHERE state = $1 ORDER BY seq LIMIT $2`, state, limit); err != nil {
		r.logger.Error("Failed to list batches by state", "state", state, "error", err)
		return nil, fmt.Errorf("failed to list batches by state: %w", err)
	}
	return batches, nil
}

func (r *BatchRepository) TransitionBatch(ctx context.Context, batchID uuid.UUID, from []domain.BatchState, to domain.BatchState, now time.Time) (*domain.Batch, bool, error) {
	var (
		out     *domain.Batch
		changed bool
	)
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		b, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, batchID)
		if err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}
		if b == nil {
			return errs.BatchNotFound
		}
		out = b
		matched := false
		for _, st := range from {
			if b.State == st {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
		if !b.State.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", errs.InvalidTransition, b.State, to)
		}

		query := `UPDATE batches SET state = $2 WHERE id = $1 RETURNING ` + batchColumns
		switch to {
		case domain.BatchStateSealing:
			query = `UPDATE batches SET state = $2, seal_requested_at = $3 WHERE id = $1 RETURNING ` + batchColumns
		case domain.BatchStateSealed:
			query = `UPDATE batches SET state = $2, sealed_at = $3, seal_requested_at = COALESCE(seal_requested_at, $3)
				WHERE id = $1 RETURNING ` + batchColumns
		}
		args := []interface{}{batchID, to}
		if to == domain.BatchStateSealing || to == domain.BatchStateSealed {
			args = append(args, now)
		}
		updated, err := getBatch(ctx, tx, query, args...)
		if err != nil {
			return fmt.Errorf("update batch state: %w", err)
		}
		out, changed = updated, true
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.BatchNotFound) || errors.Is(err, errs.InvalidTransition) {
			return nil, false, err
		}
		r.logger.Error("Failed to transition batch", "batchId", batchID, "to", to, "error", err)
		return nil, false, fmt.Errorf("failed to transition batch: %w", err)
	}
	return out, changed, nil
}

// ArchiveBatch archives a sealed or promoted batch under the suite lock so a
// concurrent promotion cannot make it the baseline in between
func (r *BatchRepository) ArchiveBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, bool, error) {
	var (
		out     *domain.Batch
		changed bool
	)
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, batchID)
		if err != nil {
			return fmt.Errorf("get batch: %w", err)
		}
		if current == nil {
			return errs.BatchNotFound
		}
		suite, err := lockSuite(ctx, tx, current.SuiteID)
		if err != nil {
			return err
		}
		b, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, batchID)
		if err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}
		if b == nil {
			return errs.BatchNotFound
		}
		out = b
		if b.State == domain.BatchStateArchived {
			return nil
		}
		if suite.BaselineBatchID != nil && *suite.BaselineBatchID == batchID {
			return fmt.Errorf("%w: batch %s is the suite baseline", errs.InvalidTransition, b.Version)
		}
		if !b.State.CanTransition(domain.BatchStateArchived) {
			return fmt.Errorf("%w: cannot archive %s batch", errs.InvalidTransition, b.State)
		}
		updated, err := getBatch(ctx, tx, `UPDATE batches SET state = $2 WHERE id = $1 RETURNING `+batchColumns,
			batchID, domain.BatchStateArchived)
		if err != nil {
			return fmt.Errorf("archive batch: %w", err)
		}
		out, changed = updated, true
		return nil
	})
	if err != nil {
		if isStateError(err) {
			return nil, false, err
		}
		r.logger.Error("Failed to archive batch", "batchId", batchID, "error", err)
		return nil, false, fmt.Errorf("failed to archive batch: %w", err)
	}
	return out, changed, nil
}

func (r *BatchRepository) RequestPromotion(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	if _, err := r.db.ExecContext(ctx, `UPDATE batches SET promote_requested = TRUE WHERE id = $1 AND state = $2`,
		batchID, domain.BatchStateSealing); err != nil {
		r.logger.Error("Failed to flag promotion", "batchId", batchID, "error", err)
		return nil, fmt.Errorf("failed to flag promotion: %w", err)
	}
	b, err := r.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errs.BatchNotFound
	}
	return b, nil
}

// applyBaseline writes the suite baseline pointer. The suite row must be locked.
func applyBaseline(ctx context.Context, tx *sqlx.Tx, suite *domain.Suite, change domain.BaselineChange) error {
	if suite.BaselineVersion != change.ExpectedVersion {
		return fmt.Errorf("%w: suite %s baseline version %d, expected %d",
			errs.ConcurrentUpdate, suite.ID, suite.BaselineVersion, change.ExpectedVersion)
	}
	if change.NewBaseline != nil {
		b, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, *change.NewBaseline)
		if err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}
		if b == nil {
			return errs.BatchNotFound
		}
		if b.State != domain.BatchStateSealed && b.State != domain.BatchStatePromoted {
			return fmt.Errorf("%w: cannot promote %s batch", errs.InvalidTransition, b.State)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE batches SET state = $2, promoted = TRUE, promote_requested = FALSE WHERE id = $1`,
			b.ID, domain.BatchStatePromoted); err != nil {
			return fmt.Errorf("mark batch promoted: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE suites SET baseline_batch_id = $2, baseline_version = baseline_version + 1 WHERE id = $1`,
		suite.ID, change.NewBaseline); err != nil {
		return fmt.Errorf("update suite baseline: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO promotions (`+promotionColumns+`)
		VALUES (:id, :suite_id, :batch_id, :previous_batch_id, :rule, :reason, :actor, :created_at)`,
		change.Record); err != nil {
		return fmt.Errorf("insert promotion record: %w", err)
	}
	return nil
}

func isStateError(err error) bool {
	return errors.Is(err, errs.ConcurrentUpdate) ||
		errors.Is(err, errs.InvalidTransition) ||
		errors.Is(err, errs.BatchNotFound) ||
		errors.Is(err, errs.SuiteNotFound) ||
		errors.Is(err, errs.BaselineMisconfiguration)
}

func (r *BatchRepository) PromoteBatch(ctx context.Context, batchID uuid.UUID, change domain.BaselineChange) error {
	change.NewBaseline = &batchID
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		suite, err := lockSuite(ctx, tx, change.SuiteID)
		if err != nil {
			return err
		}
		return applyBaseline(ctx, tx, suite, change)
	})
	if err != nil {
		if isStateError(err) {
			return err
		}
		r.logger.Error("Failed to promote batch", "batchId", batchID, "error", err)
		return fmt.Errorf("failed to promote batch: %w", err)
	}
	return nil
}

func (r *BatchRepository) MarkRemoved(ctx context.Context, removal domain.Removal) (*domain.Batch, error) {
	current, err := r.GetBatch(ctx, removal.BatchID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errs.BatchNotFound
	}

	var out *domain.Batch
	err = postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		suite, err := lockSuite(ctx, tx, current.SuiteID)
		if err != nil {
			return err
		}
		b, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, removal.BatchID)
		if err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}
		if b == nil {
			return errs.BatchNotFound
		}
		if b.State == domain.BatchStateRemoved {
			out = b
			return nil
		}

		if !removal.Force {
			var dependent []string
			if err := tx.SelectContext(ctx, &dependent, `
				SELECT version FROM batches
				WHERE suite_id = $1 AND id <> $2 AND state = $3 AND captured_baseline_id = $2
				LIMIT 1`, b.SuiteID, b.ID, domain.BatchStateOpen); err != nil {
				return fmt.Errorf("check dependent batches: %w", err)
			}
			if len(dependent) > 0 {
				return fmt.Errorf("%w: open batch %s compares against %s", errs.BaselineMisconfiguration, dependent[0], b.Version)
			}
		}

		isBaseline := suite.BaselineBatchID != nil && *suite.BaselineBatchID == b.ID
		if isBaseline != (removal.Baseline != nil) {
			return fmt.Errorf("%w: baseline of suite changed", errs.ConcurrentUpdate)
		}
		if removal.Baseline != nil {
			if err := applyBaseline(ctx, tx, suite, *removal.Baseline); err != nil {
				return err
			}
		}

		out, err = getBatch(ctx, tx, `UPDATE batches SET state = $2 WHERE id = $1 RETURNING `+batchColumns,
			b.ID, domain.BatchStateRemoved)
		if err != nil {
			return fmt.Errorf("mark batch removed: %w", err)
		}
		return nil
	})
	if err != nil {
		if isStateError(err) {
			return nil, err
		}
		r.logger.Error("Failed to mark batch removed", "batchId", removal.BatchID, "error", err)
		return nil, fmt.Errorf("failed to mark batch removed: %w", err)
	}
	return out, nil
}

func (r *BatchRepository) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		b, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, batchID)
		if err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}
		if b == nil {
			return nil
		}
		if b.State != domain.BatchStateRemoved {
			return fmt.Errorf("%w: batch %s is %s", errs.InvalidTransition, batchID, b.State)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE batch_id = $1`, batchID); err != nil {
			return fmt.Errorf("delete elements: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, batchID); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.InvalidTransition) {
			return err
		}
		r.logger.Error("Failed to delete batch", "batchId", batchID, "error", err)
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return nil
}

// Elements

func getElement(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*domain.Element, error) {
	var e domain.Element
	if err := sqlx.GetContext(ctx, q, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *BatchRepository) UpsertElement(ctx context.Context, batchID uuid.UUID, testcase string, messageHash string, now time.Time) (*domain.ElementUpsert, error) {
	var out *domain.ElementUpsert
	err := postgres.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// shares the row with other submissions, conflicts with sealing
		b, err := getBatch(ctx, tx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR SHARE`, batchID)
		if err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}
		if b == nil {
			return errs.BatchNotFound
		}
		if b.State != domain.BatchStateOpen {
			return fmt.Errorf("%w: batch %s is %s", errs.BatchNotOpen, b.Version, b.State)
		}

		inserted, err := getElement(ctx, tx, `
			INSERT INTO elements (id, batch_id, suite_id, testcase, message_hash, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (batch_id, testcase) DO NOTHING
			RETURNING `+elementColumns,
			uuid.New(), batchID, b.SuiteID, testcase, messageHash, now)
		if err != nil {
			return fmt.Errorf("insert element: %w", err)
		}
		if inserted != nil {
			out = &domain.ElementUpsert{Element: inserted}
			return nil
		}

		existing, err := getElement(ctx, tx, `SELECT `+elementColumns+` FROM elements
			WHERE batch_id = $1 AND testcase = $2 FOR UPDATE`, batchID, testcase)
		if err != nil || existing == nil {
			return fmt.Errorf("lock element: %w", err)
		}
		updated, err := getElement(ctx, tx, `UPDATE elements SET message_hash = $2, submitted_at = $3
			WHERE id = $1 RETURNING `+elementColumns, existing.ID, messageHash, now)
		if err != nil {
			return fmt.Errorf("update element: %w", err)
		}
		out = &domain.ElementUpsert{Element: updated, ReplacedHash: existing.MessageHash}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.BatchNotFound) || errors.Is(err, errs.BatchNotOpen) {
			return nil, err
		}
		r.logger.Error("Failed to upsert element", "batchId", batchID, "testcase", testcase, "error", err)
		return nil, fmt.Errorf("failed to upsert element: %w", err)
	}
	return out, nil
}

func (r *BatchRepository) GetElement(ctx context.Context, elementID uuid.UUID) (*domain.Element, error) {
	e, err := getElement(ctx, r.db, `SELECT `+elementColumns+` FROM elements WHERE id = $1`, elementID)
	if err != nil {
		r.logger.Error("Failed to get element", "elementId", elementID, "error", err)
		return nil, fmt.Errorf("failed to get element: %w", err)
	}
	return e, nil
}

func (r *BatchRepository) GetElementByTestcase(ctx context.Context, batchID uuid.UUID, testcase string) (*domain.Element, error) {
	e, err := getElement(ctx, r.db, `SELECT `+elementColumns+` FROM elements WHERE batch_id = $1 AND testcase = $2`, batchID, testcase)
	if err != nil {
		r.logger.Error("Failed to get element by testcase", "batchId", batchID, "testcase", testcase, "error", err)
		return nil, fmt.Errorf("failed to get element by testcase: %w", err)
	}
	return e, nil
}

func (r *BatchRepository) ListElements(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error) {
	return r.selectElements(ctx, "list elements", `SELECT `+elementColumns+` FROM elements WHERE batch_id = $1 ORDER BY testcase`, batchID)
}

func (r *BatchRepository) selectElements(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Element, error) {
	elements := make([]*domain.Element, 0)
	if err := r.db.SelectContext(ctx, &elements, query, args...); err != nil {
		r.logger.Error("Failed to "+op, "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return elements, nil
}

func (r *BatchRepository) DeleteElement(ctx context.Context, elementID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM elements e USING batches b
		WHERE e.id = $1 AND b.id = e.batch_id AND b.state = $2`, elementID, domain.BatchStateRemoved)
	if err != nil {
		r.logger.Error("Failed to delete element", "elementId", elementID, "error", err)
		return fmt.Errorf("failed to delete element: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		e, err := r.GetElement(ctx, elementID)
		if err != nil {
			return err
		}
		if e != nil {
			return fmt.Errorf("%w: batch of element %s is not removed", errs.InvalidTransition, elementID)
		}
	}
	return nil
}

func (r *BatchRepository) CountUndrained(ctx context.Context, batchID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM elements e
		WHERE e.batch_id = $1 AND NOT EXISTS (
			SELECT 1 FROM comparison_jobs j
			WHERE j.submitted_element_id = e.id AND j.submitted_hash = e.message_hash
			  AND j.status IN ('succeeded', 'failed'))`, batchID)
	if err != nil {
		r.logger.Error("Failed to count undrained elements", "batchId", batchID, "error", err)
		return 0, fmt.Errorf("failed to count undrained elements: %w", err)
	}
	return count, nil
}

func (r *BatchRepository) ListElementsWithoutJob(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error) {
	return r.selectElements(ctx, "list elements without job", `
		SELECT `+elementColumns+` FROM elements e
		WHERE e.batch_id = $1 AND NOT EXISTS (
			SELECT 1 FROM comparison_jobs j
			WHERE j.submitted_element_id = e.id AND j.submitted_hash = e.message_hash
			  AND j.status IN ('queued', 'running', 'succeeded', 'failed'))
		ORDER BY e.testcase`, batchID)
}

func (r *BatchRepository) ListPromotions(ctx context.Context, suiteID uuid.UUID) ([]*domain.PromotionRecord, error) {
	records := make([]*domain.PromotionRecord, 0)
	if err := r.db.SelectContext(ctx, &records, `SELECT `+promotionColumns+` FROM promotions WHERE suite_id = $1 ORDER BY seq DESC`, suiteID); err != nil {
		r.logger.Error("Failed to list promotions", "suiteId", suiteID, "error", err)
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	return records, nil
}
