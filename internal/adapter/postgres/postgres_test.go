package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/batchrepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/blobrepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/jobrepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/messagerepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/suiterepository"
	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

const migrationsDir = "../../../db/migrations"

func TestMigrationFiles(t *testing.T) {
	files, err := postgres.MigrationFiles(migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_pipeline.up.sql", filepath.Base(files[0]))
	for _, f := range files {
		assert.Equal(t, ".sql", filepath.Ext(f))
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, postgres.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, postgres.IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, postgres.IsUniqueViolation(errors.New("boom")))
}

// openTestDB connects to TEST_DATABASE_URL and applies the migrations
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := &config.PostgresConfig{
		Url:             dsn,
		Driver:          os.Getenv("TEST_DB_DRIVER"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}
	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = postgres.ApplyMigrations(ctx, db, migrationsDir)
	require.NoError(t, err)

	again, err := postgres.ApplyMigrations(ctx, db, migrationsDir)
	require.NoError(t, err)
	assert.Empty(t, again)
	return db
}

type repos struct {
	suites   *suiterepository.SuiteRepository
	batches  *batchrepository.BatchRepository
	jobs     *jobrepository.JobRepository
	messages *messagerepository.MessageRepository
	blobs    *blobrepository.BlobRepository
}

func newRepos(db *sqlx.DB) repos {
	logger := logging.NewNopLogger()
	return repos{
		suites:   suiterepository.NewSuiteRepository(db, logger),
		batches:  batchrepository.NewBatchRepository(db, logger),
		jobs:     jobrepository.NewJobRepository(db, logger),
		messages: messagerepository.NewMessageRepository(db, logger),
		blobs:    blobrepository.NewBlobRepository(db, logger),
	}
}

func newSuite(t *testing.T, r repos) *domain.Suite {
	t.Helper()
	suite := &domain.Suite{
		ID:        uuid.New(),
		TeamSlug:  "team-" + uuid.NewString()[:8],
		Slug:      "web",
		Name:      "web",
		CreatedAt: time.Now().UTC(),
	}
	created, ok, err := r.suites.CreateSuite(context.Background(), suite)
	require.NoError(t, err)
	require.True(t, ok)
	return created
}

func newJob(batchID, elementID uuid.UUID, hash string, now time.Time) *domain.Job {
	return &domain.Job{
		ID:                 uuid.New(),
		BatchID:            batchID,
		SubmittedElementID: elementID,
		SubmittedHash:      hash,
		DedupeKey:          elementID.String() + ":" + hash,
		Status:             domain.JobStatusQueued,
		MaxAttempts:        3,
		AvailableAt:        now,
		CreatedAt:          now,
	}
}

func TestSuiteCreateIsIdempotent(t *testing.T) {
	r := newRepos(openTestDB(t))
	ctx := context.Background()
	suite := newSuite(t, r)

	again, created, err := r.suites.CreateSuite(ctx, &domain.Suite{
		ID: uuid.New(), TeamSlug: suite.TeamSlug, Slug: suite.Slug, Name: "other", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, suite.ID, again.ID)

	require.NoError(t, r.suites.AddSubscriber(ctx, suite.ID, "alice"))
	require.NoError(t, r.suites.AddSubscriber(ctx, suite.ID, "alice"))
	got, err := r.suites.GetSuite(ctx, suite.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, got.Subscribers)
}

func TestBatchLifecycleAgainstPostgres(t *testing.T) {
	r := newRepos(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	suite := newSuite(t, r)

	v1, err := r.batches.OpenBatch(ctx, suite.ID, "v1", now)
	require.NoError(t, err)
	require.True(t, v1.Created)
	assert.Nil(t, v1.Batch.CapturedBaselineID)

	up, err := r.batches.UpsertElement(ctx, v1.Batch.ID, "login", "h1", now)
	require.NoError(t, err)
	assert.Empty(t, up.ReplacedHash)
	up, err = r.batches.UpsertElement(ctx, v1.Batch.ID, "login", "h2", now)
	require.NoError(t, err)
	assert.Equal(t, "h1", up.ReplacedHash)

	undrained, err := r.batches.CountUndrained(ctx, v1.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, undrained)

	_, created, err := r.jobs.CreateJob(ctx, newJob(v1.Batch.ID, up.Element.ID, "h2", now))
	require.NoError(t, err)
	require.True(t, created)
	dup, created, err := r.jobs.CreateJob(ctx, newJob(v1.Batch.ID, up.Element.ID, "h2", now))
	require.NoError(t, err)
	assert.False(t, created)

	claimed, err := r.jobs.ClaimJob(ctx, "w1", time.Minute, now.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, dup.ID, claimed.ID)
	assert.Equal(t, 1, claimed.Attempts)

	_, err = r.jobs.RetryJob(ctx, domain.Lease{JobID: claimed.ID, Token: uuid.New()}, "x", now)
	assert.ErrorIs(t, err, errs.LeaseLost)

	result := &domain.ComparisonResult{Key: "res-" + claimed.ID.String(), SubmittedHash: "h2", Testcase: "login",
		Verdict: domain.VerdictNoBaseline, Matches: true, Score: 1, CreatedAt: now}
	done, err := r.jobs.CompleteJob(ctx, claimed.Lease(), result, now)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, done.Status)

	stored, err := r.jobs.GetResult(ctx, result.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictNoBaseline, stored.Verdict)

	undrained, err = r.batches.CountUndrained(ctx, v1.Batch.ID)
	require.NoError(t, err)
	assert.Zero(t, undrained)

	_, changed, err := r.batches.TransitionBatch(ctx, v1.Batch.ID, []domain.BatchState{domain.BatchStateOpen}, domain.BatchStateSealing, now)
	require.NoError(t, err)
	require.True(t, changed)
	sealed, changed, err := r.batches.TransitionBatch(ctx, v1.Batch.ID, []domain.BatchState{domain.BatchStateSealing}, domain.BatchStateSealed, now)
	require.NoError(t, err)
	require.True(t, changed)
	require.NotNil(t, sealed.SealedAt)

	err = r.batches.PromoteBatch(ctx, v1.Batch.ID, domain.BaselineChange{
		SuiteID:         suite.ID,
		ExpectedVersion: suite.BaselineVersion + 1,
		Record:          domain.PromotionRecord{ID: uuid.New(), SuiteID: suite.ID, Rule: domain.PromotionManual, CreatedAt: now},
	})
	assert.ErrorIs(t, err, errs.ConcurrentUpdate)

	id := v1.Batch.ID
	require.NoError(t, r.batches.PromoteBatch(ctx, v1.Batch.ID, domain.BaselineChange{
		SuiteID:         suite.ID,
		ExpectedVersion: suite.BaselineVersion,
		Record:          domain.PromotionRecord{ID: uuid.New(), SuiteID: suite.ID, BatchID: &id, Rule: domain.PromotionManual, Actor: "alice", CreatedAt: now},
	}))

	_, changed, err = r.batches.ArchiveBatch(ctx, v1.Batch.ID)
	assert.ErrorIs(t, err, errs.InvalidTransition)
	assert.False(t, changed)

	v2, err := r.batches.OpenBatch(ctx, suite.ID, "v2", now)
	require.NoError(t, err)
	require.NotNil(t, v2.Batch.CapturedBaselineID)
	assert.Equal(t, v1.Batch.ID, *v2.Batch.CapturedBaselineID)

	current, err := r.suites.GetSuite(ctx, suite.ID)
	require.NoError(t, err)
	_, err = r.batches.MarkRemoved(ctx, domain.Removal{
		BatchID: v1.Batch.ID,
		Baseline: &domain.BaselineChange{
			SuiteID:         suite.ID,
			ExpectedVersion: current.BaselineVersion,
			Record:          domain.PromotionRecord{ID: uuid.New(), SuiteID: suite.ID, Rule: domain.PromotionCleared, CreatedAt: now},
		},
	})
	assert.ErrorIs(t, err, errs.BaselineMisconfiguration)

	promotions, err := r.batches.ListPromotions(ctx, suite.ID)
	require.NoError(t, err)
	require.Len(t, promotions, 1)
	assert.Equal(t, "alice", promotions[0].Actor)
}

func TestClosedVersionRejectsSubmissions(t *testing.T) {
	r := newRepos(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	suite := newSuite(t, r)

	v1, err := r.batches.OpenBatch(ctx, suite.ID, "v1", now)
	require.NoError(t, err)
	v2, err := r.batches.OpenBatch(ctx, suite.ID, "v2", now)
	require.NoError(t, err)
	require.Len(t, v2.Sealing, 1)
	assert.Equal(t, v1.Batch.ID, v2.Sealing[0].ID)

	_, err = r.batches.OpenBatch(ctx, suite.ID, "v1", now)
	assert.ErrorIs(t, err, errs.BatchNotOpen)
	_, err = r.batches.UpsertElement(ctx, v1.Batch.ID, "login", "h1", now)
	assert.ErrorIs(t, err, errs.BatchNotOpen)
}

func TestMessageReferenceCounting(t *testing.T) {
	r := newRepos(openTestDB(t))
	ctx := context.Background()
	hash := "sha256:" + uuid.NewString()
	msg := &domain.Message{Hash: hash, Size: 12, CreatedAt: time.Now().UTC()}
	data := &domain.ElementData{Testcase: "login", Results: map[string]domain.Value{"ok": domain.Bool(true)}}

	inserted, err := r.messages.CreateMessage(ctx, msg, data)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = r.messages.CreateMessage(ctx, msg, data)
	require.NoError(t, err)
	assert.False(t, inserted)
	ok, err := r.messages.AcquireMessage(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, decoded, err := r.messages.GetMessage(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.RefCount)
	assert.Equal(t, "login", decoded.Testcase)

	require.NoError(t, r.blobs.PutBlob(ctx, hash, []byte(`{"testcase":"login"}`)))
	for want := 2; want > 0; want-- {
		left, err := r.messages.ReleaseMessage(ctx, hash, nil)
		require.NoError(t, err)
		assert.Equal(t, want, left)
	}
	left, err := r.messages.ReleaseMessage(ctx, hash, func(ctx context.Context) error {
		return r.blobs.DeleteBlob(ctx, hash)
	})
	require.NoError(t, err)
	assert.Zero(t, left)

	stored, _, err = r.messages.GetMessage(ctx, hash)
	require.NoError(t, err)
	assert.Nil(t, stored)
	_, err = r.blobs.GetBlob(ctx, hash)
	assert.Error(t, err)
}
