package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/memory"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := memory.NewStore()
	resolver := NewResolver(store, store, logging.NewNopLogger())

	suite, _, err := store.CreateSuite(ctx, &domain.Suite{ID: uuid.New(), TeamSlug: "acme", Slug: "web"})
	require.NoError(t, err)

	ref, err := resolver.Resolve(ctx, suite.ID, "login")
	require.NoError(t, err)
	assert.Nil(t, ref, "suite without baseline")

	opened, err := store.OpenBatch(ctx, suite.ID, "v1", now)
	require.NoError(t, err)
	up, err := store.UpsertElement(ctx, opened.Batch.ID, "login", "b2-login", now)
	require.NoError(t, err)
	_, _, err = store.TransitionBatch(ctx, opened.Batch.ID, []domain.BatchState{domain.BatchStateOpen}, domain.BatchStateSealing, now)
	require.NoError(t, err)
	_, _, err = store.TransitionBatch(ctx, opened.Batch.ID, []domain.BatchState{domain.BatchStateSealing}, domain.BatchStateSealed, now)
	require.NoError(t, err)
	require.NoError(t, store.PromoteBatch(ctx, opened.Batch.ID, domain.BaselineChange{
		SuiteID: suite.ID,
		Record:  domain.PromotionRecord{ID: uuid.New(), SuiteID: suite.ID, Rule: domain.PromotionManual},
	}))

	ref, err = resolver.Resolve(ctx, suite.ID, "login")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, up.Element.ID, ref.ElementID)
	assert.Equal(t, opened.Batch.ID, ref.BatchID)
	assert.Equal(t, "b2-login", ref.MessageHash)

	ref, err = resolver.Resolve(ctx, suite.ID, "signup")
	require.NoError(t, err)
	assert.Nil(t, ref, "first-seen testcase")

	_, err = resolver.Resolve(ctx, uuid.New(), "login")
	assert.ErrorIs(t, err, errs.SuiteNotFound)
}

func TestResolveInWithoutCapture(t *testing.T) {
	store := memory.NewStore()
	resolver := NewResolver(store, store, logging.NewNopLogger())

	ref, err := resolver.ResolveIn(context.Background(), nil, "login")
	require.NoError(t, err)
	assert.Nil(t, ref)
}
