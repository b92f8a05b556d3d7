package submit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/crypto"
	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/memory"
	"gitlab.com/baseline-2025.net/internal/adapter/notify"
	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/services/baseline"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/core/services/suite"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

func newIntake(t *testing.T) (*IntakeService, *memory.Store) {
	t.Helper()
	logger := logging.NewNopLogger()
	store := memory.NewStore()
	cache := memory.NewCache()
	messages := message.NewMessageStore(store, memory.NewBlobStore(), crypto.NewHasher(), logger)
	queue := job.NewJobQueue(store, messages, crypto.NewHasher(), config.NewQueueCfg(), logger)
	batches := batch.NewBatchService(batch.Deps{
		SuiteRepo: store,
		BatchRepo: store,
		JobRepo:   store,
		Queue:     queue,
		Messages:  messages,
		Resolver:  baseline.NewResolver(store, store, logger),
		Notifier:  notify.NewRecorder(),
		Cache:     cache,
	}, config.PromotionPolicy{}, time.Minute, logger)
	suites := suite.NewSuiteService(store, store, cache, time.Minute, logger)
	return NewIntakeService(suites, batches, messages, logger), store
}

func submission(version, testcase string) domain.Submission {
	payload, _ := json.Marshal(map[string]interface{}{
		"testcase": testcase,
		"results":  map[string]bool{"ok": true},
	})
	return domain.Submission{
		TeamSlug:  "acme",
		SuiteSlug: "web",
		Version:   version,
		Testcase:  testcase,
		Payload:   payload,
	}
}

func TestSubmitCreatesSuiteAndBatch(t *testing.T) {
	svc, store := newIntake(t)
	ctx := context.Background()

	e, err := svc.Submit(ctx, submission(" v1 ", "login"))
	require.NoError(t, err)
	assert.Equal(t, "login", e.Testcase)
	// one reference for the element and one for its queued comparison job
	assert.Equal(t, 2, store.RefCount(e.MessageHash))

	s, err := store.GetSuiteBySlug(ctx, "acme", "web")
	require.NoError(t, err)
	require.NotNil(t, s)
	b, err := store.GetBatchByVersion(ctx, s.ID, "v1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, domain.BatchStateOpen, b.State)
}

func TestSubmitRejectsBadNames(t *testing.T) {
	svc, store := newIntake(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, submission("", "login"))
	assert.ErrorIs(t, err, errs.InvalidArgument)

	_, err = svc.Submit(ctx, submission("v1", strings.Repeat("x", maxNameLength+1)))
	assert.ErrorIs(t, err, errs.InvalidArgument)

	_, err = svc.Submit(ctx, domain.Submission{TeamSlug: "acme", SuiteSlug: "Not A Slug", Version: "v1", Testcase: "login",
		Payload: []byte(`{"testcase":"login"}`)})
	assert.ErrorIs(t, err, errs.InvalidArgument)

	assert.Empty(t, store.MessageHashes())
}

func TestSubmitNormalizesNames(t *testing.T) {
	svc, _ := newIntake(t)
	ctx := context.Background()

	decomposed, err := svc.Submit(ctx, submission("v1", "cafe\u0301"))
	require.NoError(t, err)
	composed, err := svc.Submit(ctx, submission("v1", "caf\u00e9"))
	require.NoError(t, err)

	assert.Equal(t, decomposed.ID, composed.ID)
	assert.Equal(t, "caf\u00e9", composed.Testcase)
}

func TestSubmitReleasesReferenceWhenBatchClosed(t *testing.T) {
	svc, store := newIntake(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, submission("v1", "login"))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, submission("v2", "login"))
	require.NoError(t, err)

	// v1 was sealed by v2
	_, err = svc.Submit(ctx, submission("v1", "signup"))
	assert.ErrorIs(t, err, errs.BatchNotOpen)

	// v1 login and v2 login share the payload; their queued jobs hold one each
	assert.Equal(t, 4, store.RefCount(first.MessageHash))
}

func TestSubmitRejectsMismatchedTestcase(t *testing.T) {
	svc, store := newIntake(t)
	ctx := context.Background()

	sub := submission("v1", "login")
	sub.Payload = []byte(`{"testcase":"logout","results":{"ok":true}}`)
	_, err := svc.Submit(ctx, sub)
	assert.ErrorIs(t, err, errs.MalformedPayload)
	assert.Empty(t, store.MessageHashes())

	// a payload already stored under another testcase is rejected on reuse too
	logout, err := svc.Submit(ctx, submission("v1", "logout"))
	require.NoError(t, err)
	sub.Payload = submission("v1", "logout").Payload
	_, err = svc.Submit(ctx, sub)
	assert.ErrorIs(t, err, errs.MalformedPayload)
	assert.Equal(t, 2, store.RefCount(logout.MessageHash))

	s, err := store.GetSuiteBySlug(ctx, "acme", "web")
	require.NoError(t, err)
	require.NotNil(t, s)
	b, err := store.GetBatchByVersion(ctx, s.ID, "v1")
	require.NoError(t, err)
	require.NotNil(t, b)
	elements, err := store.ListElements(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "logout", elements[0].Testcase)
}
