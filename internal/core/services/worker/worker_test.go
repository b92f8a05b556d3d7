package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/crypto"
	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/memory"
	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/services/compare"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

type harness struct {
	store    *memory.Store
	messages *message.MessageStore
	queue    *job.JobQueue
	registry *WorkerRegistrationService
	worker   *Worker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logging.NewNopLogger()
	store := memory.NewStore()
	messages := message.NewMessageStore(store, memory.NewBlobStore(), crypto.NewHasher(), logger)
	queue := job.NewJobQueue(store, messages, crypto.NewHasher(), &config.QueueCfg{
		MaxAttempts:   2,
		BackoffBase:   time.Millisecond,
		BackoffMax:    time.Millisecond,
		LeaseDuration: time.Minute,
	}, logger)
	registry := NewWorkerRegistrationService(memory.NewWorkerRegistry(), time.Minute, logger)
	w := NewWorker(queue, messages, compare.NewEngine(config.DefaultPolicy().Comparison), registry, &config.WorkerCfg{
		WorkerID:          "w-test",
		Concurrency:       2,
		PollInterval:      10 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		StatsInterval:     time.Hour,
		JobTimeout:        time.Second,
	}, logger)
	queue.SetWorkerNotifier(w.Wake)
	return &harness{store: store, messages: messages, queue: queue, registry: registry, worker: w}
}

func (h *harness) enqueue(t *testing.T, submitted, baseline string) *domain.Job {
	t.Helper()
	ctx := context.Background()
	sub, err := h.messages.Store(ctx, []byte(submitted))
	require.NoError(t, err)
	req := domain.EnqueueRequest{BatchID: uuid.New(), SubmittedElementID: uuid.New(), SubmittedHash: sub.Hash}
	if baseline != "" {
		base, err := h.messages.Store(ctx, []byte(baseline))
		require.NoError(t, err)
		req.Baseline = &domain.ElementRef{ElementID: uuid.New(), BatchID: uuid.New(), MessageHash: base.Hash}
	}
	out, err := h.queue.Enqueue(ctx, req)
	require.NoError(t, err)
	return out.Job
}

func TestExecuteComparesMessages(t *testing.T) {
	h := newHarness(t)
	queued := h.enqueue(t,
		`{"testcase":"login","results":{"score":10}}`,
		`{"testcase":"login","results":{"score":8}}`)

	claimed, err := h.queue.Claim(context.Background(), h.worker.ID)
	require.NoError(t, err)
	require.Equal(t, queued.ID, claimed.ID)

	out := h.worker.Execute(context.Background(), claimed)
	require.NoError(t, out.Err)
	assert.Equal(t, domain.VerdictFail, out.Result.Verdict)
	assert.NotNil(t, out.Result.FindMismatch("login.score"))
}

func TestExecuteRejectsIncompatibleBaseline(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t,
		`{"testcase":"login","results":{"score":10}}`,
		`{"testcase":"signup","results":{"score":10}}`)

	claimed, err := h.queue.Claim(context.Background(), h.worker.ID)
	require.NoError(t, err)
	out := h.worker.Execute(context.Background(), claimed)
	assert.ErrorIs(t, out.Err, errs.ComparisonPermanentError)
}

func TestRunProcessesQueue(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, h.worker.Run(ctx))
	}()

	passing := h.enqueue(t,
		`{"testcase":"a","results":{"x":1}}`,
		`{"testcase":"a","results":{"x":1}}`)
	broken := h.enqueue(t,
		`{"testcase":"b","results":{"x":1}}`,
		`{"testcase":"c","results":{"x":1}}`)

	assert.Eventually(t, func() bool {
		a, _ := h.queue.GetJob(context.Background(), passing.ID)
		b, _ := h.queue.GetJob(context.Background(), broken.ID)
		return a.Status == domain.JobStatusSucceeded && b.Status == domain.JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		workers, err := h.registry.GetAllWorkers(context.Background())
		return err == nil && len(workers) == 1 && workers[0].Stats.Processed == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	stats := h.worker.Stats()
	assert.Equal(t, int64(2), stats.Claimed)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}
