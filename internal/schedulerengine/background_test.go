package schedulerengine

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
	"gitlab.com/baseline-2025.net/internal/adapter/notify"
	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/services/baseline"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/core/services/worker"
	"gitlab.com/baseline-2025.net/internal/domain"
)

type fixture struct {
	store    *memory.Store
	messages *message.MessageStore
	queue    *job.JobQueue
	registry *worker.WorkerRegistrationService
	engine   *SchedulerEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.NewNopLogger()
	f := &fixture{store: memory.NewStore()}
	f.messages = message.NewMessageStore(f.store, memory.NewBlobStore(), crypto.NewHasher(), logger)
	f.queue = job.NewJobQueue(f.store, f.messages, crypto.NewHasher(), &config.QueueCfg{
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
		BackoffMax:    time.Millisecond,
		LeaseDuration: 5 * time.Millisecond,
	}, logger)
	batches := batch.NewBatchService(batch.Deps{
		SuiteRepo: f.store,
		BatchRepo: f.store,
		JobRepo:   f.store,
		Queue:     f.queue,
		Messages:  f.messages,
		Resolver:  baseline.NewResolver(f.store, f.store, logger),
		Notifier:  notify.NewRecorder(),
		Cache:     memory.NewCache(),
	}, config.PromotionPolicy{}, time.Minute, logger)
	f.registry = worker.NewWorkerRegistrationService(memory.NewWorkerRegistry(), 20*time.Millisecond, logger)
	f.engine = NewSchedulerEngine(&config.EngineCfg{
		ReclaimInterval:       5 * time.Millisecond,
		ReconcileInterval:     5 * time.Millisecond,
		WorkerCleanupInterval: 5 * time.Millisecond,
		BatchLimit:            10,
	}, f.queue, batches, f.registry, logger)
	return f
}

// openElement writes an element of an open batch without enqueueing its job
func (f *fixture) openElement(t *testing.T) *domain.Element {
	t.Helper()
	ctx := context.Background()
	s, _, err := f.store.CreateSuite(ctx, &domain.Suite{ID: uuid.New(), TeamSlug: "acme", Slug: "web", Name: "web"})
	require.NoError(t, err)
	opened, err := f.store.OpenBatch(ctx, s.ID, "v1", time.Now())
	require.NoError(t, err)
	ref, err := f.messages.Store(ctx, []byte(`{"testcase":"login","results":{"ok":true}}`))
	require.NoError(t, err)
	up, err := f.store.UpsertElement(ctx, opened.Batch.ID, "login", ref.Hash, time.Now())
	require.NoError(t, err)
	return up.Element
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestEngineReconcilesAndReclaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.openElement(t)
	f.start(t)

	var claimed *domain.Job
	require.Eventually(t, func() bool {
		j, err := f.queue.Claim(ctx, "w-crashed")
		if err != nil || j == nil {
			return false
		}
		claimed = j
		return true
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, e.ID, claimed.SubmittedElementID)

	// the lease expires without a report
	assert.Eventually(t, func() bool {
		j, err := f.queue.GetJob(ctx, claimed.ID)
		return err == nil && j.Status == domain.JobStatusQueued && j.LeaseOwner == nil
	}, time.Second, 5*time.Millisecond)
}

func TestEngineDropsSilentWorkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.RegisterWorker(ctx, &domain.WorkerInfo{ID: "w1", Type: domain.WorkerTypeComparison, Capacity: 1}))
	f.start(t)

	assert.Eventually(t, func() bool {
		workers, err := f.registry.GetAllWorkers(ctx)
		return err == nil && len(workers) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDisabledLoopReturns(t *testing.T) {
	f := newFixture(t)
	f.engine.EngineCfg = &config.EngineCfg{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Run(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine with no intervals should return")
	}
}
