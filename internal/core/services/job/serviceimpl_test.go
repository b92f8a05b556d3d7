package job

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/crypto"
	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/memory"
	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store    *memory.Store
	messages *message.MessageStore
	queue    *JobQueue
	clock    *clock

	mu       sync.Mutex
	terminal []*domain.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := logging.NewNopLogger()
	messages := message.NewMessageStore(store, memory.NewBlobStore(), crypto.NewHasher(), logger)
	cfg := &config.QueueCfg{
		MaxAttempts:   3,
		BackoffBase:   time.Second,
		BackoffMax:    3 * time.Second,
		LeaseDuration: time.Minute,
	}
	f := &fixture{
		store:    store,
		messages: messages,
		queue:    NewJobQueue(store, messages, crypto.NewHasher(), cfg, logger),
		clock:    &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.queue.SetClock(f.clock.Now)
	f.queue.SetTerminalNotifier(func(ctx context.Context, job *domain.Job) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.terminal = append(f.terminal, job)
	})
	return f
}

func (f *fixture) message(t *testing.T, payload string) string {
	t.Helper()
	ref, err := f.messages.Store(context.Background(), []byte(payload))
	require.NoError(t, err)
	return ref.Hash
}

func (f *fixture) terminalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.terminal)
}

func (f *fixture) request(t *testing.T) domain.EnqueueRequest {
	t.Helper()
	submitted := f.message(t, `{"testcase":"login","results":{"score":1}}`)
	baseline := f.message(t, `{"testcase":"login","results":{"score":2}}`)
	return domain.EnqueueRequest{
		BatchID:            uuid.New(),
		SubmittedElementID: uuid.New(),
		SubmittedHash:      submitted,
		Baseline: &domain.ElementRef{
			ElementID:   uuid.New(),
			BatchID:     uuid.New(),
			MessageHash: baseline,
		},
	}
}

func result() *domain.ComparisonResult {
	return &domain.ComparisonResult{Testcase: "login", Verdict: domain.VerdictFail, Score: 0.5}
}

func TestEnqueueDeduplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.request(t)

	first, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, domain.JobStatusQueued, first.Job.Status)

	second, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Job.ID, second.Job.ID)

	// one reference from the element, one from the live job
	assert.Equal(t, 2, f.store.RefCount(req.SubmittedHash))
	assert.Equal(t, 2, f.store.RefCount(req.Baseline.MessageHash))
}

func TestConcurrentEnqueueCreatesOneJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.request(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.queue.Enqueue(ctx, req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	jobs, err := f.queue.ListJobs(ctx, req.BatchID)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, 2, f.store.RefCount(req.SubmittedHash))
}

func TestClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.queue.Enqueue(ctx, f.request(t))
	require.NoError(t, err)

	job, err := f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobStatusRunning, job.Status)
	assert.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.LeaseOwner)
	assert.Equal(t, "w1", *job.LeaseOwner)

	other, err := f.queue.Claim(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestCompleteStoresResultOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.request(t)
	_, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)

	job, err := f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	done, err := f.queue.Complete(ctx, job, result())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, done.Status)
	require.NotNil(t, done.ResultKey)
	assert.Equal(t, f.queue.ResultKey(req.SubmittedHash, &req.Baseline.MessageHash), *done.ResultKey)
	assert.Equal(t, 1, f.terminalCount())

	stored, err := f.store.GetResult(ctx, *done.ResultKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, req.SubmittedHash, stored.SubmittedHash)

	// job references are gone, element references remain
	assert.Equal(t, 1, f.store.RefCount(req.SubmittedHash))

	// a second completion with the stale lease is rejected
	_, err = f.queue.Complete(ctx, job, result())
	assert.ErrorIs(t, err, errs.LeaseLost)

	// re-enqueueing the pair returns the succeeded job
	again, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, done.ID, again.Job.ID)
}

func TestEnqueueUsesCachedResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.request(t)
	_, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)
	job, err := f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	_, err = f.queue.Complete(ctx, job, result())
	require.NoError(t, err)

	// same content pair from another element
	other := req
	other.SubmittedElementID = uuid.New()
	out, err := f.queue.Enqueue(ctx, other)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Equal(t, domain.JobStatusSucceeded, out.Job.Status)
	assert.Equal(t, 2, f.terminalCount())
	assert.Equal(t, 1, f.store.RefCount(req.SubmittedHash))
}

func TestCompleteAfterCancelDiscardsResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.request(t)
	_, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)
	job, err := f.queue.Claim(ctx, "w1")
	require.NoError(t, err)

	cancelled, err := f.queue.Cancel(ctx, req.BatchID)
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)

	_, err = f.queue.Complete(ctx, job, result())
	assert.ErrorIs(t, err, errs.JobCancelled)

	stored, err := f.store.GetResult(ctx, f.queue.ResultKey(req.SubmittedHash, &req.Baseline.MessageHash))
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, 1, f.terminalCount())
}

func TestFailRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.queue.Enqueue(ctx, f.request(t))
	require.NoError(t, err)

	job, err := f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	retried, err := f.queue.Fail(ctx, job, errs.Transient(io.ErrUnexpectedEOF))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, retried.Status)
	assert.Equal(t, f.clock.Now().Add(time.Second), retried.AvailableAt)

	// not available before the backoff elapses
	none, err := f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, none)

	f.clock.Advance(time.Second)
	job, err = f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempts)
	retried, err = f.queue.Fail(ctx, job, errors.New("timeout"))
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(2*time.Second), retried.AvailableAt)

	f.clock.Advance(2 * time.Second)
	job, err = f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	failed, err := f.queue.Fail(ctx, job, errors.New("timeout"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorClass)
	assert.Equal(t, string(domain.ErrorClassTransient), *failed.ErrorClass)
	assert.Equal(t, 1, f.terminalCount())
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.queue.Enqueue(ctx, f.request(t))
	require.NoError(t, err)

	job, err := f.queue.Claim(ctx, "w1")
	require.NoError(t, err)
	failed, err := f.queue.Fail(ctx, job, errs.Permanent(errors.New("incompatible baseline")))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, failed.Status)
	assert.Equal(t, string(domain.ErrorClassPermanent), *failed.ErrorClass)
	assert.Contains(t, *failed.LastError, "incompatible baseline")
}

func TestBackoffIsCapped(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, time.Second, f.queue.Backoff(1))
	assert.Equal(t, 2*time.Second, f.queue.Backoff(2))
	assert.Equal(t, 3*time.Second, f.queue.Backoff(3))
	assert.Equal(t, 3*time.Second, f.queue.Backoff(30))
}

func TestReclaimExpiredLeases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.queue.Enqueue(ctx, f.request(t))
	require.NoError(t, err)

	for attempt := 1; attempt <= 3; attempt++ {
		job, err := f.queue.Claim(ctx, "crashed")
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", attempt)

		reclaimed, err := f.queue.ReclaimExpired(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, reclaimed, "lease still valid")

		f.clock.Advance(2 * time.Minute)
		reclaimed, err = f.queue.ReclaimExpired(ctx, 10)
		require.NoError(t, err)
		require.Len(t, reclaimed, 1)
		if attempt < 3 {
			assert.Equal(t, domain.JobStatusQueued, reclaimed[0].Status)
		} else {
			assert.Equal(t, domain.JobStatusFailed, reclaimed[0].Status)
		}

		// the crashed worker's late completion is rejected
		_, err = f.queue.Complete(ctx, job, result())
		assert.Error(t, err)
	}
	assert.Equal(t, 1, f.terminalCount())
}

func TestNoBaselineJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.request(t)
	req.Baseline = nil

	out, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, out.Job.BaselineHash)
	assert.NotEqual(t, f.queue.ResultKey(req.SubmittedHash, nil), f.queue.ResultKey(req.SubmittedHash, &req.SubmittedHash))
}
