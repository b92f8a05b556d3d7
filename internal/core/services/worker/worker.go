package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/compare"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

// Version is reported at registration
var Version = "dev"

// Outcome is the product of executing one claimed job
type Outcome struct {
	Job      *domain.Job
	Result   *domain.ComparisonResult
	Err      error
	Duration time.Duration
}

// Worker claims comparison jobs from the shared queue. A collector loop
// claims while there is spare capacity, processor loops run the comparisons
// and a result loop hands the outcomes back to the queue.
type Worker struct {
	ID       string
	Type     string
	Capacity int

	queue    job.IJobQueue
	messages message.IMessageStore
	engine   compare.IComparisonEngine
	registry IWorkerRegistrationService
	cfg      config.WorkerCfg
	logger   primary.Logger

	jobs    chan *domain.Job
	results chan Outcome
	wake    chan struct{}
	load    atomic.Int64

	claimed   atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64
	busyNanos atomic.Int64
}

func NewWorker(
	queue job.IJobQueue,
	messages message.IMessageStore,
	engine compare.IComparisonEngine,
	registry IWorkerRegistrationService,
	cfg *config.WorkerCfg,
	logger primary.Logger,
) *Worker {
	id := cfg.WorkerID
	if id == "" {
		id = uuid.New().String()
	}
	capacity := cfg.Concurrency
	if capacity < 1 {
		capacity = 1
	}
	return &Worker{
		ID:       id,
		Type:     domain.WorkerTypeComparison,
		Capacity: capacity,
		queue:    queue,
		messages: messages,
		engine:   engine,
		registry: registry,
		cfg:      *cfg,
		logger:   logger,
		jobs:     make(chan *domain.Job, capacity),
		results:  make(chan Outcome, capacity),
		wake:     make(chan struct{}, 1),
	}
}

func every(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Wake makes the collector claim without waiting for the next poll
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stats returns the counters published by the reporter
func (w *Worker) Stats() domain.WorkerStats {
	stats := domain.WorkerStats{
		Claimed:   w.claimed.Load(),
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		Discarded: w.discarded.Load(),
	}
	if done := stats.Processed + stats.Failed; done > 0 {
		stats.AverageDuration = time.Duration(w.busyNanos.Load() / done)
	}
	return stats
}

// Register registers the worker with the registry
func (w *Worker) Register(ctx context.Context) error {
	hostname, _ := os.Hostname()
	return w.registry.RegisterWorker(ctx, &domain.WorkerInfo{
		ID:       w.ID,
		Type:     w.Type,
		Capacity: w.Capacity,
		Hostname: hostname,
		Version:  Version,
	})
}

// Run registers the worker and runs its loops until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Register(ctx); err != nil {
		return err
	}
	w.logger.Info("Worker started", "workerId", w.ID, "capacity", w.Capacity)

	var wg sync.WaitGroup
	start := func(loop func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx)
		}()
	}
	start(w.CollectJobs)
	for i := 0; i < w.Capacity; i++ {
		start(w.ProcessJobs)
	}
	start(w.SendResults)
	start(w.Report)

	wg.Wait()
	w.logger.Info("Worker stopped", "workerId", w.ID)
	return nil
}

// RunOnce claims and processes jobs on the calling goroutine until none is
// available, returning how many were processed
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	n := 0
	for {
		claimed, err := w.queue.Claim(ctx, w.ID)
		if err != nil {
			return n, err
		}
		if claimed == nil {
			return n, nil
		}
		w.claimed.Add(1)
		w.load.Add(1)
		w.sendResult(ctx, w.Execute(ctx, claimed))
		n++
	}
}

// CollectJobs claims jobs while the worker has spare capacity
func (w *Worker) CollectJobs(ctx context.Context) {
	ticker := time.NewTicker(every(w.cfg.PollInterval, time.Second))
	defer ticker.Stop()

	for {
		w.collect(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

func (w *Worker) collect(ctx context.Context) {
	for int(w.load.Load()) < w.Capacity {
		if ctx.Err() != nil {
			return
		}
		claimed, err := w.queue.Claim(ctx, w.ID)
		if err != nil {
			w.logger.Error("Failed to claim job", "workerId", w.ID, "error", err)
			return
		}
		if claimed == nil {
			return
		}
		w.claimed.Add(1)
		w.load.Add(1)
		w.jobs <- claimed
	}
}

// ProcessJobs runs comparisons of claimed jobs
func (w *Worker) ProcessJobs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case claimed := <-w.jobs:
			// Finish the job even when ctx is cancelled meanwhile. Its lease
			// expires if the result cannot be reported.
			out := w.Execute(context.WithoutCancel(ctx), claimed)
			select {
			case w.results <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Execute compares the messages of a claimed job
func (w *Worker) Execute(ctx context.Context, claimed *domain.Job) (out Outcome) {
	started := time.Now()
	out.Job = claimed
	defer func() {
		if r := recover(); r != nil {
			out.Err = errs.Permanent(fmt.Errorf("comparison panicked: %v", r))
		}
		out.Duration = time.Since(started)
	}()

	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	submitted, err := w.messages.Load(ctx, claimed.SubmittedHash)
	if err != nil {
		out.Err = err
		return out
	}
	var baseline *domain.ElementData
	if claimed.BaselineHash != nil {
		baseline, err = w.messages.Load(ctx, *claimed.BaselineHash)
		if err != nil {
			out.Err = err
			return out
		}
		if baseline.Testcase != submitted.Testcase {
			out.Err = errs.Permanent(fmt.Errorf("baseline testcase %q does not match %q", baseline.Testcase, submitted.Testcase))
			return out
		}
	}

	out.Result = w.engine.Compare(submitted, baseline)
	return out
}

// SendResults reports outcomes to the queue
func (w *Worker) SendResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-w.results:
			w.sendResult(context.WithoutCancel(ctx), out)
		}
	}
}

func (w *Worker) sendResult(ctx context.Context, out Outcome) {
	defer w.load.Add(-1)

	var err error
	if out.Err == nil {
		_, err = w.queue.Complete(ctx, out.Job, out.Result)
		if err == nil {
			w.processed.Add(1)
			w.busyNanos.Add(int64(out.Duration))
		}
	} else {
		w.logger.Warn("Comparison failed", "jobId", out.Job.ID, "attempt", out.Job.Attempts, "error", out.Err)
		_, err = w.queue.Fail(ctx, out.Job, out.Err)
		if err == nil {
			w.failed.Add(1)
			w.busyNanos.Add(int64(out.Duration))
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, errs.JobCancelled), errors.Is(err, errs.LeaseLost), errors.Is(err, errs.JobNotFound):
		w.discarded.Add(1)
	default:
		w.logger.Error("Failed to report job outcome", "jobId", out.Job.ID, "error", err)
	}
	w.Wake()
}

// Report sends heartbeats and logs worker stats periodically
func (w *Worker) Report(ctx context.Context) {
	heartbeat := time.NewTicker(every(w.cfg.HeartbeatInterval, 15*time.Second))
	defer heartbeat.Stop()
	stats := time.NewTicker(every(w.cfg.StatsInterval, 30*time.Second))
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := w.registry.Heartbeat(ctx, w.ID, int(w.load.Load()), w.Stats()); err != nil {
				w.logger.Warn("Failed to send heartbeat", "workerId", w.ID, "error", err)
			}
		case <-stats.C:
			s := w.Stats()
			w.logger.Info("Worker stats",
				"workerId", w.ID,
				"claimed", s.Claimed,
				"processed", s.Processed,
				"failed", s.Failed,
				"discarded", s.Discarded,
				"avgDuration", s.AverageDuration)
		}
	}
}
