package schedulerengine

import (
	"context"
	"sync"
	"time"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/worker"
)

// SchedulerEngine runs the maintenance loops of the pipeline: reclaiming
// expired job leases, reconciling batches and dropping silent workers.
type SchedulerEngine struct {
	EngineCfg *config.EngineCfg
	queue     job.IJobQueue
	batches   batch.IBatchService
	workers   worker.IWorkerRegistrationService
	logger    primary.Logger
}

func NewSchedulerEngine(
	engineCfg *config.EngineCfg,
	queue job.IJobQueue,
	batches batch.IBatchService,
	workers worker.IWorkerRegistrationService,
	logger primary.Logger,
) *SchedulerEngine {
	return &SchedulerEngine{
		EngineCfg: engineCfg,
		queue:     queue,
		batches:   batches,
		workers:   workers,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled
func (s *SchedulerEngine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loops := []struct {
		name     string
		interval time.Duration
		fn       func(context.Context)
	}{
		{"reclaim", s.EngineCfg.ReclaimInterval, s.ReclaimExpiredLeases},
		{"reconcile", s.EngineCfg.ReconcileInterval, s.ReconcileBatches},
		{"worker-cleanup", s.EngineCfg.WorkerCleanupInterval, s.CleanupWorkers},
	}
	wg.Add(len(loops))
	for _, l := range loops {
		go func(name string, interval time.Duration, fn func(context.Context)) {
			defer wg.Done()
			s.every(ctx, name, interval, fn)
		}(l.name, l.interval, l.fn)
	}
	wg.Wait()
	s.logger.Info("Scheduler engine stopped")
}

func (s *SchedulerEngine) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		s.logger.Warn("Loop disabled", "loop", name)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// ReclaimExpiredLeases returns jobs of crashed workers to the queue
func (s *SchedulerEngine) ReclaimExpiredLeases(ctx context.Context) {
	reclaimed, err := s.queue.ReclaimExpired(ctx, s.EngineCfg.BatchLimit)
	if err != nil {
		s.logger.Error("Failed to reclaim expired leases", "error", err)
		return
	}
	if len(reclaimed) > 0 {
		s.logger.Info("Reclaimed expired leases", "count", len(reclaimed))
	}
}

func (s *SchedulerEngine) ReconcileBatches(ctx context.Context) {
	if err := s.batches.Reconcile(ctx, s.EngineCfg.BatchLimit); err != nil {
		s.logger.Error("Failed to reconcile batches", "error", err)
	}
}

func (s *SchedulerEngine) CleanupWorkers(ctx context.Context) {
	if err := s.workers.CleanupInactiveWorkers(ctx); err != nil {
		s.logger.Error("Failed to clean up inactive workers", "error", err)
	}
}
