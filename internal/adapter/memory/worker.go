package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var _ secondary.WorkerRepository = (*WorkerRegistry)(nil)

// WorkerRegistry keeps worker registrations for single-process deployments
type WorkerRegistry struct {
	mu      sync.Mutex
	workers map[string]domain.WorkerInfo
}

func NewWorkerRegistry() *WorkerRegistry {
	return &WorkerRegistry{workers: make(map[string]domain.WorkerInfo)}
}

func (r *WorkerRegistry) SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[worker.ID] = *worker
	return nil
}

func (r *WorkerRegistry) GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WorkerRegistry) UpdateWorkerHeartbeat(ctx context.Context, workerID string, load int, stats domain.WorkerStats, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return fmt.Errorf("worker not found: %s", workerID)
	}
	w.CurrentLoad = load
	w.Stats = stats
	w.LastHeartbeat = at
	r.workers[workerID] = w
	return nil
}

func (r *WorkerRegistry) RemoveInactiveWorkers(ctx context.Context, cutoffTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.workers {
		if w.LastHeartbeat.Before(cutoffTime) {
			delete(r.workers, id)
		}
	}
	return nil
}

func (r *WorkerRegistry) GetWorkersByType(ctx context.Context, workerType string) ([]*domain.WorkerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.WorkerInfo, 0)
	for _, w := range r.workers {
		if w.Type == workerType {
			w := w
			out = append(out, &w)
		}
	}
	return out, nil
}

func (r *WorkerRegistry) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		w := w
		out = append(out, &w)
	}
	return out, nil
}
