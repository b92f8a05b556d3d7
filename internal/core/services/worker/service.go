package worker

import (
	"context"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// IWorkerRegistrationService tracks the comparison workers of the pipeline
type IWorkerRegistrationService interface {
	// RegisterWorker registers a worker as available for jobs
	RegisterWorker(ctx context.Context, workerInfo *domain.WorkerInfo) error

	// Heartbeat updates the worker's load and stats
	Heartbeat(ctx context.Context, workerID string, load int, stats domain.WorkerStats) error

	// GetAvailableWorkers gets active workers of a type with spare capacity
	GetAvailableWorkers(ctx context.Context, workerType string) ([]*domain.WorkerInfo, error)

	// GetAllWorkers gets all registered workers
	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)

	// CleanupInactiveWorkers removes workers that haven't sent a heartbeat recently
	CleanupInactiveWorkers(ctx context.Context) error
}
