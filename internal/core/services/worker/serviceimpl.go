package worker

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var _ IWorkerRegistrationService = &WorkerRegistrationService{}

type WorkerRegistrationService struct {
	workerRepo    secondary.WorkerRepository
	inactiveAfter time.Duration
	logger        primary.Logger
	now           func() time.Time
}

// NewWorkerRegistrationService creates a new worker registration service.
// Workers silent for longer than inactiveAfter are reported inactive and
// removed by CleanupInactiveWorkers.
func NewWorkerRegistrationService(workerRepo secondary.WorkerRepository, inactiveAfter time.Duration, logger primary.Logger) *WorkerRegistrationService {
	return &WorkerRegistrationService{
		workerRepo:    workerRepo,
		inactiveAfter: inactiveAfter,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *WorkerRegistrationService) active(w *domain.WorkerInfo) bool {
	return w.LastHeartbeat.After(s.now().Add(-s.inactiveAfter))
}

func (s *WorkerRegistrationService) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	workers, err := s.workerRepo.GetAllWorkers(ctx)
	if err != nil {
		s.logger.Error("Failed to get all workers", "error", err)
		return nil, fmt.Errorf("failed to get all workers: %w", err)
	}

	for _, w := range workers {
		w.IsActive = s.active(w)
	}
	return workers, nil
}

// RegisterWorker registers a worker as available for jobs
func (s *WorkerRegistrationService) RegisterWorker(ctx context.Context, workerInfo *domain.WorkerInfo) error {
	s.logger.Info("Registering worker", "workerId", workerInfo.ID, "type", workerInfo.Type, "capacity", workerInfo.Capacity)

	workerInfo.LastHeartbeat = s.now()
	workerInfo.IsActive = true
	if err := s.workerRepo.SaveWorker(ctx, workerInfo); err != nil {
		s.logger.Error("Failed to save worker", "error", err)
		return fmt.Errorf("failed to register worker: %w", err)
	}
	return nil
}

// Heartbeat updates the worker's status and availability
func (s *WorkerRegistrationService) Heartbeat(ctx context.Context, workerID string, load int, stats domain.WorkerStats) error {
	s.logger.Debug("Received worker heartbeat", "workerId", workerID, "load", load)

	if err := s.workerRepo.UpdateWorkerHeartbeat(ctx, workerID, load, stats, s.now()); err != nil {
		s.logger.Error("Failed to update worker heartbeat", "workerId", workerID, "error", err)
		return fmt.Errorf("failed to update worker heartbeat: %w", err)
	}
	return nil
}

// GetAvailableWorkers gets all available workers of a given type
func (s *WorkerRegistrationService) GetAvailableWorkers(ctx context.Context, workerType string) ([]*domain.WorkerInfo, error) {
	workers, err := s.workerRepo.GetWorkersByType(ctx, workerType)
	if err != nil {
		s.logger.Error("Failed to get workers by type", "type", workerType, "error", err)
		return nil, fmt.Errorf("failed to get workers by type: %w", err)
	}

	available := make([]*domain.WorkerInfo, 0)
	for _, w := range workers {
		if s.active(w) && w.CurrentLoad < w.Capacity {
			w.IsActive = true
			available = append(available, w)
		}
	}
	return available, nil
}

// CleanupInactiveWorkers removes workers that haven't sent a heartbeat recently
func (s *WorkerRegistrationService) CleanupInactiveWorkers(ctx context.Context) error {
	cutoff := s.now().Add(-s.inactiveAfter)
	if err := s.workerRepo.RemoveInactiveWorkers(ctx, cutoff); err != nil {
		s.logger.Error("Failed to remove inactive workers", "error", err)
		return fmt.Errorf("failed to clean up inactive workers: %w", err)
	}
	return nil
}
