package workerport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

const (
	workerKeyPrefix  = "worker:info:"
	workerTypePrefix = "worker:type:"
	workerExpiration = 5 * time.Minute
)

// WorkerRepository implements the WorkerRepository interface with Redis.
// Registrations expire on their own when a worker stops heartbeating.
type WorkerRepository struct {
	redisClient *redis.Client
	logger      primary.Logger
}

// NewWorkerRepository creates a new Redis worker repository
func NewWorkerRepository(redisClient *redis.Client, logger primary.Logger) *WorkerRepository {
	return &WorkerRepository{
		redisClient: redisClient,
		logger:      logger,
	}
}

func workerKey(workerID string) string {
	return workerKeyPrefix + workerID
}

func typeKey(workerType string) string {
	return workerTypePrefix + workerType
}

// SaveWorker saves worker information to Redis
func (r *WorkerRepository) SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error {
	workerJSON, err := json.Marshal(worker)
	if err != nil {
		r.logger.Error("Failed to marshal worker info", "error", err)
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	pipe := r.redisClient.TxPipeline()
	pipe.Set(ctx, workerKey(worker.ID), workerJSON, workerExpiration)
	pipe.SAdd(ctx, typeKey(worker.Type), worker.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save worker info", "workerId", worker.ID, "error", err)
		return fmt.Errorf("failed to save worker info: %w", err)
	}
	return nil
}

// GetWorker retrieves worker information from Redis by ID
func (r *WorkerRepository) GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error) {
	workerJSON, err := r.redisClient.Get(ctx, workerKey(workerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.logger.Error("Failed to get worker info", "workerId", workerID, "error", err)
		return nil, fmt.Errorf("failed to get worker info: %w", err)
	}

	var worker domain.WorkerInfo
	if err := json.Unmarshal(workerJSON, &worker); err != nil {
		r.logger.Error("Failed to unmarshal worker info", "error", err)
		return nil, fmt.Errorf("failed to unmarshal worker info: %w", err)
	}
	return &worker, nil
}

// UpdateWorkerHeartbeat updates a worker's heartbeat, load and stats, refreshing its expiry
func (r *WorkerRepository) UpdateWorkerHeartbeat(ctx context.Context, workerID string, load int, stats domain.WorkerStats, at time.Time) error {
	worker, err := r.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}
	if worker == nil {
		return fmt.Errorf("worker not found: %s", workerID)
	}

	worker.CurrentLoad = load
	worker.Stats = stats
	worker.LastHeartbeat = at
	return r.SaveWorker(ctx, worker)
}

// RemoveInactiveWorkers deletes workers silent since cutoffTime and prunes
// type index entries whose registration already expired
func (r *WorkerRepository) RemoveInactiveWorkers(ctx context.Context, cutoffTime time.Time) error {
	workers, err := r.GetAllWorkers(ctx)
	if err != nil {
		return err
	}
	for _, w := range workers {
		if !w.LastHeartbeat.Before(cutoffTime) {
			continue
		}
		pipe := r.redisClient.TxPipeline()
		pipe.Del(ctx, workerKey(w.ID))
		pipe.SRem(ctx, typeKey(w.Type), w.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			r.logger.Error("Failed to remove inactive worker", "workerId", w.ID, "error", err)
			return fmt.Errorf("failed to remove inactive worker: %w", err)
		}
	}

	typeKeys, err := r.scan(ctx, workerTypePrefix+"*")
	if err != nil {
		return err
	}
	for _, tk := range typeKeys {
		workerIDs, err := r.redisClient.SMembers(ctx, tk).Result()
		if err != nil {
			r.logger.Error("Failed to get worker IDs", "typeKey", tk, "error", err)
			continue
		}
		for _, workerID := range workerIDs {
			exists, err := r.redisClient.Exists(ctx, workerKey(workerID)).Result()
			if err != nil {
				r.logger.Error("Failed to check if worker exists", "workerId", workerID, "error", err)
				continue
			}
			if exists == 0 {
				if err := r.redisClient.SRem(ctx, tk, workerID).Err(); err != nil {
					r.logger.Error("Failed to remove worker from type index", "workerId", workerID, "error", err)
				}
			}
		}
	}
	return nil
}

// GetWorkersByType retrieves the live workers of a type
func (r *WorkerRepository) GetWorkersByType(ctx context.Context, workerType string) ([]*domain.WorkerInfo, error) {
	workerIDs, err := r.redisClient.SMembers(ctx, typeKey(workerType)).Result()
	if err != nil {
		r.logger.Error("Failed to get worker IDs", "type", workerType, "error", err)
		return nil, fmt.Errorf("failed to get worker IDs: %w", err)
	}

	keys := make([]string, 0, len(workerIDs))
	for _, id := range workerIDs {
		keys = append(keys, workerKey(id))
	}
	return r.load(ctx, keys)
}

// GetAllWorkers retrieves all worker information from Redis
func (r *WorkerRepository) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	keys, err := r.scan(ctx, workerKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	return r.load(ctx, keys)
}

func (r *WorkerRepository) scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := r.redisClient.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			r.logger.Error("Failed to scan keys", "pattern", pattern, "error", err)
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// load fetches worker records with one MGET, skipping expired ones
func (r *WorkerRepository) load(ctx context.Context, keys []string) ([]*domain.WorkerInfo, error) {
	workers := make([]*domain.WorkerInfo, 0, len(keys))
	if len(keys) == 0 {
		return workers, nil
	}

	workerData, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Error("Failed to retrieve worker data", "error", err)
		return nil, fmt.Errorf("failed to retrieve worker data: %w", err)
	}
	for _, data := range workerData {
		raw, ok := data.(string)
		if !ok {
			continue
		}
		var worker domain.WorkerInfo
		if err := json.Unmarshal([]byte(raw), &worker); err != nil {
			return nil, fmt.Errorf("failed to unmarshal worker data: %w", err)
		}
		workers = append(workers, &worker)
	}
	return workers, nil
}
