package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/memory"
	"gitlab.com/baseline-2025.net/internal/domain"
)

func TestRegistrationLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewWorkerRegistrationService(memory.NewWorkerRegistry(), time.Minute, logging.NewNopLogger())
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.RegisterWorker(ctx, &domain.WorkerInfo{ID: "w1", Type: domain.WorkerTypeComparison, Capacity: 2}))
	require.NoError(t, svc.RegisterWorker(ctx, &domain.WorkerInfo{ID: "w2", Type: domain.WorkerTypeComparison, Capacity: 1}))
	require.NoError(t, svc.Heartbeat(ctx, "w2", 1, domain.WorkerStats{Processed: 3}))

	available, err := svc.GetAvailableWorkers(ctx, domain.WorkerTypeComparison)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "w1", available[0].ID)

	now = now.Add(45 * time.Second)
	require.NoError(t, svc.Heartbeat(ctx, "w2", 0, domain.WorkerStats{Processed: 4}))
	now = now.Add(30 * time.Second)

	workers, err := svc.GetAllWorkers(ctx)
	require.NoError(t, err)
	active := map[string]bool{}
	for _, w := range workers {
		active[w.ID] = w.IsActive
	}
	assert.Equal(t, map[string]bool{"w1": false, "w2": true}, active)

	require.NoError(t, svc.CleanupInactiveWorkers(ctx))
	workers, err = svc.GetAllWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, int64(4), workers[0].Stats.Processed)

	assert.Error(t, svc.Heartbeat(ctx, "w1", 0, domain.WorkerStats{}))
}
