package config

import (
	"time"
)

// QueueCfg drives retry, backoff and leasing of comparison jobs
type QueueCfg struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	LeaseDuration time.Duration
}

func NewQueueCfg() *QueueCfg {
	return &QueueCfg{
		MaxAttempts:   getenvInt("JOB_MAX_ATTEMPTS", 5),
		BackoffBase:   getenvMillis("JOB_BACKOFF_BASE_MS", 500*time.Millisecond),
		BackoffMax:    getenvSeconds("JOB_BACKOFF_MAX_SEC", 5*time.Minute),
		LeaseDuration: getenvSeconds("JOB_LEASE_SEC", 60*time.Second),
	}
}

type WorkerCfg struct {
	WorkerID          string
	Concurrency       int
	PollInterval      time.Duration
	StatsInterval     time.Duration
	HeartbeatInterval time.Duration
	JobTimeout        time.Duration
}

func NewWorkerCfg() *WorkerCfg {
	return &WorkerCfg{
		WorkerID:          getenv("WORKER_ID", ""),
		Concurrency:       getenvInt("WORKER_CONCURRENCY", 4),
		PollInterval:      getenvMillis("WORKER_POLL_INTERVAL_MS", time.Second),
		StatsInterval:     getenvSeconds("WORKER_STATS_INTERVAL_SEC", 30*time.Second),
		HeartbeatInterval: getenvSeconds("WORKER_HEARTBEAT_INTERVAL_SEC", 15*time.Second),
		JobTimeout:        getenvSeconds("WORKER_JOB_TIMEOUT_SEC", 30*time.Second),
	}
}

// EngineCfg drives the background maintenance loops
type EngineCfg struct {
	ReclaimInterval       time.Duration
	ReconcileInterval     time.Duration
	WorkerCleanupInterval time.Duration
	WorkerInactiveAfter   time.Duration
	BatchLimit            int
}

func NewEngineCfg() *EngineCfg {
	return &EngineCfg{
		ReclaimInterval:       getenvSeconds("RECLAIM_INTERVAL_SEC", 15*time.Second),
		ReconcileInterval:     getenvSeconds("RECONCILE_INTERVAL_SEC", 60*time.Second),
		WorkerCleanupInterval: getenvSeconds("WORKER_CLEANUP_INTERVAL_SEC", 60*time.Second),
		WorkerInactiveAfter:   getenvSeconds("WORKER_INACTIVE_AFTER_SEC", 5*time.Minute),
		BatchLimit:            getenvInt("ENGINE_BATCH_LIMIT", 100),
	}
}
