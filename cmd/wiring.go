package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"gitlab.com/baseline-2025.net/internal/adapter/crypto"
	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/memory"
	"gitlab.com/baseline-2025.net/internal/adapter/minio/blobport"
	"gitlab.com/baseline-2025.net/internal/adapter/notify"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/batchrepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/blobrepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/jobrepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/messagerepository"
	"gitlab.com/baseline-2025.net/internal/adapter/postgres/suiterepository"
	"gitlab.com/baseline-2025.net/internal/adapter/redis/cacheport"
	"gitlab.com/baseline-2025.net/internal/adapter/redis/eventport"
	"gitlab.com/baseline-2025.net/internal/adapter/redis/workerport"
	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/core/services/baseline"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/compare"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/core/services/submit"
	"gitlab.com/baseline-2025.net/internal/core/services/suite"
	"gitlab.com/baseline-2025.net/internal/core/services/worker"
)

// ports holds the secondary adapters selected by StorageConfig
type ports struct {
	suites   secondary.SuiteRepository
	batches  secondary.BatchRepository
	jobs     secondary.JobRepository
	messages secondary.MessageRepository
	blobs    secondary.BlobStore
	cache    secondary.Cache
	workers  secondary.WorkerRepository
	notifier secondary.Notifier

	closers []func() error
}

func (p *ports) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i]()
	}
}

// services is the wired application core
type services struct {
	messages *message.MessageStore
	queue    *job.JobQueue
	batches  *batch.BatchService
	suites   *suite.SuiteService
	intake   *submit.IntakeService
	registry *worker.WorkerRegistrationService
	engine   *compare.Engine
	jwt      *crypto.JWTServiceImpl
}

func openPorts(ctx context.Context, cfg *config.AppConfig, logger *logging.ZapLogger) (*ports, error) {
	p := &ports{}
	storage := cfg.StorageConfig

	var db *sqlx.DB
	openDB := func() (*sqlx.DB, error) {
		if db != nil {
			return db, nil
		}
		conn, err := postgres.Open(ctx, cfg.PostgresConfig)
		if err != nil {
			return nil, err
		}
		db = conn
		p.closers = append(p.closers, conn.Close)
		return db, nil
	}

	var redisClient *redis.Client
	openRedis := func() *redis.Client {
		if redisClient == nil {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisConfig.Url,
				Password: cfg.RedisConfig.Password,
				DB:       cfg.RedisConfig.DB,
			})
			p.closers = append(p.closers, redisClient.Close)
		}
		return redisClient
	}

	switch storage.Backend {
	case config.BackendMemory:
		store := memory.NewStore()
		p.suites, p.batches, p.jobs, p.messages = store, store, store, store
	case config.BackendPostgres:
		conn, err := openDB()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.suites = suiterepository.NewSuiteRepository(conn, logger)
		p.batches = batchrepository.NewBatchRepository(conn, logger)
		p.jobs = jobrepository.NewJobRepository(conn, logger)
		p.messages = messagerepository.NewMessageRepository(conn, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", storage.Backend)
	}

	switch storage.BlobBackend {
	case config.BackendMemory:
		p.blobs = memory.NewBlobStore()
	case config.BackendPostgres:
		conn, err := openDB()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.blobs = blobrepository.NewBlobRepository(conn, logger)
	case config.BackendMinio:
		store, err := blobport.NewBlobStore(ctx, cfg.MinioConfig, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.blobs = store
	default:
		p.Close()
		return nil, fmt.Errorf("unknown blob backend %q", storage.BlobBackend)
	}

	switch storage.Cache {
	case config.BackendRedis:
		p.cache = cacheport.NewCache(openRedis(), logger)
	default:
		p.cache = memory.NewCache()
	}

	switch storage.Workers {
	case config.BackendRedis:
		p.workers = workerport.NewWorkerRepository(openRedis(), logger)
	default:
		p.workers = memory.NewWorkerRegistry()
	}

	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			p.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	fanout := notify.Fanout{notify.NewLogNotifier(logger)}
	if cfg.NotifierConfig.WebhookURL != "" {
		fanout = append(fanout, notify.NewWebhookNotifier(cfg.NotifierConfig))
	}
	if cfg.RedisConfig.EventsChannel != "" {
		fanout = append(fanout, eventport.NewPublisher(openRedis(), cfg.RedisConfig.EventsChannel, logger))
	}
	p.notifier = fanout

	return p, nil
}

func runMigrations(ctx context.Context, cfg *config.PostgresConfig, logger *logging.ZapLogger) error {
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	for _, version := range applied {
		logger.Info("Migration applied", "version", version)
	}
	logger.Info("Schema up to date", "applied", len(applied))
	return nil
}

func buildServices(cfg *config.AppConfig, policy *config.Policy, p *ports, logger *logging.ZapLogger) *services {
	hasher := crypto.NewHasher()
	cacheTTL := time.Duration(cfg.HTTPConfig.CacheTTLSec) * time.Second

	s := &services{}
	s.messages = message.NewMessageStore(p.messages, p.blobs, hasher, logger)
	s.queue = job.NewJobQueue(p.jobs, s.messages, hasher, cfg.QueueCfg, logger)
	s.batches = batch.NewBatchService(batch.Deps{
		SuiteRepo: p.suites,
		BatchRepo: p.batches,
		JobRepo:   p.jobs,
		Queue:     s.queue,
		Messages:  s.messages,
		Resolver:  baseline.NewResolver(p.suites, p.batches, logger),
		Notifier:  p.notifier,
		Cache:     p.cache,
	}, policy.Promotion, cacheTTL, logger)
	s.queue.SetTerminalNotifier(s.batches.OnJobTerminal)
	s.suites = suite.NewSuiteService(p.suites, p.batches, p.cache, cacheTTL, logger)
	s.intake = submit.NewIntakeService(s.suites, s.batches, s.messages, logger)
	s.registry = worker.NewWorkerRegistrationService(p.workers, cfg.EngineCfg.WorkerInactiveAfter, logger)
	s.engine = compare.NewEngine(policy.Comparison)
	s.jwt = crypto.NewJWTService(cfg.JwtConfig)
	return s
}

func (s *services) newWorker(cfg *config.AppConfig, logger *logging.ZapLogger) *worker.Worker {
	w := worker.NewWorker(s.queue, s.messages, s.engine, s.registry, cfg.WorkerCfg, logger)
	s.queue.SetWorkerNotifier(w.Wake)
	return w
}
