package config

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMinio    = "minio"
)

// StorageConfig selects the adapter for each persistence concern
type StorageConfig struct {
	Backend     string
	BlobBackend string
	Cache       string
	Workers     string
}

func NewStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend:     getenv("STORAGE_BACKEND", BackendPostgres),
		BlobBackend: getenv("BLOB_BACKEND", BackendPostgres),
		Cache:       getenv("CACHE_BACKEND", BackendRedis),
		Workers:     getenv("WORKER_REGISTRY_BACKEND", BackendRedis),
	}
}
