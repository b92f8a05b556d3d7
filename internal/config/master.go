package config

import "os"

type AppConfig struct {
	DebugMode      bool
	StorageConfig  *StorageConfig
	QueueCfg       *QueueCfg
	WorkerCfg      *WorkerCfg
	EngineCfg      *EngineCfg
	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
	MinioConfig    *MinioConfig
	JwtConfig      *JwtConfig
	NotifierConfig *NotifierConfig
	HTTPConfig     *HTTPConfig
	PolicyFile     string
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		StorageConfig:  NewStorageConfig(),
		QueueCfg:       NewQueueCfg(),
		WorkerCfg:      NewWorkerCfg(),
		EngineCfg:      NewEngineCfg(),
		RedisConfig:    NewRedisConfig(),
		PostgresConfig: NewPostgresConfig(),
		MinioConfig:    NewMinioConfig(),
		JwtConfig:      NewJwtConfig(),
		NotifierConfig: NewNotifierConfig(),
		HTTPConfig:     NewHTTPConfig(),
		PolicyFile:     os.Getenv("POLICY_FILE"),
	}
}
