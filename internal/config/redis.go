package config

type RedisConfig struct {
	DB            int
	Url           string
	Password      string
	EventsChannel string
}

func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		DB:            getenvInt("REDIS_DB", 0),
		Url:           getenv("REDIS_ADDR", "localhost:6379"),
		Password:      getenv("REDIS_PASSWORD", ""),
		EventsChannel: getenv("REDIS_EVENTS_CHANNEL", ""),
	}
}
