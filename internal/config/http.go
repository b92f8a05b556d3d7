package config

type HTTPConfig struct {
	Port        int
	ServiceName string
	CacheTTLSec int
}

func NewHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Port:        getenvInt("HTTP_PORT", 8082),
		ServiceName: getenv("SERVICE_NAME", "baseline"),
		CacheTTLSec: getenvInt("OVERVIEW_CACHE_TTL_SEC", 300),
	}
}
