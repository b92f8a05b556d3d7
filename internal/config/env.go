package config

import (
	"os"
	"strconv"
	"time"
)

func getenv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	varInt, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return varInt
}

func getenvBool(key string, fallback bool) bool {
	varBool, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return varBool
}

// getenvSeconds reads a whole number of seconds
func getenvSeconds(key string, fallback time.Duration) time.Duration {
	varInt, err := strconv.Atoi(os.Getenv(key))
	if err != nil || varInt <= 0 {
		return fallback
	}
	return time.Duration(varInt) * time.Second
}

// getenvMillis reads a whole number of milliseconds
func getenvMillis(key string, fallback time.Duration) time.Duration {
	varInt, err := strconv.Atoi(os.Getenv(key))
	if err != nil || varInt <= 0 {
		return fallback
	}
	return time.Duration(varInt) * time.Millisecond
}
