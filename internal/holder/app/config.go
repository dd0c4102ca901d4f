package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	HashAlgorithm string // Optional: password digest (md5, blake2b) (default: md5)
	ImportFile    string // Optional: record file loaded at startup

	DeliveryQueue     int           // Optional: buffered access codes (default: 256)
	DeliveryTimeout   time.Duration // Optional: per attempt gateway timeout (default: 5s)
	DeliveryRetries   int           // Optional: retries after the first attempt (default: 3)
	DeliveryPerMinute int           // Optional: codes per phone per minute (default: 5)
	DeliveryBurst     int           // Optional: burst per phone (default: 5)

	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		HashAlgorithm: getEnvOrDefault("HOLDER_HASH_ALGORITHM", "md5"),
		ImportFile:    os.Getenv("HOLDER_IMPORT_FILE"),

		DeliveryQueue:     getEnvIntOrDefault("HOLDER_DELIVERY_QUEUE", 256),
		DeliveryTimeout:   getEnvDurationOrDefault("HOLDER_DELIVERY_TIMEOUT", 5*time.Second),
		DeliveryRetries:   getEnvIntOrDefault("HOLDER_DELIVERY_RETRIES", 3),
		DeliveryPerMinute: getEnvIntOrDefault("HOLDER_DELIVERY_PER_MINUTE", 5),
		DeliveryBurst:     getEnvIntOrDefault("HOLDER_DELIVERY_BURST", 5),

		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "5s", "1m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
