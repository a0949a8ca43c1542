// Package env provides small helpers for reading process-level overrides
// out of the environment (and an optional .env file), in the common
// getEnv/getEnvAsDuration helper style.
package env

import (
	"os"
	"strconv"
	"time"
)

// Get retrieves a string environment variable or returns a default value.
func Get(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetAsInt retrieves an integer environment variable or returns a default value.
func GetAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(Get(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetAsDuration retrieves a time.Duration environment variable or returns a default value.
func GetAsDuration(key string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(Get(key, "")); err == nil {
		return duration
	}
	return defaultValue
}
