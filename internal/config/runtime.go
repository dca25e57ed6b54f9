// Package config reads runtime configuration for the example programs
// from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Runtime is the environment-driven configuration of a flowchart program.
type Runtime struct {
	// Store selects the snapshot backend: memory, sqlite, mysql, postgres,
	// redis or mongo.
	Store string

	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
	RedisAddr   string
	MongoURI    string

	MaxSteps      int
	CacheMaxItems int

	// MetricsAddr is the listen address of the Prometheus endpoint; empty
	// disables it.
	MetricsAddr string
	LogJSON     bool
}

// Load reads the configuration. Invalid numbers fall back to defaults.
func Load() Runtime {
	return Runtime{
		Store:         strings.ToLower(getenv("FLOWCHART_STORE", "memory")),
		SQLitePath:    getenv("FLOWCHART_SQLITE_PATH", "flowchart.db"),
		MySQLDSN:      getenv("FLOWCHART_MYSQL_DSN", ""),
		PostgresDSN:   getenv("FLOWCHART_POSTGRES_DSN", ""),
		RedisAddr:     getenv("FLOWCHART_REDIS_ADDR", "localhost:6379"),
		MongoURI:      getenv("FLOWCHART_MONGO_URI", "mongodb://localhost:27017"),
		MaxSteps:      getenvInt("FLOWCHART_MAX_STEPS", 10_000, 0),
		CacheMaxItems: getenvInt("FLOWCHART_CACHE_MAX_ITEMS", 128, 1),
		MetricsAddr:   getenv("FLOWCHART_METRICS_ADDR", ""),
		LogJSON:       getenvBool("FLOWCHART_LOG_JSON", false),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
