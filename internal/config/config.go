// Package config loads process settings from the environment, with an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration.
type Config struct {
	WebHost      string
	WebPort      string
	DBPath       string
	TargetsPath  string
	VendorsPath  string
	PollInterval time.Duration
	PollWorkers  int
	SNMPTimeout  time.Duration
	DNSEnabled   bool
	DNSCacheTTL  time.Duration
	DNSTimeout   time.Duration
	DumpDir      string
	LogLevel     string
}

// Load reads .env if present and assembles the config from environment
// variables with defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		WebHost:      getEnv("WEB_HOST", "0.0.0.0"),
		WebPort:      getEnv("WEB_PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "topomap.db"),
		TargetsPath:  getEnv("TARGETS_PATH", "targets.yaml"),
		VendorsPath:  getEnv("VENDORS_PATH", ""),
		PollInterval: getEnvDuration("POLL_INTERVAL", 10*time.Minute),
		PollWorkers:  getEnvInt("POLL_WORKERS", 4),
		SNMPTimeout:  getEnvDuration("SNMP_TIMEOUT", 5*time.Second),
		DNSEnabled:   getEnvBool("DNS_ENABLED", true),
		DNSCacheTTL:  getEnvDuration("DNS_CACHE_TTL", time.Hour),
		DNSTimeout:   getEnvDuration("DNS_TIMEOUT", 2*time.Second),
		DumpDir:      getEnv("SNAPSHOT_DUMP_DIR", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv fetches an environment variable or returns fallback.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings, falling back to whole seconds
// for bare integers.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
