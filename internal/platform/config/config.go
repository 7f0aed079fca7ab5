// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures server, storage, and cache level configuration.
type Config struct {
	Addr        string
	DataDir     string
	PostgresDSN string
	Redis       RedisConfig
	RankingTTL  time.Duration
}

// RedisConfig holds connection tuning for the optional ranking cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults. An empty PostgresDSN selects the in-memory run store; an empty
// Redis URL disables ranking caching.
func FromEnv() Config {
	addr := os.Getenv("CLINOPS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	dataDir := os.Getenv("CLINOPS_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	return Config{
		Addr:        addr,
		DataDir:     dataDir,
		PostgresDSN: os.Getenv("CLINOPS_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CLINOPS_REDIS_URL"),
			PoolSize:     envInt("CLINOPS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CLINOPS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CLINOPS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CLINOPS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CLINOPS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RankingTTL: envDuration("CLINOPS_RANKING_TTL", 5*time.Minute),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
