// Package storage keeps the last good dashboard snapshot so a restart or
// an upstream outage still has data to show.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
)

// Backend names accepted in Config.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Storage is a small key/value store with expiry.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get retrieves the stored value for a key.
	// Returns nil, nil if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value for a key with an expiration duration.
	// If exp is 0, the key does not expire.
	Set(ctx context.Context, key string, value []byte, exp time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string        `json:"backend"`
	TTL     time.Duration `json:"ttl"`
	Redis   RedisConfig   `json:"redis"`
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	Cluster      bool          `json:"cluster"`
	ClusterNodes []string      `json:"cluster_nodes"`
	Prefix       string        `json:"prefix"`
}

// New builds the configured backend. The memory backend uses clk for
// expiry.
func New(cfg Config, clk clock.Clock) (Storage, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		if clk == nil {
			clk = clock.NewRealClock()
		}
		return NewMemoryStorage(clk), nil
	case BackendRedis:
		return NewRedisStorage(&cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", cfg.Backend)
	}
}
