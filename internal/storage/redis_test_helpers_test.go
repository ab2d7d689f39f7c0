package storage

import (
	"context"
	"strconv"
	"testing"
	"time"

	testcontainers "github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

// redisServer is a throwaway Redis that several dashboards can share.
type redisServer struct {
	host string
	port int
}

func startRedis(t *testing.T) redisServer {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := rediscontainer.Run(ctx, "redis:7.2-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("container mapped port: %v", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		t.Fatalf("parse mapped port: %v", err)
	}
	return redisServer{host: host, port: port}
}

// dashboard connects a snapshot cache under prefix. It is closed when
// the test ends.
func (r redisServer) dashboard(t *testing.T, prefix string) *RedisStorage {
	t.Helper()
	store, err := NewRedisStorage(&RedisConfig{
		Host:        r.host,
		Port:        r.port,
		DialTimeout: 5 * time.Second,
		Prefix:      prefix,
	})
	if err != nil {
		t.Fatalf("NewRedisStorage(prefix %q): %v", prefix, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
