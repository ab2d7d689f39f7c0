package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
	"github.com/SmitUplenchwar2687/ServerEye/internal/storage"
)

// storageOptions are the snapshot cache flags. They override the config
// only when set on the command line.
type storageOptions struct {
	backend           string
	ttl               time.Duration
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
	redisPoolSize     int
	redisMaxRetries   int
	redisDialTimeout  time.Duration
	redisPrefix       string
}

func (o *storageOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.backend, "storage", storage.BackendMemory, "snapshot cache backend (memory, redis)")
	cmd.Flags().DurationVar(&o.ttl, "storage-ttl", 24*time.Hour, "how long a cached snapshot stays valid")
	cmd.Flags().StringVar(&o.redisHost, "redis-host", "localhost", "redis host (or host:port)")
	cmd.Flags().IntVar(&o.redisPort, "redis-port", 6379, "redis port")
	cmd.Flags().StringVar(&o.redisPassword, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	cmd.Flags().StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	cmd.Flags().IntVar(&o.redisPoolSize, "redis-pool-size", 10, "redis connection pool size")
	cmd.Flags().IntVar(&o.redisMaxRetries, "redis-max-retries", 3, "redis max retries")
	cmd.Flags().DurationVar(&o.redisDialTimeout, "redis-dial-timeout", 5*time.Second, "redis dial timeout")
	cmd.Flags().StringVar(&o.redisPrefix, "redis-prefix", "servereye:", "redis key prefix")
}

func (o *storageOptions) apply(cmd *cobra.Command, cfg *storage.Config) error {
	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Backend = o.backend
	}
	if flags.Changed("storage-ttl") {
		cfg.TTL = o.ttl
	}
	if flags.Changed("redis-host") {
		cfg.Redis.Host = o.redisHost
	}
	if flags.Changed("redis-port") {
		cfg.Redis.Port = o.redisPort
	}
	if flags.Changed("redis-password") {
		cfg.Redis.Password = o.redisPassword
	}
	if flags.Changed("redis-db") {
		cfg.Redis.DB = o.redisDB
	}
	if flags.Changed("redis-cluster") {
		cfg.Redis.Cluster = o.redisCluster
	}
	if flags.Changed("redis-cluster-nodes") {
		cfg.Redis.ClusterNodes = append([]string(nil), o.redisClusterNodes...)
	}
	if flags.Changed("redis-pool-size") {
		cfg.Redis.PoolSize = o.redisPoolSize
	}
	if flags.Changed("redis-max-retries") {
		cfg.Redis.MaxRetries = o.redisMaxRetries
	}
	if flags.Changed("redis-dial-timeout") {
		cfg.Redis.DialTimeout = o.redisDialTimeout
	}
	if flags.Changed("redis-prefix") {
		cfg.Redis.Prefix = o.redisPrefix
	}

	if cfg.Backend != storage.BackendRedis || cfg.Redis.Cluster {
		return nil
	}
	host, port, err := normalizeRedisHostPort(cfg.Redis.Host, cfg.Redis.Port)
	if err != nil {
		return err
	}
	cfg.Redis.Host, cfg.Redis.Port = host, port
	return nil
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}

// filterOptions are the event filter flags shared by events and export.
type filterOptions struct {
	eventType string
	player    string
}

func (o *filterOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.eventType, "type", pipeline.AllTypes, "only events of this type")
	cmd.Flags().StringVar(&o.player, "player", "", "only players whose name contains this text (case-insensitive)")
}

func (o *filterOptions) filter() pipeline.Filter {
	return pipeline.Filter{EventType: o.eventType, Player: o.player}.Normalize()
}
