// Package config loads ServerEye settings from defaults, a JSON or TOML
// file, .env files and SERVEREYE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/SmitUplenchwar2687/ServerEye/internal/limiter"
	"github.com/SmitUplenchwar2687/ServerEye/internal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SERVEREYE_"

// Config is the top-level configuration.
type Config struct {
	Upstream  UpstreamConfig  `json:"upstream"`
	Dashboard DashboardConfig `json:"dashboard"`
	Limits    limiter.Config  `json:"limits"`
	Storage   storage.Config  `json:"storage"`
	Export    ExportConfig    `json:"export"`
	Log       LogConfig       `json:"log"`
}

// UpstreamConfig points at the ServerEye backend.
type UpstreamConfig struct {
	URL          string        `json:"url" validate:"required,url"`
	Timeout      time.Duration `json:"timeout" validate:"gt=0"`
	PollInterval time.Duration `json:"poll_interval" validate:"gt=0"`
}

// DashboardConfig holds the web dashboard settings.
type DashboardConfig struct {
	Addr                string        `json:"addr" validate:"required"`
	Language            string        `json:"language" validate:"oneof=en zh"`
	FilterDebounce      time.Duration `json:"filter_debounce" validate:"gte=0"`
	CleanupRefreshDelay time.Duration `json:"cleanup_refresh_delay" validate:"gte=0"`
	DetailMaxDepth      int           `json:"detail_max_depth" validate:"gte=1,lte=64"`
	Timezone            string        `json:"timezone"`
	// TrustProxy keys rate limits on X-Forwarded-For. Enable only behind
	// a proxy that sets it.
	TrustProxy          bool          `json:"trust_proxy"`
}

// ExportConfig controls where exports are written.
type ExportConfig struct {
	Dir  string   `json:"dir"`
	Gzip bool     `json:"gzip"`
	S3   S3Config `json:"s3"`
}

// S3Config names an optional S3 destination for exports.
type S3Config struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level    string `json:"level" validate:"oneof=trace debug info warn error"`
	Pretty   bool   `json:"pretty"`
	SampleN  uint32 `json:"sample_n"`
	Service  string `json:"service"`
	Instance string `json:"instance"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	host, _ := os.Hostname()
	return Config{
		Upstream: UpstreamConfig{
			URL:          "http://localhost:8080",
			Timeout:      10 * time.Second,
			PollInterval: 30 * time.Second,
		},
		Dashboard: DashboardConfig{
			Addr:                ":8090",
			Language:            "en",
			FilterDebounce:      300 * time.Millisecond,
			CleanupRefreshDelay: 2 * time.Second,
			DetailMaxDepth:      8,
			Timezone:            "Local",
		},
		Limits: limiter.Config{
			Rate:   6,
			Window: time.Minute,
			Burst:  3,
		},
		Storage: storage.Config{
			Backend: storage.BackendMemory,
			TTL:     24 * time.Hour,
			Redis: storage.RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Export: ExportConfig{
			Dir: ".",
		},
		Log: LogConfig{
			Level:    "info",
			Service:  "servereye",
			Instance: host,
		},
	}
}

var validate = validator.New()

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Limits.Rate < 0 {
		return fmt.Errorf("limits.rate must not be negative, got %d", c.Limits.Rate)
	}
	if c.Limits.Rate > 0 && c.Limits.Window <= 0 {
		return fmt.Errorf("limits.window must be positive when limits.rate is set, got %s", c.Limits.Window)
	}
	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendRedis:
		r := c.Storage.Redis
		if r.Cluster && len(r.ClusterNodes) == 0 {
			return fmt.Errorf("storage.redis.cluster_nodes is required when cluster=true")
		}
		if !r.Cluster && (r.Host == "" || r.Port <= 0) {
			return fmt.Errorf("storage.redis.host and port are required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", c.Storage.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Dashboard.Timezone. Empty means local time.
func (c Config) Location() (*time.Location, error) {
	if c.Dashboard.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid dashboard.timezone: %w", err)
	}
	return loc, nil
}

// LoadFile reads a JSON or TOML config file (chosen by extension) and
// merges it with defaults. Fields not specified in the file retain their
// default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := raw.merge(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// rawConfig is the file representation with string durations. Pointers
// mark booleans that may be explicitly set to false.
type rawConfig struct {
	Upstream struct {
		URL          string `json:"url" toml:"url"`
		Timeout      string `json:"timeout" toml:"timeout"`
		PollInterval string `json:"poll_interval" toml:"poll_interval"`
	} `json:"upstream" toml:"upstream"`
	Dashboard struct {
		Addr                string `json:"addr" toml:"addr"`
		Language            string `json:"language" toml:"language"`
		FilterDebounce      string `json:"filter_debounce" toml:"filter_debounce"`
		CleanupRefreshDelay string `json:"cleanup_refresh_delay" toml:"cleanup_refresh_delay"`
		DetailMaxDepth      int    `json:"detail_max_depth" toml:"detail_max_depth"`
		Timezone            string `json:"timezone" toml:"timezone"`
		TrustProxy          *bool  `json:"trust_proxy" toml:"trust_proxy"`
	} `json:"dashboard" toml:"dashboard"`
	Limits struct {
		Rate   *int   `json:"rate" toml:"rate"`
		Window string `json:"window" toml:"window"`
		Burst  int    `json:"burst" toml:"burst"`
	} `json:"limits" toml:"limits"`
	Storage struct {
		Backend string `json:"backend" toml:"backend"`
		TTL     string `json:"ttl" toml:"ttl"`
		Redis   struct {
			Host         string   `json:"host" toml:"host"`
			Port         int      `json:"port" toml:"port"`
			Password     string   `json:"password" toml:"password"`
			DB           int      `json:"db" toml:"db"`
			PoolSize     int      `json:"pool_size" toml:"pool_size"`
			MaxRetries   int      `json:"max_retries" toml:"max_retries"`
			DialTimeout  string   `json:"dial_timeout" toml:"dial_timeout"`
			Cluster      *bool    `json:"cluster" toml:"cluster"`
			ClusterNodes []string `json:"cluster_nodes" toml:"cluster_nodes"`
			Prefix       string   `json:"prefix" toml:"prefix"`
		} `json:"redis" toml:"redis"`
	} `json:"storage" toml:"storage"`
	Export struct {
		Dir  string `json:"dir" toml:"dir"`
		Gzip *bool  `json:"gzip" toml:"gzip"`
		S3   struct {
			Bucket   string `json:"bucket" toml:"bucket"`
			Prefix   string `json:"prefix" toml:"prefix"`
			Region   string `json:"region" toml:"region"`
			Endpoint string `json:"endpoint" toml:"endpoint"`
		} `json:"s3" toml:"s3"`
	} `json:"export" toml:"export"`
	Log struct {
		Level    string `json:"level" toml:"level"`
		Pretty   *bool  `json:"pretty" toml:"pretty"`
		SampleN  uint32 `json:"sample_n" toml:"sample_n"`
		Service  string `json:"service" toml:"service"`
		Instance string `json:"instance" toml:"instance"`
	} `json:"log" toml:"log"`
}

func (raw rawConfig) merge(cfg *Config) error {
	setString(&cfg.Upstream.URL, raw.Upstream.URL)
	if err := setDuration(&cfg.Upstream.Timeout, raw.Upstream.Timeout, "upstream.timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Upstream.PollInterval, raw.Upstream.PollInterval, "upstream.poll_interval"); err != nil {
		return err
	}

	setString(&cfg.Dashboard.Addr, raw.Dashboard.Addr)
	setString(&cfg.Dashboard.Language, raw.Dashboard.Language)
	setString(&cfg.Dashboard.Timezone, raw.Dashboard.Timezone)
	if err := setDuration(&cfg.Dashboard.FilterDebounce, raw.Dashboard.FilterDebounce, "dashboard.filter_debounce"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Dashboard.CleanupRefreshDelay, raw.Dashboard.CleanupRefreshDelay, "dashboard.cleanup_refresh_delay"); err != nil {
		return err
	}
	if raw.Dashboard.DetailMaxDepth > 0 {
		cfg.Dashboard.DetailMaxDepth = raw.Dashboard.DetailMaxDepth
	}
	if raw.Dashboard.TrustProxy != nil {
		cfg.Dashboard.TrustProxy = *raw.Dashboard.TrustProxy
	}

	if raw.Limits.Rate != nil {
		cfg.Limits.Rate = *raw.Limits.Rate
	}
	if err := setDuration(&cfg.Limits.Window, raw.Limits.Window, "limits.window"); err != nil {
		return err
	}
	if raw.Limits.Burst > 0 {
		cfg.Limits.Burst = raw.Limits.Burst
	}

	setString(&cfg.Storage.Backend, raw.Storage.Backend)
	if err := setDuration(&cfg.Storage.TTL, raw.Storage.TTL, "storage.ttl"); err != nil {
		return err
	}
	r := raw.Storage.Redis
	setString(&cfg.Storage.Redis.Host, r.Host)
	setString(&cfg.Storage.Redis.Password, r.Password)
	setString(&cfg.Storage.Redis.Prefix, r.Prefix)
	if r.Port > 0 {
		cfg.Storage.Redis.Port = r.Port
	}
	if r.DB > 0 {
		cfg.Storage.Redis.DB = r.DB
	}
	if r.PoolSize > 0 {
		cfg.Storage.Redis.PoolSize = r.PoolSize
	}
	if r.MaxRetries > 0 {
		cfg.Storage.Redis.MaxRetries = r.MaxRetries
	}
	if err := setDuration(&cfg.Storage.Redis.DialTimeout, r.DialTimeout, "storage.redis.dial_timeout"); err != nil {
		return err
	}
	if r.Cluster != nil {
		cfg.Storage.Redis.Cluster = *r.Cluster
	}
	if len(r.ClusterNodes) > 0 {
		cfg.Storage.Redis.ClusterNodes = r.ClusterNodes
	}

	setString(&cfg.Export.Dir, raw.Export.Dir)
	if raw.Export.Gzip != nil {
		cfg.Export.Gzip = *raw.Export.Gzip
	}
	setString(&cfg.Export.S3.Bucket, raw.Export.S3.Bucket)
	setString(&cfg.Export.S3.Prefix, raw.Export.S3.Prefix)
	setString(&cfg.Export.S3.Region, raw.Export.S3.Region)
	setString(&cfg.Export.S3.Endpoint, raw.Export.S3.Endpoint)

	setString(&cfg.Log.Level, raw.Log.Level)
	setString(&cfg.Log.Service, raw.Log.Service)
	setString(&cfg.Log.Instance, raw.Log.Instance)
	if raw.Log.Pretty != nil {
		cfg.Log.Pretty = *raw.Log.Pretty
	}
	if raw.Log.SampleN > 0 {
		cfg.Log.SampleN = raw.Log.SampleN
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, name string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadEnvFiles(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from SERVEREYE_* variables looked up with
// getenv (os.Getenv in production).
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	get := func(name string) string { return strings.TrimSpace(getenv(EnvPrefix + name)) }

	setString(&cfg.Upstream.URL, get("UPSTREAM_URL"))
	setString(&cfg.Dashboard.Addr, get("ADDR"))
	setString(&cfg.Dashboard.Language, get("LANGUAGE"))
	setString(&cfg.Dashboard.Timezone, get("TIMEZONE"))
	setString(&cfg.Storage.Backend, get("STORAGE_BACKEND"))
	setString(&cfg.Storage.Redis.Host, get("REDIS_HOST"))
	setString(&cfg.Storage.Redis.Password, get("REDIS_PASSWORD"))
	setString(&cfg.Export.Dir, get("EXPORT_DIR"))
	setString(&cfg.Export.S3.Bucket, get("S3_BUCKET"))
	setString(&cfg.Export.S3.Region, get("S3_REGION"))
	setString(&cfg.Export.S3.Endpoint, get("S3_ENDPOINT"))
	setString(&cfg.Log.Level, get("LOG_LEVEL"))
	setString(&cfg.Log.Instance, get("INSTANCE"))

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout},
		{"POLL_INTERVAL", &cfg.Upstream.PollInterval},
		{"FILTER_DEBOUNCE", &cfg.Dashboard.FilterDebounce},
		{"STORAGE_TTL", &cfg.Storage.TTL},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, get(d.name), EnvPrefix+d.name); err != nil {
			return err
		}
	}

	if v := get("REDIS_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sREDIS_PORT: %w", EnvPrefix, err)
		}
		cfg.Storage.Redis.Port = n
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"LOG_PRETTY", &cfg.Log.Pretty},
		{"EXPORT_GZIP", &cfg.Export.Gzip},
		{"TRUST_PROXY", &cfg.Dashboard.TrustProxy},
	}
	for _, b := range bools {
		v := get(b.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s: %w", EnvPrefix, b.name, err)
		}
		*b.dst = parsed
	}
	return nil
}

// Load builds the effective config: defaults, then the file at path (if
// non-empty), then .env files, then the environment.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := LoadEnvFiles(envFiles...); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

const exampleJSON = `{
  "upstream": {
    "url": "http://localhost:8080",
    "timeout": "10s",
    "poll_interval": "30s"
  },
  "dashboard": {
    "addr": ":8090",
    "language": "en",
    "filter_debounce": "300ms",
    "cleanup_refresh_delay": "2s",
    "detail_max_depth": 8,
    "timezone": "Local",
    "trust_proxy": false
  },
  "limits": {
    "rate": 6,
    "window": "1m",
    "burst": 3
  },
  "storage": {
    "backend": "memory",
    "ttl": "24h",
    "redis": {
      "host": "localhost",
      "port": 6379
    }
  },
  "export": {
    "dir": ".",
    "gzip": false
  },
  "log": {
    "level": "info",
    "pretty": false
  }
}
`

const exampleTOML = `[upstream]
url = "http://localhost:8080"
timeout = "10s"
poll_interval = "30s"

[dashboard]
addr = ":8090"
language = "en"
filter_debounce = "300ms"
cleanup_refresh_delay = "2s"
detail_max_depth = 8
timezone = "Local"
trust_proxy = false

[limits]
rate = 6
window = "1m"
burst = 3

[storage]
backend = "memory"
ttl = "24h"

[storage.redis]
host = "localhost"
port = 6379

[export]
dir = "."
gzip = false

[log]
level = "info"
pretty = false
`

// WriteExample writes an example config file to the given path, in TOML
// when the path ends in .toml and JSON otherwise.
func WriteExample(path string) error {
	example := exampleJSON
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		example = exampleTOML
	}
	return os.WriteFile(path, []byte(example), 0o644)
}
