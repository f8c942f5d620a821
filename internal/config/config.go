package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aevon-lab/aggindex/internal/core/registry"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendHTTP     = "http"
)

// Config represents the top-level configuration for the indexer service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Lock     LockConfig     `koanf:"lock"`
	Cache    CacheConfig    `koanf:"cache"`
	Flush    FlushConfig    `koanf:"flush"`
	Indexer  IndexerConfig  `koanf:"indexer"`
	Log      LogConfig      `koanf:"log"`

	// Types is populated by Load after parsing the type files.
	Types *registry.Registry `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// StoreConfig points at the search engine holding documents and aggregates.
type StoreConfig struct {
	Backend string `koanf:"backend"` // http | memory
	URL     string `koanf:"url"`
	Timeout string `koanf:"timeout"`
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type LockConfig struct {
	Backend        string `koanf:"backend"` // memory | postgres
	AcquireTimeout string `koanf:"acquire_timeout"`
}

type CacheConfig struct {
	Backend string `koanf:"backend"` // memory | postgres
}

type FlushConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Interval  string `koanf:"interval"`
	BatchSize int    `koanf:"batch_size"`
	Workers   int    `koanf:"workers"`
}

type IndexerConfig struct {
	InstanceName         string `koanf:"instance_name"`
	TypesDir             string `koanf:"types_dir"`
	AggregateConcurrency int    `koanf:"aggregate_concurrency"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error
}

// NeedsDatabase reports whether any tier is backed by postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Lock.Backend == BackendPostgres || c.Cache.Backend == BackendPostgres
}

func (c StoreConfig) TimeoutDuration() time.Duration { return mustDuration(c.Timeout) }

func (c LockConfig) AcquireTimeoutDuration() time.Duration { return mustDuration(c.AcquireTimeout) }

func (c FlushConfig) IntervalDuration() time.Duration { return mustDuration(c.Interval) }

// mustDuration is only called on values Validate has already parsed.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func positiveDuration(key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be > 0", key)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Store.Backend {
	case BackendHTTP:
		if strings.TrimSpace(c.Store.URL) == "" {
			return fmt.Errorf("store.url is required for the http backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported store.backend %q", c.Store.Backend)
	}
	if err := positiveDuration("store.timeout", c.Store.Timeout); err != nil {
		return err
	}

	if c.Lock.Backend != BackendMemory && c.Lock.Backend != BackendPostgres {
		return fmt.Errorf("unsupported lock.backend %q", c.Lock.Backend)
	}
	if err := positiveDuration("lock.acquire_timeout", c.Lock.AcquireTimeout); err != nil {
		return err
	}
	if c.Cache.Backend != BackendMemory && c.Cache.Backend != BackendPostgres {
		return fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend)
	}

	if c.NeedsDatabase() {
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	}

	if c.Flush.Enabled {
		if err := positiveDuration("flush.interval", c.Flush.Interval); err != nil {
			return err
		}
		if c.Flush.BatchSize <= 0 {
			return fmt.Errorf("flush.batch_size must be > 0")
		}
		if c.Flush.Workers <= 0 {
			return fmt.Errorf("flush.workers must be > 0")
		}
	}

	if strings.TrimSpace(c.Indexer.InstanceName) == "" {
		return fmt.Errorf("indexer.instance_name is required")
	}
	if c.Indexer.AggregateConcurrency <= 0 {
		return fmt.Errorf("indexer.aggregate_concurrency must be > 0")
	}
	if c.Indexer.TypesDir != "" {
		if _, err := os.Stat(c.Indexer.TypesDir); err != nil {
			return fmt.Errorf("indexer.types_dir %q is not accessible: %w", c.Indexer.TypesDir, err)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

// Load parses config from defaults, file and env, validates it, then builds
// the type registry from indexer.types_dir.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                   8080,
		"server.host":                   "0.0.0.0",
		"server.max_body_size_mb":       1,
		"server.mode":                   "release",
		"store.backend":                 BackendHTTP,
		"store.url":                     "http://localhost:9200",
		"store.timeout":                 "10s",
		"database.dsn":                  "",
		"database.max_open_conns":       25,
		"database.max_idle_conns":       25,
		"database.auto_migrate":         true,
		"lock.backend":                  BackendMemory,
		"lock.acquire_timeout":          "30s",
		"cache.backend":                 BackendMemory,
		"flush.enabled":                 true,
		"flush.interval":                "5s",
		"flush.batch_size":              500,
		"flush.workers":                 4,
		"indexer.instance_name":         "default",
		"indexer.types_dir":             "",
		"indexer.aggregate_concurrency": 8,
		"log.level":                     "info",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// AGGINDEX_LOCK__BACKEND=postgres overrides lock.backend
	if err := k.Load(env.Provider("AGGINDEX_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AGGINDEX_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	types, err := registry.Load(cfg.Indexer.InstanceName, cfg.Indexer.TypesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load type definitions: %w", err)
	}
	cfg.Types = types

	return &cfg, nil
}
