// Package config loads and validates the daemon configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prewarm/prewarm/internal/fetch"
	"github.com/prewarm/prewarm/pkg/backoff"
	"github.com/prewarm/prewarm/pkg/duration"
	"github.com/prewarm/prewarm/pkg/jitter"
)

// Config is the root daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host         string            `yaml:"host"`
	Port         int               `yaml:"port"`
	ReadTimeout  duration.Duration `yaml:"read_timeout"`
	WriteTimeout duration.Duration `yaml:"write_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SchedulerConfig holds warming loop settings.
type SchedulerConfig struct {
	TickInterval       duration.Duration `yaml:"tick_interval"`
	FetchTimeout       duration.Duration `yaml:"fetch_timeout"`
	MaxConcurrentWarms int               `yaml:"max_concurrent_warms"`
	DefaultJitter      jitter.Options    `yaml:"default_jitter"`
	DefaultBackoff     backoff.Policy    `yaml:"default_backoff"`
}

// CacheConfig selects and configures a cache backend.
type CacheConfig struct {
	Backend string            `yaml:"backend"` // memory, redis, badger
	Redis   RedisConfig       `yaml:"redis"`
	Badger  BadgerConfig      `yaml:"badger"`
	TTL     duration.Duration `yaml:"ttl"` // default entry TTL
}

// RedisConfig mirrors cache.RedisConfig in YAML form.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BadgerConfig mirrors cache.BadgerConfig in YAML form.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TimezoneConfig pins a source to a fixed UTC offset.
type TimezoneConfig struct {
	Name          string `yaml:"name"`
	OffsetMinutes int    `yaml:"offset_minutes"`
}

// SourceConfig declares one warming source.
type SourceConfig struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Namespace    string            `yaml:"namespace"`
	Description  string            `yaml:"description"`
	Strategy     string            `yaml:"strategy"`
	Schedule     string            `yaml:"schedule"`
	TTL          duration.Duration `yaml:"ttl"`
	Timezone     *TimezoneConfig   `yaml:"timezone"`
	Jitter       *jitter.Options   `yaml:"jitter"`
	Backoff      *backoff.Policy   `yaml:"backoff"`
	Dependencies []string          `yaml:"dependencies"`
	Fetch        *fetch.Config     `yaml:"fetch"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  duration.Duration(15 * time.Second),
			WriteTimeout: duration.Duration(15 * time.Second),
		},
		Scheduler: SchedulerConfig{
			TickInterval:       duration.Duration(time.Second),
			FetchTimeout:       duration.Duration(30 * time.Second),
			MaxConcurrentWarms: 16,
			DefaultJitter:      jitter.Options{Enabled: false, MaxPercent: 0.1},
			DefaultBackoff:     backoff.Default(),
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     duration.Duration(time.Hour),
			Badger:  BadgerConfig{Path: "./data/cache"},
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file, expands ${VAR} references, applies PREWARM_*
// environment overrides and validates the result. An empty path returns the
// defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PREWARM_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PREWARM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PREWARM_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("PREWARM_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("PREWARM_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("PREWARM_BADGER_PATH"); v != "" {
		cfg.Cache.Badger.Path = v
	}
	if v := os.Getenv("PREWARM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Scheduler.TickInterval.Duration() <= 0 {
		return fmt.Errorf("config: tick_interval must be positive")
	}
	if c.Scheduler.FetchTimeout.Duration() <= 0 {
		return fmt.Errorf("config: fetch_timeout must be positive")
	}
	if c.Scheduler.MaxConcurrentWarms < 1 {
		return fmt.Errorf("config: max_concurrent_warms must be at least 1")
	}
	if err := c.Scheduler.DefaultJitter.Validate(); err != nil {
		return fmt.Errorf("config: default_jitter: %w", err)
	}
	if err := c.Scheduler.DefaultBackoff.Validate(); err != nil {
		return fmt.Errorf("config: default_backoff: %w", err)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("config: redis backend requires an addr")
		}
	case "badger":
		if c.Cache.Badger.Path == "" {
			return fmt.Errorf("config: badger backend requires a path")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("config: sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("config: duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		if src.Fetch == nil {
			return fmt.Errorf("config: source %s: fetch endpoint is required", src.ID)
		}
	}
	return nil
}
