package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prewarm/prewarm/internal/fetch"
)

var fetchStub = fetch.Config{URL: "http://localhost:9000/data"}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prewarm.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Scheduler.TickInterval.Duration() != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.Scheduler.TickInterval)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Scheduler.DefaultBackoff.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Scheduler.DefaultBackoff.MaxRetries)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
scheduler:
  tick_interval: 500ms
  max_concurrent_warms: 4
cache:
  backend: badger
  badger:
    path: /tmp/prewarm-test
sources:
  - id: users
    schedule: "*/5 * * * *"
    ttl: 10m
    jitter:
      enabled: true
      max_percent: 0.2
    fetch:
      url: http://localhost:9000/users
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scheduler.TickInterval.Duration() != 500*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.MaxConcurrentWarms != 4 {
		t.Errorf("MaxConcurrentWarms = %d, want 4", cfg.Scheduler.MaxConcurrentWarms)
	}
	if cfg.Cache.Backend != "badger" || cfg.Cache.Badger.Path != "/tmp/prewarm-test" {
		t.Errorf("cache = %+v", cfg.Cache)
	}

	if len(cfg.Sources) != 1 {
		t.Fatalf("Sources = %d, want 1", len(cfg.Sources))
	}
	src := cfg.Sources[0]
	if src.ID != "users" || src.Schedule != "*/5 * * * *" {
		t.Errorf("source = %+v", src)
	}
	if src.TTL.Duration() != 10*time.Minute {
		t.Errorf("TTL = %v, want 10m", src.TTL)
	}
	if src.Jitter == nil || !src.Jitter.Enabled || src.Jitter.MaxPercent != 0.2 {
		t.Errorf("jitter = %+v", src.Jitter)
	}
	if src.Fetch == nil || src.Fetch.URL != "http://localhost:9000/users" {
		t.Errorf("fetch = %+v", src.Fetch)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6379")
	path := writeConfig(t, `
cache:
  backend: redis
  redis:
    addr: ${TEST_REDIS_ADDR}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cache.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Addr = %q", cfg.Cache.Redis.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PREWARM_SERVER_PORT", "7070")
	t.Setenv("PREWARM_CACHE_BACKEND", "redis")
	t.Setenv("PREWARM_REDIS_ADDR", "override:6379")
	t.Setenv("PREWARM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Redis.Addr != "override:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"zero tick", func(c *Config) { c.Scheduler.TickInterval = 0 }, "tick_interval"},
		{"zero fetch timeout", func(c *Config) { c.Scheduler.FetchTimeout = 0 }, "fetch_timeout"},
		{"zero workers", func(c *Config) { c.Scheduler.MaxConcurrentWarms = 0 }, "max_concurrent_warms"},
		{"bad backend", func(c *Config) { c.Cache.Backend = "memcached" }, "backend"},
		{"redis without addr", func(c *Config) {
			c.Cache.Backend = "redis"
			c.Cache.Redis.Addr = ""
		}, "addr"},
		{"source without id", func(c *Config) {
			c.Sources = []SourceConfig{{Schedule: "* * * * *"}}
		}, "id is required"},
		{"duplicate source", func(c *Config) {
			c.Sources = []SourceConfig{
				{ID: "a", Fetch: &fetchStub},
				{ID: "a", Fetch: &fetchStub},
			}
		}, "duplicate"},
		{"source without fetch", func(c *Config) {
			c.Sources = []SourceConfig{{ID: "a"}}
		}, "fetch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/prewarm.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
