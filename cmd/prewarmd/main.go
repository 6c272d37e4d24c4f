// Command prewarmd runs the cache warming daemon: it loads the configured
// sources, starts the warming scheduler and serves the management API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prewarm/prewarm/internal/api"
	"github.com/prewarm/prewarm/internal/cache"
	"github.com/prewarm/prewarm/internal/config"
	"github.com/prewarm/prewarm/internal/fetch"
	"github.com/prewarm/prewarm/internal/metrics"
	"github.com/prewarm/prewarm/internal/models"
	"github.com/prewarm/prewarm/internal/registry"
	"github.com/prewarm/prewarm/internal/warmer"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("prewarmd %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Str("version", version).Msg("starting prewarmd")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("prewarmd exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	cacheWriter, err := buildCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	if closer, ok := cacheWriter.(cache.Closer); ok {
		defer closer.Close()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	reg := registry.New()
	sched := warmer.New(warmer.Config{
		TickInterval:       cfg.Scheduler.TickInterval.Duration(),
		FetchTimeout:       cfg.Scheduler.FetchTimeout.Duration(),
		MaxConcurrentWarms: cfg.Scheduler.MaxConcurrentWarms,
		DefaultJitter:      cfg.Scheduler.DefaultJitter,
		DefaultBackoff:     cfg.Scheduler.DefaultBackoff,
	}, reg, cacheWriter, m, logger)

	client := &http.Client{Timeout: cfg.Scheduler.FetchTimeout.Duration()}
	for _, sc := range cfg.Sources {
		src, err := buildSource(sc, cfg, client)
		if err != nil {
			return fmt.Errorf("source %s: %w", sc.ID, err)
		}
		if err := sched.Register(src); err != nil {
			return fmt.Errorf("register %s: %w", sc.ID, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sched.Start(ctx)
	defer sched.Stop()

	handler := api.NewHandler(reg, sched, logger)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, m, cfg.Metrics.Path, logger),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	return nil
}

func buildCache(cfg config.CacheConfig, logger zerolog.Logger) (cache.Writer, error) {
	switch cfg.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cache backend")
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case "badger":
		logger.Info().Str("path", cfg.Badger.Path).Msg("using badger cache backend")
		return cache.NewBadgerCache(cache.BadgerConfig{Path: cfg.Badger.Path})
	default:
		logger.Info().Msg("using in-memory cache backend")
		return cache.NewMemoryCache(), nil
	}
}

func buildSource(sc config.SourceConfig, cfg *config.Config, client *http.Client) (*models.Source, error) {
	fetcher, err := fetch.NewHTTPFetcher(*sc.Fetch, client)
	if err != nil {
		return nil, err
	}

	ttl := sc.TTL
	if ttl == 0 {
		ttl = cfg.Cache.TTL
	}

	src := &models.Source{
		ID:           sc.ID,
		Name:         sc.Name,
		Namespace:    sc.Namespace,
		Description:  sc.Description,
		TTL:          ttl,
		Strategy:     models.Strategy(sc.Strategy),
		Schedule:     sc.Schedule,
		Jitter:       sc.Jitter,
		Backoff:      sc.Backoff,
		Dependencies: sc.Dependencies,
		Fetcher:      fetcher,
	}
	if sc.Timezone != nil {
		src.Timezone = &models.TimezoneInfo{
			Name:          sc.Timezone.Name,
			OffsetMinutes: sc.Timezone.OffsetMinutes,
		}
	}
	return src, nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
