// Package warmer runs the cache warming loop: it watches the run queue,
// fires due sources, resolves dependency chains and schedules retries.
package warmer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prewarm/prewarm/internal/cache"
	"github.com/prewarm/prewarm/internal/metrics"
	"github.com/prewarm/prewarm/internal/models"
	"github.com/prewarm/prewarm/internal/registry"
	"github.com/prewarm/prewarm/pkg/backoff"
	"github.com/prewarm/prewarm/pkg/clock"
	"github.com/prewarm/prewarm/pkg/jitter"
)

// Phase is the lifecycle state of a source between warms.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseDue     Phase = "due"
	PhaseWarming Phase = "warming"
	PhaseBackoff Phase = "backoff"
)

// WarmStatus is the outcome of the most recent warm cycle.
type WarmStatus string

const (
	StatusNone    WarmStatus = ""
	StatusSuccess WarmStatus = "success"
	StatusFailure WarmStatus = "failure"
)

// ErrStopped is returned when an operation races scheduler shutdown.
var ErrStopped = errors.New("warmer: scheduler stopped")

// SourceStatus is a point-in-time snapshot of one source's warming state.
type SourceStatus struct {
	ID                  string     `json:"id"`
	Phase               Phase      `json:"phase"`
	NextRunAt           *time.Time `json:"next_run_at,omitempty"`
	LastWarmedAt        *time.Time `json:"last_warmed_at,omitempty"`
	LastStatus          WarmStatus `json:"last_status,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	RetryAttempts       int        `json:"retry_attempts"`
}

type sourceState struct {
	phase               Phase
	lastStatus          WarmStatus
	lastError           string
	lastWarmedAt        time.Time
	consecutiveFailures int
	retryAttempts       int
	// pendingRetry marks the queued run as a retry of the current cycle
	// rather than the start of a fresh one.
	pendingRetry bool
}

// Config holds scheduler tuning knobs.
type Config struct {
	TickInterval       time.Duration
	FetchTimeout       time.Duration
	MaxConcurrentWarms int
	DefaultJitter      jitter.Options
	DefaultBackoff     backoff.Policy

	// Clock and Rand are injectable for tests; nil selects real ones.
	Clock clock.Clock
	Rand  *rand.Rand
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:       time.Second,
		FetchTimeout:       30 * time.Second,
		MaxConcurrentWarms: 16,
		DefaultBackoff:     backoff.Default(),
	}
}

// Scheduler drives the warming loop over a source registry and cache backend.
type Scheduler struct {
	config   Config
	registry *registry.Registry
	cache    cache.Writer
	metrics  *metrics.Metrics
	clock    clock.Clock
	rng      *rand.Rand
	logger   zerolog.Logger

	mu     sync.Mutex
	queue  *runQueue
	states map[string]*sourceState

	sem    chan struct{}
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// New builds a Scheduler. The metrics handle may be nil.
func New(cfg Config, reg *registry.Registry, cacheWriter cache.Writer, m *metrics.Metrics, logger zerolog.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrentWarms <= 0 {
		cfg.MaxConcurrentWarms = 16
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Scheduler{
		config:   cfg,
		registry: reg,
		cache:    cacheWriter,
		metrics:  m,
		clock:    cfg.Clock,
		rng:      cfg.Rand,
		logger:   logger.With().Str("component", "warmer").Logger(),
		queue:    newRunQueue(),
		states:   make(map[string]*sourceState),
		sem:      make(chan struct{}, cfg.MaxConcurrentWarms),
		stopCh:   make(chan struct{}),
	}
}

// Register adds a source and queues its first run. Scheduled sources enter
// the queue at their next cron occurrence with jitter applied; eager sources
// are queued immediately; on-demand sources wait for TriggerWarm.
func (s *Scheduler) Register(src *models.Source) error {
	if err := s.registry.Register(src); err != nil {
		return err
	}

	s.mu.Lock()
	s.states[src.ID] = &sourceState{phase: PhaseIdle}

	now := s.clock.Now()
	switch src.Strategy {
	case models.StrategyEager:
		s.queue.Schedule(src.ID, now)
	case models.StrategyScheduled:
		if at, ok := s.nextRunLocked(src, now); ok {
			s.queue.Schedule(src.ID, at)
		}
	}
	s.metrics.SetQueueDepth(s.queue.Len())
	s.mu.Unlock()

	s.metrics.SetSourcesActive(s.registry.Len())
	s.logger.Info().
		Str("source", src.ID).
		Str("strategy", string(src.Strategy)).
		Str("schedule", src.Schedule).
		Msg("source registered")
	return nil
}

// Unregister removes a source and drops its pending run. In-flight warms for
// the source discard their results on completion.
func (s *Scheduler) Unregister(id string) error {
	if err := s.registry.Remove(id); err != nil {
		return err
	}

	s.mu.Lock()
	s.queue.Remove(id)
	delete(s.states, id)
	s.metrics.SetQueueDepth(s.queue.Len())
	s.mu.Unlock()

	s.metrics.SetSourcesActive(s.registry.Len())
	s.logger.Info().Str("source", id).Msg("source unregistered")
	return nil
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("tick_interval", s.config.TickInterval).
		Int("max_concurrent_warms", s.config.MaxConcurrentWarms).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopping: context cancelled")
			s.wg.Wait()
			return
		case <-s.stopCh:
			s.logger.Info().Msg("scheduler stopping")
			s.wg.Wait()
			return
		case <-ticker.C():
			s.tick(ctx)
		}
	}
}

// Stop signals the loop to exit. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

// TriggerWarm warms a source immediately, dependencies first, and blocks
// until the chain finishes.
func (s *Scheduler) TriggerWarm(ctx context.Context, id string) error {
	if _, ok := s.registry.Get(id); !ok {
		return fmt.Errorf("%w: %s", models.ErrSourceNotFound, id)
	}
	return s.warmChain(ctx, newBatch(), id)
}

// Status returns the snapshot for one source.
func (s *Scheduler) Status(id string) (SourceStatus, error) {
	if _, ok := s.registry.Get(id); !ok {
		return SourceStatus{}, fmt.Errorf("%w: %s", models.ErrSourceNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(id), nil
}

// Statuses returns snapshots for every registered source, sorted by ID.
func (s *Scheduler) Statuses() []SourceStatus {
	sources := s.registry.All()

	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]SourceStatus, 0, len(sources))
	for _, src := range sources {
		statuses = append(statuses, s.statusLocked(src.ID))
	}
	return statuses
}

func (s *Scheduler) statusLocked(id string) SourceStatus {
	status := SourceStatus{ID: id, Phase: PhaseIdle}
	if state, ok := s.states[id]; ok {
		status.Phase = state.phase
		status.LastStatus = state.lastStatus
		status.LastError = state.lastError
		status.ConsecutiveFailures = state.consecutiveFailures
		status.RetryAttempts = state.retryAttempts
		if !state.lastWarmedAt.IsZero() {
			t := state.lastWarmedAt
			status.LastWarmedAt = &t
		}
	}
	if at, ok := s.queue.NextFor(id); ok {
		status.NextRunAt = &at
	}
	return status
}

// tick pops every due run and dispatches its warm chain. Runs due in the
// same tick share one batch so common dependencies are fetched once.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []string
	for {
		run, ok := s.queue.PopDue(now)
		if !ok {
			break
		}
		state, ok := s.states[run.SourceID]
		if !ok {
			continue // unregistered while queued
		}
		if state.phase == PhaseWarming {
			continue // previous cycle still running; it reschedules on finish
		}
		// A natural run firing before a pending retry starts a fresh cycle.
		if state.pendingRetry {
			state.pendingRetry = false
		} else {
			state.retryAttempts = 0
		}
		state.phase = PhaseDue
		due = append(due, run.SourceID)
	}
	s.metrics.SetQueueDepth(s.queue.Len())
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	b := newBatch()
	s.logger.Debug().Str("batch", b.id).Int("due", len(due)).Msg("dispatching due sources")
	for _, id := range due {
		id := id
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.warmChain(ctx, b, id); err != nil {
				s.logger.Debug().Err(err).Str("source", id).Str("batch", b.id).Msg("warm chain failed")
			}
		}()
	}
}

// warmChain warms a source's transitive dependencies in topological order,
// then the source itself. Any dependency failure aborts the chain and the
// dependent records a failure of its own.
func (s *Scheduler) warmChain(ctx context.Context, b *batch, id string) error {
	order, err := s.registry.WarmOrder(id)
	if err != nil {
		return err
	}

	for _, depID := range order[:len(order)-1] {
		depID := depID
		if err := b.do(depID, func() error { return s.warmOne(ctx, depID) }); err != nil {
			depErr := fmt.Errorf("dependency %s: %w", depID, err)
			s.recordDependencyFailure(id, depErr)
			return depErr
		}
	}
	return b.do(id, func() error { return s.warmOne(ctx, id) })
}

// warmOne runs a single warm cycle: acquire a worker slot, fetch, write every
// returned key to the cache, then schedule the next run.
func (s *Scheduler) warmOne(ctx context.Context, id string) error {
	src, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrSourceNotFound, id)
	}

	s.mu.Lock()
	state, ok := s.states[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", models.ErrSourceNotFound, id)
	}
	if state.phase == PhaseWarming {
		s.mu.Unlock()
		return nil // another path is already warming this source
	}
	state.phase = PhaseWarming
	s.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.finishCycle(id, src, ctx.Err(), 0)
		return ctx.Err()
	case <-s.stopCh:
		s.finishCycle(id, src, ErrStopped, 0)
		return ErrStopped
	}
	defer func() { <-s.sem }()

	s.metrics.WarmStarted()
	defer s.metrics.WarmFinished()

	start := s.clock.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	result, err := s.safeFetch(fetchCtx, src)
	cancel()

	if err == nil {
		err = s.writeResult(ctx, src, result)
	}

	elapsed := s.clock.Since(start)
	s.finishCycle(id, src, err, elapsed)
	return err
}

// safeFetch invokes the fetcher with panic recovery so a misbehaving fetcher
// cannot take the scheduler down.
func (s *Scheduler) safeFetch(ctx context.Context, src *models.Source) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panic: %v", r)
			s.logger.Error().
				Str("source", src.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("fetcher panicked")
		}
	}()
	return src.Fetcher.Fetch(ctx)
}

// writeResult stores every fetched key. A source unregistered mid-fetch has
// its result discarded.
func (s *Scheduler) writeResult(ctx context.Context, src *models.Source, result map[string]any) error {
	if _, ok := s.registry.Get(src.ID); !ok {
		s.logger.Debug().Str("source", src.ID).Msg("discarding result for unregistered source")
		return fmt.Errorf("%w: %s", models.ErrSourceNotFound, src.ID)
	}

	ttl := src.TTL.Duration()
	for key, value := range result {
		if err := s.cache.Write(ctx, src.Namespace, key, value, ttl); err != nil {
			return fmt.Errorf("cache write %s: %w", key, err)
		}
	}
	s.metrics.RecordKeys(src.ID, len(result))
	return nil
}

// recordDependencyFailure marks a failed cycle for a source whose own warm
// never started because a dependency failed.
func (s *Scheduler) recordDependencyFailure(id string, err error) {
	src, ok := s.registry.Get(id)
	if !ok {
		return
	}
	s.finishCycle(id, src, err, 0)
}

// finishCycle records the outcome of a warm cycle and queues the next run.
// On failure the next run is the earlier of the backoff retry and the natural
// next occurrence; an exhausted backoff abandons the cycle and falls back to
// the natural schedule.
func (s *Scheduler) finishCycle(id string, src *models.Source, runErr error, elapsed time.Duration) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[id]
	if !ok {
		return // unregistered while warming
	}

	if runErr == nil {
		state.phase = PhaseIdle
		state.lastStatus = StatusSuccess
		state.lastError = ""
		state.lastWarmedAt = now
		state.consecutiveFailures = 0
		state.retryAttempts = 0
		state.pendingRetry = false
		s.metrics.RecordWarm(id, "success", elapsed)

		if at, ok := s.nextRunLocked(src, now); ok {
			s.queue.Schedule(id, at)
		}
		s.metrics.SetQueueDepth(s.queue.Len())

		s.logger.Debug().
			Str("source", id).
			Dur("elapsed", elapsed).
			Msg("warm succeeded")
		return
	}

	state.lastStatus = StatusFailure
	state.lastError = runErr.Error()
	state.consecutiveFailures++
	s.metrics.RecordWarm(id, "failure", elapsed)

	policy := s.config.DefaultBackoff
	if src.Backoff != nil {
		policy = *src.Backoff
	}

	naturalNext, hasNatural := s.nextRunLocked(src, now)

	delay, derr := policy.Delay(state.retryAttempts)
	if derr != nil {
		// Retries exhausted; give up on this cycle.
		state.phase = PhaseIdle
		state.retryAttempts = 0
		state.pendingRetry = false
		if hasNatural {
			s.queue.Schedule(id, naturalNext)
		}
		s.metrics.SetQueueDepth(s.queue.Len())
		s.logger.Warn().
			Err(runErr).
			Str("source", id).
			Int("failures", state.consecutiveFailures).
			Msg("retries exhausted, waiting for next scheduled run")
		return
	}

	retryAt := now.Add(delay)
	if hasNatural && naturalNext.Before(retryAt) {
		// The schedule comes around before the retry would; start fresh.
		state.phase = PhaseIdle
		state.retryAttempts = 0
		state.pendingRetry = false
		s.queue.Schedule(id, naturalNext)
	} else {
		state.phase = PhaseBackoff
		state.retryAttempts++
		state.pendingRetry = true
		s.queue.Schedule(id, retryAt)
		s.metrics.RecordRetry(id)
	}
	s.metrics.SetQueueDepth(s.queue.Len())

	s.logger.Warn().
		Err(runErr).
		Str("source", id).
		Int("attempt", state.retryAttempts).
		Dur("delay", delay).
		Msg("warm failed")
}

// nextRunLocked computes the next queued time for a scheduled source: the
// cron occurrence after now, perturbed by jitter. The perturbation is capped
// at half the expression's minimum interval so adjacent occurrences cannot
// collide or reorder.
func (s *Scheduler) nextRunLocked(src *models.Source, now time.Time) (time.Time, bool) {
	if src.Strategy != models.StrategyScheduled && src.Strategy != models.StrategyEager {
		return time.Time{}, false
	}

	expr, ok := s.registry.Schedule(src.ID)
	if !ok {
		return time.Time{}, false
	}

	next, err := expr.Next(now, src.Timezone.Location())
	if err != nil {
		s.logger.Error().Err(err).Str("source", src.ID).Msg("schedule has no future occurrence")
		return time.Time{}, false
	}

	opts := s.config.DefaultJitter
	if src.Jitter != nil {
		opts = *src.Jitter
	}
	if !opts.Enabled {
		return next, true
	}

	delay := next.Sub(now)
	jittered := jitter.Apply(delay, opts, s.rng)

	limit := expr.MinInterval() / 2
	if diff := jittered - delay; diff > limit {
		jittered = delay + limit
	} else if diff < -limit {
		jittered = delay - limit
	}
	if jittered < 0 {
		jittered = 0
	}
	return now.Add(jittered), true
}
