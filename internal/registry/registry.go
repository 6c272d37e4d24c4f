// Package registry holds registered warming sources and their dependency graph.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prewarm/prewarm/internal/models"
	"github.com/prewarm/prewarm/pkg/cron"
)

// CycleError reports a dependency cycle found during registration.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// entry pairs a source with its parsed schedule. The schedule is parsed once
// at registration so the tick path never re-parses cron text.
type entry struct {
	source   *models.Source
	schedule *cron.Expression
}

// Registry owns the set of warming sources and their dependency edges.
// Registration and removal are atomic: a source that fails validation is
// never partially registered.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register validates and adds a source: the definition must validate, the
// schedule must parse (for scheduled sources), every dependency must already
// be registered (self-references are left to cycle detection), and the
// resulting graph must stay acyclic.
func (r *Registry) Register(src *models.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}

	var schedule *cron.Expression
	if src.Strategy == models.StrategyScheduled {
		parsed, err := cron.Parse(src.Schedule)
		if err != nil {
			return fmt.Errorf("source %s: %w", src.ID, err)
		}
		schedule = parsed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[src.ID]; exists {
		return fmt.Errorf("%w: %s", models.ErrSourceExists, src.ID)
	}

	for _, dep := range src.Dependencies {
		if dep == src.ID {
			continue // self-reference surfaces as a cycle below
		}
		if _, ok := r.entries[dep]; !ok {
			return fmt.Errorf("%w: %s depends on %s", models.ErrUnknownDependency, src.ID, dep)
		}
	}

	if path := r.findCycle(src); path != nil {
		return &CycleError{Path: path}
	}

	now := time.Now().UTC()
	src.CreatedAt = now
	src.UpdatedAt = now
	r.entries[src.ID] = &entry{source: src, schedule: schedule}
	return nil
}

// findCycle runs a depth-first search with a recursion stack over the graph
// including the candidate source. It returns the cycle path, or nil.
// Caller holds the lock.
func (r *Registry) findCycle(candidate *models.Source) []string {
	deps := func(id string) []string {
		if id == candidate.ID {
			return candidate.Dependencies
		}
		if e, ok := r.entries[id]; ok {
			return e.source.Dependencies
		}
		return nil
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range deps(id) {
			if onStack[dep] {
				// Close the loop from the first occurrence of dep.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, stack[start:]...), dep)
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}

		onStack[id] = false
		stack = stack[:len(stack)-1]
		return false
	}

	if visit(candidate.ID) {
		return cycle
	}
	return nil
}

// Get returns a source by ID.
func (r *Registry) Get(id string) (*models.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.source, true
}

// Schedule returns the parsed cron expression for a scheduled source.
func (r *Registry) Schedule(id string) (*cron.Expression, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.schedule == nil {
		return nil, false
	}
	return e.schedule, true
}

// All returns every registered source, sorted by ID for stable listings.
func (r *Registry) All() []*models.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]*models.Source, 0, len(r.entries))
	for _, e := range r.entries {
		sources = append(sources, e.source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dependents returns the IDs of sources that directly depend on id.
func (r *Registry) Dependents(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dependentsLocked(id)
}

func (r *Registry) dependentsLocked(id string) []string {
	var dependents []string
	for otherID, e := range r.entries {
		for _, dep := range e.source.Dependencies {
			if dep == id {
				dependents = append(dependents, otherID)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// Remove deletes a source. It fails while other sources still depend on it,
// preserving graph integrity.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", models.ErrSourceNotFound, id)
	}
	if dependents := r.dependentsLocked(id); len(dependents) > 0 {
		return fmt.Errorf("%w: %s is required by %s", models.ErrSourceInUse, id, strings.Join(dependents, ", "))
	}

	delete(r.entries, id)
	return nil
}

// WarmOrder returns the topologically sorted warm order for a source: its
// transitive dependencies first (DFS post-order), the source itself last.
// Shared dependencies appear once.
func (r *Registry) WarmOrder(id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.entries[id]; !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSourceNotFound, id)
	}

	visited := make(map[string]bool)
	var order []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		if e, ok := r.entries[id]; ok {
			for _, dep := range e.source.Dependencies {
				visit(dep)
			}
		}
		order = append(order, id)
	}

	visit(id)
	return order, nil
}
