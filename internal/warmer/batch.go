package warmer

import (
	"sync"

	"github.com/google/uuid"
)

// batch deduplicates warms within one dispatch round. When several sources
// due in the same tick share a dependency, the dependency is fetched once and
// the other chains wait for that result.
type batch struct {
	id string

	mu    sync.Mutex
	calls map[string]*batchCall
}

type batchCall struct {
	done chan struct{}
	err  error
}

func newBatch() *batch {
	return &batch{
		id:    uuid.NewString(),
		calls: make(map[string]*batchCall),
	}
}

// do runs fn for sourceID exactly once per batch. Concurrent callers for the
// same source block until the first call finishes and share its error.
func (b *batch) do(sourceID string, fn func() error) error {
	b.mu.Lock()
	if c, ok := b.calls[sourceID]; ok {
		b.mu.Unlock()
		<-c.done
		return c.err
	}
	c := &batchCall{done: make(chan struct{})}
	b.calls[sourceID] = c
	b.mu.Unlock()

	c.err = fn()
	close(c.done)
	return c.err
}
