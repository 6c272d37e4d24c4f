package warmer

import (
	"container/heap"
	"time"
)

// scheduledRun is one pending warm for a source.
type scheduledRun struct {
	SourceID string
	At       time.Time

	index int // heap index, maintained by runQueue
}

// runQueue is a min-heap of scheduled runs ordered by fire time. It is not
// goroutine safe; the scheduler serializes access under its own lock.
type runQueue struct {
	items []*scheduledRun
}

func newRunQueue() *runQueue {
	return &runQueue{}
}

func (q *runQueue) Len() int { return len(q.items) }

func (q *runQueue) Less(i, j int) bool { return q.items[i].At.Before(q.items[j].At) }

func (q *runQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *runQueue) Push(x any) {
	run := x.(*scheduledRun)
	run.index = len(q.items)
	q.items = append(q.items, run)
}

func (q *runQueue) Pop() any {
	old := q.items
	n := len(old)
	run := old[n-1]
	old[n-1] = nil
	run.index = -1
	q.items = old[:n-1]
	return run
}

// Schedule adds a run, replacing any existing run for the same source.
func (q *runQueue) Schedule(sourceID string, at time.Time) {
	if existing := q.find(sourceID); existing != nil {
		existing.At = at
		heap.Fix(q, existing.index)
		return
	}
	heap.Push(q, &scheduledRun{SourceID: sourceID, At: at})
}

// PopDue removes and returns the earliest run if it fires at or before now.
func (q *runQueue) PopDue(now time.Time) (*scheduledRun, bool) {
	if len(q.items) == 0 || q.items[0].At.After(now) {
		return nil, false
	}
	return heap.Pop(q).(*scheduledRun), true
}

// Peek returns the earliest run without removing it.
func (q *runQueue) Peek() (*scheduledRun, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Remove drops the pending run for a source, if any.
func (q *runQueue) Remove(sourceID string) bool {
	run := q.find(sourceID)
	if run == nil {
		return false
	}
	heap.Remove(q, run.index)
	return true
}

// NextFor returns the pending fire time for a source.
func (q *runQueue) NextFor(sourceID string) (time.Time, bool) {
	if run := q.find(sourceID); run != nil {
		return run.At, true
	}
	return time.Time{}, false
}

func (q *runQueue) find(sourceID string) *scheduledRun {
	for _, run := range q.items {
		if run.SourceID == sourceID {
			return run
		}
	}
	return nil
}
