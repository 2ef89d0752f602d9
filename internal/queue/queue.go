// Package queue implements the scheduler's admission buffer: a min-ordered
// priority queue over task IDs, keyed by (priority, insertion sequence).
package queue

import (
	"container/heap"

	"github.com/haasonsaas/taskgraph/internal/graph"
)

type item struct {
	id       int64
	priority graph.Priority
	seq      int64
}

// heapSlice implements container/heap.Interface. Higher Priority values sort
// first; ties broken by insertion sequence, giving FIFO order within a
// priority class.
type heapSlice []item

func (h heapSlice) Len() int { return len(h) }
func (h heapSlice) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h heapSlice) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *heapSlice) Push(x any)   { *h = append(*h, x.(item)) }
func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is touched only by the Scheduler goroutine; it takes no internal
// lock.
type Queue struct {
	h       heapSlice
	nextSeq int64
}

// New returns an empty Queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Push admits id at the given priority, FIFO within that priority class.
func (q *Queue) Push(id int64, priority graph.Priority) {
	heap.Push(&q.h, item{id: id, priority: priority, seq: q.nextSeq})
	q.nextSeq++
}

// Pop removes and returns the highest-priority, oldest-queued ID. ok is
// false when the queue is empty.
func (q *Queue) Pop() (id int64, ok bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	it := heap.Pop(&q.h).(item)
	return it.id, true
}

// Len reports how many IDs are currently queued.
func (q *Queue) Len() int {
	return q.h.Len()
}
