package event

import (
	"container/heap"
	"sync"

	"github.com/scarab-sim/scarab/internal/kernel/clock"
	"github.com/scarab-sim/scarab/internal/kernel/kerr"
)

// queueItem pairs a pending Event with the monotonic sequence number it was
// enqueued with, breaking ties between events that share a sim-time in
// strict FIFO order.
type queueItem struct {
	event    Event
	sequence uint64
	index    int
}

// heapStorage implements container/heap.Interface ordered ascending by
// (SimTime, sequence) — the min sits at index 0. It follows the
// container/heap shape of a generic max-priority queue, adapted to
// min-(time,sequence) ordering and specialised to Event rather than kept
// generic, since the Queue is the one place in the kernel that needs
// exactly this ordering.
type heapStorage []*queueItem

func (h heapStorage) Len() int { return len(h) }

func (h heapStorage) Less(i, j int) bool {
	if h[i].event.SimTime != h[j].event.SimTime {
		return h[i].event.SimTime < h[j].event.SimTime
	}
	return h[i].sequence < h[j].sequence
}

func (h heapStorage) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *heapStorage) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *heapStorage) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Queue is a time-ordered, FIFO-within-same-time event queue: a min-heap
// keyed by (sim_time, enqueue sequence). It is the only object that crosses
// the dispatch/network boundary, so every method is safe to call
// concurrently.
type Queue struct {
	mu       sync.Mutex
	storage  heapStorage
	sequence uint64
}

func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.storage)
	return q
}

// Push enqueues an event, assigning it the next sequence number. Returns an
// InvariantViolation if the sequence counter would overflow past 2^63 —
// treated as fatal since it signals a run has processed far more events
// than the kernel was designed to track.
func (q *Queue) Push(e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sequence >= 1<<63 {
		return &kerr.InvariantViolation{Reason: "event queue sequence counter overflowed"}
	}

	item := &queueItem{event: e, sequence: q.sequence}
	q.sequence++
	heap.Push(&q.storage, item)
	return nil
}

// DrainDue pops and returns every event with SimTime <= now, in heap order
// (which is (SimTime, sequence) order — strict FIFO within a tick).
func (q *Queue) DrainDue(now clock.SimTime) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Event
	for q.storage.Len() > 0 && q.storage[0].event.SimTime <= now {
		item := heap.Pop(&q.storage).(*queueItem)
		due = append(due, item.event)
	}
	return due
}

// PeekNextTime returns the SimTime of the earliest queued event, for an
// idle pacing check, and false if the queue is empty.
func (q *Queue) PeekNextTime() (clock.SimTime, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.storage.Len() == 0 {
		return 0, false
	}
	return q.storage[0].event.SimTime, true
}

// Len returns the number of events currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.storage.Len()
}
