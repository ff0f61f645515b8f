package match

import (
	"sync"
	"time"
)

type entry struct {
	name     string
	enqueued time.Time
}

// Queue is the FIFO pool of identities waiting for an anonymous opponent.
type Queue struct {
	mu      sync.Mutex
	waiting []entry
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends name, replacing any stale entry for the same identity so a
// repeated join cannot hold two slots.
func (q *Queue) Enqueue(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(name)
	q.waiting = append(q.waiting, entry{name: name, enqueued: time.Now()})
}

// DequeuePair atomically pops the two longest-waiting identities. The check
// and both removals happen under one lock so a concurrent enqueue can never
// be skipped past or double-matched.
func (q *Queue) DequeuePair() (a, b string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) < 2 {
		return "", "", false
	}
	a, b = q.waiting[0].name, q.waiting[1].name
	q.waiting = q.waiting[2:]
	return a, b, true
}

// Remove drops the identity's entry, if present.
func (q *Queue) Remove(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(name)
}

func (q *Queue) removeLocked(name string) {
	for i, e := range q.waiting {
		if e.name == name {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
