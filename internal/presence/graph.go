package presence

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrSelfRequest    = errors.New("cannot befriend yourself")
	ErrAlreadyFriends = errors.New("already friends")
	ErrAlreadySent    = errors.New("friend request already sent")
	ErrNoRequest      = errors.New("no pending friend request")
)

// edgeKey is a canonical unordered pair: A is always the lexicographically
// smaller name, so lookups never depend on direction.
type edgeKey struct{ a, b string }

func canonical(x, y string) edgeKey {
	if x < y {
		return edgeKey{x, y}
	}
	return edgeKey{y, x}
}

type requestKey struct{ from, to string }

// Graph holds symmetric friendship edges and directed pending requests.
type Graph struct {
	mu       sync.RWMutex
	edges    map[edgeKey]struct{}
	requests map[requestKey]time.Time
}

func NewGraph() *Graph {
	return &Graph{
		edges:    make(map[edgeKey]struct{}),
		requests: make(map[requestKey]time.Time),
	}
}

// SendRequest records a directed pending request from→to.
func (g *Graph) SendRequest(from, to string) error {
	if from == to {
		return ErrSelfRequest
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[canonical(from, to)]; ok {
		return ErrAlreadyFriends
	}
	key := requestKey{from, to}
	if _, ok := g.requests[key]; ok {
		return ErrAlreadySent
	}
	g.requests[key] = time.Now()
	return nil
}

// Accept consumes the pending request from→to and inserts the canonical edge.
// Any request in the opposite direction is removed as well.
func (g *Graph) Accept(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.requests[requestKey{from, to}]; !ok {
		return ErrNoRequest
	}
	delete(g.requests, requestKey{from, to})
	delete(g.requests, requestKey{to, from})
	g.edges[canonical(from, to)] = struct{}{}
	return nil
}

// Decline removes the pending request from→to without creating an edge.
func (g *Graph) Decline(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.requests[requestKey{from, to}]; !ok {
		return ErrNoRequest
	}
	delete(g.requests, requestKey{from, to})
	return nil
}

func (g *Graph) IsFriend(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[canonical(a, b)]
	return ok
}

// ListFriends returns the identity's friends in sorted order.
func (g *Graph) ListFriends(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for k := range g.edges {
		switch name {
		case k.a:
			out = append(out, k.b)
		case k.b:
			out = append(out, k.a)
		}
	}
	sort.Strings(out)
	return out
}

// PendingFor returns names with an outstanding request addressed to name.
func (g *Graph) PendingFor(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for k := range g.requests {
		if k.to == name {
			out = append(out, k.from)
		}
	}
	sort.Strings(out)
	return out
}
