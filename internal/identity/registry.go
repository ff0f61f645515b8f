package identity

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kapu/chessmeet/internal/obslog"
	"go.uber.org/zap"
)

var (
	ErrInvalidName     = errors.New("name must be 3-20 characters")
	ErrNameTaken       = errors.New("name is taken by a live connection")
	ErrConnectionInUse = errors.New("connection already registered")
)

// Conn is a live client connection able to receive server events. The
// registry never interprets payloads; it only routes them.
type Conn interface {
	Send(event string, data any)
}

// Identity is a stable named principal. The record lives for the process
// lifetime; only its connection binding changes. The conn field is guarded by
// the owning Registry's mutex.
type Identity struct {
	Name  string
	Label string

	conn Conn
}

// Registry maps identity names to their single live connection and back.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Identity
	byConn map[Conn]*Identity
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Identity),
		byConn: make(map[Conn]*Identity),
	}
}

// Register binds name to conn. A name bound to a different live connection is
// a conflict; re-registering over a dead binding reuses the existing record.
func (r *Registry) Register(name, label string, conn Conn) (*Identity, error) {
	name = strings.TrimSpace(name)
	label = strings.TrimSpace(label)
	if n := utf8.RuneCountInString(name); n < 3 || n > 20 {
		return nil, ErrInvalidName
	}
	if label == "" {
		label = name
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[conn]; ok && prev.Name != name {
		return nil, ErrConnectionInUse
	}
	id, ok := r.byName[name]
	if ok {
		if id.conn != nil && id.conn != conn {
			return nil, ErrNameTaken
		}
		id.Label = label
	} else {
		id = &Identity{Name: name, Label: label}
		r.byName[name] = id
	}
	id.conn = conn
	r.byConn[conn] = id
	obslog.L().Info("identity_register", zap.String("name", name))
	return id, nil
}

func (r *Registry) ByName(name string) (*Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

func (r *Registry) ByConn(conn Conn) (*Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[conn]
	return id, ok
}

// MarkOffline clears the connection binding for conn. Returns the affected
// identity, or nil when the connection never registered.
func (r *Registry) MarkOffline(conn Conn) *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byConn[conn]
	if !ok {
		return nil
	}
	delete(r.byConn, conn)
	if id.conn == conn {
		id.conn = nil
	}
	obslog.L().Info("identity_offline", zap.String("name", id.Name))
	return id
}

func (r *Registry) Online(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return ok && id.conn != nil
}

// SendTo delivers an event to the identity's live connection, if any. The
// write happens outside the registry lock.
func (r *Registry) SendTo(name, event string, data any) bool {
	r.mu.RLock()
	id, ok := r.byName[name]
	var conn Conn
	if ok {
		conn = id.conn
	}
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	conn.Send(event, data)
	return true
}

// ConnectedCount reports the number of live connections.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
