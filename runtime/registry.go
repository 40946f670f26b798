// Package runtime owns the live coordination state of the process: which
// connections exist, which channels they receive, who is online or typing.
// It orchestrates delivery without containing storage or transport logic.
package runtime

import (
	"sort"
	"sync"

	"chat-core/contract"
	"chat-core/domain"
	apperrors "chat-core/errors"
)

type session struct {
	userID string
	sink   contract.EventSink
}

// Registry tracks every live connection and who owns it. A user may own
// several concurrent connections (multi-device); presence is derived from the
// per-user connection count, and Registry is the sole writer of that count.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]session
	byUser   map[string]map[domain.ConnectionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnectionID]session),
		byUser:   make(map[string]map[domain.ConnectionID]struct{}),
	}
}

// Register records a connection and its outbound sink.
// Connection ids are unique per transport instance: a second registration of
// the same id is a programming error, not a reconnect.
func (r *Registry) Register(connID domain.ConnectionID, userID string, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; ok {
		return apperrors.ErrDuplicateConnection
	}
	r.sessions[connID] = session{userID: userID, sink: sink}

	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[domain.ConnectionID]struct{})
	}
	r.byUser[userID][connID] = struct{}{}
	return nil
}

// Unregister is idempotent: disconnect ordering races must not crash the
// system, so an unknown id is simply a no-op.
func (r *Registry) Unregister(connID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	delete(r.sessions, connID)

	if conns, ok := r.byUser[sess.userID]; ok {
		delete(conns, connID)
		// Last connection gone: the user leaves the presence set entirely.
		if len(conns) == 0 {
			delete(r.byUser, sess.userID)
		}
	}
}

func (r *Registry) ConnectionsOf(userID string) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	res := make([]domain.ConnectionID, 0, len(conns))
	for connID := range conns {
		res = append(res, connID)
	}
	return res
}

func (r *Registry) UserOf(connID domain.ConnectionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connID]
	return sess.userID, ok
}

func (r *Registry) SinkOf(connID domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	return sess.sink, true
}

// IsOnline reports whether the user has at least one open connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser[userID]) > 0
}

// OnlineUsers returns the sorted set of users with at least one connection.
// Sorted so that consecutive presence broadcasts are comparable.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// AllSinks returns the sinks of every live connection, for broadcasts that
// are global rather than channel-scoped (presence).
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sinks = append(sinks, sess.sink)
	}
	return sinks
}
