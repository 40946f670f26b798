// Package observability aggregates runtime counters for the debug endpoint.
package observability

import (
	"sync/atomic"
	"time"
)

// Stats collects coordination-layer counters. All increments are atomic;
// Snapshot is safe to call from the debug server at any time.
type Stats struct {
	startedAt time.Time

	connectionsOpened uint64
	connectionsClosed uint64
	authFailures      uint64
	messagesRouted    uint64
	deliveryDrops     uint64
	rejectedOps       uint64
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now().UTC()}
}

func (s *Stats) IncrConnectionsOpened() { atomic.AddUint64(&s.connectionsOpened, 1) }
func (s *Stats) IncrConnectionsClosed() { atomic.AddUint64(&s.connectionsClosed, 1) }
func (s *Stats) IncrAuthFailures()      { atomic.AddUint64(&s.authFailures, 1) }
func (s *Stats) IncrMessagesRouted()    { atomic.AddUint64(&s.messagesRouted, 1) }
func (s *Stats) IncrDeliveryDrops()     { atomic.AddUint64(&s.deliveryDrops, 1) }
func (s *Stats) IncrRejectedOps()       { atomic.AddUint64(&s.rejectedOps, 1) }

// ActiveConnections derives from opened minus closed; both counters only grow.
func (s *Stats) ActiveConnections() uint64 {
	opened := atomic.LoadUint64(&s.connectionsOpened)
	closed := atomic.LoadUint64(&s.connectionsClosed)
	if closed > opened {
		return 0
	}
	return opened - closed
}

func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"started_at":         s.startedAt.Format(time.RFC3339),
		"connections_opened": atomic.LoadUint64(&s.connectionsOpened),
		"connections_closed": atomic.LoadUint64(&s.connectionsClosed),
		"connections_active": s.ActiveConnections(),
		"auth_failures":      atomic.LoadUint64(&s.authFailures),
		"messages_routed":    atomic.LoadUint64(&s.messagesRouted),
		"delivery_drops":     atomic.LoadUint64(&s.deliveryDrops),
		"rejected_ops":       atomic.LoadUint64(&s.rejectedOps),
	}
}
