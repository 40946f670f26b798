package runtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
)

// PresenceTracker derives the online-user set from the session registry and
// owns the per-channel typing sets. Typing entries expire server-side: the
// client's stop signal is treated as an optimization, never as a requirement,
// so abrupt disconnects cannot leave stuck "is typing" indicators.
type PresenceTracker struct {
	mu         sync.Mutex
	typing     map[domain.ChannelID]map[string]time.Time
	registry   contract.IRegistry
	membership contract.IMembership
	ttl        time.Duration
	log        *slog.Logger
	now        func() time.Time
}

func NewPresenceTracker(registry contract.IRegistry, membership contract.IMembership,
	ttl time.Duration, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		typing:     make(map[domain.ChannelID]map[string]time.Time),
		registry:   registry,
		membership: membership,
		ttl:        ttl,
		log:        log,
		now:        time.Now,
	}
}

// BroadcastPresence pushes the current online-user set to every active
// connection. Presence is global, not channel-scoped.
func (p *PresenceTracker) BroadcastPresence(ctx context.Context) {
	evt := event.OnlineUsers{UserIDs: p.registry.OnlineUsers()}
	for _, sink := range p.registry.AllSinks() {
		if err := sink.Consume(ctx, evt); err != nil {
			p.log.Debug("Presence delivery skipped", "error", err)
		}
	}
}

// SetTyping records a typing refresh and rebroadcasts the channel's set.
func (p *PresenceTracker) SetTyping(ctx context.Context, channelID domain.ChannelID, userID string) {
	p.mu.Lock()
	if _, ok := p.typing[channelID]; !ok {
		p.typing[channelID] = make(map[string]time.Time)
	}
	p.typing[channelID][userID] = p.now()
	users := p.typingUsersLocked(channelID)
	p.mu.Unlock()

	p.broadcastTyping(ctx, channelID, users)
}

// ClearTyping handles an explicit stop signal.
func (p *PresenceTracker) ClearTyping(ctx context.Context, channelID domain.ChannelID, userID string) {
	p.mu.Lock()
	changed := p.removeLocked(channelID, userID)
	users := p.typingUsersLocked(channelID)
	p.mu.Unlock()

	if changed {
		p.broadcastTyping(ctx, channelID, users)
	}
}

// ClearUser drops the user's typing entries across all channels, immediately.
// Called on disconnect of any of the user's connections.
func (p *PresenceTracker) ClearUser(ctx context.Context, userID string) {
	p.mu.Lock()
	var affected []domain.ChannelID
	for channelID := range p.typing {
		if p.removeLocked(channelID, userID) {
			affected = append(affected, channelID)
		}
	}
	sets := make(map[domain.ChannelID][]string, len(affected))
	for _, channelID := range affected {
		sets[channelID] = p.typingUsersLocked(channelID)
	}
	p.mu.Unlock()

	for _, channelID := range affected {
		p.broadcastTyping(ctx, channelID, sets[channelID])
	}
}

// Sweep expires entries whose last refresh is older than the configured
// window and rebroadcasts the affected channels. Returns the number of
// entries removed. Driven by the typing reaper worker.
func (p *PresenceTracker) Sweep(ctx context.Context) int {
	deadline := p.now().Add(-p.ttl)

	p.mu.Lock()
	expired := 0
	var affected []domain.ChannelID
	for channelID, users := range p.typing {
		changed := false
		for userID, lastRefresh := range users {
			if lastRefresh.Before(deadline) {
				delete(users, userID)
				expired++
				changed = true
			}
		}
		if len(users) == 0 {
			delete(p.typing, channelID)
		}
		if changed {
			affected = append(affected, channelID)
		}
	}
	sets := make(map[domain.ChannelID][]string, len(affected))
	for _, channelID := range affected {
		sets[channelID] = p.typingUsersLocked(channelID)
	}
	p.mu.Unlock()

	for _, channelID := range affected {
		p.broadcastTyping(ctx, channelID, sets[channelID])
	}
	return expired
}

// TypingUsers returns the channel's current typing set, expired entries
// excluded even if the reaper has not swept them yet.
func (p *PresenceTracker) TypingUsers(channelID domain.ChannelID) []string {
	deadline := p.now().Add(-p.ttl)

	p.mu.Lock()
	defer p.mu.Unlock()

	var users []string
	for userID, lastRefresh := range p.typing[channelID] {
		if !lastRefresh.Before(deadline) {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users
}

// removeLocked assumes p.mu is held.
func (p *PresenceTracker) removeLocked(channelID domain.ChannelID, userID string) bool {
	users, ok := p.typing[channelID]
	if !ok {
		return false
	}
	if _, ok = users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.typing, channelID)
	}
	return true
}

// typingUsersLocked assumes p.mu is held.
func (p *PresenceTracker) typingUsersLocked(channelID domain.ChannelID) []string {
	users := make([]string, 0, len(p.typing[channelID]))
	for userID := range p.typing[channelID] {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// broadcastTyping is scoped to the channel's recipients, unlike presence.
func (p *PresenceTracker) broadcastTyping(ctx context.Context, channelID domain.ChannelID, users []string) {
	evt := event.TypingUsers{ChannelID: channelID, UserIDs: users}
	for _, connID := range p.membership.RecipientsOf(channelID) {
		sink, ok := p.registry.SinkOf(connID)
		if !ok {
			// Recipient closed between lookup and delivery: skip, not an error.
			continue
		}
		if err := sink.Consume(ctx, evt); err != nil {
			p.log.Debug("Typing delivery skipped", "connection", connID, "error", err)
		}
	}
}
