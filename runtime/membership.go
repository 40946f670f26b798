package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-core/contract"
	"chat-core/domain"
	apperrors "chat-core/errors"
)

// MembershipIndex is the bidirectional mapping between live connections and
// the channels they receive. It caches nothing across a connection's
// lifetime beyond the subscriptions themselves: the authorization question
// "is this user a member" is always answered by the store.
type MembershipIndex struct {
	mu           sync.RWMutex
	byConnection map[domain.ConnectionID]map[domain.ChannelID]struct{}
	byChannel    map[domain.ChannelID]map[domain.ConnectionID]struct{}
	store        contract.ChannelStore
	log          *slog.Logger
}

func NewMembershipIndex(store contract.ChannelStore, log *slog.Logger) *MembershipIndex {
	return &MembershipIndex{
		byConnection: make(map[domain.ConnectionID]map[domain.ChannelID]struct{}),
		byChannel:    make(map[domain.ChannelID]map[domain.ConnectionID]struct{}),
		store:        store,
		log:          log,
	}
}

// LoadMemberships fetches the user's channel list from the store.
// The store call happens with no lock held; the caller attaches the result.
func (m *MembershipIndex) LoadMemberships(ctx context.Context, userID string) ([]domain.ChannelID, error) {
	return m.store.GetMembership(ctx, userID)
}

// Subscribe attaches a connection to a channel after re-verifying the owning
// user's membership against the persisted record. The cache is never trusted
// here: membership can change between connects.
func (m *MembershipIndex) Subscribe(ctx context.Context, connID domain.ConnectionID,
	userID string, channelID domain.ChannelID) error {
	member, err := m.store.IsMember(ctx, userID, channelID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: user %s, channel %s", apperrors.ErrNotAMember, userID, channelID)
	}
	m.attach(connID, channelID)
	return nil
}

// attach records the subscription without a store round-trip. Reserved for
// callers that just established membership themselves (initial load after
// authentication, DM creation).
func (m *MembershipIndex) attach(connID domain.ConnectionID, channelID domain.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byConnection[connID]; !ok {
		m.byConnection[connID] = make(map[domain.ChannelID]struct{})
	}
	m.byConnection[connID][channelID] = struct{}{}

	if _, ok := m.byChannel[channelID]; !ok {
		m.byChannel[channelID] = make(map[domain.ConnectionID]struct{})
	}
	m.byChannel[channelID][connID] = struct{}{}
}

func (m *MembershipIndex) Unsubscribe(connID domain.ConnectionID, channelID domain.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detach(connID, channelID)
}

// detach assumes m.mu is held.
func (m *MembershipIndex) detach(connID domain.ConnectionID, channelID domain.ChannelID) {
	if channels, ok := m.byConnection[connID]; ok {
		delete(channels, channelID)
		if len(channels) == 0 {
			delete(m.byConnection, connID)
		}
	}
	if conns, ok := m.byChannel[channelID]; ok {
		delete(conns, connID)
		// No empty sets are left behind to prevent memory leaks over time.
		if len(conns) == 0 {
			delete(m.byChannel, channelID)
		}
	}
}

// ReleaseConnection drops every subscription of a closing connection.
func (m *MembershipIndex) ReleaseConnection(connID domain.ConnectionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for channelID := range m.byConnection[connID] {
		m.detach(connID, channelID)
	}
	delete(m.byConnection, connID)
}

// DropChannel removes a deleted channel from the index entirely.
func (m *MembershipIndex) DropChannel(channelID domain.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for connID := range m.byChannel[channelID] {
		m.detach(connID, channelID)
	}
	delete(m.byChannel, channelID)
}

// RecipientsOf returns every connection currently attached to the channel,
// across all users. A user with several connections appears once per
// connection: fan-out, not round-robin.
func (m *MembershipIndex) RecipientsOf(channelID domain.ChannelID) []domain.ConnectionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns, ok := m.byChannel[channelID]
	if !ok {
		return nil
	}
	res := make([]domain.ConnectionID, 0, len(conns))
	for connID := range conns {
		res = append(res, connID)
	}
	return res
}

func (m *MembershipIndex) ChannelsOf(connID domain.ConnectionID) []domain.ChannelID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels, ok := m.byConnection[connID]
	if !ok {
		return nil
	}
	res := make([]domain.ChannelID, 0, len(channels))
	for channelID := range channels {
		res = append(res, channelID)
	}
	return res
}
