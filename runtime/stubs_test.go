package runtime

import (
	"context"
	"fmt"
	"sync"

	"chat-core/domain"
	"chat-core/domain/event"
	apperrors "chat-core/errors"

	"github.com/google/uuid"
)

// newTestUUID derives a stable id from a sequence number.
func newTestUUID(seq int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("msg-%d", seq)))
}

// recordSink collects every event delivered to one connection.
type recordSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	fail   bool
}

func (s *recordSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("sink closed")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent{}, s.events...)
}

func (s *recordSink) ByName(name string) []event.DomainEvent {
	var res []event.DomainEvent
	for _, e := range s.Events() {
		if e.EventName() == name {
			res = append(res, e)
		}
	}
	return res
}

// stubChannelStore is an in-memory storage collaborator.
type stubChannelStore struct {
	mu       sync.Mutex
	channels map[domain.ChannelID]domain.Channel
	dms      map[string]domain.ChannelID
	created  int
	nextID   int
}

func newStubChannelStore(channels ...domain.Channel) *stubChannelStore {
	s := &stubChannelStore{
		channels: make(map[domain.ChannelID]domain.Channel),
		dms:      make(map[string]domain.ChannelID),
	}
	for _, c := range channels {
		s.channels[c.ID] = c
	}
	return s
}

func (s *stubChannelStore) GetMembership(_ context.Context, userID string) ([]domain.ChannelID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.ChannelID
	for _, c := range s.channels {
		if c.HasMember(userID) {
			res = append(res, c.ID)
		}
	}
	return res, nil
}

func (s *stubChannelStore) IsMember(_ context.Context, userID string, channelID domain.ChannelID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.channels[channelID]
	return ok && c.HasMember(userID), nil
}

func (s *stubChannelStore) GetChannel(_ context.Context, channelID domain.ChannelID) (domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.channels[channelID]
	if !ok {
		return domain.Channel{}, fmt.Errorf("channel %s not found", channelID)
	}
	return c, nil
}

func (s *stubChannelStore) FindOrCreateDm(_ context.Context, userA, userB string) (domain.Channel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first, second := domain.DmPair(userA, userB)
	key := first + ":" + second
	if id, ok := s.dms[key]; ok {
		return s.channels[id], false, nil
	}
	s.nextID++
	s.created++
	channel := domain.Channel{
		ID:        domain.ChannelID(fmt.Sprintf("dm-%d", s.nextID)),
		IsPrivate: true,
		Members:   []string{first, second},
	}
	s.channels[channel.ID] = channel
	s.dms[key] = channel.ID
	return channel, true, nil
}

// stubMessageStore persists in memory and can be told to fail.
type stubMessageStore struct {
	mu         sync.Mutex
	inserted   []domain.Message
	backlog    map[domain.ChannelID][]domain.Message
	failInsert bool
	seq        int
}

func newStubMessageStore() *stubMessageStore {
	return &stubMessageStore{backlog: make(map[domain.ChannelID][]domain.Message)}
}

func (s *stubMessageStore) InsertMessage(_ context.Context, channelID domain.ChannelID,
	senderID string, payload domain.Payload) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return domain.Message{}, fmt.Errorf("%w: disk on fire", apperrors.ErrPersistenceFailed)
	}
	s.seq++
	message := domain.Message{
		ID:        newTestUUID(s.seq),
		ChannelID: channelID,
		SenderID:  senderID,
		Text:      payload.Text,
		ImageRef:  payload.ImageRef,
	}
	s.inserted = append(s.inserted, message)
	return message, nil
}

func (s *stubMessageStore) RecentMessages(_ context.Context, channelID domain.ChannelID,
	limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.backlog[channelID]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return append([]domain.Message{}, messages...), nil
}

func (s *stubMessageStore) Inserted() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message{}, s.inserted...)
}

// stubVerifier resolves credentials from a fixed table.
type stubVerifier struct {
	users map[string]domain.User
}

func (v *stubVerifier) Verify(_ context.Context, credential string) (domain.User, error) {
	user, ok := v.users[credential]
	if !ok {
		return domain.User{}, apperrors.ErrAuthenticationFailed
	}
	return user, nil
}
