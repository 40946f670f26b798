package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	apperrors "chat-core/errors"
	"chat-core/observability"
	"chat-core/runtime"

	"github.com/stretchr/testify/require"
)

type nullSink struct{}

func (nullSink) Consume(context.Context, event.DomainEvent) error { return nil }

type memoryChannelStore struct {
	channels map[domain.ChannelID]domain.Channel
}

func (s *memoryChannelStore) GetMembership(_ context.Context, userID string) ([]domain.ChannelID, error) {
	var res []domain.ChannelID
	for _, c := range s.channels {
		if c.HasMember(userID) {
			res = append(res, c.ID)
		}
	}
	return res, nil
}

func (s *memoryChannelStore) IsMember(_ context.Context, userID string, channelID domain.ChannelID) (bool, error) {
	c, ok := s.channels[channelID]
	return ok && c.HasMember(userID), nil
}

func (s *memoryChannelStore) GetChannel(_ context.Context, channelID domain.ChannelID) (domain.Channel, error) {
	return s.channels[channelID], nil
}

func (s *memoryChannelStore) FindOrCreateDm(_ context.Context, userA, userB string) (domain.Channel, bool, error) {
	first, second := domain.DmPair(userA, userB)
	channel := domain.Channel{ID: "dm-1", IsPrivate: true, Members: []string{first, second}}
	s.channels[channel.ID] = channel
	return channel, true, nil
}

type memoryMessageStore struct{}

func (memoryMessageStore) InsertMessage(_ context.Context, channelID domain.ChannelID,
	senderID string, payload domain.Payload) (domain.Message, error) {
	return domain.Message{ChannelID: channelID, SenderID: senderID, Text: payload.Text}, nil
}

func (memoryMessageStore) RecentMessages(context.Context, domain.ChannelID, int) ([]domain.Message, error) {
	return nil, nil
}

type allowAllVerifier struct{}

func (allowAllVerifier) Verify(_ context.Context, credential string) (domain.User, error) {
	return domain.User{ID: credential, Username: credential}, nil
}

func newTypingFixture(t *testing.T) (*ChatService, domain.ConnectionID, *runtime.PresenceTracker) {
	t.Helper()
	store := &memoryChannelStore{channels: map[domain.ChannelID]domain.Channel{
		"general": {ID: "general", Members: []string{"alice", "bob"}},
		"private": {ID: "private", Members: []string{"bob"}},
	}}
	log := slog.Default()
	stats := observability.NewStats()
	registry := runtime.NewRegistry()
	membership := runtime.NewMembershipIndex(store, log)
	presence := runtime.NewPresenceTracker(registry, membership, 4*time.Second, log)
	router := runtime.NewRouter(log, registry, membership, store, memoryMessageStore{},
		nil, stats, 100)
	lifecycle := runtime.NewLifecycle(log, allowAllVerifier{}, registry, membership,
		presence, memoryMessageStore{}, stats, 50)
	service := NewChatService(lifecycle, router, presence, registry, membership)

	conn, _, err := service.Connect(context.Background(), "alice", nullSink{})
	require.NoError(t, err)
	return service, conn.ID, presence
}

func TestChatService_Typing_Toggles_The_Channel_Set(t *testing.T) {
	req := require.New(t)
	service, connID, presence := newTypingFixture(t)
	ctx := context.Background()

	// When the connection reports typing in a channel it receives
	err := service.Typing(ctx, domain.TypingCommand{
		ConnectionID: connID, ChannelID: "general", Active: true,
	})
	req.NoError(err)
	req.Equal([]string{"alice"}, presence.TypingUsers("general"))

	// When the stop signal follows
	err = service.Typing(ctx, domain.TypingCommand{
		ConnectionID: connID, ChannelID: "general", Active: false,
	})
	req.NoError(err)
	req.Empty(presence.TypingUsers("general"))
}

func TestChatService_Typing_Requires_A_Subscription(t *testing.T) {
	req := require.New(t)
	service, connID, presence := newTypingFixture(t)

	// When the connection reports typing in a channel it does not receive
	err := service.Typing(context.Background(), domain.TypingCommand{
		ConnectionID: connID, ChannelID: "private", Active: true,
	})

	// Then the event is rejected, not broadcast
	req.ErrorIs(err, apperrors.ErrUnauthorized)
	req.Empty(presence.TypingUsers("private"))
}

func TestChatService_Typing_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	service, _, _ := newTypingFixture(t)

	err := service.Typing(context.Background(), domain.TypingCommand{
		ConnectionID: "ghost", ChannelID: "general", Active: true,
	})

	req.ErrorIs(err, apperrors.ErrUnknownConnection)
}

var _ contract.ChannelStore = (*memoryChannelStore)(nil)
var _ contract.MessageStore = memoryMessageStore{}
var _ contract.AuthVerifier = allowAllVerifier{}
