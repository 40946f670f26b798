//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"chat-core/contract"
	"chat-core/domain"
	apperrors "chat-core/errors"
	"chat-core/runtime"

	"github.com/samber/lo"
)

// IChatService is the single surface the transport layer talks to.
type IChatService interface {
	Connect(ctx context.Context, credential string, sink contract.EventSink) (domain.Connection, domain.User, error)
	Disconnect(ctx context.Context, connID domain.ConnectionID)
	Subscribe(ctx context.Context, cmd domain.SubscribeCommand) error
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	StartDm(ctx context.Context, cmd domain.StartDmCommand) (domain.Channel, bool, error)
	Typing(ctx context.Context, cmd domain.TypingCommand) error
}

type ChatService struct {
	lifecycle  *runtime.Lifecycle
	router     contract.IRouter
	presence   contract.IPresence
	registry   contract.IRegistry
	membership contract.IMembership
}

func NewChatService(lifecycle *runtime.Lifecycle, router contract.IRouter,
	presence contract.IPresence, registry contract.IRegistry,
	membership contract.IMembership) *ChatService {
	return &ChatService{
		lifecycle:  lifecycle,
		router:     router,
		presence:   presence,
		registry:   registry,
		membership: membership,
	}
}

func (s *ChatService) Connect(ctx context.Context, credential string,
	sink contract.EventSink) (domain.Connection, domain.User, error) {
	return s.lifecycle.Connect(ctx, credential, sink)
}

func (s *ChatService) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	s.lifecycle.Disconnect(ctx, connID)
}

func (s *ChatService) Subscribe(ctx context.Context, cmd domain.SubscribeCommand) error {
	return s.lifecycle.Subscribe(ctx, cmd.ConnectionID, cmd.ChannelID)
}

func (s *ChatService) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.router.Send(ctx, cmd)
}

func (s *ChatService) StartDm(ctx context.Context, cmd domain.StartDmCommand) (domain.Channel, bool, error) {
	return s.router.StartDm(ctx, cmd)
}

// Typing updates the channel's typing set. The connection must already
// receive the channel; a typing event for a channel the connection is not
// subscribed to is rejected rather than broadcast.
func (s *ChatService) Typing(ctx context.Context, cmd domain.TypingCommand) error {
	userID, ok := s.registry.UserOf(cmd.ConnectionID)
	if !ok {
		return apperrors.ErrUnknownConnection
	}
	if !lo.Contains(s.membership.ChannelsOf(cmd.ConnectionID), cmd.ChannelID) {
		return apperrors.ErrUnauthorized
	}
	if cmd.Active {
		s.presence.SetTyping(ctx, cmd.ChannelID, userID)
	} else {
		s.presence.ClearTyping(ctx, cmd.ChannelID, userID)
	}
	return nil
}
