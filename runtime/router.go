package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	apperrors "chat-core/errors"
	"chat-core/moderation"
	"chat-core/observability"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// payloadInput mirrors the validation rules of a message payload: a message
// carries text or an image reference, never neither.
type payloadInput struct {
	Text     string `validate:"required_without=ImageRef"`
	ImageRef string `validate:"omitempty,max=512"`
}

// Router validates, persists and fans out chat messages, and creates DM
// channels on demand. Persistence and broadcast are serialized per channel:
// recipients observe messages in the order their durable writes completed.
type Router struct {
	log              *slog.Logger
	registry         contract.IRegistry
	membership       *MembershipIndex
	channels         contract.ChannelStore
	messages         contract.MessageStore
	moderator        *moderation.Moderator
	stats            *observability.Stats
	maxContentLength int

	mu        sync.Mutex
	perChanMu map[domain.ChannelID]*sync.Mutex
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, membership *MembershipIndex,
	channels contract.ChannelStore, messages contract.MessageStore,
	moderator *moderation.Moderator, stats *observability.Stats, maxContentLength int) *Router {
	return &Router{
		log:              log,
		registry:         registry,
		membership:       membership,
		channels:         channels,
		messages:         messages,
		moderator:        moderator,
		stats:            stats,
		maxContentLength: maxContentLength,
		perChanMu:        make(map[domain.ChannelID]*sync.Mutex),
	}
}

// Send runs the full routing pipeline for one message:
// authorize, validate, censor, persist, then broadcast.
// The returned message carries the server-assigned id and timestamp. Errors
// concern only the sender; nothing is ever broadcast for a failed send.
func (r *Router) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	userID, ok := r.registry.UserOf(cmd.ConnectionID)
	if !ok {
		r.stats.IncrRejectedOps()
		return domain.Message{}, apperrors.ErrUnknownConnection
	}

	// Authorization is re-checked against the persisted member list on every
	// send, never against the connection's cached channel set.
	member, err := r.channels.IsMember(ctx, userID, cmd.ChannelID)
	if err != nil {
		return domain.Message{}, err
	}
	if !member {
		r.stats.IncrRejectedOps()
		return domain.Message{}, fmt.Errorf("%w: channel %s", apperrors.ErrUnauthorized, cmd.ChannelID)
	}

	payload := domain.Payload{Text: cmd.Payload.TrimmedText(), ImageRef: cmd.Payload.ImageRef}
	if err = r.validatePayload(payload); err != nil {
		r.stats.IncrRejectedOps()
		return domain.Message{}, err
	}
	if r.moderator != nil && payload.Text != "" {
		payload.Text = r.moderator.Censor(payload.Text)
	}

	// Single writer per channel: holding the channel lock across the store
	// call serializes persistence order with broadcast order. No registry or
	// membership lock is held here.
	chanMu := r.channelMutex(cmd.ChannelID)
	chanMu.Lock()
	defer chanMu.Unlock()

	message, err := r.messages.InsertMessage(ctx, cmd.ChannelID, userID, payload)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrPersistenceFailed, err)
	}

	r.broadcast(ctx, cmd.ChannelID, event.NewMessage{Message: message})
	r.stats.IncrMessagesRouted()
	return message, nil
}

// StartDm resolves or creates the DM channel between the calling user and
// otherUserID. Repeated calls for the same unordered pair return the same
// channel and broadcast nothing. On creation, both users' live connections
// are subscribed and the other user's connections are notified.
func (r *Router) StartDm(ctx context.Context, cmd domain.StartDmCommand) (domain.Channel, bool, error) {
	userID, ok := r.registry.UserOf(cmd.ConnectionID)
	if !ok {
		return domain.Channel{}, false, apperrors.ErrUnknownConnection
	}

	channel, created, err := r.channels.FindOrCreateDm(ctx, userID, cmd.OtherUserID)
	if err != nil {
		return domain.Channel{}, false, fmt.Errorf("%w: %v", apperrors.ErrPersistenceFailed, err)
	}
	if !created {
		return channel, false, nil
	}

	// Membership was just established by the store; attach every live
	// connection of both members without a second storage round-trip.
	for _, member := range channel.Members {
		for _, connID := range r.registry.ConnectionsOf(member) {
			r.membership.attach(connID, channel.ID)
		}
	}

	evt := event.ChannelCreated{Channel: channel}
	for _, connID := range r.registry.ConnectionsOf(cmd.OtherUserID) {
		r.consume(ctx, connID, evt)
	}
	r.log.Info(fmt.Sprintf("DM channel %s created for %s and %s", channel.ID, userID, cmd.OtherUserID))
	return channel, true, nil
}

// AnnounceChannelDeleted notifies the channel's live recipients and drops the
// channel from the index. The persisted record is the storage collaborator's
// concern.
func (r *Router) AnnounceChannelDeleted(ctx context.Context, channelID domain.ChannelID) {
	r.broadcast(ctx, channelID, event.ChannelDeleted{ChannelID: channelID})
	r.membership.DropChannel(channelID)
}

func (r *Router) validatePayload(payload domain.Payload) error {
	in := payloadInput{Text: payload.Text, ImageRef: payload.ImageRef}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: empty message", apperrors.ErrInvalidPayload)
	}
	if len([]rune(payload.Text)) > r.maxContentLength {
		return fmt.Errorf("%w: text exceeds %d characters", apperrors.ErrInvalidPayload, r.maxContentLength)
	}
	return nil
}

// broadcast fans an event out to every current recipient connection of the
// channel. A recipient that closed mid-flight is skipped silently; one
// recipient's delivery failure never aborts delivery to the others.
func (r *Router) broadcast(ctx context.Context, channelID domain.ChannelID, evt event.DomainEvent) {
	for _, connID := range r.membership.RecipientsOf(channelID) {
		r.consume(ctx, connID, evt)
	}
}

func (r *Router) consume(ctx context.Context, connID domain.ConnectionID, evt event.DomainEvent) {
	sink, ok := r.registry.SinkOf(connID)
	if !ok {
		return
	}
	if err := sink.Consume(ctx, evt); err != nil {
		r.stats.IncrDeliveryDrops()
		r.log.Debug("Delivery skipped", "connection", connID, "event", evt.EventName(), "error", err)
	}
}

func (r *Router) channelMutex(channelID domain.ChannelID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	mu, ok := r.perChanMu[channelID]
	if !ok {
		mu = &sync.Mutex{}
		r.perChanMu[channelID] = mu
	}
	return mu
}
