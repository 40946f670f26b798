package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	apperrors "chat-core/errors"
	"chat-core/observability"

	"github.com/google/uuid"
)

// Lifecycle drives a connection through
// Connecting -> Authenticating -> Authenticated -> Subscribed -> Closed
// and keeps registry, membership and presence state consistent with it.
type Lifecycle struct {
	log        *slog.Logger
	verifier   contract.AuthVerifier
	registry   contract.IRegistry
	membership *MembershipIndex
	presence   contract.IPresence
	messages   contract.MessageStore
	stats      *observability.Stats
	// recentLimit bounds the per-channel backlog replayed on connect.
	recentLimit int
}

func NewLifecycle(log *slog.Logger, verifier contract.AuthVerifier, registry contract.IRegistry,
	membership *MembershipIndex, presence contract.IPresence, messages contract.MessageStore,
	stats *observability.Stats, recentLimit int) *Lifecycle {
	return &Lifecycle{
		log:         log,
		verifier:    verifier,
		registry:    registry,
		membership:  membership,
		presence:    presence,
		messages:    messages,
		stats:       stats,
		recentLimit: recentLimit,
	}
}

// Connect authenticates a fresh transport session and brings it to the
// Subscribed state: identity verified, session registered, channel list
// loaded, backlog and online set replayed, presence rebroadcast.
//
// Collaborator calls (verify, membership load) happen before any in-memory
// registration, so no shared state is held across I/O.
func (l *Lifecycle) Connect(ctx context.Context, credential string,
	sink contract.EventSink) (domain.Connection, domain.User, error) {
	conn := domain.Connection{
		ID:    domain.ConnectionID(uuid.NewString()),
		State: domain.StateAuthenticating,
	}

	user, err := l.verifier.Verify(ctx, credential)
	if err != nil {
		conn.State = domain.StateClosed
		l.stats.IncrAuthFailures()
		return conn, domain.User{}, fmt.Errorf("%w: %v", apperrors.ErrAuthenticationFailed, err)
	}
	conn.UserID = user.ID
	conn.State = domain.StateAuthenticated

	channelIDs, err := l.membership.LoadMemberships(ctx, user.ID)
	if err != nil {
		conn.State = domain.StateClosed
		return conn, user, err
	}

	if err = l.registry.Register(conn.ID, user.ID, sink); err != nil {
		conn.State = domain.StateClosed
		return conn, user, err
	}
	for _, channelID := range channelIDs {
		// Membership was just loaded from storage for this connection;
		// the explicit subscribe operation still re-verifies later.
		l.membership.attach(conn.ID, channelID)
	}
	conn.State = domain.StateSubscribed
	l.stats.IncrConnectionsOpened()
	l.log.Info(fmt.Sprintf("Connection %s subscribed for user %s (%d channels)",
		conn.ID, user.ID, len(channelIDs)))

	l.replayBacklog(ctx, sink, channelIDs)
	if err = sink.Consume(ctx, event.OnlineUsers{UserIDs: l.registry.OnlineUsers()}); err != nil {
		l.log.Debug("Initial presence delivery skipped", "connection", conn.ID, "error", err)
	}
	l.presence.BroadcastPresence(ctx)
	return conn, user, nil
}

// Subscribe attaches the connection to one more channel, re-verifying
// membership, and replays that channel's backlog.
func (l *Lifecycle) Subscribe(ctx context.Context, connID domain.ConnectionID,
	channelID domain.ChannelID) error {
	userID, ok := l.registry.UserOf(connID)
	if !ok {
		return apperrors.ErrUnknownConnection
	}
	if err := l.membership.Subscribe(ctx, connID, userID, channelID); err != nil {
		l.stats.IncrRejectedOps()
		return err
	}
	if sink, ok := l.registry.SinkOf(connID); ok {
		l.replayBacklog(ctx, sink, []domain.ChannelID{channelID})
	}
	return nil
}

// Disconnect tears a connection down from any state. Idempotent: transport
// close, explicit logout and handshake timeout may race, and later calls
// find nothing left to clean. In-flight sends referencing the connection are
// skipped by delivery, not failed.
func (l *Lifecycle) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	userID, ok := l.registry.UserOf(connID)
	if !ok {
		return
	}
	l.registry.Unregister(connID)
	l.membership.ReleaseConnection(connID)
	l.presence.ClearUser(ctx, userID)
	l.presence.BroadcastPresence(ctx)
	l.stats.IncrConnectionsClosed()
	l.log.Info(fmt.Sprintf("Connection %s closed for user %s", connID, userID))
}

func (l *Lifecycle) replayBacklog(ctx context.Context, sink contract.EventSink,
	channelIDs []domain.ChannelID) {
	for _, channelID := range channelIDs {
		messages, err := l.messages.RecentMessages(ctx, channelID, l.recentLimit)
		if err != nil {
			l.log.Warn("Backlog load failed", "channel", channelID, "error", err)
			continue
		}
		evt := event.InitialMessages{ChannelID: channelID, Messages: messages}
		if err = sink.Consume(ctx, evt); err != nil {
			l.log.Debug("Backlog delivery skipped", "channel", channelID, "error", err)
		}
	}
}
