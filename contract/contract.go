//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-core/domain"
	"chat-core/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one connection's outbound side. Consume must never block the
// caller indefinitely: a slow or dead recipient is the sink's problem.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live connections per user. It is the sole writer of the
// presence counts derived from them.
type IRegistry interface {
	Register(connID domain.ConnectionID, userID string, sink EventSink) error
	Unregister(connID domain.ConnectionID)
	ConnectionsOf(userID string) []domain.ConnectionID
	UserOf(connID domain.ConnectionID) (string, bool)
	SinkOf(connID domain.ConnectionID) (EventSink, bool)
	IsOnline(userID string) bool
	OnlineUsers() []string
	AllSinks() []EventSink
}

// IMembership is the bidirectional user/channel index for live connections.
type IMembership interface {
	LoadMemberships(ctx context.Context, userID string) ([]domain.ChannelID, error)
	Subscribe(ctx context.Context, connID domain.ConnectionID, userID string, channelID domain.ChannelID) error
	Unsubscribe(connID domain.ConnectionID, channelID domain.ChannelID)
	ReleaseConnection(connID domain.ConnectionID)
	RecipientsOf(channelID domain.ChannelID) []domain.ConnectionID
	ChannelsOf(connID domain.ConnectionID) []domain.ChannelID
}

type IPresence interface {
	BroadcastPresence(ctx context.Context)
	SetTyping(ctx context.Context, channelID domain.ChannelID, userID string)
	ClearTyping(ctx context.Context, channelID domain.ChannelID, userID string)
	ClearUser(ctx context.Context, userID string)
}

type IRouter interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	StartDm(ctx context.Context, cmd domain.StartDmCommand) (domain.Channel, bool, error)
	AnnounceChannelDeleted(ctx context.Context, channelID domain.ChannelID)
}
