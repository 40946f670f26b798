// Package event defines the outbound events fanned out to connections.
// Event names are a compatibility surface with the deployed client.
package event

import (
	"chat-core/domain"
)

type DomainEvent interface {
	// EventName is the wire-level name of the event.
	EventName() string
}

// NewMessage carries the full persisted message record. It is only ever
// emitted after the durable write succeeded.
type NewMessage struct {
	Message domain.Message
}

func (NewMessage) EventName() string { return "newMessage" }

// InitialMessages replays the per-channel backlog right after subscription.
type InitialMessages struct {
	ChannelID domain.ChannelID
	Messages  []domain.Message
}

func (InitialMessages) EventName() string { return "initialMessages" }

// OnlineUsers is broadcast globally to every active connection,
// not scoped to a channel.
type OnlineUsers struct {
	UserIDs []string
}

func (OnlineUsers) EventName() string { return "onlineUsers" }

// TypingUsers is scoped to the recipients of one channel.
type TypingUsers struct {
	ChannelID domain.ChannelID
	UserIDs   []string
}

func (TypingUsers) EventName() string { return "typingUsers" }

// ChannelCreated carries the full channel record, emitted to the live
// connections of a user who was just pulled into a new channel.
type ChannelCreated struct {
	Channel domain.Channel
}

func (ChannelCreated) EventName() string { return "channelCreated" }

type ChannelDeleted struct {
	ChannelID domain.ChannelID
}

func (ChannelDeleted) EventName() string { return "channelDeleted" }

// Error is only ever addressed to the initiating connection.
type Error struct {
	Detail string
}

func (Error) EventName() string { return "error" }
