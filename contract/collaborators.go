//go:generate go run go.uber.org/mock/mockgen -source=collaborators.go -destination=../mocks/mock_collaborators.go -package=mocks
package contract

import (
	"chat-core/domain"
	"context"
)

// The core consumes registration, persistence and credential issuance through
// these narrow contracts and never reimplements them.

// AuthVerifier turns a bearer credential into a verified identity.
type AuthVerifier interface {
	Verify(ctx context.Context, credential string) (domain.User, error)
}

// ChannelStore owns the persisted channel records.
type ChannelStore interface {
	GetMembership(ctx context.Context, userID string) ([]domain.ChannelID, error)
	IsMember(ctx context.Context, userID string, channelID domain.ChannelID) (bool, error)
	GetChannel(ctx context.Context, channelID domain.ChannelID) (domain.Channel, error)
	// FindOrCreateDm is idempotent on the unordered user pair.
	// The boolean reports whether the channel was created by this call.
	FindOrCreateDm(ctx context.Context, userA, userB string) (domain.Channel, bool, error)
}

// MessageStore owns the persisted message records. InsertMessage assigns the
// server-side id and timestamp.
type MessageStore interface {
	InsertMessage(ctx context.Context, channelID domain.ChannelID, senderID string, payload domain.Payload) (domain.Message, error)
	RecentMessages(ctx context.Context, channelID domain.ChannelID, limit int) ([]domain.Message, error)
}
