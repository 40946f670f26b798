package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-core/domain"
	"chat-core/domain/event"

	"github.com/samber/lo"
)

// Envelope is the wire framing for every event in both directions.
// Event names and payload shapes match what the deployed client expects.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound request payloads.

type subscribeRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
}

type sendMessageRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	Text      string `json:"text"`
	ImageRef  string `json:"imageRef"`
}

type typingRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
}

type startDmRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// Outbound payload shapes.

type messageRecord struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text,omitempty"`
	ImageRef  string    `json:"imageRef,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type channelRecord struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	IsPrivate bool     `json:"isPrivate"`
	Members   []string `json:"members"`
}

type initialMessagesPayload struct {
	ChannelID string          `json:"channelId"`
	Messages  []messageRecord `json:"messages"`
}

type typingUsersPayload struct {
	ChannelID string   `json:"channelId"`
	UserIDs   []string `json:"userIds"`
}

type channelDeletedPayload struct {
	ChannelID string `json:"channelId"`
}

type errorPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type dmAckPayload struct {
	Success bool          `json:"success"`
	Channel channelRecord `json:"channel"`
}

func toMessageRecord(m domain.Message) messageRecord {
	return messageRecord{
		ID:        m.ID.String(),
		ChannelID: string(m.ChannelID),
		SenderID:  m.SenderID,
		Text:      m.Text,
		ImageRef:  m.ImageRef,
		Timestamp: m.CreatedAt,
	}
}

func toChannelRecord(c domain.Channel) channelRecord {
	return channelRecord{
		ID:        string(c.ID),
		Name:      c.Name,
		IsPrivate: c.IsPrivate,
		Members:   c.Members,
	}
}

// EncodeEvent frames a domain event for the wire.
func EncodeEvent(e event.DomainEvent) ([]byte, error) {
	var payload any
	switch evt := e.(type) {
	case event.NewMessage:
		payload = toMessageRecord(evt.Message)
	case event.InitialMessages:
		payload = initialMessagesPayload{
			ChannelID: string(evt.ChannelID),
			Messages: lo.Map(evt.Messages, func(m domain.Message, _ int) messageRecord {
				return toMessageRecord(m)
			}),
		}
	case event.OnlineUsers:
		// The payload is the bare array, not an object.
		payload = evt.UserIDs
	case event.TypingUsers:
		payload = typingUsersPayload{ChannelID: string(evt.ChannelID), UserIDs: evt.UserIDs}
	case event.ChannelCreated:
		payload = toChannelRecord(evt.Channel)
	case event.ChannelDeleted:
		payload = channelDeletedPayload{ChannelID: string(evt.ChannelID)}
	case event.Error:
		payload = errorPayload{Success: false, Error: evt.Detail}
	default:
		return nil, fmt.Errorf("unknown event type %T", e)
	}
	return encodeEnvelope(e.EventName(), payload)
}

func encodeEnvelope(name string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Payload: raw})
}

func encodeError(detail string) []byte {
	// Marshalling a flat struct cannot fail; ignore the error.
	data, _ := encodeEnvelope("error", errorPayload{Success: false, Error: detail})
	return data
}

func encodeDmAck(channel domain.Channel) ([]byte, error) {
	return encodeEnvelope("startDm", dmAckPayload{Success: true, Channel: toChannelRecord(channel)})
}
