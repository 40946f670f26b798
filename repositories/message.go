//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-core/domain"
	apperrors "chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID       string `json:"id"`
	Channel  string `json:"channel"`
	Sender   string `json:"sender"`
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
	At       int64  `json:"at"`
}

// messageKey formats keys as "msg:{channel_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(channelID domain.ChannelID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", channelID, at.UnixNano(), id))
}

func messagePrefix(channelID domain.ChannelID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", channelID))
}

// InsertMessage assigns the server-side id and timestamp and persists the
// message. Broadcast decisions belong to the caller: a message that fails
// here must never reach a recipient.
func (m MessageRepository) InsertMessage(_ context.Context, channelID domain.ChannelID,
	senderID string, payload domain.Payload) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		SenderID:  senderID,
		Text:      payload.TrimmedText(),
		ImageRef:  payload.ImageRef,
		CreatedAt: time.Now().UTC(),
	}

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrPersistenceFailed, err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(channelID, message.CreatedAt, message.ID), bytes)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrPersistenceFailed, err)
	}
	return message, nil
}

// RecentMessages returns the last `limit` messages of a channel, oldest first.
// Thanks to the padded timestamp in the key, a reverse prefix scan yields the
// newest entries without loading the full history.
func (m MessageRepository) RecentMessages(_ context.Context, channelID domain.ChannelID,
	limit int) ([]domain.Message, error) {
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(channelID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this channel, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, err
		}
		message, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	// The reverse scan produced newest-first; clients replay oldest-first.
	return lo.Reverse(messages), nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:       message.ID.String(),
		Channel:  string(message.ChannelID),
		Sender:   message.SenderID,
		Text:     message.Text,
		ImageRef: message.ImageRef,
		At:       message.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		ChannelID: domain.ChannelID(dm.Channel),
		SenderID:  dm.Sender,
		Text:      dm.Text,
		ImageRef:  dm.ImageRef,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}, nil
}
