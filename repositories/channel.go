//go:generate go run go.uber.org/mock/mockgen -source=channel.go -destination=../mocks/mock_channel_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat-core/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ChannelRepository persists channel records and membership in BadgerDB.
// Key layout:
//
//	chan:{channel_id}              -> channel record (JSON)
//	member:{user_id}:{channel_id}  -> empty marker, enables membership prefix scans
//	dm:{lo_user}:{hi_user}         -> channel_id, uniqueness index for DM pairs
type ChannelRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChannelRepository(db *badger.DB, log *slog.Logger) ChannelRepository {
	return ChannelRepository{db: db, log: log}
}

type diskChannel struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	IsPrivate bool     `json:"is_private"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

func channelKey(channelID domain.ChannelID) []byte {
	return []byte("chan:" + channelID)
}

func memberKey(userID string, channelID domain.ChannelID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", userID, channelID))
}

func dmKey(userA, userB string) []byte {
	first, second := domain.DmPair(userA, userB)
	return []byte(fmt.Sprintf("dm:%s:%s", first, second))
}

// CreateChannel persists a new channel and its membership markers.
// Channel CRUD is driven by the management API; the core itself only creates
// channels through FindOrCreateDm.
func (c ChannelRepository) CreateChannel(_ context.Context, name string,
	isPrivate bool, members []string) (domain.Channel, error) {
	channel := domain.Channel{
		ID:        domain.ChannelID(uuid.NewString()),
		Name:      name,
		IsPrivate: isPrivate,
		Members:   lo.Uniq(members),
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return writeChannel(txn, channel)
	})
	if err != nil {
		return domain.Channel{}, err
	}
	return channel, nil
}

func writeChannel(txn *badger.Txn, channel domain.Channel) error {
	bytes, err := json.Marshal(diskChannel{
		ID:        string(channel.ID),
		Name:      channel.Name,
		IsPrivate: channel.IsPrivate,
		Members:   channel.Members,
		CreatedAt: time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return err
	}
	if err = txn.Set(channelKey(channel.ID), bytes); err != nil {
		return err
	}
	for _, member := range channel.Members {
		if err = txn.Set(memberKey(member, channel.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

// GetMembership scans the member index for every channel the user belongs to.
func (c ChannelRepository) GetMembership(_ context.Context, userID string) ([]domain.ChannelID, error) {
	var channelIDs []domain.ChannelID
	prefixStr := fmt.Sprintf("member:%s:", userID)
	prefix := []byte(prefixStr)

	err := c.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			channelIDs = append(channelIDs, domain.ChannelID(key[len(prefixStr):]))
		}
		return nil
	})
	return channelIDs, err
}

// IsMember answers the authorization question behind every subscribe and send.
// It reads the persisted index, never a cache: membership may have changed
// since the connection loaded its channel list.
func (c ChannelRepository) IsMember(_ context.Context, userID string, channelID domain.ChannelID) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(userID, channelID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c ChannelRepository) GetChannel(_ context.Context, channelID domain.ChannelID) (domain.Channel, error) {
	var dc diskChannel
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(channelKey(channelID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dc)
		})
	})
	if err != nil {
		return domain.Channel{}, err
	}
	return toChannel(dc), nil
}

// FindOrCreateDm resolves the DM channel for an unordered user pair, creating
// it on first use. The dm: index key is checked and written inside a single
// transaction so that two racing calls for the same pair cannot both create.
func (c ChannelRepository) FindOrCreateDm(ctx context.Context, userA, userB string) (domain.Channel, bool, error) {
	var channelID domain.ChannelID
	created := false

	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(dmKey(userA, userB))
		switch {
		case err == nil:
			return item.Value(func(val []byte) error {
				channelID = domain.ChannelID(val)
				return nil
			})
		case errors.Is(err, badger.ErrKeyNotFound):
			loUser, hiUser := domain.DmPair(userA, userB)
			channel := domain.Channel{
				ID:        domain.ChannelID(uuid.NewString()),
				IsPrivate: true,
				Members:   []string{loUser, hiUser},
			}
			if err = writeChannel(txn, channel); err != nil {
				return err
			}
			if err = txn.Set(dmKey(userA, userB), []byte(channel.ID)); err != nil {
				return err
			}
			channelID = channel.ID
			created = true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return domain.Channel{}, false, err
	}

	channel, err := c.GetChannel(ctx, channelID)
	if err != nil {
		return domain.Channel{}, false, err
	}
	return channel, created, nil
}

// AddMember grows a public channel's member list via explicit join.
func (c ChannelRepository) AddMember(ctx context.Context, userID string, channelID domain.ChannelID) error {
	channel, err := c.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.HasMember(userID) {
		return nil
	}
	channel.Members = append(channel.Members, userID)
	return c.db.Update(func(txn *badger.Txn) error {
		return writeChannel(txn, channel)
	})
}

func toChannel(dc diskChannel) domain.Channel {
	return domain.Channel{
		ID:        domain.ChannelID(dc.ID),
		Name:      dc.Name,
		IsPrivate: dc.IsPrivate,
		Members:   dc.Members,
	}
}
