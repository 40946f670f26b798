package domain

import (
	"sort"

	"github.com/samber/lo"
)

type ChannelID string

// Channel is the slice of the persisted channel entity the core cares about.
// The storage collaborator owns the record; the core only caches a
// read-through view of it.
type Channel struct {
	ID        ChannelID
	Name      string
	IsPrivate bool
	Members   []string
}

func (c Channel) HasMember(userID string) bool {
	return lo.Contains(c.Members, userID)
}

// IsDm reports whether the channel is a direct conversation.
// Invariant: a DM is private and has exactly two members.
func (c Channel) IsDm() bool {
	return c.IsPrivate && len(c.Members) == 2
}

// DmPair returns the unordered user pair as a sorted slice.
// The pair is the uniqueness key for DM channels, regardless of the
// order the two users were given in.
func DmPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}
