package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDmPair_Is_Order_Insensitive(t *testing.T) {
	req := require.New(t)

	first, second := DmPair("bob", "alice")
	req.Equal("alice", first)
	req.Equal("bob", second)

	first, second = DmPair("alice", "bob")
	req.Equal("alice", first)
	req.Equal("bob", second)
}

func TestChannel_IsDm(t *testing.T) {
	tests := []struct {
		name     string
		channel  Channel
		expected bool
	}{
		{
			name:     "private pair",
			channel:  Channel{IsPrivate: true, Members: []string{"alice", "bob"}},
			expected: true,
		},
		{
			name:     "public pair",
			channel:  Channel{IsPrivate: false, Members: []string{"alice", "bob"}},
			expected: false,
		},
		{
			name:     "private group",
			channel:  Channel{IsPrivate: true, Members: []string{"alice", "bob", "carol"}},
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.channel.IsDm())
		})
	}
}

func TestPayload_TrimmedText(t *testing.T) {
	req := require.New(t)
	req.Equal("hello", Payload{Text: "  hello \n"}.TrimmedText())
	req.Empty(Payload{Text: " \t "}.TrimmedText())
	req.True(Payload{ImageRef: "uploads/cat.png"}.IsImage())
	req.False(Payload{Text: "words"}.IsImage())
}
