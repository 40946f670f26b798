package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-core/domain"
	"chat-core/domain/event"

	"github.com/stretchr/testify/require"
)

// presenceFixture wires a tracker with a controllable clock and two members
// of "general", one connection each.
type presenceFixture struct {
	tracker   *PresenceTracker
	registry  *Registry
	aliceSink *recordSink
	bobSink   *recordSink
	clock     time.Time
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()
	store := newStubChannelStore(domain.Channel{
		ID:      "general",
		Members: []string{"alice", "bob"},
	})
	registry := NewRegistry()
	index := NewMembershipIndex(store, slog.Default())
	tracker := NewPresenceTracker(registry, index, 4*time.Second, slog.Default())

	f := &presenceFixture{
		tracker:   tracker,
		registry:  registry,
		aliceSink: &recordSink{},
		bobSink:   &recordSink{},
		clock:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	tracker.now = func() time.Time { return f.clock }

	ctx := context.Background()
	require.NoError(t, registry.Register("alice-1", "alice", f.aliceSink))
	require.NoError(t, registry.Register("bob-1", "bob", f.bobSink))
	require.NoError(t, index.Subscribe(ctx, "alice-1", "alice", "general"))
	require.NoError(t, index.Subscribe(ctx, "bob-1", "bob", "general"))
	return f
}

func TestPresence_Broadcast_Reaches_Every_Connection(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)

	// When presence is broadcast
	f.tracker.BroadcastPresence(context.Background())

	// Then both connections receive the full online set
	for _, sink := range []*recordSink{f.aliceSink, f.bobSink} {
		events := sink.ByName("onlineUsers")
		req.Len(events, 1)
		req.Equal([]string{"alice", "bob"}, events[0].(event.OnlineUsers).UserIDs)
	}
}

func TestPresence_SetTyping_Broadcasts_To_Channel_Recipients(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)

	// When alice starts typing in general
	f.tracker.SetTyping(context.Background(), "general", "alice")

	// Then the typing set is visible and both members were notified
	req.Equal([]string{"alice"}, f.tracker.TypingUsers("general"))
	for _, sink := range []*recordSink{f.aliceSink, f.bobSink} {
		events := sink.ByName("typingUsers")
		req.Len(events, 1)
		typing := events[0].(event.TypingUsers)
		req.Equal(domain.ChannelID("general"), typing.ChannelID)
		req.Equal([]string{"alice"}, typing.UserIDs)
	}
}

func TestPresence_ClearTyping_Only_Broadcasts_On_Change(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	ctx := context.Background()

	// Given alice is typing
	f.tracker.SetTyping(ctx, "general", "alice")
	req.Len(f.bobSink.ByName("typingUsers"), 1)

	// When the stop signal arrives
	f.tracker.ClearTyping(ctx, "general", "alice")

	// Then the emptied set is broadcast once
	req.Empty(f.tracker.TypingUsers("general"))
	events := f.bobSink.ByName("typingUsers")
	req.Len(events, 2)
	req.Empty(events[1].(event.TypingUsers).UserIDs)

	// And a redundant stop produces no further broadcast
	f.tracker.ClearTyping(ctx, "general", "alice")
	req.Len(f.bobSink.ByName("typingUsers"), 2)
}

func TestPresence_Typing_Expires_After_TTL(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	ctx := context.Background()

	// Given alice typed once without a stop signal
	f.tracker.SetTyping(ctx, "general", "alice")

	// When less than the window has passed
	f.clock = f.clock.Add(3 * time.Second)
	req.Equal([]string{"alice"}, f.tracker.TypingUsers("general"))
	req.Zero(f.tracker.Sweep(ctx))

	// When the window elapses
	f.clock = f.clock.Add(2 * time.Second)

	// Then reads already exclude the stale entry
	req.Empty(f.tracker.TypingUsers("general"))

	// And the sweep removes it and rebroadcasts the emptied set
	req.Equal(1, f.tracker.Sweep(ctx))
	events := f.bobSink.ByName("typingUsers")
	req.NotEmpty(events)
	req.Empty(events[len(events)-1].(event.TypingUsers).UserIDs)
}

func TestPresence_Refresh_Extends_The_Typing_Window(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	ctx := context.Background()

	// Given alice keeps typing across the original deadline
	f.tracker.SetTyping(ctx, "general", "alice")
	f.clock = f.clock.Add(3 * time.Second)
	f.tracker.SetTyping(ctx, "general", "alice")
	f.clock = f.clock.Add(3 * time.Second)

	// Then the refreshed entry is still live
	req.Equal([]string{"alice"}, f.tracker.TypingUsers("general"))
	req.Zero(f.tracker.Sweep(ctx))
}

func TestPresence_ClearUser_Covers_All_Channels(t *testing.T) {
	req := require.New(t)
	store := newStubChannelStore(
		domain.Channel{ID: "general", Members: []string{"alice", "bob"}},
		domain.Channel{ID: "random", Members: []string{"alice", "bob"}},
	)
	registry := NewRegistry()
	index := NewMembershipIndex(store, slog.Default())
	tracker := NewPresenceTracker(registry, index, 4*time.Second, slog.Default())
	bobSink := &recordSink{}
	ctx := context.Background()
	req.NoError(registry.Register("bob-1", "bob", bobSink))
	req.NoError(index.Subscribe(ctx, "bob-1", "bob", "general"))
	req.NoError(index.Subscribe(ctx, "bob-1", "bob", "random"))

	// Given alice is typing in two channels
	tracker.SetTyping(ctx, "general", "alice")
	tracker.SetTyping(ctx, "random", "alice")

	// When alice disconnects
	tracker.ClearUser(ctx, "alice")

	// Then both typing sets are emptied and rebroadcast
	req.Empty(tracker.TypingUsers("general"))
	req.Empty(tracker.TypingUsers("random"))
	events := bobSink.ByName("typingUsers")
	req.Len(events, 4)
}
