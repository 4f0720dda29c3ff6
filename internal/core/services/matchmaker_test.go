package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"pairchat/internal/core/domain"
	apperrors "pairchat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitQueue(t *testing.T) {
	q := newWaitQueue()

	assert.True(t, q.Push("a"))
	assert.True(t, q.Push("b"))
	assert.False(t, q.Push("a"), "a connection is queued at most once")
	assert.True(t, q.Push("c"))
	assert.Equal(t, []domain.ConnectionID{"a", "b", "c"}, q.Snapshot())

	assert.True(t, q.Remove("b"))
	assert.False(t, q.Remove("b"))

	id, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionID("a"), id)
	id, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionID("c"), id)

	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestStartChat_RandomPairing(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")

	require.NoError(t, lobby.StartChat(ctx, "a"))
	assert.Equal(t, domain.StatusSearching, statusOf(t, lobby, "a"))
	assert.Empty(t, notifier.OfType("a", domain.EventPartnerFound))

	require.NoError(t, lobby.StartChat(ctx, "b"))

	ev, ok := notifier.Last("a", domain.EventPartnerFound)
	require.True(t, ok)
	assert.Equal(t, domain.PartnerPayload{Partner: "bob"}, ev.Payload)
	ev, ok = notifier.Last("b", domain.EventPartnerFound)
	require.True(t, ok)
	assert.Equal(t, domain.PartnerPayload{Partner: "alice"}, ev.Payload)

	stats := lobby.Stats(ctx)
	assert.Zero(t, stats.QueueLength)
	assert.Equal(t, 1, stats.ActiveSessions)

	a, _ := lobby.Lookup(ctx, "a")
	b, _ := lobby.Lookup(ctx, "b")
	assert.NotEmpty(t, a.SessionID)
	assert.Equal(t, a.SessionID, b.SessionID)
	assertInvariants(t, lobby)
}

func TestStartChat_FIFO(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	goOnline(t, lobby, "c", "carol")

	require.NoError(t, lobby.StartChat(ctx, "a"))
	require.NoError(t, lobby.StartChat(ctx, "b"))
	require.NoError(t, lobby.StartChat(ctx, "c"))

	ev, ok := notifier.Last("c", domain.EventPartnerFound)
	require.True(t, ok)
	assert.Equal(t, domain.PartnerPayload{Partner: "alice"}, ev.Payload)
	assert.Equal(t, domain.StatusPaired, statusOf(t, lobby, "a"))
	assert.Equal(t, domain.StatusSearching, statusOf(t, lobby, "b"))
	assertInvariants(t, lobby)
}

func TestStartChat_IllegalStates(t *testing.T) {
	lobby, _ := newTestLobby(t)
	ctx := context.Background()

	err := lobby.StartChat(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIllegalTransition, apperrors.CodeOf(err))
	assert.True(t, errors.Is(err, domain.ErrConnectionNotRegistered))

	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	require.NoError(t, lobby.StartChat(ctx, "a"))

	err = lobby.StartChat(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIllegalTransition, apperrors.CodeOf(err))
	assert.Equal(t, 1, lobby.Stats(ctx).QueueLength)

	require.NoError(t, lobby.StartChat(ctx, "b"))
	err = lobby.StartChat(ctx, "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalStateTransition))
	assertInvariants(t, lobby)
}

func TestSkipChat_WhileSearching(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	require.NoError(t, lobby.StartChat(ctx, "a"))
	notifier.Reset()

	require.NoError(t, lobby.SkipChat(ctx, "a"))

	assert.Equal(t, domain.StatusOnline, statusOf(t, lobby, "a"))
	assert.Zero(t, lobby.Stats(ctx).QueueLength)
	assert.Len(t, notifier.OfType("a", domain.EventChatSkipped), 1)
	assert.Empty(t, notifier.OfType("b", domain.EventChatSkipped))
	assert.Empty(t, notifier.OfType("b", domain.EventPartnerDisconnected))
	assertInvariants(t, lobby)
}

func TestSkipChat_WhilePaired(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	pair(t, lobby, "a", "b")

	require.NoError(t, lobby.SkipChat(ctx, "a"))

	assert.Len(t, notifier.OfType("b", domain.EventPartnerDisconnected), 1)
	assert.Len(t, notifier.OfType("a", domain.EventChatSkipped), 1)
	assert.Empty(t, notifier.OfType("a", domain.EventPartnerDisconnected))
	assert.Equal(t, domain.StatusOnline, statusOf(t, lobby, "a"))
	assert.Equal(t, domain.StatusOnline, statusOf(t, lobby, "b"))
	assert.Zero(t, lobby.Stats(ctx).ActiveSessions)
	assertInvariants(t, lobby)

	// Neither side is re-queued, and both may search again.
	assert.Zero(t, lobby.Stats(ctx).QueueLength)
	require.NoError(t, lobby.StartChat(ctx, "b"))
	require.NoError(t, lobby.StartChat(ctx, "a"))
	assert.Equal(t, domain.StatusPaired, statusOf(t, lobby, "a"))
	assertInvariants(t, lobby)
}

func TestSkipChat_DuplicateIsNoop(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	pair(t, lobby, "a", "b")

	require.NoError(t, lobby.SkipChat(ctx, "a"))
	notifier.Reset()
	require.NoError(t, lobby.SkipChat(ctx, "b"))
	require.NoError(t, lobby.SkipChat(ctx, "a"))

	assert.Empty(t, notifier.OfType("a", domain.EventPartnerDisconnected))
	assert.Empty(t, notifier.OfType("b", domain.EventPartnerDisconnected))
	assertInvariants(t, lobby)
}

func TestSkipChat_WhileInvited(t *testing.T) {
	lobby, _ := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	require.NoError(t, lobby.Invite(ctx, "a", "bob"))

	err := lobby.SkipChat(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIllegalTransition, apperrors.CodeOf(err))
	assert.Equal(t, domain.StatusInvited, statusOf(t, lobby, "a"))
}

func TestGoOffline_WhileSearching(t *testing.T) {
	lobby, _ := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	require.NoError(t, lobby.StartChat(ctx, "a"))

	require.NoError(t, lobby.GoOffline(ctx, "a"))
	assert.Zero(t, lobby.Stats(ctx).QueueLength)

	// bob must not be paired with the departed alice.
	require.NoError(t, lobby.StartChat(ctx, "b"))
	assert.Equal(t, domain.StatusSearching, statusOf(t, lobby, "b"))
	assertInvariants(t, lobby)
}

func TestGoOffline_WhilePaired(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	pair(t, lobby, "a", "b")

	require.NoError(t, lobby.GoOffline(ctx, "a"))

	assert.Len(t, notifier.OfType("b", domain.EventPartnerDisconnected), 1)
	b, ok := lobby.Lookup(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, domain.StatusOnline, b.Status)
	assert.Empty(t, b.SessionID)
	assert.Zero(t, lobby.Stats(ctx).ActiveSessions)
	assertInvariants(t, lobby)
}

func TestStartChat_ConcurrentPairOnEmptyQueue(t *testing.T) {
	for i := 0; i < 200; i++ {
		lobby, notifier := newTestLobby(t)
		ctx := context.Background()
		goOnline(t, lobby, "a", "alice")
		goOnline(t, lobby, "b", "bob")

		var wg sync.WaitGroup
		for _, id := range []domain.ConnectionID{"a", "b"} {
			wg.Add(1)
			go func(id domain.ConnectionID) {
				defer wg.Done()
				assert.NoError(t, lobby.StartChat(ctx, id))
			}(id)
		}
		wg.Wait()

		stats := lobby.Stats(ctx)
		require.Equal(t, 1, stats.ActiveSessions)
		require.Zero(t, stats.QueueLength)
		require.Len(t, notifier.OfType("a", domain.EventPartnerFound), 1)
		require.Len(t, notifier.OfType("b", domain.EventPartnerFound), 1)
		assertInvariants(t, lobby)
	}
}

func TestStartChat_ConcurrentCrowd(t *testing.T) {
	lobby, _ := newTestLobby(t)
	ctx := context.Background()

	const crowd = 101
	ids := make([]domain.ConnectionID, crowd)
	for i := range ids {
		ids[i] = domain.ConnectionID(fmt.Sprintf("c%03d", i))
		goOnline(t, lobby, ids[i], fmt.Sprintf("user%03d", i))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.ConnectionID) {
			defer wg.Done()
			assert.NoError(t, lobby.StartChat(ctx, id))
		}(id)
	}
	wg.Wait()

	stats := lobby.Stats(ctx)
	assert.Equal(t, crowd/2, stats.ActiveSessions)
	assert.Equal(t, 1, stats.QueueLength)
	assert.Equal(t, crowd-1, stats.Paired)
	assertInvariants(t, lobby)
}

func TestConcurrentSkipAndDisconnect(t *testing.T) {
	for i := 0; i < 100; i++ {
		lobby, notifier := newTestLobby(t)
		ctx := context.Background()
		goOnline(t, lobby, "a", "alice")
		goOnline(t, lobby, "b", "bob")
		pair(t, lobby, "a", "b")

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); _ = lobby.SkipChat(ctx, "a") }()
		go func() { defer wg.Done(); _ = lobby.SkipChat(ctx, "b") }()
		go func() { defer wg.Done(); _ = lobby.GoOffline(ctx, "a") }()
		wg.Wait()

		assert.Zero(t, lobby.Stats(ctx).ActiveSessions)
		disconnects := len(notifier.OfType("a", domain.EventPartnerDisconnected)) +
			len(notifier.OfType("b", domain.EventPartnerDisconnected))
		require.Equal(t, 1, disconnects, "the session is torn down exactly once")
		assertInvariants(t, lobby)
	}
}
