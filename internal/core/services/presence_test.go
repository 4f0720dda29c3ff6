package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairchat/internal/core/domain"
	apperrors "pairchat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoOnline_InvalidNickname(t *testing.T) {
	lobby, _ := newTestLobby(t)

	for _, nickname := range []string{"", "   ", "this-nickname-is-way-too-long-for-the-lobby"} {
		err := lobby.GoOnline(context.Background(), "a", nickname)
		require.Error(t, err, "nickname %q", nickname)
		assert.Equal(t, apperrors.ErrCodeInvalidNickname, apperrors.CodeOf(err))
		assert.True(t, errors.Is(err, domain.ErrInvalidNickname))
	}

	_, ok := lobby.Lookup(context.Background(), "a")
	assert.False(t, ok)
}

func TestGoOnline_TrimsNickname(t *testing.T) {
	lobby, _ := newTestLobby(t)
	goOnline(t, lobby, "a", "  alice ")

	conn, ok := lobby.Lookup(context.Background(), "a")
	require.True(t, ok)
	assert.Equal(t, "alice", conn.Nickname)
	assert.Equal(t, domain.StatusOnline, conn.Status)
}

func TestGoOnline_BroadcastExcludesOwnNickname(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")

	ev, ok := notifier.Last("a", domain.EventOnlineUsers)
	require.True(t, ok)
	assert.Equal(t, []domain.OnlineUser{{Nickname: "bob", Status: domain.StatusOnline}}, ev.Payload)

	ev, ok = notifier.Last("b", domain.EventOnlineUsers)
	require.True(t, ok)
	assert.Equal(t, []domain.OnlineUser{{Nickname: "alice", Status: domain.StatusOnline}}, ev.Payload)
}

func TestGoOnline_Repeat(t *testing.T) {
	lobby, _ := newTestLobby(t)
	goOnline(t, lobby, "a", "alice")

	assert.NoError(t, lobby.GoOnline(context.Background(), "a", "alice"))

	err := lobby.GoOnline(context.Background(), "a", "mallory")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIllegalTransition, apperrors.CodeOf(err))

	conn, _ := lobby.Lookup(context.Background(), "a")
	assert.Equal(t, "alice", conn.Nickname)
}

func TestGoOffline_Idempotent(t *testing.T) {
	lobby, _ := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")

	require.NoError(t, lobby.GoOffline(ctx, "a"))
	first := lobby.Stats(ctx)
	firstList := lobby.ListOnline(ctx, "")

	require.NoError(t, lobby.GoOffline(ctx, "a"))
	assert.Equal(t, first, lobby.Stats(ctx))
	assert.Equal(t, firstList, lobby.ListOnline(ctx, ""))
	assert.Equal(t, domain.StatusDisconnected, statusOf(t, lobby, "a"))
	assertInvariants(t, lobby)
}

func TestGoOffline_UnknownConnection(t *testing.T) {
	lobby, _ := newTestLobby(t)
	assert.NoError(t, lobby.GoOffline(context.Background(), "ghost"))
}

func TestGoOffline_NotifiesRemainingObservers(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	notifier.Reset()

	require.NoError(t, lobby.GoOffline(context.Background(), "a"))

	ev, ok := notifier.Last("b", domain.EventOnlineUsers)
	require.True(t, ok)
	assert.Empty(t, ev.Payload)
}

func TestListOnline_IncludesBusyUsers(t *testing.T) {
	lobby, _ := newTestLobby(t)
	ctx := context.Background()
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	goOnline(t, lobby, "c", "carol")
	pair(t, lobby, "a", "b")

	users := lobby.ListOnline(ctx, "carol")
	assert.Equal(t, []domain.OnlineUser{
		{Nickname: "alice", Status: domain.StatusPaired},
		{Nickname: "bob", Status: domain.StatusPaired},
	}, users)
}

func TestListOnline_DuplicateNicknamesAreExcludedTogether(t *testing.T) {
	lobby, _ := newTestLobby(t)
	goOnline(t, lobby, "a1", "alice")
	goOnline(t, lobby, "a2", "alice")
	goOnline(t, lobby, "b", "bob")

	users := lobby.ListOnline(context.Background(), "alice")
	assert.Equal(t, []domain.OnlineUser{{Nickname: "bob", Status: domain.StatusOnline}}, users)
	assert.Len(t, lobby.ListOnline(context.Background(), ""), 3)
}

func TestPresenceBroadcast_SkipsPairedObservers(t *testing.T) {
	lobby, notifier := newTestLobby(t)
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	pair(t, lobby, "a", "b")
	notifier.Reset()

	goOnline(t, lobby, "c", "carol")

	assert.Empty(t, notifier.OfType("a", domain.EventOnlineUsers))
	assert.Empty(t, notifier.OfType("b", domain.EventOnlineUsers))
	assert.NotEmpty(t, notifier.OfType("c", domain.EventOnlineUsers))
}

func TestPresenceBroadcast_Debounced(t *testing.T) {
	lobby, notifier := newTestLobby(t, func(cfg *LobbyConfig) {
		cfg.BroadcastDebounce = 20 * time.Millisecond
	})
	goOnline(t, lobby, "a", "alice")
	goOnline(t, lobby, "b", "bob")
	goOnline(t, lobby, "c", "carol")
	goOnline(t, lobby, "d", "dave")

	assert.Eventually(t, func() bool {
		ev, ok := notifier.Last("a", domain.EventOnlineUsers)
		if !ok {
			return false
		}
		users, _ := ev.Payload.([]domain.OnlineUser)
		return len(users) == 3
	}, time.Second, 5*time.Millisecond)
}
