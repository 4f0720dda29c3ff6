package ports

import (
	"context"

	"pairchat/internal/core/domain"
)

// PresenceRegistry is the source of truth for who is online.
type PresenceRegistry interface {
	GoOnline(ctx context.Context, id domain.ConnectionID, nickname string) error
	// GoOffline is legal from any status and idempotent.
	GoOffline(ctx context.Context, id domain.ConnectionID) error
	ListOnline(ctx context.Context, excludingNickname string) []domain.OnlineUser
	Lookup(ctx context.Context, id domain.ConnectionID) (domain.Connection, bool)
	Stats(ctx context.Context) domain.LobbyStats
}

type Matchmaker interface {
	StartChat(ctx context.Context, id domain.ConnectionID) error
	SkipChat(ctx context.Context, id domain.ConnectionID) error
}

type InvitationBroker interface {
	Invite(ctx context.Context, from domain.ConnectionID, toNickname string) error
	Accept(ctx context.Context, to domain.ConnectionID, fromNickname string) error
	Reject(ctx context.Context, to domain.ConnectionID, fromNickname string) error
}

type SessionManager interface {
	SendMessage(ctx context.Context, id domain.ConnectionID, content string) error
	ShareVideo(ctx context.Context, id domain.ConnectionID, url string) error
}

// Lobby is the full matchmaking surface a transport drives.
type Lobby interface {
	PresenceRegistry
	Matchmaker
	InvitationBroker
	SessionManager
}
