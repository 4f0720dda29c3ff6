package services

import (
	"context"
	"sort"
	"time"

	"pairchat/internal/core/domain"
	apperrors "pairchat/pkg/errors"
	"pairchat/pkg/validation"
)

// GoOnline registers the connection under nickname. Repeating the call with
// the same nickname only re-sends the online list; a nickname is set once per
// connection.
func (l *Lobby) GoOnline(ctx context.Context, id domain.ConnectionID, nickname string) error {
	nickname = validation.NormalizeNickname(nickname)
	if err := validation.ValidateNickname(nickname); err != nil {
		return apperrors.NewInvalidNicknameError(domain.ErrInvalidNickname, err.Error())
	}

	out := l.begin()
	defer l.commit(ctx, out)

	if l.closed {
		return apperrors.NewServiceUnavailableError("lobby is shutting down")
	}
	if conn, ok := l.connections[id]; ok {
		if conn.Nickname != nickname {
			return illegalTransition(domain.ErrIllegalStateTransition, "nickname is already set for this connection")
		}
		out.notify(id, domain.EventOnlineUsers, l.listOnlineLocked(nickname))
		return nil
	}

	now := time.Now()
	l.connections[id] = &domain.Connection{
		ID:          id,
		Nickname:    nickname,
		Status:      domain.StatusOnline,
		ConnectedAt: now,
		StatusSince: now,
	}
	out.notify(id, domain.EventOnlineUsers, l.listOnlineLocked(nickname))
	out.presenceChanged = true

	l.logger.Infow("Connection went online",
		"connection_id", id,
		"nickname", nickname,
	)
	return nil
}

// GoOffline removes the connection from every structure it appears in. It is
// legal from any status and a no-op for unknown connections.
func (l *Lobby) GoOffline(ctx context.Context, id domain.ConnectionID) error {
	out := l.begin()
	defer l.commit(ctx, out)

	conn, ok := l.connections[id]
	if !ok {
		return nil
	}

	switch conn.Status {
	case domain.StatusSearching:
		l.queue.Remove(id)
	case domain.StatusPaired:
		if session, ok := l.sessions[conn.SessionID]; ok {
			l.endSessionLocked(out, session, domain.EndReasonDisconnected, id)
		}
	case domain.StatusInvited:
		l.cancelOutgoingLocked(out, id)
	}
	l.dropRecipientLocked(out, id)

	delete(l.connections, id)
	conn.Status = domain.StatusDisconnected
	out.presenceChanged = true

	l.logger.Infow("Connection went offline",
		"connection_id", id,
		"nickname", conn.Nickname,
	)
	return nil
}

// ListOnline returns every registered connection except those using
// excludingNickname. Busy users are listed with their status.
func (l *Lobby) ListOnline(ctx context.Context, excludingNickname string) []domain.OnlineUser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listOnlineLocked(validation.NormalizeNickname(excludingNickname))
}

func (l *Lobby) Lookup(ctx context.Context, id domain.ConnectionID) (domain.Connection, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conn, ok := l.connections[id]
	if !ok {
		return domain.Connection{}, false
	}
	return *conn, true
}

func (l *Lobby) Stats(ctx context.Context) domain.LobbyStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statsLocked()
}

func (l *Lobby) listOnlineLocked(excludingNickname string) []domain.OnlineUser {
	conns := make([]*domain.Connection, 0, len(l.connections))
	for _, conn := range l.connections {
		if excludingNickname != "" && conn.Nickname == excludingNickname {
			continue
		}
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].ConnectedAt.Equal(conns[j].ConnectedAt) {
			return conns[i].ID < conns[j].ID
		}
		return conns[i].ConnectedAt.Before(conns[j].ConnectedAt)
	})

	users := make([]domain.OnlineUser, 0, len(conns))
	for _, conn := range conns {
		users = append(users, domain.OnlineUser{Nickname: conn.Nickname, Status: conn.Status})
	}
	return users
}

// flushPresence sends each idle observer the current list without its own
// nickname. Paired connections are skipped until they return to the lobby.
func (l *Lobby) flushPresence() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	out := &outbox{}
	for id, conn := range l.connections {
		if conn.Status == domain.StatusPaired {
			continue
		}
		out.notify(id, domain.EventOnlineUsers, l.listOnlineLocked(conn.Nickname))
	}

	l.deliverMu.Lock()
	l.mu.Unlock()
	for _, n := range out.notes {
		l.notifier.Notify(n.to, n.event)
	}
	l.deliverMu.Unlock()
}
