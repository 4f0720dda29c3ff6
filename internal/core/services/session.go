package services

import (
	"context"
	"time"

	"pairchat/internal/core/domain"
	apperrors "pairchat/pkg/errors"
	"pairchat/pkg/utils"
	"pairchat/pkg/validation"
)

// SendMessage relays content to the other participant of the caller's
// session.
func (l *Lobby) SendMessage(ctx context.Context, id domain.ConnectionID, content string) error {
	content = utils.SanitizeString(content)
	if err := validation.ValidateMessageContent(content, l.cfg.MaxMessageLength); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	out := l.begin()
	defer l.commit(ctx, out)

	conn, session, err := l.activeSessionLocked(id)
	if err != nil {
		return err
	}
	peerID, _ := session.Peer(id)

	msg := domain.Message{
		ID:             domain.MessageID(utils.GenerateMessageID()),
		SessionID:      session.ID,
		SenderNickname: conn.Nickname,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
	out.notify(peerID, domain.EventMessage, domain.MessagePayload{
		ID:        msg.ID,
		Message:   msg.Content,
		From:      msg.SenderNickname,
		Timestamp: utils.FormatTimestamp(msg.Timestamp),
	})
	out.publish(domain.LifecycleEvent{
		Type:      domain.LifecycleMessageRelayed,
		SessionID: session.ID,
		Message:   &msg,
		Timestamp: msg.Timestamp,
	})
	l.metrics.RecordMessageRelayed()
	return nil
}

// ShareVideo points both participants at the same YouTube video.
func (l *Lobby) ShareVideo(ctx context.Context, id domain.ConnectionID, url string) error {
	videoID, err := validation.ExtractVideoID(url)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	out := l.begin()
	defer l.commit(ctx, out)

	conn, session, err := l.activeSessionLocked(id)
	if err != nil {
		return err
	}
	session.CurrentVideo = videoID

	payload := domain.VideoChangedPayload{VideoID: videoID, SharedBy: conn.Nickname}
	out.notify(session.ParticipantA, domain.EventVideoChanged, payload)
	out.notify(session.ParticipantB, domain.EventVideoChanged, payload)
	out.publish(domain.LifecycleEvent{
		Type:      domain.LifecycleVideoShared,
		SessionID: session.ID,
		VideoID:   videoID,
		Timestamp: time.Now().UTC(),
	})
	l.metrics.RecordVideoShared()
	return nil
}

func (l *Lobby) activeSessionLocked(id domain.ConnectionID) (*domain.Connection, *domain.Session, error) {
	conn, err := l.connection(id)
	if err != nil {
		return nil, nil, err
	}
	if conn.Status != domain.StatusPaired {
		return nil, nil, illegalTransition(domain.ErrNoActiveSession, "you are not in a chat")
	}
	session, ok := l.sessions[conn.SessionID]
	if !ok {
		return nil, nil, illegalTransition(domain.ErrNoActiveSession, "your chat has already ended")
	}
	return conn, session, nil
}

// startSessionLocked pairs a and b. Both must be free of other engagements.
func (l *Lobby) startSessionLocked(out *outbox, a, b *domain.Connection, origin domain.SessionOrigin) *domain.Session {
	session := &domain.Session{
		ID:           domain.SessionID(utils.GenerateSessionID()),
		ParticipantA: a.ID,
		ParticipantB: b.ID,
		Origin:       origin,
		CreatedAt:    time.Now(),
	}
	l.sessions[session.ID] = session

	for _, conn := range []*domain.Connection{a, b} {
		l.queue.Remove(conn.ID)
		l.dropRecipientLocked(out, conn.ID)
		conn.SessionID = session.ID
		l.setStatus(conn, domain.StatusPaired)
	}

	out.publish(domain.LifecycleEvent{
		Type:         domain.LifecycleSessionStarted,
		SessionID:    session.ID,
		Origin:       origin,
		Participants: []string{a.Nickname, b.Nickname},
		Timestamp:    session.CreatedAt.UTC(),
	})
	l.metrics.RecordSessionStarted(origin)

	l.logger.Infow("Session started",
		"session_id", session.ID,
		"origin", origin,
		"participant_a", a.Nickname,
		"participant_b", b.Nickname,
	)
	return session
}

// endSessionLocked destroys session and returns both participants to
// Online. initiator is the side that skipped or disconnected.
func (l *Lobby) endSessionLocked(out *outbox, session *domain.Session, reason domain.EndReason, initiator domain.ConnectionID) {
	if _, ok := l.sessions[session.ID]; !ok {
		return
	}
	delete(l.sessions, session.ID)

	participants := make([]string, 0, 2)
	for _, id := range []domain.ConnectionID{session.ParticipantA, session.ParticipantB} {
		conn, ok := l.connections[id]
		if !ok {
			continue
		}
		participants = append(participants, conn.Nickname)
		if conn.SessionID == session.ID {
			conn.SessionID = ""
			l.setStatus(conn, domain.StatusOnline)
		}
	}

	if peerID, ok := session.Peer(initiator); ok {
		out.notify(peerID, domain.EventPartnerDisconnected, domain.PartnerDisconnectedPayload{})
	}
	if reason == domain.EndReasonSkipped {
		out.notify(initiator, domain.EventChatSkipped, domain.NoticePayload{Message: "You left the chat"})
	}
	out.presenceChanged = true

	duration := time.Since(session.CreatedAt)
	out.publish(domain.LifecycleEvent{
		Type:         domain.LifecycleSessionEnded,
		SessionID:    session.ID,
		Origin:       session.Origin,
		Participants: participants,
		Reason:       reason,
		Duration:     duration,
		Timestamp:    time.Now().UTC(),
	})
	l.metrics.RecordSessionEnded(reason, duration)

	l.logger.Infow("Session ended",
		"session_id", session.ID,
		"reason", reason,
		"initiator", initiator,
		"duration", utils.FormatDuration(duration),
	)
}
