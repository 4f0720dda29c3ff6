package services

import (
	"context"
	"fmt"
	"time"

	"pairchat/internal/core/domain"
	apperrors "pairchat/pkg/errors"
	"pairchat/pkg/utils"
	"pairchat/pkg/validation"
)

// Invite proposes a direct chat to every idle connection registered under
// toNickname.
func (l *Lobby) Invite(ctx context.Context, from domain.ConnectionID, toNickname string) error {
	toNickname = validation.NormalizeNickname(toNickname)
	if err := validation.ValidateNickname(toNickname); err != nil {
		return apperrors.NewInvalidNicknameError(domain.ErrInvalidNickname, err.Error())
	}

	out := l.begin()
	defer l.commit(ctx, out)

	if l.closed {
		return apperrors.NewServiceUnavailableError("lobby is shutting down")
	}
	inviter, err := l.connection(from)
	if err != nil {
		return err
	}
	if inviter.Status != domain.StatusOnline {
		return illegalFrom("inviteToChat", inviter.Status)
	}

	recipients := make(map[domain.ConnectionID]struct{})
	for id, conn := range l.connections {
		if id == from || conn.Nickname != toNickname || !conn.Available() {
			continue
		}
		recipients[id] = struct{}{}
	}
	if len(recipients) == 0 {
		return apperrors.NewTargetUnavailableError(
			domain.ErrTargetUnavailable,
			fmt.Sprintf("%s is not available for a chat", toNickname),
		)
	}

	inv := &domain.Invitation{
		ID:           domain.InvitationID(utils.GenerateInvitationID()),
		From:         from,
		FromNickname: inviter.Nickname,
		To:           toNickname,
		Recipients:   recipients,
		CreatedAt:    time.Now(),
		Status:       domain.InvitationPending,
	}
	l.invitations[inv.ID] = inv
	l.outgoing[from] = inv.ID
	l.setStatus(inviter, domain.StatusInvited)

	invID := inv.ID
	l.timers[invID] = time.AfterFunc(l.cfg.InvitationTimeout, func() {
		l.expire(invID)
	})

	for id := range recipients {
		out.notify(id, domain.EventChatInvitation, domain.ChatInvitationPayload{From: inviter.Nickname})
	}
	out.presenceChanged = true

	l.logger.Infow("Invitation sent",
		"invitation_id", inv.ID,
		"from", inviter.Nickname,
		"to", toNickname,
		"recipients", len(recipients),
	)
	return nil
}

// Accept resolves the oldest pending invitation from fromNickname that was
// delivered to the caller and pairs the two connections.
func (l *Lobby) Accept(ctx context.Context, to domain.ConnectionID, fromNickname string) error {
	fromNickname = validation.NormalizeNickname(fromNickname)

	out := l.begin()
	defer l.commit(ctx, out)

	acceptor, err := l.connection(to)
	if err != nil {
		return err
	}
	if acceptor.Status != domain.StatusOnline && acceptor.Status != domain.StatusInvited {
		return illegalFrom("acceptChatInvitation", acceptor.Status)
	}

	inv := l.findInvitationLocked(to, fromNickname)
	if inv == nil {
		return staleReference(fromNickname)
	}
	inviter, ok := l.connections[inv.From]
	if !ok || inviter.Status != domain.StatusInvited {
		l.removeInvitationLocked(inv, domain.InvitationCancelled)
		return staleReference(fromNickname)
	}

	// Mutual invitations: the acceptor's own proposal is withdrawn.
	if acceptor.Status == domain.StatusInvited {
		l.cancelOutgoingLocked(out, to)
	}
	l.removeInvitationLocked(inv, domain.InvitationAccepted)
	out.publish(domain.LifecycleEvent{
		Type:         domain.LifecycleInvitationResolved,
		InvitationID: inv.ID,
		Outcome:      domain.InvitationAccepted,
		Participants: []string{inviter.Nickname, acceptor.Nickname},
		Timestamp:    time.Now().UTC(),
	})

	l.startSessionLocked(out, inviter, acceptor, domain.OriginInvitation)
	out.notify(inviter.ID, domain.EventChatInvitationAccepted, domain.PartnerPayload{Partner: acceptor.Nickname})
	out.notify(acceptor.ID, domain.EventPartnerFound, domain.PartnerPayload{Partner: inviter.Nickname})
	return nil
}

// Reject declines the oldest pending invitation from fromNickname that was
// delivered to the caller. The inviter returns to Online.
func (l *Lobby) Reject(ctx context.Context, to domain.ConnectionID, fromNickname string) error {
	fromNickname = validation.NormalizeNickname(fromNickname)

	out := l.begin()
	defer l.commit(ctx, out)

	rejecter, err := l.connection(to)
	if err != nil {
		return err
	}

	inv := l.findInvitationLocked(to, fromNickname)
	if inv == nil {
		return staleReference(fromNickname)
	}

	l.removeInvitationLocked(inv, domain.InvitationRejected)
	if inviter, ok := l.connections[inv.From]; ok {
		l.setStatus(inviter, domain.StatusOnline)
		out.notify(inviter.ID, domain.EventChatInvitationRejected, domain.PartnerPayload{Partner: rejecter.Nickname})
	}
	out.publish(domain.LifecycleEvent{
		Type:         domain.LifecycleInvitationResolved,
		InvitationID: inv.ID,
		Outcome:      domain.InvitationRejected,
		Participants: []string{inv.FromNickname, rejecter.Nickname},
		Timestamp:    time.Now().UTC(),
	})
	out.presenceChanged = true

	l.logger.Infow("Invitation rejected",
		"invitation_id", inv.ID,
		"from", inv.FromNickname,
		"by", rejecter.Nickname,
	)
	return nil
}

// expire runs on the invitation timer. It only acts if the invitation is
// still pending.
func (l *Lobby) expire(id domain.InvitationID) {
	ctx := context.Background()
	out := l.begin()
	defer l.commit(ctx, out)

	inv, ok := l.invitations[id]
	if !ok || inv.Status != domain.InvitationPending {
		return
	}

	l.removeInvitationLocked(inv, domain.InvitationExpired)
	if inviter, ok := l.connections[inv.From]; ok && inviter.Status == domain.StatusInvited {
		l.setStatus(inviter, domain.StatusOnline)
		out.notify(inviter.ID, domain.EventNoPartner, domain.NoticePayload{
			Message: fmt.Sprintf("%s did not answer your invitation", inv.To),
		})
	}
	out.publish(domain.LifecycleEvent{
		Type:         domain.LifecycleInvitationResolved,
		InvitationID: inv.ID,
		Outcome:      domain.InvitationExpired,
		Participants: []string{inv.FromNickname, inv.To},
		Timestamp:    time.Now().UTC(),
	})
	out.presenceChanged = true

	l.logger.Infow("Invitation expired",
		"invitation_id", inv.ID,
		"from", inv.FromNickname,
		"to", inv.To,
	)
}

func (l *Lobby) findInvitationLocked(to domain.ConnectionID, fromNickname string) *domain.Invitation {
	var found *domain.Invitation
	for _, inv := range l.invitations {
		if inv.Status != domain.InvitationPending || inv.FromNickname != fromNickname || !inv.DeliveredTo(to) {
			continue
		}
		if found == nil || inv.CreatedAt.Before(found.CreatedAt) {
			found = inv
		}
	}
	return found
}

// removeInvitationLocked takes inv out of the table with its final status.
// The inviter's status is left to the caller.
func (l *Lobby) removeInvitationLocked(inv *domain.Invitation, status domain.InvitationStatus) {
	inv.Status = status
	delete(l.invitations, inv.ID)
	if l.outgoing[inv.From] == inv.ID {
		delete(l.outgoing, inv.From)
	}
	if t, ok := l.timers[inv.ID]; ok {
		t.Stop()
		delete(l.timers, inv.ID)
	}
	l.metrics.RecordInvitation(status)
}

// cancelOutgoingLocked withdraws the invitation sent by id, if any.
// Recipients are not told; a later answer gets a stale reference error.
func (l *Lobby) cancelOutgoingLocked(out *outbox, id domain.ConnectionID) {
	invID, ok := l.outgoing[id]
	if !ok {
		return
	}
	inv, ok := l.invitations[invID]
	if !ok {
		delete(l.outgoing, id)
		return
	}
	l.removeInvitationLocked(inv, domain.InvitationCancelled)
	if conn, ok := l.connections[id]; ok && conn.Status == domain.StatusInvited {
		l.setStatus(conn, domain.StatusOnline)
	}
	out.publish(domain.LifecycleEvent{
		Type:         domain.LifecycleInvitationResolved,
		InvitationID: inv.ID,
		Outcome:      domain.InvitationCancelled,
		Participants: []string{inv.FromNickname, inv.To},
		Timestamp:    time.Now().UTC(),
	})
}

// dropRecipientLocked withdraws id from every pending invitation delivered
// to it. An invitation left without recipients is cancelled and its inviter
// returns to Online with a notice.
func (l *Lobby) dropRecipientLocked(out *outbox, id domain.ConnectionID) {
	for _, inv := range l.invitations {
		if inv.Status != domain.InvitationPending || !inv.DeliveredTo(id) {
			continue
		}
		delete(inv.Recipients, id)
		if len(inv.Recipients) > 0 {
			continue
		}

		l.removeInvitationLocked(inv, domain.InvitationCancelled)
		if inviter, ok := l.connections[inv.From]; ok && inviter.Status == domain.StatusInvited {
			l.setStatus(inviter, domain.StatusOnline)
			out.notify(inviter.ID, domain.EventNoPartner, domain.NoticePayload{
				Message: fmt.Sprintf("%s is no longer available", inv.To),
			})
		}
		out.publish(domain.LifecycleEvent{
			Type:         domain.LifecycleInvitationResolved,
			InvitationID: inv.ID,
			Outcome:      domain.InvitationCancelled,
			Participants: []string{inv.FromNickname, inv.To},
			Timestamp:    time.Now().UTC(),
		})
		out.presenceChanged = true
	}
}
