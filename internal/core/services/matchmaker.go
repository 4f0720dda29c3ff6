package services

import (
	"container/list"
	"context"
	"time"

	"pairchat/internal/core/domain"
)

// waitQueue is a FIFO of connections looking for a random partner. A
// connection is held at most once.
type waitQueue struct {
	order *list.List
	index map[domain.ConnectionID]*list.Element
}

func newWaitQueue() *waitQueue {
	return &waitQueue{
		order: list.New(),
		index: make(map[domain.ConnectionID]*list.Element),
	}
}

// Push appends id and reports false if it was already queued.
func (q *waitQueue) Push(id domain.ConnectionID) bool {
	if _, ok := q.index[id]; ok {
		return false
	}
	q.index[id] = q.order.PushBack(id)
	return true
}

// Pop removes and returns the longest-waiting connection.
func (q *waitQueue) Pop() (domain.ConnectionID, bool) {
	front := q.order.Front()
	if front == nil {
		return "", false
	}
	id := q.order.Remove(front).(domain.ConnectionID)
	delete(q.index, id)
	return id, true
}

func (q *waitQueue) Remove(id domain.ConnectionID) bool {
	el, ok := q.index[id]
	if !ok {
		return false
	}
	q.order.Remove(el)
	delete(q.index, id)
	return true
}

func (q *waitQueue) Contains(id domain.ConnectionID) bool {
	_, ok := q.index[id]
	return ok
}

func (q *waitQueue) Len() int {
	return q.order.Len()
}

// Snapshot returns the queued IDs, head first.
func (q *waitQueue) Snapshot() []domain.ConnectionID {
	ids := make([]domain.ConnectionID, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(domain.ConnectionID))
	}
	return ids
}

// StartChat pairs the caller with the head of the wait queue, or queues it
// when nobody is waiting.
func (l *Lobby) StartChat(ctx context.Context, id domain.ConnectionID) error {
	out := l.begin()
	defer l.commit(ctx, out)

	conn, err := l.connection(id)
	if err != nil {
		return err
	}
	if conn.Status != domain.StatusOnline {
		return illegalFrom("startChat", conn.Status)
	}

	// Leaving Online withdraws the caller from invitations addressed to it.
	l.dropRecipientLocked(out, id)

	for {
		headID, ok := l.queue.Pop()
		if !ok {
			break
		}
		head, ok := l.connections[headID]
		if !ok || head.Status != domain.StatusSearching || headID == id {
			l.logger.Warnw("Dropped stale wait queue entry", "connection_id", headID)
			continue
		}

		l.metrics.RecordQueueWait(time.Since(head.StatusSince))
		l.startSessionLocked(out, head, conn, domain.OriginRandom)
		out.notify(head.ID, domain.EventPartnerFound, domain.PartnerPayload{Partner: conn.Nickname})
		out.notify(conn.ID, domain.EventPartnerFound, domain.PartnerPayload{Partner: head.Nickname})
		out.presenceChanged = true
		return nil
	}

	l.queue.Push(id)
	l.setStatus(conn, domain.StatusSearching)
	out.presenceChanged = true

	l.logger.Debugw("Connection is searching",
		"connection_id", id,
		"queue_length", l.queue.Len(),
	)
	return nil
}

// SkipChat stops a search or ends the current session. Skipping while
// already idle is a no-op so a racing duplicate skip is harmless.
func (l *Lobby) SkipChat(ctx context.Context, id domain.ConnectionID) error {
	out := l.begin()
	defer l.commit(ctx, out)

	conn, err := l.connection(id)
	if err != nil {
		return err
	}

	switch conn.Status {
	case domain.StatusSearching:
		l.queue.Remove(id)
		l.setStatus(conn, domain.StatusOnline)
		out.notify(id, domain.EventChatSkipped, domain.NoticePayload{Message: "You stopped searching"})
		out.presenceChanged = true
		return nil
	case domain.StatusPaired:
		session, ok := l.sessions[conn.SessionID]
		if !ok {
			conn.SessionID = ""
			l.setStatus(conn, domain.StatusOnline)
			return nil
		}
		l.endSessionLocked(out, session, domain.EndReasonSkipped, id)
		return nil
	case domain.StatusOnline:
		return nil
	default:
		return illegalFrom("skipChat", conn.Status)
	}
}
