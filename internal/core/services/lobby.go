package services

import (
	"context"
	"sync"
	"time"

	"pairchat/internal/core/domain"
	"pairchat/internal/core/ports"
	"pairchat/pkg/batch"

	"go.uber.org/zap"
)

// LobbyConfig holds the matchmaking knobs.
type LobbyConfig struct {
	InvitationTimeout time.Duration
	BroadcastDebounce time.Duration
	MaxMessageLength  int
	PublishBuffer     int
	PublishTimeout    time.Duration
}

func DefaultLobbyConfig() LobbyConfig {
	return LobbyConfig{
		InvitationTimeout: 60 * time.Second,
		BroadcastDebounce: 200 * time.Millisecond,
		MaxMessageLength:  1000,
		PublishBuffer:     1024,
		PublishTimeout:    5 * time.Second,
	}
}

// Lobby holds the presence registry, the wait queue, the invitation table
// and the live sessions behind one mutex. Every public operation is a single
// critical section; notifications produced inside it are delivered after the
// state change is complete.
type Lobby struct {
	cfg       LobbyConfig
	notifier  ports.Notifier
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger

	mu          sync.Mutex
	connections map[domain.ConnectionID]*domain.Connection
	queue       *waitQueue
	invitations map[domain.InvitationID]*domain.Invitation
	outgoing    map[domain.ConnectionID]domain.InvitationID
	timers      map[domain.InvitationID]*time.Timer
	sessions    map[domain.SessionID]*domain.Session
	closed      bool

	// deliverMu is taken before mu is released so notifications reach the
	// transport in the order the state changes happened.
	deliverMu sync.Mutex
	// events is fed under deliverMu and drained by publishLoop, so the sink
	// sees lifecycle events in state-change order.
	events       chan queuedEvent
	eventsClosed bool
	publishDone  chan struct{}

	presence *batch.Coalescer
}

type queuedEvent struct {
	ctx   context.Context
	event domain.LifecycleEvent
}

var _ ports.Lobby = (*Lobby)(nil)

// NewLobby creates an empty lobby. publisher and metrics may be nil.
func NewLobby(
	cfg LobbyConfig,
	notifier ports.Notifier,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *Lobby {
	if cfg.InvitationTimeout <= 0 {
		cfg.InvitationTimeout = DefaultLobbyConfig().InvitationTimeout
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultLobbyConfig().MaxMessageLength
	}
	if cfg.PublishBuffer <= 0 {
		cfg.PublishBuffer = DefaultLobbyConfig().PublishBuffer
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultLobbyConfig().PublishTimeout
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	l := &Lobby{
		cfg:         cfg,
		notifier:    notifier,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		connections: make(map[domain.ConnectionID]*domain.Connection),
		queue:       newWaitQueue(),
		invitations: make(map[domain.InvitationID]*domain.Invitation),
		outgoing:    make(map[domain.ConnectionID]domain.InvitationID),
		timers:      make(map[domain.InvitationID]*time.Timer),
		sessions:    make(map[domain.SessionID]*domain.Session),
		events:      make(chan queuedEvent, cfg.PublishBuffer),
		publishDone: make(chan struct{}),
	}
	l.presence = batch.NewCoalescer(cfg.BroadcastDebounce, l.flushPresence)
	go l.publishLoop()
	return l
}

// Close stops invitation timers and the presence broadcaster, then waits
// for queued lifecycle events to be published. Connections still registered
// are left as they are; the transport tears them down. Events produced after
// Close are dropped.
func (l *Lobby) Close() {
	l.mu.Lock()
	l.closed = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
	l.mu.Unlock()

	l.presence.Stop()

	l.deliverMu.Lock()
	if !l.eventsClosed {
		l.eventsClosed = true
		close(l.events)
	}
	l.deliverMu.Unlock()
	<-l.publishDone
}

// Accepting reports whether the lobby still takes new connections.
func (l *Lobby) Accepting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

type note struct {
	to    domain.ConnectionID
	event domain.Event
}

// outbox collects the side effects of one critical section.
type outbox struct {
	notes           []note
	events          []domain.LifecycleEvent
	presenceChanged bool
}

func (o *outbox) notify(to domain.ConnectionID, eventType domain.EventType, payload interface{}) {
	o.notes = append(o.notes, note{to: to, event: domain.Event{Type: eventType, Payload: payload}})
}

func (o *outbox) publish(ev domain.LifecycleEvent) {
	o.events = append(o.events, ev)
}

func (l *Lobby) begin() *outbox {
	l.mu.Lock()
	return &outbox{}
}

// commit releases the lobby lock and performs the side effects collected
// in out. It must be called exactly once per begin.
func (l *Lobby) commit(ctx context.Context, out *outbox) {
	stats := l.statsLocked()

	l.deliverMu.Lock()
	l.mu.Unlock()
	for _, n := range out.notes {
		l.notifier.Notify(n.to, n.event)
	}
	for _, ev := range out.events {
		l.enqueueEvent(ctx, ev)
	}
	l.deliverMu.Unlock()

	l.metrics.SetLobbyStats(stats)

	if out.presenceChanged {
		l.presence.Trigger()
	}
}

// enqueueEvent hands ev to the publish loop without blocking. Caller holds
// deliverMu.
func (l *Lobby) enqueueEvent(ctx context.Context, ev domain.LifecycleEvent) {
	if l.eventsClosed {
		return
	}
	select {
	case l.events <- queuedEvent{ctx: context.WithoutCancel(ctx), event: ev}:
	default:
		l.logger.Warnw("Lifecycle event queue full, dropping event",
			"type", ev.Type,
			"session_id", ev.SessionID,
		)
	}
}

func (l *Lobby) publishLoop() {
	defer close(l.publishDone)
	for q := range l.events {
		ctx, cancel := context.WithTimeout(q.ctx, l.cfg.PublishTimeout)
		if err := l.publisher.Publish(ctx, q.event); err != nil {
			l.logger.Warnw("Failed to publish lifecycle event",
				"type", q.event.Type,
				"session_id", q.event.SessionID,
				"error", err,
			)
		}
		cancel()
	}
}

// connection returns the registered connection or an IllegalStateTransition
// error for connections that never announced presence.
func (l *Lobby) connection(id domain.ConnectionID) (*domain.Connection, error) {
	conn, ok := l.connections[id]
	if !ok {
		return nil, illegalTransition(domain.ErrConnectionNotRegistered, "announce presence with goOnline first")
	}
	return conn, nil
}

func (l *Lobby) setStatus(conn *domain.Connection, status domain.Status) {
	if conn.Status == status {
		return
	}
	conn.Status = status
	conn.StatusSince = time.Now()
}

func (l *Lobby) statsLocked() domain.LobbyStats {
	stats := domain.LobbyStats{
		QueueLength:    l.queue.Len(),
		ActiveSessions: len(l.sessions),
	}
	for _, conn := range l.connections {
		stats.Online++
		switch conn.Status {
		case domain.StatusSearching:
			stats.Searching++
		case domain.StatusPaired:
			stats.Paired++
		}
	}
	for _, inv := range l.invitations {
		if inv.Status == domain.InvitationPending {
			stats.PendingInvitations++
		}
	}
	return stats
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.LifecycleEvent) error { return nil }
func (nopPublisher) HealthCheck(context.Context) error                    { return nil }
func (nopPublisher) Close() error                                         { return nil }

type nopMetrics struct{}

func (nopMetrics) SetLobbyStats(domain.LobbyStats)                    {}
func (nopMetrics) RecordSessionStarted(domain.SessionOrigin)          {}
func (nopMetrics) RecordSessionEnded(domain.EndReason, time.Duration) {}
func (nopMetrics) RecordMessageRelayed()                              {}
func (nopMetrics) RecordVideoShared()                                 {}
func (nopMetrics) RecordInvitation(domain.InvitationStatus)           {}
func (nopMetrics) RecordQueueWait(time.Duration)                      {}
func (nopMetrics) RecordError(string)                                 {}
