package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"pairchat/internal/core/domain"
	"pairchat/internal/core/ports"
	"pairchat/pkg/config"
	apperrors "pairchat/pkg/errors"
	"pairchat/pkg/logger"
	"pairchat/pkg/tracing"
	"pairchat/pkg/utils"
	"pairchat/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var errSendOverflow = errors.New("send buffer overflow")

// TransportMetrics is the subset of the metrics collector the transport
// reports to.
type TransportMetrics interface {
	RecordFrameReceived(eventType string)
	RecordSendOverflow()
	RecordTransportOpened()
	RecordTransportClosed()
	RecordError(code string)
}

type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBufferSize int
	AllowedOrigins []string
	MaxMessageSize int64

	RateLimitEnabled  bool
	MessagesPerSecond float64
	Burst             int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PingInterval:      cfg.Signal.PingInterval,
		PongTimeout:       cfg.Signal.PongTimeout,
		WriteTimeout:      cfg.Signal.WriteTimeout,
		SendBufferSize:    cfg.Signal.SendBufferSize,
		AllowedOrigins:    cfg.Signal.AllowedOrigins,
		MaxMessageSize:    cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		RateLimitEnabled:  cfg.RateLimiting.Enabled,
		MessagesPerSecond: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		Burst:             cfg.RateLimiting.WebSocket.Burst,
	}
}

// WebSocketServer accepts client connections, feeds their frames to the
// lobby and delivers lobby events back. It implements ports.Notifier.
type WebSocketServer struct {
	opts     Options
	lobby    ports.Lobby
	upgrader websocket.Upgrader
	metrics  TransportMetrics
	logger   *zap.SugaredLogger
	events   *logger.ContextLogger

	clients      map[domain.ConnectionID]*Client
	mu           sync.RWMutex
	shuttingDown bool
	handlers     sync.WaitGroup
}

func NewWebSocketServer(opts Options, metrics TransportMetrics, log *zap.SugaredLogger) *WebSocketServer {
	if metrics == nil {
		metrics = nopTransportMetrics{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	defaults := OptionsFromConfig(config.DefaultConfig())
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 2 * opts.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaults.SendBufferSize
	}

	return &WebSocketServer{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		metrics: metrics,
		logger:  log,
		events:  logger.NewContextLogger(log.Desugar()),
		clients: make(map[domain.ConnectionID]*Client),
	}
}

// SetLobby attaches the lobby. The lobby needs the server as its notifier,
// so the two are wired after construction.
func (s *WebSocketServer) SetLobby(lobby ports.Lobby) {
	s.lobby = lobby
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	id := domain.ConnectionID(utils.GenerateConnectionID())
	client := newClient(id, conn, s.opts.SendBufferSize, s.newLimiter())
	if !s.register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.opts.WriteTimeout))
		conn.Close()
		return
	}
	defer s.handlers.Done()

	s.metrics.RecordTransportOpened()
	s.logger.Infow("connection opened", "connection_id", id, "remote_addr", r.RemoteAddr)

	go client.writePump(s.opts.PingInterval, s.opts.WriteTimeout)
	s.readPump(client)

	s.unregister(client)
	client.close()

	ctx := logger.WithConnectionID(context.Background(), string(id))
	if err := s.HandleDisconnect(ctx, id); err != nil {
		s.logger.Warnw("failed to release connection", "connection_id", id, "error", err)
	}
	s.metrics.RecordTransportClosed()
	s.logger.Infow("connection closed", "connection_id", id)
}

func (s *WebSocketServer) readPump(client *Client) {
	conn := client.conn
	if s.opts.MaxMessageSize > 0 {
		conn.SetReadLimit(s.opts.MaxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !client.closed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("websocket read failed", "connection_id", client.id, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

		ctx := logger.WithConnectionID(context.Background(), string(client.id))
		if messageType != websocket.TextMessage {
			s.replyError(ctx, client, "", apperrors.NewInvalidInputError("only text frames are supported"))
			continue
		}
		if !client.limiter.Allow() {
			s.replyError(ctx, client, "", apperrors.NewRateLimitError())
			continue
		}

		eventType, err := s.dispatch(ctx, client.id, data)
		if err != nil {
			s.replyError(ctx, client, eventType, err)
		}
		s.events.LogEvent(s.connectionContext(ctx, client.id), string(eventType), err)
	}
}

// connectionContext tags ctx with the nickname and session the lobby holds
// for id.
func (s *WebSocketServer) connectionContext(ctx context.Context, id domain.ConnectionID) context.Context {
	conn, ok := s.lobby.Lookup(ctx, id)
	if !ok {
		return ctx
	}
	ctx = logger.WithNickname(ctx, conn.Nickname)
	if conn.SessionID != "" {
		ctx = logger.WithSessionID(ctx, string(conn.SessionID))
	}
	return ctx
}

// HandleMessage processes one raw client frame on behalf of id.
func (s *WebSocketServer) HandleMessage(ctx context.Context, id domain.ConnectionID, message []byte) error {
	_, err := s.dispatch(ctx, id, message)
	return err
}

// HandleDisconnect releases everything the connection held in the lobby.
func (s *WebSocketServer) HandleDisconnect(ctx context.Context, id domain.ConnectionID) error {
	return s.lobby.GoOffline(ctx, id)
}

func (s *WebSocketServer) dispatch(ctx context.Context, id domain.ConnectionID, data []byte) (domain.EventType, error) {
	frame, err := decodeFrame(data)
	if err != nil {
		return "", err
	}

	ctx, span := tracing.TraceWebSocketEvent(ctx, string(frame.Type), string(id))
	defer span.End()

	if err := s.route(ctx, id, frame); err != nil {
		tracing.RecordError(ctx, err)
		return frame.Type, err
	}
	return frame.Type, nil
}

func (s *WebSocketServer) route(ctx context.Context, id domain.ConnectionID, frame Frame) error {
	switch frame.Type {
	case domain.EventGoOnline:
		s.metrics.RecordFrameReceived(string(frame.Type))
		var p GoOnlinePayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return err
		}
		return s.lobby.GoOnline(ctx, id, p.Nickname)

	case domain.EventGoOffline:
		s.metrics.RecordFrameReceived(string(frame.Type))
		return s.lobby.GoOffline(ctx, id)

	case domain.EventStartChat:
		s.metrics.RecordFrameReceived(string(frame.Type))
		var p StartChatPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return err
		}
		return s.lobby.StartChat(ctx, id)

	case domain.EventSkipChat:
		s.metrics.RecordFrameReceived(string(frame.Type))
		return s.lobby.SkipChat(ctx, id)

	case domain.EventInviteToChat:
		s.metrics.RecordFrameReceived(string(frame.Type))
		var p InvitationPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return err
		}
		if own, ok := s.nicknameOf(ctx, id); ok && p.From != "" && validation.NormalizeNickname(p.From) != own {
			return apperrors.NewInvalidInputError("from must be your own nickname")
		}
		return s.lobby.Invite(ctx, id, p.To)

	case domain.EventAcceptChatInvitation:
		s.metrics.RecordFrameReceived(string(frame.Type))
		var p InvitationPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return err
		}
		return s.lobby.Accept(ctx, id, s.inviterOf(ctx, id, p))

	case domain.EventRejectChatInvitation:
		s.metrics.RecordFrameReceived(string(frame.Type))
		var p InvitationPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return err
		}
		return s.lobby.Reject(ctx, id, s.inviterOf(ctx, id, p))

	case domain.EventSendMessage:
		s.metrics.RecordFrameReceived(string(frame.Type))
		var p SendMessagePayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return err
		}
		return s.lobby.SendMessage(ctx, id, p.Message)

	case domain.EventShareVideo:
		s.metrics.RecordFrameReceived(string(frame.Type))
		var p ShareVideoPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return err
		}
		return s.lobby.ShareVideo(ctx, id, p.URL)

	default:
		s.metrics.RecordFrameReceived("unknown")
		return apperrors.NewInvalidInputError("unknown event type").
			WithContext("type", string(frame.Type))
	}
}

func (s *WebSocketServer) nicknameOf(ctx context.Context, id domain.ConnectionID) (string, bool) {
	conn, ok := s.lobby.Lookup(ctx, id)
	if !ok {
		return "", false
	}
	return conn.Nickname, true
}

// inviterOf picks the inviter out of an accept or reject payload. Clients
// send either {from: inviter} or the invitation echoed back as
// {from: inviter, to: self} or {from: self, to: inviter}.
func (s *WebSocketServer) inviterOf(ctx context.Context, id domain.ConnectionID, p InvitationPayload) string {
	if own, ok := s.nicknameOf(ctx, id); ok && p.To != "" && validation.NormalizeNickname(p.From) == own {
		return p.To
	}
	return p.From
}

// Notify delivers event to the connection. It never blocks; a connection
// whose send buffer is full is closed.
func (s *WebSocketServer) Notify(id domain.ConnectionID, event domain.Event) {
	s.mu.RLock()
	client, ok := s.clients[id]
	s.mu.RUnlock()

	if !ok {
		s.logger.Debugw("dropping event for closed connection",
			"connection_id", id,
			"event", event.Type,
		)
		return
	}
	s.deliver(client, event)
}

func (s *WebSocketServer) deliver(client *Client, event domain.Event) {
	data, err := encodeEvent(event)
	if err != nil {
		s.logger.Errorw("failed to encode event", "event", event.Type, "error", err)
		return
	}

	if !client.enqueue(data) {
		lost := apperrors.NewTransportLostError(errSendOverflow)
		s.metrics.RecordSendOverflow()
		s.metrics.RecordError(string(lost.Code))
		s.logger.Warnw("closing slow connection",
			"connection_id", client.id,
			"event", event.Type,
			"error", lost,
		)
		client.close()
	}
}

func (s *WebSocketServer) replyError(ctx context.Context, client *Client, eventType domain.EventType, err error) {
	ev := errorEvent(eventType, err)
	payload := ev.Payload.(domain.ErrorPayload)
	s.metrics.RecordError(payload.Code)

	if apperrors.GetAppError(err) == nil {
		s.logger.Errorw("request failed",
			"connection_id", client.id,
			"event", eventType,
			"error", err,
		)
	} else {
		s.logger.Debugw("request refused",
			"connection_id", client.id,
			"event", eventType,
			"code", payload.Code,
			"message", payload.Message,
		)
	}
	s.deliver(client, ev)
}

func (s *WebSocketServer) register(client *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.clients[client.id] = client
	s.handlers.Add(1)
	return true
}

func (s *WebSocketServer) unregister(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.clients[client.id]; ok && current == client {
		delete(s.clients, client.id)
	}
}

// ConnectionCount returns the number of open websocket connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown refuses new connections, closes the open ones and waits for
// their handlers to release them from the lobby.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	clients := make([]*Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	for _, client := range clients {
		client.close()
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WebSocketServer) newLimiter() *rate.Limiter {
	if !s.opts.RateLimitEnabled || s.opts.MessagesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.Burst)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

type nopTransportMetrics struct{}

func (nopTransportMetrics) RecordFrameReceived(string) {}
func (nopTransportMetrics) RecordSendOverflow()        {}
func (nopTransportMetrics) RecordTransportOpened()     {}
func (nopTransportMetrics) RecordTransportClosed()     {}
func (nopTransportMetrics) RecordError(string)         {}

var (
	_ ports.Notifier         = (*WebSocketServer)(nil)
	_ ports.WebSocketHandler = (*WebSocketServer)(nil)
)
