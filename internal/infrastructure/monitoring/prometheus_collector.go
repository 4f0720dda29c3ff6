package monitoring

import (
	"time"

	"pairchat/internal/core/domain"
	"pairchat/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Lobby gauges
	connectionsOnline  prometheus.Gauge
	connectionsByState *prometheus.GaugeVec
	queueLength        prometheus.Gauge
	sessionsActive     prometheus.Gauge
	invitationsPending prometheus.Gauge

	// Counters
	sessionsStarted  *prometheus.CounterVec
	sessionsEnded    *prometheus.CounterVec
	messagesRelayed  prometheus.Counter
	videosShared     prometheus.Counter
	invitations      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	framesReceived   *prometheus.CounterVec
	sendOverflows    prometheus.Counter
	transportsActive prometheus.Gauge

	// Histograms
	sessionDuration prometheus.Histogram
	queueWait       prometheus.Histogram
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the lobby metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_connections_online",
			Help: "Number of connections that announced presence",
		}),

		connectionsByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pairchat_connections_by_state",
			Help: "Registered connections by matchmaking state",
		}, []string{"state"}),

		queueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_wait_queue_length",
			Help: "Connections waiting for a random partner",
		}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_sessions_active",
			Help: "Live chat sessions",
		}),

		invitationsPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_invitations_pending",
			Help: "Invitations awaiting an answer",
		}),

		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_sessions_started_total",
			Help: "Sessions created, by how the pair was formed",
		}, []string{"origin"}),

		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_sessions_ended_total",
			Help: "Sessions torn down, by reason",
		}, []string{"reason"}),

		messagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_messages_relayed_total",
			Help: "Chat messages relayed between partners",
		}),

		videosShared: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_videos_shared_total",
			Help: "Shared video changes",
		}),

		invitations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_invitations_total",
			Help: "Resolved invitations, by outcome",
		}, []string{"outcome"}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_errors_total",
			Help: "Refused client requests, by error code",
		}, []string{"code"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_frames_received_total",
			Help: "Client frames received, by event type",
		}, []string{"event"}),

		sendOverflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_send_buffer_overflows_total",
			Help: "Connections closed because they could not keep up",
		}),

		transportsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_websocket_connections",
			Help: "Open WebSocket connections",
		}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairchat_session_duration_seconds",
			Help:    "How long chat sessions last",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		queueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairchat_queue_wait_seconds",
			Help:    "Time spent in the wait queue before a match",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

func (p *PrometheusCollector) SetLobbyStats(stats domain.LobbyStats) {
	p.connectionsOnline.Set(float64(stats.Online))
	p.connectionsByState.WithLabelValues(domain.StatusSearching.String()).Set(float64(stats.Searching))
	p.connectionsByState.WithLabelValues(domain.StatusPaired.String()).Set(float64(stats.Paired))
	p.queueLength.Set(float64(stats.QueueLength))
	p.sessionsActive.Set(float64(stats.ActiveSessions))
	p.invitationsPending.Set(float64(stats.PendingInvitations))
}

func (p *PrometheusCollector) RecordSessionStarted(origin domain.SessionOrigin) {
	p.sessionsStarted.WithLabelValues(string(origin)).Inc()
}

func (p *PrometheusCollector) RecordSessionEnded(reason domain.EndReason, duration time.Duration) {
	p.sessionsEnded.WithLabelValues(string(reason)).Inc()
	p.sessionDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordMessageRelayed() {
	p.messagesRelayed.Inc()
}

func (p *PrometheusCollector) RecordVideoShared() {
	p.videosShared.Inc()
}

func (p *PrometheusCollector) RecordInvitation(outcome domain.InvitationStatus) {
	p.invitations.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusCollector) RecordQueueWait(wait time.Duration) {
	p.queueWait.Observe(wait.Seconds())
}

func (p *PrometheusCollector) RecordError(code string) {
	p.errorsTotal.WithLabelValues(code).Inc()
}

// Transport metrics

func (p *PrometheusCollector) RecordFrameReceived(eventType string) {
	p.framesReceived.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) RecordSendOverflow() {
	p.sendOverflows.Inc()
}

func (p *PrometheusCollector) RecordTransportOpened() {
	p.transportsActive.Inc()
}

func (p *PrometheusCollector) RecordTransportClosed() {
	p.transportsActive.Dec()
}
