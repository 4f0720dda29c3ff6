package monitoring

import (
	"testing"
	"time"

	"pairchat/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector_LobbyStats(t *testing.T) {
	c := NewPrometheusCollector(prometheus.NewRegistry())

	c.SetLobbyStats(domain.LobbyStats{
		Online:             7,
		Searching:          1,
		Paired:             4,
		QueueLength:        1,
		ActiveSessions:     2,
		PendingInvitations: 1,
	})

	assert.Equal(t, 7.0, testutil.ToFloat64(c.connectionsOnline))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.connectionsByState.WithLabelValues("paired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queueLength))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invitationsPending))
}

func TestPrometheusCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordSessionStarted(domain.OriginRandom)
	c.RecordSessionStarted(domain.OriginInvitation)
	c.RecordSessionStarted(domain.OriginRandom)
	c.RecordSessionEnded(domain.EndReasonSkipped, 30*time.Second)
	c.RecordMessageRelayed()
	c.RecordInvitation(domain.InvitationExpired)
	c.RecordError("STALE_REFERENCE")
	c.RecordFrameReceived("sendMessage")
	c.RecordTransportOpened()
	c.RecordTransportOpened()
	c.RecordTransportClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsStarted.WithLabelValues("random")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsStarted.WithLabelValues("invitation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsEnded.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesRelayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invitations.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("STALE_REFERENCE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesReceived.WithLabelValues("sendMessage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transportsActive))
	assert.Equal(t, 1, testutil.CollectAndCount(c.sessionDuration))
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}
