package memory

import (
	"context"
	"testing"

	"pairchat/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_KeepsMostRecent(t *testing.T) {
	pub := NewEventPublisher(2)
	ctx := context.Background()

	for _, id := range []domain.SessionID{"s1", "s2", "s3"} {
		require.NoError(t, pub.Publish(ctx, domain.LifecycleEvent{
			Type:      domain.LifecycleSessionStarted,
			SessionID: id,
		}))
	}

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.SessionID("s2"), events[0].SessionID)
	assert.Equal(t, domain.SessionID("s3"), events[1].SessionID)
}

func TestEventPublisher_EventsIsACopy(t *testing.T) {
	pub := NewEventPublisher(10)
	require.NoError(t, pub.Publish(context.Background(), domain.LifecycleEvent{SessionID: "s1"}))

	events := pub.Events()
	events[0].SessionID = "changed"

	assert.Equal(t, domain.SessionID("s1"), pub.Events()[0].SessionID)
}

func TestEventPublisher_Close(t *testing.T) {
	pub := NewEventPublisher(10)
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Publish(context.Background(), domain.LifecycleEvent{SessionID: "late"}))

	assert.Zero(t, pub.Len())
	assert.NoError(t, pub.HealthCheck(context.Background()))
}
