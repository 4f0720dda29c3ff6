package ports

import (
	"context"
	"time"

	"pairchat/internal/core/domain"
)

// EventPublisher hands lifecycle events to an external collaborator such as
// durable chat history or analytics. Failures never affect matchmaking.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// MetricsRecorder receives lobby measurements.
type MetricsRecorder interface {
	SetLobbyStats(stats domain.LobbyStats)
	RecordSessionStarted(origin domain.SessionOrigin)
	RecordSessionEnded(reason domain.EndReason, duration time.Duration)
	RecordMessageRelayed()
	RecordVideoShared()
	RecordInvitation(outcome domain.InvitationStatus)
	RecordQueueWait(wait time.Duration)
	RecordError(code string)
}
