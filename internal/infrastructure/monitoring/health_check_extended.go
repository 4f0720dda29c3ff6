package monitoring

import (
	"context"
	"errors"
	"time"

	"pairchat/internal/core/ports"
)

var errLobbyClosed = errors.New("lobby is shutting down")

// AddPublisherCheck verifies the lifecycle event sink is reachable.
func (h *HealthChecker) AddPublisherCheck(publisher ports.EventPublisher, timeout time.Duration) {
	h.AddCheck("event_publisher", publisher.HealthCheck, timeout)
}

// AddLobbyCheck reports the lobby as unhealthy once it stops accepting
// connections.
func (h *HealthChecker) AddLobbyCheck(accepting func() bool) {
	h.AddCheck("lobby", func(ctx context.Context) error {
		if !accepting() {
			return errLobbyClosed
		}
		return nil
	}, 0)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
