package ports

import "pairchat/internal/core/domain"

// Notifier delivers server events to a single connection.
//
// Notify must not block and must not call back into the lobby. A
// connection that cannot keep up is closed by the transport, which later
// reports it through PresenceRegistry.GoOffline.
type Notifier interface {
	Notify(id domain.ConnectionID, event domain.Event)
}
