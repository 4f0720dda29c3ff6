package domain

import "time"

type ConnectionID string

// Status is the per-connection matchmaking state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusOnline
	StatusSearching
	StatusInvited
	StatusPaired
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusOnline:
		return "online"
	case StatusSearching:
		return "searching"
	case StatusInvited:
		return "invited"
	case StatusPaired:
		return "paired"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name on the wire.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Connection is the registry's view of one transport link. The transport
// object itself is never stored here, only its ID.
type Connection struct {
	ID          ConnectionID
	Nickname    string
	Status      Status
	SessionID   SessionID
	ConnectedAt time.Time
	StatusSince time.Time
}

// Available reports whether the connection can be invited or start a chat.
func (c *Connection) Available() bool {
	return c.Status == StatusOnline
}

// OnlineUser is one entry of the online-users list.
type OnlineUser struct {
	Nickname string `json:"nickname"`
	Status   Status `json:"status"`
}

// LobbyStats is a point-in-time summary of the matchmaking state.
type LobbyStats struct {
	Online             int `json:"online"`
	Searching          int `json:"searching"`
	Paired             int `json:"paired"`
	QueueLength        int `json:"queue_length"`
	ActiveSessions     int `json:"active_sessions"`
	PendingInvitations int `json:"pending_invitations"`
}
