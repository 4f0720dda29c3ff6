package domain

import "time"

type SessionID string

// SessionOrigin tells how a pairing was formed.
type SessionOrigin string

const (
	OriginRandom     SessionOrigin = "random"
	OriginInvitation SessionOrigin = "invitation"
)

// EndReason tells why a session was torn down.
type EndReason string

const (
	EndReasonSkipped      EndReason = "skipped"
	EndReasonDisconnected EndReason = "disconnected"
)

type Session struct {
	ID           SessionID
	ParticipantA ConnectionID
	ParticipantB ConnectionID
	Origin       SessionOrigin
	CreatedAt    time.Time
	CurrentVideo string
}

// Peer returns the other participant, or false if id is not a participant.
func (s *Session) Peer(id ConnectionID) (ConnectionID, bool) {
	switch id {
	case s.ParticipantA:
		return s.ParticipantB, true
	case s.ParticipantB:
		return s.ParticipantA, true
	default:
		return "", false
	}
}

type MessageID string

// Message is relayed between the two participants of a session and never
// stored by the core.
type Message struct {
	ID             MessageID `json:"id"`
	SessionID      SessionID `json:"session_id"`
	SenderNickname string    `json:"sender_nickname"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}
