package domain

import "time"

type InvitationID string

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationRejected  InvitationStatus = "rejected"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// Invitation is a direct pairing proposal from one connection to every
// available connection registered under a nickname.
type Invitation struct {
	ID           InvitationID
	From         ConnectionID
	FromNickname string
	To           string
	Recipients   map[ConnectionID]struct{}
	CreatedAt    time.Time
	Status       InvitationStatus
}

// DeliveredTo reports whether id was one of the invitation's recipients.
func (i *Invitation) DeliveredTo(id ConnectionID) bool {
	_, ok := i.Recipients[id]
	return ok
}

// Involves reports whether id is the originator or a recipient.
func (i *Invitation) Involves(id ConnectionID) bool {
	return i.From == id || i.DeliveredTo(id)
}
