package domain

import "time"

// LifecycleType names an event handed to the external event sink.
type LifecycleType string

const (
	LifecycleSessionStarted     LifecycleType = "session.started"
	LifecycleSessionEnded       LifecycleType = "session.ended"
	LifecycleMessageRelayed     LifecycleType = "message.relayed"
	LifecycleVideoShared        LifecycleType = "video.shared"
	LifecycleInvitationResolved LifecycleType = "invitation.resolved"
)

// LifecycleEvent is what durable history, analytics and similar external
// collaborators get to see. The core never reads these back.
type LifecycleEvent struct {
	Type         LifecycleType    `json:"type"`
	SessionID    SessionID        `json:"session_id,omitempty"`
	InvitationID InvitationID     `json:"invitation_id,omitempty"`
	Origin       SessionOrigin    `json:"origin,omitempty"`
	Participants []string         `json:"participants,omitempty"`
	Reason       EndReason        `json:"reason,omitempty"`
	Outcome      InvitationStatus `json:"outcome,omitempty"`
	Message      *Message         `json:"message,omitempty"`
	VideoID      string           `json:"video_id,omitempty"`
	Duration     time.Duration    `json:"duration,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}
