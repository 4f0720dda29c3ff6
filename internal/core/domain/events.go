package domain

// EventType names a frame on the client channel, in either direction.
type EventType string

// Client to server.
const (
	EventGoOnline             EventType = "goOnline"
	EventGoOffline            EventType = "goOffline"
	EventStartChat            EventType = "startChat"
	EventSkipChat             EventType = "skipChat"
	EventInviteToChat         EventType = "inviteToChat"
	EventAcceptChatInvitation EventType = "acceptChatInvitation"
	EventRejectChatInvitation EventType = "rejectChatInvitation"
	EventSendMessage          EventType = "sendMessage"
	EventShareVideo           EventType = "shareVideo"
)

// Server to client.
const (
	EventOnlineUsers            EventType = "onlineUsers"
	EventChatInvitation         EventType = "chatInvitation"
	EventChatInvitationAccepted EventType = "chatInvitationAccepted"
	EventChatInvitationRejected EventType = "chatInvitationRejected"
	EventPartnerFound           EventType = "partnerFound"
	EventNoPartner              EventType = "noPartner"
	EventMessage                EventType = "message"
	EventChatSkipped            EventType = "chatSkipped"
	EventPartnerDisconnected    EventType = "partnerDisconnected"
	EventVideoChanged           EventType = "videoChanged"
	EventError                  EventType = "error"
)

// Event is a server-to-client notification addressed to one connection.
type Event struct {
	Type    EventType
	Payload interface{}
}

type ChatInvitationPayload struct {
	From string `json:"from"`
}

// PartnerPayload is used by partnerFound, chatInvitationAccepted and
// chatInvitationRejected.
type PartnerPayload struct {
	Partner string `json:"partner"`
}

// NoticePayload is used by noPartner and chatSkipped.
type NoticePayload struct {
	Message string `json:"message"`
}

type MessagePayload struct {
	ID        MessageID `json:"id"`
	Message   string    `json:"message"`
	From      string    `json:"from"`
	Timestamp string    `json:"timestamp"`
}

type PartnerDisconnectedPayload struct{}

type VideoChangedPayload struct {
	VideoID  string `json:"videoId"`
	SharedBy string `json:"sharedBy"`
}

type ErrorPayload struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Event   EventType `json:"event,omitempty"`
}
