package signal

import (
	"bytes"
	"encoding/json"

	"pairchat/internal/core/domain"
	"pairchat/pkg/errors"
)

// Frame is the envelope of every text frame in both directions.
type Frame struct {
	Type    domain.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

type outboundFrame struct {
	Type    domain.EventType `json:"type"`
	Payload interface{}      `json:"payload"`
}

type GoOnlinePayload struct {
	Nickname string `json:"nickname"`
}

// StartChatPayload carries the caller's nickname for older clients; the
// server already knows it and ignores the field.
type StartChatPayload struct {
	Nickname string `json:"nickname"`
}

// InvitationPayload is shared by inviteToChat, acceptChatInvitation and
// rejectChatInvitation.
type InvitationPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SendMessagePayload names the recipient in To. Messages always go to the
// current partner, so To is informational.
type SendMessagePayload struct {
	Message string `json:"message"`
	To      string `json:"to,omitempty"`
}

type ShareVideoPayload struct {
	URL string `json:"url"`
}

func decodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, errors.NewInvalidInputError("malformed frame")
	}
	if frame.Type == "" {
		return Frame{}, errors.NewInvalidInputError("frame type is required")
	}
	return frame, nil
}

// decodePayload leaves v untouched for an absent or null payload.
func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.NewInvalidInputError("malformed payload")
	}
	return nil
}

func encodeEvent(event domain.Event) ([]byte, error) {
	return json.Marshal(outboundFrame{Type: event.Type, Payload: event.Payload})
}

// errorEvent renders err as the error frame sent back to the connection
// whose request failed.
func errorEvent(eventType domain.EventType, err error) domain.Event {
	appErr := errors.GetAppError(err)
	if appErr == nil {
		appErr = errors.NewInternalError("internal server error")
	}
	return domain.Event{
		Type: domain.EventError,
		Payload: domain.ErrorPayload{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Event:   eventType,
		},
	}
}
