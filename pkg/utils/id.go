package utils

import (
	"github.com/google/uuid"
)

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// GenerateConnectionID generates a unique transport connection ID
func GenerateConnectionID() string {
	return uuid.NewString()
}

// GenerateSessionID generates a unique chat session ID
func GenerateSessionID() string {
	return GenerateID("session")
}

// GenerateInvitationID generates a unique invitation ID
func GenerateInvitationID() string {
	return GenerateID("invite")
}

// GenerateMessageID generates a unique message ID
func GenerateMessageID() string {
	return GenerateID("msg")
}
