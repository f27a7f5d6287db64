package models

import "time"

// ConversationStatus is the lifecycle state of a one-to-one pairing.
type ConversationStatus string

const (
	ConversationStatusActive ConversationStatus = "active"
	ConversationStatusEnded  ConversationStatus = "ended"
)

type Conversation struct {
	ID           string             `json:"conversation_id"`
	SessionID    string             `json:"session_id"`
	Participants [2]string          `json:"participants"`
	Status       ConversationStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

func (c *Conversation) Includes(participantID string) bool {
	return c.Participants[0] == participantID || c.Participants[1] == participantID
}
