package models

import "time"

// ConversationState is derived from call-pairing activity outside the presence core.
// Keep values stable because they are part of the public API.
type ConversationState string

const (
	ConversationIdle   ConversationState = "idle"
	ConversationActive ConversationState = "in_conversation"
)

func (s ConversationState) Valid() bool {
	return s == ConversationIdle || s == ConversationActive
}

// AvailabilityRecord is the remote truth about one participant's networkability
// within one session.
type AvailabilityRecord struct {
	SessionID          string            `gorm:"type:varchar(64);primaryKey" json:"session_id"`
	ParticipantID      string            `gorm:"type:varchar(64);primaryKey" json:"participant_id"`
	IsAvailableForCall bool              `gorm:"not null" json:"is_available_for_call"`
	ConversationState  ConversationState `gorm:"type:varchar(20);not null;index" json:"conversation_state"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (AvailabilityRecord) TableName() string {
	return "availability_records"
}

// Networkable reports whether a matcher may pair this participant right now.
func (r AvailabilityRecord) Networkable() bool {
	return r.IsAvailableForCall && r.ConversationState != ConversationActive
}
