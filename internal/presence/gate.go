package presence

import "github.com/tariel-x/gopresence/internal/models"

// CanToggle reports whether availability may be changed by hand. A participant
// in a conversation cannot be interrupted, so the control is locked.
func CanToggle(state models.ConversationState) bool {
	return state != models.ConversationActive
}
