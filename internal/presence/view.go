package presence

import "github.com/tariel-x/gopresence/internal/models"

const (
	LabelAvailable    = "Available"
	LabelDoNotDisturb = "Do not disturb"

	TooltipAvailable      = "Available to network"
	TooltipUnavailable    = "Not available to network"
	TooltipInConversation = "While in a conversation, you will not be interrupted"
)

// View is what the rendering boundary gets to see. It is always well formed.
type View struct {
	SwitchValue bool   `json:"switch_value"`
	Editable    bool   `json:"editable"`
	Label       string `json:"label"`
	Tooltip     string `json:"tooltip"`
}

func deriveView(displayed bool, state models.ConversationState) View {
	v := View{
		SwitchValue: displayed,
		Editable:    CanToggle(state),
		Label:       LabelDoNotDisturb,
		Tooltip:     TooltipUnavailable,
	}
	if displayed {
		v.Label = LabelAvailable
		v.Tooltip = TooltipAvailable
	}
	if !v.Editable {
		v.Tooltip = TooltipInConversation
	}
	return v
}

// ViewOf renders a record with no pending intent, as a freshly opened
// controller would.
func ViewOf(record models.AvailabilityRecord) View {
	displayed := record.IsAvailableForCall && record.ConversationState != models.ConversationActive
	return deriveView(displayed, record.ConversationState)
}
