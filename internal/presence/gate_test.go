package presence

import (
	"testing"

	"github.com/tariel-x/gopresence/internal/models"
)

func TestCanToggle(t *testing.T) {
	tests := []struct {
		name  string
		state models.ConversationState
		want  bool
	}{
		{"idle", models.ConversationIdle, true},
		{"in conversation", models.ConversationActive, false},
		{"unknown state is not a conversation", models.ConversationState(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanToggle(tt.state); got != tt.want {
				t.Fatalf("CanToggle(%q) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestDeriveView(t *testing.T) {
	tests := []struct {
		name      string
		displayed bool
		state     models.ConversationState
		want      View
	}{
		{
			name:      "available and idle",
			displayed: true,
			state:     models.ConversationIdle,
			want:      View{SwitchValue: true, Editable: true, Label: LabelAvailable, Tooltip: TooltipAvailable},
		},
		{
			name:      "do not disturb and idle",
			displayed: false,
			state:     models.ConversationIdle,
			want:      View{SwitchValue: false, Editable: true, Label: LabelDoNotDisturb, Tooltip: TooltipUnavailable},
		},
		{
			name:      "in conversation",
			displayed: false,
			state:     models.ConversationActive,
			want:      View{SwitchValue: false, Editable: false, Label: LabelDoNotDisturb, Tooltip: TooltipInConversation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveView(tt.displayed, tt.state); got != tt.want {
				t.Fatalf("deriveView() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestViewOfMatchesFreshController(t *testing.T) {
	for _, available := range []bool{true, false} {
		for _, state := range []models.ConversationState{models.ConversationIdle, models.ConversationActive} {
			rec := record(available, state)
			if got, want := ViewOf(rec), New(rec, newFakeRemote(rec)).View(); got != want {
				t.Fatalf("ViewOf(%v, %s) = %+v, want %+v", available, state, got, want)
			}
		}
	}
}
