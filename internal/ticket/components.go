package ticket

import (
	"strings"

	"github.com/tickd-io/tickd/internal/platform"
)

// Stable component identifiers for the interactive surfaces the manager owns.
// The confirm component carries its token after a colon.
const (
	ComponentClose      = "ticket_close"
	ComponentTranscribe = "ticket_transcribe"
	componentConfirm    = "ticket_confirm"
)

// ConfirmID builds the component ID for a close-confirmation button.
func ConfirmID(token string) string {
	return componentConfirm + ":" + token
}

// splitComponentID separates a component ID from its optional argument.
func splitComponentID(id string) (name, arg string) {
	name, arg, _ = strings.Cut(id, ":")
	return name, arg
}

// ControlButtons is the persistent control surface attached to a ticket's
// welcome message.
func ControlButtons() []platform.Button {
	return []platform.Button{
		{ID: ComponentClose, Label: "Close Ticket", Style: platform.ButtonDanger},
		{ID: ComponentTranscribe, Label: "Transcribe", Style: platform.ButtonSecondary},
	}
}

// ConfirmButtons is the transient confirmation surface gating a close.
func ConfirmButtons(token string, disabled bool) []platform.Button {
	return []platform.Button{
		{ID: ConfirmID(token), Label: "Confirm", Style: platform.ButtonDanger, Disabled: disabled},
	}
}
