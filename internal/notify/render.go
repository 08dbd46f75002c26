package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Render produces the delivery text for a template. Unknown templates fall
// back to the template key so a misrouted notification is still visible.
func Render(template string, ctx map[string]any) string {
	switch template {
	case TemplateRequestCreated:
		return printer.Sprintf("New %v request %v (%v) at %v.",
			ctx["category"], ctx["request_id"], ctx["urgency"], ctx["address"])
	case TemplateRequestTransition:
		return printer.Sprintf("Request %v moved from %v to %v.",
			ctx["request_id"], ctx["from"], ctx["to"])
	case TemplateShiftStarted:
		return printer.Sprintf("Shift started for actor %v.", ctx["actor_id"])
	case TemplateShiftEnded:
		return printer.Sprintf("Shift ended for actor %v.", ctx["actor_id"])
	case TemplateShiftForceEnded:
		return printer.Sprintf("Shift for actor %v was ended by a manager.", ctx["actor_id"])
	default:
		return template
	}
}
