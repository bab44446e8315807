package extract

import (
	"fmt"
	"strings"
	"time"
)

// SystemMessage is sent ahead of the instruction by chat-style backends.
const SystemMessage = "You are a helpful assistant that extracts information and returns only valid JSON."

const (
	contextLayout = "2006-01-02 15:04:05"
	isoLayout     = "2006-01-02T15:04:05"
)

// Anchors are the relative-time examples resolved against the submission
// instant, so the service never has to do the arithmetic itself.
type Anchors struct {
	Now      time.Time
	In2Hours time.Time
	Tomorrow time.Time
}

// NewAnchors resolves "now", "+2 hours" and "+1 day" from now in loc.
func NewAnchors(now time.Time, loc *time.Location) Anchors {
	now = now.In(loc)
	return Anchors{
		Now:      now,
		In2Hours: now.Add(2 * time.Hour),
		Tomorrow: now.AddDate(0, 0, 1),
	}
}

// BuildInstruction renders the extraction instruction for text.
func BuildInstruction(text string, now time.Time, loc *time.Location) string {
	a := NewAnchors(now, loc)
	n := a.Now

	var b strings.Builder

	b.WriteString("The input message may be in English or Japanese.\n")
	b.WriteString("First understand the meaning correctly.\n")
	b.WriteString("Then extract the information and return ONLY valid JSON in English, with no explanations.\n\n")

	fmt.Fprintf(&b, "Message: %s\n\n", text)

	b.WriteString("CURRENT CONTEXT:\n")
	fmt.Fprintf(&b, "- Current date/time: %s (Year: %d, Timezone: %s)\n", n.Format(contextLayout), n.Year(), loc.String())
	fmt.Fprintf(&b, "- Current date: %s\n", n.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Current time: %s\n\n", n.Format("15:04:05"))

	b.WriteString("RELATIVE TIME EXAMPLES:\n")
	fmt.Fprintf(&b, "- \"now\" or \"today now\" = %s\n", a.Now.Format(isoLayout))
	fmt.Fprintf(&b, "- \"after 2 hours\" = %s\n", a.In2Hours.Format(isoLayout))
	fmt.Fprintf(&b, "- \"tomorrow\" = %s\n", a.Tomorrow.Format(isoLayout))
	b.WriteString("- \"same day\" means the same date as the leave date\n\n")

	b.WriteString("Return JSON with these exact keys:\n")
	b.WriteString("- \"intent\": \"REGULAR_EXIT\" if the absence is at most 1 day, otherwise \"HOSTEL_LEAVE\"\n")
	b.WriteString("- \"reason\": short reason for leaving, or \"\"\n")
	b.WriteString("- \"leave_datetime\": ISO format \"YYYY-MM-DDTHH:MM:SS\", resolve relative times using the current context\n")
	b.WriteString("- \"return_datetime\": ISO format \"YYYY-MM-DDTHH:MM:SS\", resolve relative times using the current context\n")
	b.WriteString("- \"room_type\": \"2_seater\" or \"4_seater\" if mentioned (any spelling like \"2-seater\" or \"4 seater\"), otherwise \"unknown\"\n")
	b.WriteString("- \"emergency_contact\": phone number as digits only (no spaces, + or -), otherwise \"\"\n\n")

	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("- \"now\" = current time, \"after X hours\" = current time + X hours, \"same day\" = same date as leave\n")
	b.WriteString("- Convert AM/PM to 24-hour: 10 AM = 10:00, 2 PM = 14:00, 7 PM = 19:00\n")
	fmt.Fprintf(&b, "- If the year is missing, use %d\n", n.Year())
	fmt.Fprintf(&b, "- Extract REAL values from the message, never use %q or other placeholders\n", Placeholder)
	b.WriteString("- If room_type is not mentioned, use \"unknown\"\n")
	b.WriteString("- If no phone number is mentioned, use \"\"\n\n")

	b.WriteString("Return only the JSON object, nothing else.")

	return b.String()
}
