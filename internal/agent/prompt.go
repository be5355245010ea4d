package agent

import (
	"fmt"
	"strings"
	"time"
)

const systemPromptBase = `You are the company onboarding assistant. You help new hires
get set up: finding the right people, checking and booking calendar slots, and
sending onboarding email on their behalf.

Ground rules:
- Use the provided tools to look things up rather than guessing. Directory,
  calendar, and inbox contents change; never invent names, addresses, or times.
- Some tools (sending email, booking events) require the user's explicit
  approval before they run. When you request one of those, explain in your
  message what you are proposing and why, so the user can decide.
- Keep replies short and concrete. New hires are busy and slightly lost.
- If a tool fails, say what you tried and suggest the manual alternative.`

// disabledMessage is returned verbatim when agent features are turned
// off for the requesting user.
const disabledMessage = "Agent features are currently disabled for your account. " +
	"You can still browse the onboarding guide, or contact your onboarding " +
	"coordinator directly for scheduling and email help."

// degradedMessage is the non-agentic fallback when the completion
// capability stays overloaded through all retries.
const degradedMessage = "I'm having trouble reaching the assistant service right now, " +
	"so I can't look anything up or take actions for you at the moment. " +
	"Please try again in a minute."

// iterationLimitMarker is appended to the narrative when the loop hits
// its iteration cap before the model produced a final answer.
const iterationLimitMarker = "[stopped: iteration limit reached before the task completed]"

// buildSystemPrompt assembles the system instruction with the current
// date, so the model can resolve phrases like "tomorrow morning".
func buildSystemPrompt(now time.Time) string {
	var sb strings.Builder
	sb.WriteString(systemPromptBase)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Current date and time: %s (%s)",
		now.Format("Monday, January 2, 2006 15:04"), now.Location()))
	return sb.String()
}
