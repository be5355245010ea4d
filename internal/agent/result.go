package agent

import "github.com/crewline/onboard-agent/internal/actions"

// PendingAction describes a staged tool invocation awaiting a human
// decision.
type PendingAction struct {
	ActionID string         `json:"action_id"`
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params"`
}

// ExecutedAction records one completed tool invocation from the
// current turn.
type ExecutedAction struct {
	ToolName string `json:"tool_name"`
	Result   string `json:"result"`

	// Failed marks tool invocations whose integration errored; Result
	// then holds the error description the model saw.
	Failed bool `json:"failed,omitempty"`
}

// Result is the outcome of one orchestration call.
type Result struct {
	// Content is the narrative text to show the user.
	Content string `json:"content"`

	// RequiresApproval is true when one or more actions were staged
	// and the conversation is suspended pending a human decision.
	RequiresApproval bool `json:"requires_approval"`

	PendingActions  []PendingAction  `json:"pending_actions,omitempty"`
	ExecutedActions []ExecutedAction `json:"executed_actions,omitempty"`

	// Iterations is the number of completion calls made this turn.
	Iterations int `json:"iterations"`

	// IterationLimit is set when the turn ended because the loop hit
	// its configured cap rather than producing a final answer.
	IterationLimit bool `json:"iteration_limit,omitempty"`

	// Degraded is set when the completion capability stayed overloaded
	// through all retries and Content is a non-agentic fallback.
	Degraded bool `json:"degraded,omitempty"`
}

// ActionOutcome reports the result of one action id in a resume batch.
type ActionOutcome struct {
	ActionID string         `json:"action_id"`
	ToolName string         `json:"tool_name,omitempty"`
	Status   actions.Status `json:"status,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ResumeResult is the outcome of a resumeAfterApproval batch.
type ResumeResult struct {
	Outcomes []ActionOutcome `json:"outcomes"`

	// Content is an optional follow-up narrative, present only when
	// the caller requested one.
	Content string `json:"content,omitempty"`
}
