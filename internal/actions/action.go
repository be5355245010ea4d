// Package actions persists agent-proposed actions and their approval
// lifecycle. An action is created when the model requests a tool that
// needs human sign-off; it then moves through an explicit status
// machine so that every consequential operation has a durable audit
// trail and executes at most once.
package actions

import "time"

// Status is the lifecycle state of a proposed action.
type Status string

const (
	// StatusPending means the action awaits a human decision.
	StatusPending Status = "pending"

	// StatusApproved means a human approved the action but it has not
	// yet executed.
	StatusApproved Status = "approved"

	// StatusRejected means a human declined the action. Rejected
	// actions never execute.
	StatusRejected Status = "rejected"

	// StatusExecuted means the approved action ran successfully.
	StatusExecuted Status = "executed"

	// StatusFailed means the approved action ran and returned an error.
	StatusFailed Status = "failed"
)

// validTransitions defines the allowed status machine edges. Terminal
// states (rejected, executed, failed) have no outgoing edges.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusExecuted, StatusFailed},
}

// CanTransition reports whether the status machine permits moving from
// one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Action is a persisted record of a tool invocation the model proposed
// on a user's behalf.
type Action struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id"`
	ToolName       string         `json:"tool_name"`
	InputParams    map[string]any `json:"input_params"`
	Status         Status         `json:"status"`

	// Result holds the tool output for executed actions.
	Result map[string]any `json:"result,omitempty"`

	// Error holds the failure message for failed actions.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
