// Package transcript adapts stored conversation turns into the
// message sequence the completion provider expects.
//
// The conversation store itself is an external collaborator; this
// package only reads its shape. The adapter is a pure function: it
// never reorders turns and drops only turns explicitly marked hidden
// (internal bookkeeping the model should not see).
package transcript

import "fmt"

// Turn roles as stored by the conversation store.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single stored conversation turn.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Hidden marks internal bookkeeping turns (pending-approval
	// notices, status markers) that must not be replayed to the model.
	Hidden bool `json:"hidden,omitempty"`
}

// MalformedTurnError reports a turn that cannot be adapted. It aborts
// the whole call — a transcript we cannot interpret means we cannot
// safely continue the conversation.
type MalformedTurnError struct {
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *MalformedTurnError) Error() string {
	return fmt.Sprintf("malformed transcript turn %d: %s", e.Index, e.Reason)
}

// ModelTurn is one turn in the shape the completion layer consumes.
type ModelTurn struct {
	Role    string
	Content string
}

// ToModelTurns converts stored turns into model turns, 1:1 and in
// order. An empty transcript yields an empty sequence. Hidden turns
// are skipped; a turn with a missing role or content, or a role other
// than user/assistant, is malformed.
func ToModelTurns(turns []Turn) ([]ModelTurn, error) {
	out := make([]ModelTurn, 0, len(turns))

	for i, turn := range turns {
		if turn.Hidden {
			continue
		}
		if turn.Role == "" {
			return nil, &MalformedTurnError{Index: i, Reason: "missing role"}
		}
		if turn.Content == "" {
			return nil, &MalformedTurnError{Index: i, Reason: "missing content"}
		}

		switch turn.Role {
		case RoleUser:
			out = append(out, ModelTurn{Role: "user", Content: turn.Content})
		case RoleAssistant:
			out = append(out, ModelTurn{Role: "assistant", Content: turn.Content})
		default:
			return nil, &MalformedTurnError{Index: i, Reason: fmt.Sprintf("unknown role %q", turn.Role)}
		}
	}

	return out, nil
}
