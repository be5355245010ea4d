package agent

import (
	"fmt"

	"github.com/crewline/onboard-agent/internal/actions"
)

// ActionAlreadyProcessedError indicates an approval decision arrived
// for an action that is no longer pending. It is reported per-id; the
// rest of the batch continues.
type ActionAlreadyProcessedError struct {
	ActionID string
	Status   actions.Status
}

func (e *ActionAlreadyProcessedError) Error() string {
	return fmt.Sprintf("action %s was already processed (status %s)", e.ActionID, e.Status)
}
