package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crewline/onboard-agent/internal/actions"
	"github.com/crewline/onboard-agent/internal/llm"
	"github.com/crewline/onboard-agent/internal/tools"
)

// Decision is a human approval decision for a batch of pending actions.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a decision string from the API layer.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	default:
		return "", fmt.Errorf("unknown decision %q (want approve or reject)", s)
	}
}

// ResumeAfterApproval applies a human decision to a batch of pending
// actions. Approved actions execute exactly once; rejected actions
// never execute. Each id is processed independently — an action that
// was already decided, or that belongs to another user, yields a
// per-id error outcome without aborting the rest of the batch.
//
// When followUp is true, a single extra completion call summarizes the
// outcomes as a narrative. It is one call, not a new loop.
func (o *Orchestrator) ResumeAfterApproval(ctx context.Context, userID string, actionIDs []string, decision Decision, followUp bool) (*ResumeResult, error) {
	if len(actionIDs) == 0 {
		return nil, fmt.Errorf("no action ids given")
	}

	result := &ResumeResult{}
	toolCtx := tools.WithUser(ctx, tools.User{ID: userID})

	for _, id := range actionIDs {
		outcome := o.resumeOne(toolCtx, userID, id, decision)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if followUp {
		content, err := o.followUpNarrative(ctx, result.Outcomes)
		if err != nil {
			// The decisions already took effect; a narrative failure
			// must not look like a batch failure.
			o.logger.Warn("follow-up narrative failed", "user_id", userID, "error", err)
		} else {
			result.Content = content
		}
	}

	return result, nil
}

// resumeOne applies the decision to a single action id.
func (o *Orchestrator) resumeOne(ctx context.Context, userID, id string, decision Decision) ActionOutcome {
	action, err := o.store.Get(ctx, id)
	if err != nil {
		return ActionOutcome{ActionID: id, Error: err.Error()}
	}

	// Ownership: acting on another user's action reads as not-found,
	// revealing nothing about the id space.
	if action.UserID != userID {
		nf := &actions.NotFoundError{ID: id}
		return ActionOutcome{ActionID: id, Error: nf.Error()}
	}

	if action.Status != actions.StatusPending {
		processed := &ActionAlreadyProcessedError{ActionID: id, Status: action.Status}
		return ActionOutcome{
			ActionID: id,
			ToolName: action.ToolName,
			Status:   action.Status,
			Error:    processed.Error(),
		}
	}

	if decision == DecisionReject {
		rejected, err := o.store.Transition(ctx, id, []actions.Status{actions.StatusPending}, actions.StatusRejected, nil, "")
		if err != nil {
			return o.conflictOutcome(id, action.ToolName, err)
		}
		return ActionOutcome{ActionID: id, ToolName: rejected.ToolName, Status: rejected.Status}
	}

	// Approve: claim the action first. The guarded transition is the
	// at-most-once gate — if a concurrent decision got there first, we
	// observe a conflict and never invoke the handler.
	approved, err := o.store.Transition(ctx, id, []actions.Status{actions.StatusPending}, actions.StatusApproved, nil, "")
	if err != nil {
		return o.conflictOutcome(id, action.ToolName, err)
	}

	output, execErr := o.registry.Execute(ctx, approved.ToolName, approved.InputParams)
	if execErr != nil {
		failed, err := o.store.Transition(ctx, id, []actions.Status{actions.StatusApproved}, actions.StatusFailed, nil, execErr.Error())
		if err != nil {
			return ActionOutcome{ActionID: id, ToolName: approved.ToolName, Error: err.Error()}
		}
		return ActionOutcome{
			ActionID: id,
			ToolName: failed.ToolName,
			Status:   failed.Status,
			Error:    failed.Error,
		}
	}

	executed, err := o.store.Transition(ctx, id, []actions.Status{actions.StatusApproved}, actions.StatusExecuted,
		map[string]any{"output": output}, "")
	if err != nil {
		return ActionOutcome{ActionID: id, ToolName: approved.ToolName, Error: err.Error()}
	}
	return ActionOutcome{
		ActionID: id,
		ToolName: executed.ToolName,
		Status:   executed.Status,
		Result:   executed.Result,
	}
}

// conflictOutcome maps a lost transition race to the per-id error
// shape, preserving the already-processed semantics.
func (o *Orchestrator) conflictOutcome(id, toolName string, err error) ActionOutcome {
	var conflict *actions.ConflictError
	if errors.As(err, &conflict) {
		processed := &ActionAlreadyProcessedError{ActionID: id, Status: conflict.Current}
		return ActionOutcome{
			ActionID: id,
			ToolName: toolName,
			Status:   conflict.Current,
			Error:    processed.Error(),
		}
	}
	return ActionOutcome{ActionID: id, ToolName: toolName, Error: err.Error()}
}

// followUpNarrative makes one completion call describing the batch
// outcomes to the user.
func (o *Orchestrator) followUpNarrative(ctx context.Context, outcomes []ActionOutcome) (string, error) {
	var sb strings.Builder
	sb.WriteString("The user just decided on the actions you proposed. Outcomes:\n")
	for _, outcome := range outcomes {
		sb.WriteString("- ")
		sb.WriteString(summarizeOutcome(outcome))
		sb.WriteString("\n")
	}
	sb.WriteString("\nWrite a short message for the user summarizing what happened and any sensible next step.")

	messages := []llm.Message{
		{Role: "system", Content: buildSystemPrompt(o.now())},
		{Role: "user", Content: sb.String()},
	}

	// No tools: this is a narrative, not a new agentic loop.
	resp, err := o.llm.Chat(ctx, o.model, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
