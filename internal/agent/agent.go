// Package agent implements the orchestration loop at the heart of the
// onboarding assistant: it turns a user's chat message into zero or
// more tool invocations, auto-executes the safe ones, stages the
// consequential ones for human approval, and bounds the whole exchange
// against runaway iteration. Approved actions are resumed on a later,
// separate call, so pending state lives in the durable action store
// rather than in memory.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewline/onboard-agent/internal/actions"
	"github.com/crewline/onboard-agent/internal/config"
	"github.com/crewline/onboard-agent/internal/llm"
	"github.com/crewline/onboard-agent/internal/tools"
	"github.com/crewline/onboard-agent/internal/transcript"
)

// Request is one inbound chat message plus the conversation so far.
type Request struct {
	UserID         string
	ConversationID string
	Message        string
	History        []transcript.Turn
}

// Orchestrator drives the control loop per request. It is stateless
// between calls; everything per-request lives in a session value owned
// by the in-flight call, and everything that must survive the
// request/response boundary lives in the action store.
type Orchestrator struct {
	logger   *slog.Logger
	llm      llm.Client
	registry *tools.Registry
	store    *actions.Store
	cfg      config.AgentConfig
	model    string

	// now is swappable for tests.
	now func() time.Time
}

// New creates an orchestrator. The llm.Client should already carry
// retry behavior (see llm.NewRetryClient); the orchestrator only
// decides what to do once retries are exhausted.
func New(logger *slog.Logger, llmClient llm.Client, registry *tools.Registry, store *actions.Store, cfg config.AgentConfig, model string) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		logger:   logger.With("component", "agent"),
		llm:      llmClient,
		registry: registry,
		store:    store,
		cfg:      cfg,
		model:    model,
		now:      time.Now,
	}
}

// session is the per-request working state. It is owned exclusively by
// one in-flight orchestration call and discarded when the call returns.
type session struct {
	userID         string
	conversationID string
	iterations     int
	executed       []ExecutedAction
	pending        []PendingAction
}

// HandleMessage runs the orchestration loop for one user message and
// returns a structured result. The call is synchronous: it returns
// once the model produces final text, an approval is staged, the
// iteration cap is hit, or the completion capability degrades.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) (*Result, error) {
	// Feature gate, resolved once up front.
	if !o.cfg.AgentEnabled(req.UserID) {
		o.logger.Info("agent disabled for user", "user_id", req.UserID)
		return &Result{Content: disabledMessage}, nil
	}

	modelTurns, err := transcript.ToModelTurns(req.History)
	if err != nil {
		return nil, fmt.Errorf("convert history: %w", err)
	}

	messages := make([]llm.Message, 0, len(modelTurns)+2)
	messages = append(messages, llm.Message{Role: "system", Content: buildSystemPrompt(o.now())})
	for _, turn := range modelTurns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	sess := &session{
		userID:         req.UserID,
		conversationID: req.ConversationID,
	}
	toolDefs := o.registry.List()
	toolCtx := tools.WithUser(ctx, tools.User{ID: req.UserID})

	maxIter := o.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = config.DefaultMaxIterations
	}

	var lastContent string
	for sess.iterations < maxIter {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("orchestration cancelled: %w", err)
		}

		resp, err := o.llm.Chat(ctx, o.model, messages, toolDefs)
		if err != nil {
			if llm.IsOverload(err) {
				// Retries are exhausted inside the client; degrade to
				// a plain non-agentic reply rather than failing.
				o.logger.Warn("completion capability overloaded, degrading",
					"user_id", req.UserID,
					"iterations", sess.iterations,
					"error", err)
				return &Result{
					Content:         degradedMessage,
					ExecutedActions: sess.executed,
					Iterations:      sess.iterations,
					Degraded:        true,
				}, nil
			}
			return nil, fmt.Errorf("completion call failed (iteration %d): %w", sess.iterations, err)
		}
		sess.iterations++

		o.logger.Debug("completion response",
			"user_id", req.UserID,
			"iteration", sess.iterations,
			"tool_calls", len(resp.Message.ToolCalls),
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens)

		if resp.Message.Content != "" {
			lastContent = resp.Message.Content
		}

		// Final text with no tool calls ends the turn.
		if len(resp.Message.ToolCalls) == 0 {
			return &Result{
				Content:         resp.Message.Content,
				ExecutedActions: sess.executed,
				Iterations:      sess.iterations,
			}, nil
		}

		// Process tool calls strictly in the order the model returned
		// them; later calls may depend on earlier results.
		messages = append(messages, resp.Message)
		staged := false
		for _, tc := range resp.Message.ToolCalls {
			tool := o.registry.Get(tc.Function.Name)
			if tool != nil && !tool.AutoExecutable {
				pending, err := o.stageAction(ctx, sess, tc)
				if err != nil {
					return nil, err
				}
				sess.pending = append(sess.pending, pending)
				staged = true
				continue
			}

			// Auto-executable (or unknown, which Execute reports as a
			// structured error).
			if err := o.executeTool(toolCtx, sess, &messages, tc); err != nil {
				return nil, err
			}
		}

		// Once anything needs approval, suspend after this model turn.
		if staged {
			return &Result{
				Content:          lastContent,
				RequiresApproval: true,
				PendingActions:   sess.pending,
				ExecutedActions:  sess.executed,
				Iterations:       sess.iterations,
			}, nil
		}
	}

	// Iteration cap reached without a final answer. Controlled abort
	// with whatever narrative we have, plus an explicit marker.
	o.logger.Warn("iteration limit reached",
		"user_id", req.UserID,
		"max_iterations", maxIter)

	content := iterationLimitMarker
	if lastContent != "" {
		content = lastContent + "\n\n" + iterationLimitMarker
	}
	return &Result{
		Content:         content,
		ExecutedActions: sess.executed,
		Iterations:      sess.iterations,
		IterationLimit:  true,
	}, nil
}

// executeTool runs an auto-executable tool call and appends the
// synthetic tool-result turn the model sees next iteration. Integration
// failures become an error-describing turn so the model can
// self-correct; schema violations and unknown tools abort the call.
func (o *Orchestrator) executeTool(ctx context.Context, sess *session, messages *[]llm.Message, tc llm.ToolCall) error {
	result, err := o.registry.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
	if err != nil {
		var external *tools.ExternalServiceError
		if !errors.As(err, &external) {
			// UnknownToolError / InvalidParamsError mean we can no
			// longer trust the exchange; fatal for this call.
			return fmt.Errorf("tool dispatch: %w", err)
		}

		o.logger.Error("tool execution failed",
			"user_id", sess.userID,
			"tool", tc.Function.Name,
			"error", err)

		errText := "Error: " + err.Error()
		sess.executed = append(sess.executed, ExecutedAction{
			ToolName: tc.Function.Name,
			Result:   errText,
			Failed:   true,
		})
		*messages = append(*messages, llm.Message{
			Role:       "tool",
			Content:    errText,
			ToolCallID: tc.ID,
		})
		return nil
	}

	sess.executed = append(sess.executed, ExecutedAction{
		ToolName: tc.Function.Name,
		Result:   result,
	})
	*messages = append(*messages, llm.Message{
		Role:       "tool",
		Content:    result,
		ToolCallID: tc.ID,
	})
	return nil
}

// stageAction persists an approval-required tool call as a pending
// action. The store is the sole id authority.
func (o *Orchestrator) stageAction(ctx context.Context, sess *session, tc llm.ToolCall) (PendingAction, error) {
	action, err := o.store.Create(ctx, sess.userID, sess.conversationID, tc.Function.Name, tc.Function.Arguments)
	if err != nil {
		return PendingAction{}, fmt.Errorf("stage action for %s: %w", tc.Function.Name, err)
	}
	return PendingAction{
		ActionID: action.ID,
		ToolName: action.ToolName,
		Params:   action.InputParams,
	}, nil
}

// summarizeOutcome renders an action outcome as a JSON fragment for
// the optional follow-up narrative call.
func summarizeOutcome(outcome ActionOutcome) string {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Sprintf("%s: %s", outcome.ToolName, outcome.Status)
	}
	return string(data)
}
