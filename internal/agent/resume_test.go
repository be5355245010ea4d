package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/crewline/onboard-agent/internal/actions"
	"github.com/crewline/onboard-agent/internal/llm"
)

func stagePendingAction(t *testing.T, env *testEnv, userID string) *actions.Action {
	t.Helper()
	action, err := env.store.Create(context.Background(), userID, "conv-1", "send_email",
		map[string]any{"to": "hire@corp.example", "subject": "Intro", "body": "Tuesday?"})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	return action
}

func TestResumeApprove(t *testing.T) {
	env := setupOrchestrator(t, &mockLLMClient{}, enabledConfig())
	action := stagePendingAction(t, env, "user-1")

	result, err := env.orch.ResumeAfterApproval(context.Background(), "user-1",
		[]string{action.ID}, DecisionApprove, false)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	if len(result.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(result.Outcomes))
	}
	outcome := result.Outcomes[0]
	if outcome.Status != actions.StatusExecuted {
		t.Errorf("status = %s, want executed", outcome.Status)
	}
	if outcome.Error != "" {
		t.Errorf("unexpected error: %s", outcome.Error)
	}
	if *env.emailN != 1 {
		t.Errorf("handler ran %d times, want 1", *env.emailN)
	}

	stored, err := env.store.Get(context.Background(), action.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != actions.StatusExecuted {
		t.Errorf("stored status = %s", stored.Status)
	}
	if stored.Result["output"] == nil {
		t.Error("stored result not populated")
	}
}

func TestResumeReject(t *testing.T) {
	env := setupOrchestrator(t, &mockLLMClient{}, enabledConfig())
	action := stagePendingAction(t, env, "user-1")

	result, err := env.orch.ResumeAfterApproval(context.Background(), "user-1",
		[]string{action.ID}, DecisionReject, false)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	if result.Outcomes[0].Status != actions.StatusRejected {
		t.Errorf("status = %s, want rejected", result.Outcomes[0].Status)
	}
	if *env.emailN != 0 {
		t.Error("handler must never run for a rejected action")
	}
}

func TestResumeDoubleApprove(t *testing.T) {
	env := setupOrchestrator(t, &mockLLMClient{}, enabledConfig())
	action := stagePendingAction(t, env, "user-1")
	ctx := context.Background()

	first, err := env.orch.ResumeAfterApproval(ctx, "user-1", []string{action.ID}, DecisionApprove, false)
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if first.Outcomes[0].Status != actions.StatusExecuted {
		t.Fatalf("first approve status = %s", first.Outcomes[0].Status)
	}

	second, err := env.orch.ResumeAfterApproval(ctx, "user-1", []string{action.ID}, DecisionApprove, false)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}

	outcome := second.Outcomes[0]
	if !strings.Contains(outcome.Error, "already processed") {
		t.Errorf("expected already-processed error, got %q", outcome.Error)
	}
	if *env.emailN != 1 {
		t.Errorf("handler ran %d times, want exactly 1", *env.emailN)
	}
}

func TestResumeOwnership(t *testing.T) {
	env := setupOrchestrator(t, &mockLLMClient{}, enabledConfig())
	action := stagePendingAction(t, env, "user-1")

	result, err := env.orch.ResumeAfterApproval(context.Background(), "user-2",
		[]string{action.ID}, DecisionApprove, false)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	if !strings.Contains(result.Outcomes[0].Error, "not found") {
		t.Errorf("cross-user access should read as not found, got %q", result.Outcomes[0].Error)
	}
	if *env.emailN != 0 {
		t.Error("handler ran for another user's action")
	}

	// The action is untouched.
	stored, err := env.store.Get(context.Background(), action.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != actions.StatusPending {
		t.Errorf("status = %s, want pending", stored.Status)
	}
}

func TestResumeBatchContinuesPastBadID(t *testing.T) {
	env := setupOrchestrator(t, &mockLLMClient{}, enabledConfig())
	good := stagePendingAction(t, env, "user-1")

	result, err := env.orch.ResumeAfterApproval(context.Background(), "user-1",
		[]string{"no-such-id", good.ID}, DecisionApprove, false)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	if len(result.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(result.Outcomes))
	}
	if result.Outcomes[0].Error == "" {
		t.Error("bad id should carry a per-id error")
	}
	if result.Outcomes[1].Status != actions.StatusExecuted {
		t.Errorf("good id status = %s, want executed", result.Outcomes[1].Status)
	}
}

func TestResumeFailedExecution(t *testing.T) {
	env := setupOrchestrator(t, &mockLLMClient{}, enabledConfig())

	action, err := env.store.Create(context.Background(), "user-1", "conv-1", "broken_lookup", map[string]any{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := env.orch.ResumeAfterApproval(context.Background(), "user-1",
		[]string{action.ID}, DecisionApprove, false)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	outcome := result.Outcomes[0]
	if outcome.Status != actions.StatusFailed {
		t.Errorf("status = %s, want failed", outcome.Status)
	}
	if !strings.Contains(outcome.Error, "directory service unavailable") {
		t.Errorf("error = %q", outcome.Error)
	}

	stored, _ := env.store.Get(context.Background(), action.ID)
	if stored.Status != actions.StatusFailed {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestResumeFollowUpNarrative(t *testing.T) {
	mock := &mockLLMClient{responses: []*llm.ChatResponse{
		textResponse("Done — the intro email went out."),
	}}
	env := setupOrchestrator(t, mock, enabledConfig())
	action := stagePendingAction(t, env, "user-1")

	result, err := env.orch.ResumeAfterApproval(context.Background(), "user-1",
		[]string{action.ID}, DecisionApprove, true)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	if result.Content != "Done — the intro email went out." {
		t.Errorf("Content = %q", result.Content)
	}
	// Exactly one extra completion call, with no tools offered.
	if mock.callCount() != 1 {
		t.Errorf("completion calls = %d, want 1", mock.callCount())
	}
	if len(mock.calls[0].Tools) != 0 {
		t.Error("follow-up narrative must not offer tools")
	}
}

func TestParseDecision(t *testing.T) {
	if _, err := ParseDecision("approve"); err != nil {
		t.Errorf("approve: %v", err)
	}
	if _, err := ParseDecision("reject"); err != nil {
		t.Errorf("reject: %v", err)
	}
	if _, err := ParseDecision("maybe"); err == nil {
		t.Error("expected error for unknown decision")
	}
}
