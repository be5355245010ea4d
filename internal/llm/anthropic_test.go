package llm

import (
	"net/http"
	"testing"
)

func TestConvertToAnthropicExtractsSystem(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You are an onboarding assistant."},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}

	converted, system := convertToAnthropic(messages)

	if system != "You are an onboarding assistant." {
		t.Errorf("system = %q", system)
	}
	if len(converted) != 2 {
		t.Fatalf("converted = %d messages, want 2", len(converted))
	}
	if converted[0].Role != "user" || converted[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", converted[0].Role, converted[1].Role)
	}
}

func TestConvertToAnthropicToolCalls(t *testing.T) {
	messages := []Message{
		{
			Role:    "assistant",
			Content: "checking",
			ToolCalls: []ToolCall{
				NewToolCall("toolu_1", "check_calendar", map[string]any{"days": float64(3)}),
			},
		},
		{Role: "tool", Content: "2 events found", ToolCallID: "toolu_1"},
	}

	converted, _ := convertToAnthropic(messages)
	if len(converted) != 2 {
		t.Fatalf("converted = %d messages, want 2", len(converted))
	}

	blocks, ok := converted[0].Content.([]anthropicContent)
	if !ok {
		t.Fatalf("assistant content = %T, want content blocks", converted[0].Content)
	}
	if len(blocks) != 2 || blocks[0].Type != "text" || blocks[1].Type != "tool_use" {
		t.Errorf("unexpected blocks: %+v", blocks)
	}
	if blocks[1].Name != "check_calendar" || blocks[1].ID != "toolu_1" {
		t.Errorf("tool_use block = %+v", blocks[1])
	}

	// Tool result becomes a user message with a tool_result block.
	resBlocks, ok := converted[1].Content.([]anthropicContent)
	if !ok || converted[1].Role != "user" {
		t.Fatalf("tool result message = %+v", converted[1])
	}
	if resBlocks[0].Type != "tool_result" || resBlocks[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result block = %+v", resBlocks[0])
	}
}

func TestConvertFromAnthropic(t *testing.T) {
	resp := &anthropicResponse{
		Role:  "assistant",
		Model: "claude-sonnet-4-20250514",
		Content: []anthropicContent{
			{Type: "text", Text: "Let me check."},
			{Type: "tool_use", ID: "toolu_2", Name: "find_contact", Input: map[string]any{"query": "IT"}},
		},
		Usage: anthropicUsage{InputTokens: 10, OutputTokens: 20},
	}

	got := convertFromAnthropic(resp)
	if got.Message.Content != "Let me check." {
		t.Errorf("Content = %q", got.Message.Content)
	}
	if len(got.Message.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(got.Message.ToolCalls))
	}
	tc := got.Message.ToolCalls[0]
	if tc.Function.Name != "find_contact" || tc.ID != "toolu_2" {
		t.Errorf("tool call = %+v", tc)
	}
	if got.InputTokens != 10 || got.OutputTokens != 20 {
		t.Errorf("tokens = %d/%d", got.InputTokens, got.OutputTokens)
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	tools := []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "send_email",
				"description": "Send an email",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"to": map[string]any{"type": "string"},
					},
				},
			},
		},
	}

	converted := convertToolsToAnthropic(tools)
	if len(converted) != 1 {
		t.Fatalf("converted = %d tools, want 1", len(converted))
	}
	if converted[0].Name != "send_email" {
		t.Errorf("Name = %q", converted[0].Name)
	}
	if converted[0].InputSchema == nil {
		t.Error("InputSchema should not be nil")
	}
}

func TestIsOverloadStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{529, true},
	}
	for _, tt := range tests {
		if got := isOverloadStatus(tt.code); got != tt.want {
			t.Errorf("isOverloadStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
