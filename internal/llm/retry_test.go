package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// flakyClient fails with overload for the first failCount calls, then
// succeeds.
type flakyClient struct {
	failCount int
	calls     int
	err       error
}

func (c *flakyClient) Chat(_ context.Context, model string, _ []Message, _ []map[string]any) (*ChatResponse, error) {
	c.calls++
	if c.calls <= c.failCount {
		if c.err != nil {
			return nil, c.err
		}
		return nil, &OverloadError{StatusCode: 529, Body: "overloaded"}
	}
	return &ChatResponse{
		Model:   model,
		Message: Message{Role: "assistant", Content: "ok"},
		Done:    true,
	}, nil
}

func (c *flakyClient) Ping(_ context.Context) error { return nil }

func TestRetrySucceedsAfterOverload(t *testing.T) {
	inner := &flakyClient{failCount: 2}
	rc := NewRetryClient(inner, nil, WithRetries(3), WithBaseDelay(time.Millisecond))

	resp, err := rc.Chat(context.Background(), "test-model", nil, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Message.Content)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryExhaustionPreservesOverload(t *testing.T) {
	inner := &flakyClient{failCount: 100}
	rc := NewRetryClient(inner, nil, WithRetries(2), WithBaseDelay(time.Millisecond))

	_, err := rc.Chat(context.Background(), "test-model", nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !IsOverload(err) {
		t.Errorf("exhaustion error should still report overload: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3 (1 initial + 2 retries)", inner.calls)
	}
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	inner := &flakyClient{failCount: 100, err: fmt.Errorf("invalid api key")}
	rc := NewRetryClient(inner, nil, WithRetries(3), WithBaseDelay(time.Millisecond))

	_, err := rc.Chat(context.Background(), "test-model", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsOverload(err) {
		t.Errorf("non-overload error misclassified: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", inner.calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	inner := &flakyClient{failCount: 100}
	rc := NewRetryClient(inner, nil, WithRetries(5), WithBaseDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := rc.Chat(ctx, "test-model", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
