package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryClient wraps a Client and retries overloaded completions with
// increasing backoff. Only overload signals are retried — any other
// error propagates immediately. Each attempt runs under its own
// deadline so a hung request cannot stall the orchestration loop.
type RetryClient struct {
	inner          Client
	logger         *slog.Logger
	retries        int           // additional attempts after the first
	baseDelay      time.Duration // doubled per attempt
	attemptTimeout time.Duration
}

// RetryOption configures a RetryClient.
type RetryOption func(*RetryClient)

// WithRetries sets the number of additional attempts after the first.
func WithRetries(n int) RetryOption {
	return func(c *RetryClient) { c.retries = n }
}

// WithBaseDelay sets the delay before the first retry. Subsequent
// retries double it.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *RetryClient) { c.baseDelay = d }
}

// WithAttemptTimeout bounds each individual completion attempt. Zero
// disables the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(c *RetryClient) { c.attemptTimeout = d }
}

// NewRetryClient wraps inner with overload retry behavior.
func NewRetryClient(inner Client, logger *slog.Logger, opts ...RetryOption) *RetryClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &RetryClient{
		inner:          inner,
		logger:         logger,
		retries:        3,
		baseDelay:      500 * time.Millisecond,
		attemptTimeout: 60 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Chat attempts the completion, retrying on overload.
func (c *RetryClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			// Backoff doubles per attempt: base, 2*base, 4*base, ...
			delay := c.baseDelay << (attempt - 1)
			c.logger.Debug("completion overloaded, backing off",
				"attempt", attempt,
				"max_attempts", c.retries+1,
				"delay", delay,
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		resp, err := c.attempt(ctx, model, messages, tools)
		if err == nil {
			return resp, nil
		}
		if !IsOverload(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("completion retries exhausted after %d attempts: %w", c.retries+1, lastErr)
}

func (c *RetryClient) attempt(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}

	resp, err := c.inner.Chat(ctx, model, messages, tools)
	if err != nil {
		// A timed-out attempt is indistinguishable from overload from
		// the loop's perspective: retryable, then degrade.
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &OverloadError{StatusCode: 0, Body: "attempt deadline exceeded"}
		}
		return nil, err
	}
	return resp, nil
}

// Ping delegates to the wrapped client.
func (c *RetryClient) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}
