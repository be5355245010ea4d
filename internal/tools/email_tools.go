package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/crewline/onboard-agent/internal/email"
)

// MailService is the mail surface the email tools need.
type MailService interface {
	Send(ctx context.Context, opts email.SendOptions) error
	Search(ctx context.Context, opts email.SearchOptions) ([]email.Envelope, error)
}

// SetMailService adds the send_email and search_inbox tools to the
// registry.
func (r *Registry) SetMailService(svc MailService) {
	r.mail = svc
	r.registerEmailTools()
}

func (r *Registry) registerEmailTools() {
	if r.mail == nil {
		return
	}

	r.Register(&Tool{
		Name: "send_email",
		Description: "Send an email from the onboarding assistant's address. " +
			"The body is markdown and is delivered as a formatted message. " +
			"Sending is visible to real people, so get the content right.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to": map[string]any{
					"type":        "string",
					"description": "Recipient address, or several separated by commas",
				},
				"cc": map[string]any{
					"type":        "string",
					"description": "CC addresses, separated by commas",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "Subject line",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Message body in markdown",
				},
			},
			"required": []string{"to", "subject", "body"},
		},
		Handler: r.handleSendEmail,
	})

	r.Register(&Tool{
		Name: "search_inbox",
		Description: "Search the onboarding mailbox for messages. Returns sender, " +
			"subject, and date for each match, newest first. Use this to find " +
			"IT tickets, HR confirmations, or anything a new hire was promised by email.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free-text search over message content",
				},
				"from": map[string]any{
					"type":        "string",
					"description": "Filter by sender address or name",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Only messages on or after this date (YYYY-MM-DD)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum results (default 20)",
				},
			},
		},
		AutoExecutable: true,
		Handler:        r.handleSearchInbox,
	})
}

func (r *Registry) handleSendEmail(ctx context.Context, args map[string]any) (string, error) {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	if to == "" || subject == "" || body == "" {
		return "", fmt.Errorf("to, subject, and body are required")
	}
	cc, _ := args["cc"].(string)

	opts := email.SendOptions{
		To:      splitAddresses(to),
		Cc:      splitAddresses(cc),
		Subject: subject,
		Body:    body,
	}

	if err := r.mail.Send(ctx, opts); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}

	return fmt.Sprintf("Email %q sent to %s.", subject, to), nil
}

func (r *Registry) handleSearchInbox(ctx context.Context, args map[string]any) (string, error) {
	opts := email.SearchOptions{}
	opts.Query, _ = args["query"].(string)
	opts.From, _ = args["from"].(string)

	if raw, ok := args["since"].(string); ok && raw != "" {
		since, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return "", fmt.Errorf("since must be YYYY-MM-DD: %w", err)
		}
		opts.Since = since
	}
	if limit, ok := args["limit"].(float64); ok {
		opts.Limit = int(limit)
	}

	if opts.Query == "" && opts.From == "" && opts.Since.IsZero() {
		return "", fmt.Errorf("at least one of query, from, or since is required")
	}

	envelopes, err := r.mail.Search(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("search inbox: %w", err)
	}

	if len(envelopes) == 0 {
		return "No matching messages.", nil
	}

	data, err := json.Marshal(envelopes)
	if err != nil {
		return "", fmt.Errorf("marshal envelopes: %w", err)
	}
	return string(data), nil
}

// splitAddresses splits a comma-separated address list, trimming
// whitespace and dropping empties.
func splitAddresses(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			result = append(result, addr)
		}
	}
	return result
}
