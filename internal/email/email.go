// Package email provides the mail integration behind the agent's
// email tools: SMTP delivery for outbound onboarding mail and IMAP
// search over the onboarding mailbox.
package email

import "time"

// SMTPConfig defines outbound mail delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// StartTLS upgrades a plaintext connection (port 587). When false,
	// implicit TLS is used (port 465).
	StartTLS bool
}

// IMAPConfig defines inbox access settings.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

// SendOptions describes an outbound message. The Body field contains
// markdown that the compose layer converts to both text/plain and
// text/html MIME parts.
type SendOptions struct {
	// To is the list of recipient addresses (required).
	To []string

	// Cc is the list of CC addresses.
	Cc []string

	// Subject is the message subject line (required).
	Subject string

	// Body is the message body in markdown format (required).
	Body string
}

// SearchOptions controls inbox search behavior.
type SearchOptions struct {
	// Folder is the mailbox to search. Default: "INBOX".
	Folder string

	// Query is a free-text string to match against message content.
	Query string

	// From filters by sender address or name.
	From string

	// Since filters for messages on or after this date.
	Since time.Time

	// Limit is the maximum number of results. Default: 20.
	Limit int
}

// Envelope is a lightweight view of a message, enough for the model to
// summarize an inbox without fetching bodies.
type Envelope struct {
	UID     uint32    `json:"uid"`
	Date    time.Time `json:"date"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Seen    bool      `json:"seen"`
}
