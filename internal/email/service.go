package email

import (
	"context"
	"fmt"
	"log/slog"
)

// Service bundles outbound (SMTP) and inbound (IMAP) mail for a single
// sending identity.
type Service struct {
	from   string
	smtp   SMTPConfig
	imap   *Client
	logger *slog.Logger
}

// NewService creates a mail service. from is the sender identity used
// on outbound messages, e.g. "Onboarding Assistant <assistant@corp.example>".
func NewService(from string, smtpCfg SMTPConfig, imapCfg IMAPConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		from:   from,
		smtp:   smtpCfg,
		imap:   NewClient(imapCfg, logger),
		logger: logger.With("integration", "email"),
	}
}

// Send composes and delivers a message. The body is markdown and is
// sent as a multipart/alternative message with plain-text and HTML
// parts.
func (s *Service) Send(ctx context.Context, opts SendOptions) error {
	if len(opts.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg, err := ComposeMessage(s.from, opts)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}

	recipients := collectRecipients(opts.To, opts.Cc)
	if err := SendMail(ctx, s.smtp, s.from, recipients, msg); err != nil {
		return err
	}

	s.logger.Info("email sent", "to", opts.To, "subject", opts.Subject)
	return nil
}

// Search queries the configured IMAP account for messages matching the
// given criteria, newest-first.
func (s *Service) Search(ctx context.Context, opts SearchOptions) ([]Envelope, error) {
	return s.imap.SearchMessages(ctx, opts)
}

// Ping verifies the IMAP connection is usable.
func (s *Service) Ping(ctx context.Context) error {
	return s.imap.Ping(ctx)
}

// Close releases the underlying IMAP connection.
func (s *Service) Close() error {
	return s.imap.Close()
}
