// Package mailer delivers rendered HTML messages to a single recipient.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-workshop/internal/config"
)

// Transport sends one message. Any returned error means the message was not
// delivered.
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPTransport delivers through an SMTP relay.
type SMTPTransport struct {
	client *mail.Client
	from   string
}

// NewSMTPTransport configures an SMTP client from cfg. The connection is
// opened per message.
func NewSMTPTransport(cfg *config.MailConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: smtp host is empty")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	switch {
	case cfg.UseSSL:
		opts = append(opts, mail.WithSSL())
	case cfg.UseTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: new smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPTransport{client: client, from: from}, nil
}

func (t *SMTPTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg, err := buildMessage(t.from, to, subject, htmlBody)
	if err != nil {
		return err
	}
	if err := t.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mailer: sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mailer: recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

// LogTransport writes messages to the log instead of sending them. It is
// used when no SMTP relay is configured.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.logger.Info("email (not sent, no smtp relay configured)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}

// New picks the SMTP transport when a relay is configured and the logging
// transport otherwise.
func New(cfg *config.MailConfig, logger *zap.Logger) (Transport, error) {
	if cfg.Host == "" {
		logger.Warn("mail.host not set, emails will only be logged")
		return NewLogTransport(logger), nil
	}
	return NewSMTPTransport(cfg)
}
