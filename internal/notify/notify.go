// Package notify delivers out-of-band alerts about a run.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// Notifier sends a best-effort alert. Implementations log delivery
// failures instead of returning them.
type Notifier interface {
	Notify(ctx context.Context, subject, body string)
}

// Noop discards every alert.
type Noop struct{}

func (Noop) Notify(context.Context, string, string) {}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Server     string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

func (c SMTPConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

type sendFunc func(addr string, auth smtp.Auth, e *email.Email) error

// SMTP mails alerts to a fixed list of recipients.
type SMTP struct {
	cfg    SMTPConfig
	send   sendFunc
	logger *slog.Logger
}

func NewSMTP(cfg SMTPConfig, logger *slog.Logger) *SMTP {
	return &SMTP{
		cfg: cfg,
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
		logger: logger.With("component", "notifier"),
	}
}

func (s *SMTP) Notify(ctx context.Context, subject, body string) {
	if err := s.deliver(subject, body); err != nil {
		s.logger.Error("failed to send alert email", "subject", subject, "error", err)
		return
	}
	s.logger.Info("alert email sent", "subject", subject, "recipients", len(s.cfg.Recipients))
}

func (s *SMTP) deliver(subject, body string) error {
	if len(s.cfg.Recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	mail := email.NewEmail()
	mail.From = s.cfg.Sender
	mail.To = s.cfg.Recipients
	mail.Subject = subject
	mail.Text = []byte(body)

	err := s.send(s.cfg.addr(), smtp.PlainAuth("", s.cfg.Sender, s.cfg.Password, s.cfg.Server), mail)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = s.send(s.cfg.addr(), nil, mail)
	}
	return err
}
