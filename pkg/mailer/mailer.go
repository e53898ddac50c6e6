// Package mailer delivers credential notifications over SMTP with STARTTLS.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/noah-isme/campus-attendance-api/pkg/config"
)

// Message is a rendered multipart email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through a gomail dialer. gomail upgrades to STARTTLS when the server offers it.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

// NewSMTPSender builds a sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureTLS {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host} //nolint:gosec
	}
	return &SMTPSender{dialer: d, from: cfg.From, fromName: cfg.FromName}
}

// Send dials the relay and delivers msg with plain text and HTML alternatives.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("recipient required")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender records messages instead of sending them. Used when mail is disabled.
type LogSender struct {
	Logger *zap.Logger
}

// Send logs the recipient and subject only.
func (s LogSender) Send(_ context.Context, msg Message) error {
	l := s.Logger
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("mail delivery disabled, message dropped", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
