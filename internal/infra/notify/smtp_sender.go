package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"membership-platform/internal/config"
	"membership-platform/internal/domain/ports/adapter"
)

var _ adapter.EmailSender = (*SMTPSender)(nil)

// SMTPSender delivers plain-text mail over a single SMTP relay.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPSender(cfg *config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, host)
	}
	return &SMTPSender{addr: cfg.Addr, from: cfg.From, auth: auth}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
