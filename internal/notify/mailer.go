// Package notify delivers transactional email over SMTP.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends plain-text mail through one SMTP endpoint.
type Mailer struct {
	addr string
	from string
	auth smtp.Auth
}

// Config collects SMTP settings.
type Config struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// NewMailer constructs a Mailer. Auth is skipped when no username is set,
// which matches local relays such as Mailpit.
func NewMailer(cfg Config) *Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
		auth: auth,
	}
}

// Send delivers one message. The context bounds the whole exchange only
// coarsely: smtp.SendMail has no context support, so cancellation is checked
// before dialing.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("notify: send mail to %s: %w", to, err)
	}
	return nil
}
