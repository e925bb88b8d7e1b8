package mailer

import (
	"fmt"
	"strconv"

	"gopkg.in/gomail.v2"

	"storefront/internal/config"
)

// Sender delivers transactional mail. Tests swap in a recorder.
type Sender interface {
	SendPasswordReset(to, resetURL string) error
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	port, err := strconv.Atoi(cfg.SMTP_PORT)
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid SMTP_PORT %q: %w", cfg.SMTP_PORT, err)
	}

	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.SMTP_HOST, port, cfg.SMTP_USER, cfg.SMTP_PASSWORD),
		from:   cfg.MAIL_FROM,
	}, nil
}

func (s *SMTPSender) SendPasswordReset(to, resetURL string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Reset your password")
	m.SetBody("text/html", fmt.Sprintf(
		`<p>A password reset was requested for your account.</p>
<p><a href="%s">Reset password</a></p>
<p>The link is valid for one hour. If you did not request this, ignore this message.</p>`,
		resetURL,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mailer: send reset mail: %w", err)
	}
	return nil
}
