package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender delivers a single outbound message. The queue worker is the only
// caller; bodies arrive fully rendered.
type Sender interface {
	Send(to, toName, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type GomailSender struct {
	cfg SMTPConfig
}

func NewGomailSender(cfg SMTPConfig) *GomailSender {
	if cfg.From == "" {
		cfg.From = "no-reply@agenda.local"
	}
	return &GomailSender{cfg: cfg}
}

func (s *GomailSender) Send(to, toName, subject, body string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetAddressHeader("To", to, toName)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}
