// Package mail sends candidate invitation emails over SMTP.
package mail

import (
	"net/smtp"

	"github.com/skillgate/go-interview-backend/internal/config"
)

// Mailer is the sending capability the invite worker depends on.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends plain-text mail through a single SMTP account.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailer builds a mailer from configuration.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		addr: cfg.Host + ":" + cfg.Port,
		auth: smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host),
		from: cfg.From,
	}
}

// Send delivers one message to a single recipient.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := []byte("From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		body + "\r\n")
	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg)
}
