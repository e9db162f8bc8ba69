package utils

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"multiproduct/config"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailContent struct {
	Subject string
	HTML    string
}

// Mailer delivers a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to string, content EmailContent) error
}

// NewMailer picks the provider from configuration.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.EmailProvider == "sendgrid" {
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSender, cfg.EmailFromName)
	}
	return &SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.EmailSender,
		FromName: cfg.EmailFromName,
		Password: cfg.Password,
	}
}

type SMTPMailer struct {
	Host     string
	Port     string
	From     string
	FromName string
	Password string
}

func (m *SMTPMailer) Send(_ context.Context, to string, content EmailContent) error {
	msg := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n"
	msg += fmt.Sprintf("From: %s <%s>\r\n", m.FromName, m.From)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", content.Subject)
	msg += content.HTML

	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	if err := smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	log.Printf("[MAILER] sent %q to %s", content.Subject, to)
	return nil
}

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, from),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, to string, content EmailContent) error {
	msg := mail.NewSingleEmail(m.from, content.Subject, mail.NewEmail("", to), stripTags(content.HTML), content.HTML)
	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", to, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send to %s: status %d: %s", to, resp.StatusCode, resp.Body)
	}
	log.Printf("[MAILER] sent %q to %s via sendgrid", content.Subject, to)
	return nil
}

// stripTags produces a rough plain-text alternative for the HTML body.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
