// Package mailer sends attendance reports over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var (
	ErrTransport     = errors.New("mail transport failed")
	ErrNotConfigured = errors.New("smtp is not configured")
)

const sendTimeout = 30 * time.Second

// Message is one report mail.
type Message struct {
	To         []string
	Subject    string
	Body       string
	Attachment string // file path, optional
}

// sender delivers composed messages. *mail.Client satisfies it.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer composes and sends report mails with the configured account.
type Mailer struct {
	smtp    config.SMTPConfig
	subject *template.Template
	body    *template.Template
	dial    func() (sender, error)
}

// New creates a mailer. The subject and body templates receive .Class and .Date.
func New(smtp config.SMTPConfig, tmpl config.MailConfig) (*Mailer, error) {
	subject, err := template.New("subject").Parse(tmpl.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid mail subject template: %w", err)
	}
	body, err := template.New("body").Parse(tmpl.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid mail body template: %w", err)
	}

	m := &Mailer{smtp: smtp, subject: subject, body: body}
	m.dial = m.newClient
	return m, nil
}

func (m *Mailer) newClient() (sender, error) {
	opts := []mail.Option{
		mail.WithPort(m.smtp.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.smtp.Username),
		mail.WithPassword(m.smtp.GetPassword()),
		mail.WithTimeout(sendTimeout),
	}
	if m.smtp.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(m.smtp.Host, opts...)
}

// Compose fills the templates for a class report. Recipients come from config.
func (m *Mailer) Compose(classID, date, attachment string) (Message, error) {
	data := struct{ Class, Date string }{classID, date}

	var subject, body bytes.Buffer
	if err := m.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := m.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("failed to render body: %w", err)
	}

	return Message{
		To:         m.smtp.Recipients,
		Subject:    subject.String(),
		Body:       body.String(),
		Attachment: attachment,
	}, nil
}

func (m *Mailer) build(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.smtp.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.smtp.From, err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	if msg.Attachment != "" {
		out.AttachFile(msg.Attachment, mail.WithFileName(filepath.Base(msg.Attachment)))
	}
	return out, nil
}

// Send delivers msg synchronously. Every failure wraps ErrTransport.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.smtp.Configured() {
		return fmt.Errorf("%w: %w", ErrTransport, ErrNotConfigured)
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrTransport)
	}

	out, err := m.build(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	client, err := m.dial()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
