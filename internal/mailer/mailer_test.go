package mailer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"

	"github.com/kozaktomas/face-attendance/internal/config"
)

type recordingSender struct {
	sent []*mail.Msg
	err  error
}

func (r *recordingSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, messages...)
	return nil
}

func testSMTP(t *testing.T) config.SMTPConfig {
	t.Helper()
	t.Setenv("SMTP_USERNAME", "faculty@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("SMTP_FROM", "")
	t.Setenv("MAIL_RECIPIENTS", "hod@example.com")
	return config.Load().SMTP
}

func newTestMailer(t *testing.T, smtp config.SMTPConfig, s sender) *Mailer {
	t.Helper()
	m, err := New(smtp, config.Load().Mail)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m.dial = func() (sender, error) { return s, nil }
	return m
}

func TestCompose(t *testing.T) {
	m := newTestMailer(t, testSMTP(t), &recordingSender{})

	msg, err := m.Compose("CSE-A", "2024-03-01", "attendance/CSE-A/2024-03-01.csv")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if msg.Subject != "Attendance Report - CSE-A - 2024-03-01" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "attendance report for CSE-A dated 2024-03-01") {
		t.Errorf("unexpected body %q", msg.Body)
	}
	if len(msg.To) != 1 || msg.To[0] != "hod@example.com" {
		t.Errorf("unexpected recipients %v", msg.To)
	}
}

func TestSend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024-03-01.csv")
	if err := os.WriteFile(path, []byte("Name,Date,Login Time,Logout Time,Status\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &recordingSender{}
	m := newTestMailer(t, testSMTP(t), rec)

	msg, err := m.Compose("CSE-A", "2024-03-01", path)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(rec.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(rec.sent))
	}

	var buf bytes.Buffer
	if _, err := rec.sent[0].WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"faculty@example.com", "hod@example.com", "Attendance Report - CSE-A - 2024-03-01", "2024-03-01.csv"} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected %q in message", want)
		}
	}
}

func TestSend_TransportError(t *testing.T) {
	m := newTestMailer(t, testSMTP(t), &recordingSender{err: errors.New("535 authentication failed")})

	err := m.Send(context.Background(), Message{To: []string{"hod@example.com"}, Subject: "s", Body: "b"})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	m := newTestMailer(t, config.SMTPConfig{Host: "smtp.example.com", Port: 587}, &recordingSender{})

	err := m.Send(context.Background(), Message{To: []string{"hod@example.com"}})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrTransport wrapping ErrNotConfigured, got %v", err)
	}
}

func TestSend_InvalidRecipient(t *testing.T) {
	rec := &recordingSender{}
	m := newTestMailer(t, testSMTP(t), rec)

	err := m.Send(context.Background(), Message{To: []string{"not an address"}, Subject: "s", Body: "b"})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if len(rec.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestNew_InvalidTemplate(t *testing.T) {
	_, err := New(config.SMTPConfig{}, config.MailConfig{Subject: "{{.Class", Body: "ok"})
	if err == nil {
		t.Error("expected template error")
	}
}
