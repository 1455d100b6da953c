package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"contract-analyzer/internal/shared/metrics"
	"contract-analyzer/internal/shared/telemetry"
)

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

var placeholderValues = map[string]struct{}{
	"smtp.example.com": {},
	"user@example.com": {},
	"password":         {},
	"changeme":         {},
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	_, ok := placeholderValues[v]
	return ok
}

// Configured reports whether the sender may contact the relay at all.
func (c SMTPConfig) Configured() bool {
	if !c.Enabled {
		return false
	}
	for _, v := range []string{c.Host, c.Port, c.Username, c.Password, c.From} {
		if isPlaceholder(v) {
			return false
		}
	}
	return true
}

// ErrInsecureRelay is returned when the relay does not offer STARTTLS or AUTH.
// Mail is never sent in the clear or unauthenticated.
var ErrInsecureRelay = errors.New("smtp relay does not offer required extension")

// SMTPSender sends plain-text mail through an SMTP relay. Every session is
// upgraded with STARTTLS and authenticated before any mail command.
type SMTPSender struct {
	cfg     SMTPConfig
	rootCAs *x509.CertPool
}

// NewSMTPSender constructs a sender. An unconfigured sender skips every message.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Configured reports whether messages will be attempted.
func (s *SMTPSender) Configured() bool {
	return s != nil && s.cfg.Configured()
}

// Send delivers one message. Errors and panics are logged, never returned.
func (s *SMTPSender) Send(ctx context.Context, to, subject, message string) (ok bool) {
	if !s.Configured() || strings.TrimSpace(to) == "" {
		metrics.IncNotificationSkipped()
		telemetry.Info("notify.skipped", map[string]any{"subject": subject, "configured": s.Configured()})
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.IncNotificationFailed()
			telemetry.Error("notify.panic", map[string]any{"subject": subject, "panic": fmt.Sprint(r)})
			ok = false
		}
	}()

	if err := s.deliver(ctx, to, subject, message); err != nil {
		metrics.IncNotificationFailed()
		telemetry.Error("notify.failed", map[string]any{"subject": subject, "err": err.Error()})
		return false
	}
	metrics.IncNotificationSent()
	telemetry.Info("notify.sent", map[string]any{"subject": subject})
	return true
}

func (s *SMTPSender) deliver(ctx context.Context, to, subject, message string) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("%w: STARTTLS", ErrInsecureRelay)
	}
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12, RootCAs: s.rootCAs}
	if err := client.StartTLS(tlsCfg); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return fmt.Errorf("%w: AUTH", ErrInsecureRelay)
	}
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(buildMessage(s.cfg.From, to, subject, message)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(from) + "\r\n")
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: " + headerValue(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
