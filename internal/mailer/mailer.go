// Package mailer sends rate-limited alert emails, grounded on
// _examples/original_source/storage_proxy/media_storage_proxy/mail.py:
// every facet of the source shares one copy of this module, so every
// component in this repo that used to "log critical + send an alert"
// shares one Mailer instance too. No third-party mail library appears
// anywhere in the retrieval pack, so this is built directly on net/smtp
// (stdlib fallback, justified in DESIGN.md: SMTP submission here is a
// handful of commands the source itself implements by hand against the
// same stdlib-equivalent, and no pack repo imports a higher-level mail
// client to ground an alternative on).
package mailer

import (
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
)

// Config holds the alerting configuration spec.md §6 enumerates under
// "SMTP alert settings".
type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Timeout  time.Duration
	TLS      bool
	Username string
	Password string

	Subject  string
	From     string
	To       string
	Cooldown time.Duration
}

// Mailer dispatches alert emails, deduplicated by a process-wide cooldown
// so a failing component can't trigger a mail storm (spec.md §5's
// "Shared-resource policy": "one alert per configurable cooldown
// interval, e.g. 300 s"). Grounded on mail.py's module-level
// `_ALERT_COOLDOWN` guard, lifted into an owned object per spec.md §9.
type Mailer struct {
	cfg Config

	mu       sync.Mutex
	nextSend time.Time
}

// New returns a Mailer configured by cfg.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendAlert sends body as an alert email if alerting is enabled and the
// cooldown has elapsed, matching send_alert's guard-then-send-then-reset
// sequence. A suppressed or failed send is only logged; callers must
// never block on mail delivery.
func (m *Mailer) SendAlert(body string) {
	if !m.cfg.Enabled {
		return
	}

	m.mu.Lock()
	if time.Now().Before(m.nextSend) {
		m.mu.Unlock()
		return
	}
	m.nextSend = time.Now().Add(m.cfg.Cooldown)
	m.mu.Unlock()

	if err := m.send(body); err != nil {
		logger.Error("unable to send alert email", "error", err)
	}
}

func (m *Mailer) send(body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	msg := buildMessage(m.cfg.From, m.cfg.To, m.cfg.Subject, body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	logger.Info("sending alert email", "host", m.cfg.Host, "port", m.cfg.Port)
	return smtp.SendMail(addr, auth, m.cfg.From, []string{m.cfg.To}, msg)
}

// buildMessage renders a minimal RFC 5322 message, the Go equivalent of
// mail.py's `email.mime.text.MIMEText`.
func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		from, to, subject, body,
	))
}
