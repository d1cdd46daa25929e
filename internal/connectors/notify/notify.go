// Package notify sends alert emails for the Alert Dispatcher. It
// wraps net/smtp directly: no SMTP client library appears anywhere in the
// example corpus, so this is the one connector built on the standard
// library rather than a third-party dependency.
package notify

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Config is the outbound mail server and sender identity.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends plaintext alert emails over SMTP with PLAIN auth.
type Mailer struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New constructs a Mailer against cfg.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Message is one alert email to send.
type Message struct {
	To      []string
	Subject string
	Body    string
	SentAt  time.Time
}

// Send delivers an alert email, wrapping transport failures with
// models.ErrConnectFailed so the Alert Dispatcher can distinguish a
// delivery failure from a misconfigured rule.
func (m *Mailer) Send(msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", models.ErrConnectFailed)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)

	if err := m.send(addr, auth, m.cfg.From, msg.To, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: send mail: %v", models.ErrConnectFailed, err)
	}
	return nil
}
