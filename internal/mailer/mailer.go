// Package mailer sends transactional mail: a shared HTML wrapper, a
// per-kind body, {{key}} substitution and an SMTP transport behind a
// small interface so tests can record sends.
package mailer

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

type Kind string

const (
	KindTesting             Kind = "testing"
	KindWelcome             Kind = "welcome"
	KindCredentials         Kind = "hosting-credentials"
	KindPaymentConfirmation Kind = "payment-confirmation"
	KindCustom              Kind = "custom"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Sandbox transport used when production credentials are absent.
	SandboxHost     string
	SandboxPort     int
	SandboxUsername string
	SandboxPassword string
}

type Mailer struct {
	cfg    SMTPConfig
	logger *zap.SugaredLogger

	once   sync.Once
	dialer *gomail.Dialer
	from   string
}

func New(cfg SMTPConfig, logger *zap.SugaredLogger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// transport resolves the SMTP endpoint once for the process lifetime:
// production when credentials are configured, sandbox otherwise.
func (m *Mailer) transport() *gomail.Dialer {
	m.once.Do(func() {
		if m.cfg.Host != "" && m.cfg.Username != "" {
			m.dialer = gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
			m.from = m.cfg.From
			return
		}
		m.logger.Warnw("smtp credentials absent, using sandbox transport",
			"host", m.cfg.SandboxHost)
		m.dialer = gomail.NewDialer(m.cfg.SandboxHost, m.cfg.SandboxPort,
			m.cfg.SandboxUsername, m.cfg.SandboxPassword)
		m.from = m.cfg.SandboxUsername
	})
	return m.dialer
}

// Send renders the template for kind with data and relays it over SMTP.
// Transport failures are returned as-is; there is no retry here.
func (m *Mailer) Send(kind Kind, to string, data map[string]any) error {
	subject, htmlBody, textBody, err := Compose(kind, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	dialer := m.transport()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail send %s to %s: %w", kind, to, err)
	}
	m.logger.Infow("mail sent", "kind", kind, "to", to)
	return nil
}

// Compose builds subject, HTML and plain-text bodies for kind. For
// KindCustom the subject and html come from data["subject"] and
// data["html"].
func Compose(kind Kind, data map[string]any) (subject, htmlBody, textBody string, err error) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["year"]; !ok {
		data["year"] = time.Now().Year()
	}

	var body string
	switch kind {
	case KindCustom:
		subject = fmt.Sprint(data["subject"])
		body = fmt.Sprint(data["html"])
	default:
		tpl, ok := templates[kind]
		if !ok {
			return "", "", "", fmt.Errorf("mail: unknown kind %q", kind)
		}
		subject = Render(tpl.Subject, data)
		body = tpl.Body
	}

	data["content"] = Render(body, data)
	htmlBody = Render(wrapper, data)

	if t, ok := data["text"].(string); ok && t != "" {
		textBody = t
	} else {
		textBody = StripTags(htmlBody)
	}
	return subject, htmlBody, textBody, nil
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{key}} placeholders with string-coerced values.
// Placeholders with no matching key are deleted, not left literal:
// templates may name optional fields.
func Render(tpl string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(tok string) string {
		key := placeholderRe.FindStringSubmatch(tok)[1]
		v, ok := data[key]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`[ \t]+`)
	blankRe = regexp.MustCompile(`\n{3,}`)
)

// StripTags derives a plain-text fallback from an HTML body.
func StripTags(s string) string {
	s = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr)>`).ReplaceAllString(s, "\n")
	s = regexp.MustCompile(`(?i)<br\s*/?>`).ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(s, " ")
	s = blankRe.ReplaceAllString(s, "\n\n")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
