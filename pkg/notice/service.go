// Package notice renders the account mails sent during registration and
// password reset.
package notice

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-useraccess/pkg/notification"
)

const (
	VerificationSubject  = "Complete Registration!"
	PasswordResetSubject = "Password Reset Request!"
)

//go:embed templates/*
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/email/*.html"))

// Composer builds mail requests with links rooted at BaseURL.
type Composer struct {
	BaseURL string
}

func NewComposer(baseURL string) *Composer {
	return &Composer{BaseURL: strings.TrimRight(baseURL, "/")}
}

// VerificationLink is the link a new user follows to confirm their email.
func (c *Composer) VerificationLink(token string) string {
	return c.BaseURL + "/auth/verify-email?token=" + url.QueryEscape(token)
}

// PasswordResetLink is the link carried by the reset mail.
func (c *Composer) PasswordResetLink(token string) string {
	return c.BaseURL + "/auth/reset-password?token=" + url.QueryEscape(token)
}

func (c *Composer) VerificationMail(to, token string) (notification.MailRequest, error) {
	body, err := render("verify_email.html", map[string]string{
		"Link": c.VerificationLink(token),
	})
	if err != nil {
		return notification.MailRequest{}, err
	}
	return notification.MailRequest{
		To:      []string{to},
		Subject: VerificationSubject,
		Body:    body,
		IsHtml:  true,
	}, nil
}

// PasswordResetMail states expiry in the body so the mail always matches the
// configured token lifetime.
func (c *Composer) PasswordResetMail(to, token string, expiry time.Duration) (notification.MailRequest, error) {
	body, err := render("password_reset.html", map[string]string{
		"Link":   c.PasswordResetLink(token),
		"Expiry": HumanizeDuration(expiry),
	})
	if err != nil {
		return notification.MailRequest{}, err
	}
	return notification.MailRequest{
		To:      []string{to},
		Subject: PasswordResetSubject,
		Body:    body,
		IsHtml:  true,
	}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Failed to execute mail template", "template", name, "err", err)
		return "", err
	}
	return buf.String(), nil
}

// HumanizeDuration formats d as "1 hour", "30 minutes" or "2 days".
func HumanizeDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
