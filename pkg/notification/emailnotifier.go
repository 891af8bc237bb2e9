package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

const smtpTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

// EmailNotifier is the MailSender used by the mail consumer. It delivers one
// queued MailRequest per SMTP session.
type EmailNotifier struct {
	config SMTPConfig
	client *mail.Client
}

// NewEmailNotifier configures, but does not dial, an SMTP client. LOGIN auth
// is used only when both username and password are set; TLS is either
// mandatory or off.
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(smtpTimeout),
	}
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}
	if config.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: config.Host}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client for %s:%d: %w", config.Host, config.Port, err)
	}
	slog.Info("SMTP sender configured", "host", config.Host, "port", config.Port, "tls", config.TLS, "auth", config.Username != "")
	return &EmailNotifier{config: config, client: client}, nil
}

func (e *EmailNotifier) Send(ctx context.Context, req MailRequest) error {
	msg, err := buildMessage(e.config.From, req)
	if err != nil {
		return err
	}
	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %q: %w", req.Subject, err)
	}
	slog.Info("Mail sent", "to", req.To, "subject", req.Subject)
	return nil
}

// buildMessage turns a queued request into a go-mail message with a single
// text/html or text/plain body.
func buildMessage(from string, req MailRequest) (*mail.Msg, error) {
	if len(req.To) == 0 {
		return nil, ErrNoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	recipients := []struct {
		header string
		set    func(...string) error
		addrs  []string
	}{
		{"to", msg.To, req.To},
		{"cc", msg.Cc, req.Cc},
		{"bcc", msg.Bcc, req.Bcc},
	}
	for _, r := range recipients {
		if len(r.addrs) == 0 {
			continue
		}
		if err := r.set(r.addrs...); err != nil {
			return nil, fmt.Errorf("invalid %s address: %w", r.header, err)
		}
	}
	msg.Subject(req.Subject)

	contentType := mail.TypeTextPlain
	if req.IsHtml {
		contentType = mail.TypeTextHTML
	}
	msg.SetBodyString(contentType, req.Body)
	return msg, nil
}
