package notification

import (
	"context"
	"errors"
)

var (
	ErrNoMail       = errors.New("no mail available")
	ErrNoRecipients = errors.New("mail has no recipients")
)

// MailRequest is the message placed on the mail queue. The JSON shape is the
// wire contract with the mail consumer.
type MailRequest struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	IsHtml  bool     `json:"isHtml"`
}

// MailPublisher hands a message to the delivery channel. Delivery itself is
// best effort.
type MailPublisher interface {
	Publish(ctx context.Context, req MailRequest) error
}

// MailSender delivers a message to its recipients.
type MailSender interface {
	Send(ctx context.Context, req MailRequest) error
}
