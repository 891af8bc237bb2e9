package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type mailSource interface {
	Pop(ctx context.Context, timeout time.Duration) (MailRequest, error)
}

// Dispatcher moves mail from the queue to a sender. Each message is tried
// once; failed deliveries are logged and dropped.
type Dispatcher struct {
	queue        mailSource
	sender       MailSender
	popTimeout   time.Duration
	errorBackoff time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithPopTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.popTimeout = d
	}
}

// WithErrorBackoff sets the pause after a queue read error.
func WithErrorBackoff(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.errorBackoff = d
	}
}

func NewDispatcher(queue mailSource, sender MailSender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:        queue,
		sender:       sender,
		popTimeout:   5 * time.Second,
		errorBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("Mail dispatcher started")
	for {
		if ctx.Err() != nil {
			slog.Info("Mail dispatcher stopped")
			return nil
		}

		req, err := d.queue.Pop(ctx, d.popTimeout)
		if err != nil {
			if errors.Is(err, ErrNoMail) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			slog.Error("Failed to read mail queue", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(d.errorBackoff):
			}
			continue
		}

		if err := d.sender.Send(ctx, req); err != nil {
			slog.Error("Failed to deliver mail", "to", req.To, "subject", req.Subject, "error", err)
			continue
		}
	}
}
