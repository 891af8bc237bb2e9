package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-useraccess/pkg/config"
	"github.com/tendant/simple-useraccess/pkg/notification"
)

// mailer drains the outbound mail queue and delivers each message over SMTP.
func main() {
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(cfg.MailMq.RedisOptions())
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to redis", "addr", cfg.MailMq.RedisAddr, "error", err)
		os.Exit(1)
	}

	queue, err := notification.NewRedisMailQueue(rdb, cfg.MailMq.QueueName)
	if err != nil {
		slog.Error("Failed to create mail queue", "error", err)
		os.Exit(1)
	}

	sender, err := notification.NewEmailNotifier(cfg.Email.ToSMTPConfig())
	if err != nil {
		slog.Error("Failed to create email sender", "host", cfg.Email.Host, "port", cfg.Email.Port, "error", err)
		os.Exit(1)
	}

	slog.Info("Mailer started", "queue", queue.QueueName(), "smtp_host", cfg.Email.Host)
	if err := notification.NewDispatcher(queue, sender).Run(ctx); err != nil {
		slog.Error("Mailer stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Mailer stopped")
}
