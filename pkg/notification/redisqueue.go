package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultQueueName = "mail-queue"

// RedisMailQueue wraps a Redis list used as the outbound mail queue. Publish
// pushes on the left and Pop takes from the right, so mail is consumed in
// publish order.
type RedisMailQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisMailQueue(rdb *redis.Client, queueName string) (*RedisMailQueue, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &RedisMailQueue{rdb: rdb, queueName: queueName}, nil
}

func (q *RedisMailQueue) QueueName() string {
	return q.queueName
}

func (q *RedisMailQueue) Publish(ctx context.Context, req MailRequest) error {
	if len(req.To) == 0 {
		return ErrNoRecipients
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.queueName, data).Err(); err != nil {
		return fmt.Errorf("lpush mail request: %w", err)
	}
	slog.Debug("Mail request queued", "queue", q.queueName, "subject", req.Subject)
	return nil
}

// Pop blocks for up to timeout waiting for a message. ErrNoMail is returned
// when the timeout passes with an empty queue.
func (q *RedisMailQueue) Pop(ctx context.Context, timeout time.Duration) (MailRequest, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return MailRequest{}, ErrNoMail
		}
		return MailRequest{}, err
	}
	// result[0] is the key, result[1] the payload
	if len(result) < 2 {
		return MailRequest{}, ErrNoMail
	}

	var req MailRequest
	if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
		return MailRequest{}, fmt.Errorf("unmarshal mail request: %w", err)
	}
	return req, nil
}

// Depth returns the number of queued messages.
func (q *RedisMailQueue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}
