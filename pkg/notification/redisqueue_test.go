package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*RedisMailQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q, err := NewRedisMailQueue(rdb, "mail-test")
	require.NoError(t, err)
	return q, mr
}

func TestRedisMailQueue_PublishAndPop(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first := MailRequest{To: []string{"a@example.com"}, Subject: "first", Body: "1"}
	second := MailRequest{To: []string{"b@example.com"}, Cc: []string{"c@example.com"}, Subject: "second", Body: "<p>2</p>", IsHtml: true}
	require.NoError(t, q.Publish(ctx, first))
	require.NoError(t, q.Publish(ctx, second))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestRedisMailQueue_WireFormat(t *testing.T) {
	q, mr := newTestQueue(t)

	req := MailRequest{To: []string{"a@example.com"}, Subject: "Complete Registration!", Body: "hi", IsHtml: true}
	require.NoError(t, q.Publish(context.Background(), req))

	items, err := mr.List("mail-test")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(items[0]), &raw))
	assert.Equal(t, []any{"a@example.com"}, raw["to"])
	assert.Equal(t, "Complete Registration!", raw["subject"])
	assert.Equal(t, true, raw["isHtml"])
	assert.NotContains(t, raw, "cc")
}

func TestRedisMailQueue_Errors(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	assert.ErrorIs(t, q.Publish(ctx, MailRequest{Subject: "nobody"}), ErrNoRecipients)

	_, err := q.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, ErrNoMail)

	mr.Lpush("mail-test", "{not json")
	_, err = q.Pop(ctx, time.Second)
	assert.Error(t, err)

	_, err = NewRedisMailQueue(nil, "x")
	assert.Error(t, err)
}
