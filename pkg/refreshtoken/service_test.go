package refreshtoken

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-useraccess/pkg/pgtest"
	"github.com/tendant/simple-useraccess/pkg/user"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *fakeClock, user.User) {
	t.Helper()
	users := user.NewInMemoryUserRepository()
	u, err := users.Create(context.Background(), user.User{Username: "bob@example.com", Email: "bob@example.com"})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewService(NewInMemoryRepository(users), users, WithClock(clock.Now))
	return svc, clock, u
}

func TestCreate(t *testing.T) {
	svc, clock, u := newTestService(t)
	ctx := context.Background()

	rt, err := svc.Create(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, rt.UserID)
	assert.NotEmpty(t, rt.Token)
	assert.Equal(t, clock.now.Add(12*time.Hour), rt.ExpireAt)

	other, err := svc.Create(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, rt.Token, other.Token)

	_, err = svc.Create(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFindByUsernameAndToken(t *testing.T) {
	svc, clock, u := newTestService(t)
	ctx := context.Background()

	rt, err := svc.Create(ctx, "bob@example.com")
	require.NoError(t, err)

	found, err := svc.FindByUsernameAndToken(ctx, "bob@example.com", rt.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.UserID)

	_, err = svc.FindByUsernameAndToken(ctx, "alice@example.com", rt.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.FindByUsernameAndToken(ctx, "bob@example.com", "unknown")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	clock.now = rt.ExpireAt
	_, err = svc.FindByUsernameAndToken(ctx, "bob@example.com", rt.Token)
	assert.NoError(t, err, "token is valid at exactly its expiry instant")

	clock.now = rt.ExpireAt.Add(time.Second)
	_, err = svc.FindByUsernameAndToken(ctx, "bob@example.com", rt.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevoke(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "bob@example.com")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, first.ID))
	assert.ErrorIs(t, svc.Revoke(ctx, first.ID), ErrTokenNotFound, "only one revoke claims the token")
	_, err = svc.FindByUsernameAndToken(ctx, "bob@example.com", first.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = svc.FindByUsernameAndToken(ctx, "bob@example.com", second.Token)
	assert.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, u.ID))
	_, err = svc.FindByUsernameAndToken(ctx, "bob@example.com", second.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestPostgresRepository(t *testing.T) {
	pool := pgtest.NewPool(t)
	users := user.NewPostgresUserRepository(pool)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	u, err := users.Create(ctx, user.User{Username: "pg@example.com", Email: "pg@example.com", Provider: user.ProviderLocal})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	rt := RefreshToken{ID: uuid.New(), UserID: u.ID, Token: "opaque", ExpireAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, repo.Create(ctx, rt))

	dup := rt
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateToken)

	found, err := repo.FindByUsernameAndToken(ctx, "pg@example.com", "opaque")
	require.NoError(t, err)
	assert.Equal(t, rt.ID, found.ID)
	assert.True(t, rt.ExpireAt.Equal(found.ExpireAt))

	_, err = repo.FindByUsernameAndToken(ctx, "other@example.com", "opaque")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, repo.Delete(ctx, rt.ID))
	assert.ErrorIs(t, repo.Delete(ctx, rt.ID), ErrTokenNotFound)
	_, err = repo.FindByUsernameAndToken(ctx, "pg@example.com", "opaque")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
