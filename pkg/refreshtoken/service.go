package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/user"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

const (
	DefaultExpiry = 12 * time.Hour
	tokenBytes    = 32
	createRetries = 3
)

type usernameSource interface {
	FindByUsername(ctx context.Context, username string) (user.User, error)
}

// Service issues and validates refresh tokens.
type Service struct {
	repo   Repository
	users  usernameSource
	expiry time.Duration
	now    func() time.Time
}

type Option func(*Service)

// WithExpiry sets how long a new refresh token stays valid
func WithExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.expiry = expiry
	}
}

// WithClock overrides the time source used for issuing and expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, users usernameSource, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		users:  users,
		expiry: DefaultExpiry,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new refresh token for username. An unknown username
// returns ErrUserNotFound.
func (s *Service) Create(ctx context.Context, username string) (RefreshToken, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return RefreshToken{}, ErrUserNotFound
		}
		return RefreshToken{}, err
	}

	now := s.now()
	for attempt := 0; attempt < createRetries; attempt++ {
		value, err := utils.GenerateToken(tokenBytes)
		if err != nil {
			return RefreshToken{}, err
		}
		t := RefreshToken{
			ID:        uuid.New(),
			UserID:    u.ID,
			Token:     value,
			ExpireAt:  now.Add(s.expiry),
			CreatedAt: now,
		}
		err = s.repo.Create(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrDuplicateToken) {
			return RefreshToken{}, err
		}
		slog.Warn("Refresh token collision, regenerating", "user_id", u.ID, "attempt", attempt+1)
	}
	return RefreshToken{}, fmt.Errorf("failed to create unique refresh token after %d attempts", createRetries)
}

// FindByUsernameAndToken returns the token only if it exists, belongs to
// username and has not expired. Anything else is ErrInvalidRefreshToken.
// A token is still valid at exactly its ExpireAt instant.
func (s *Service) FindByUsernameAndToken(ctx context.Context, username, token string) (RefreshToken, error) {
	t, err := s.repo.FindByUsernameAndToken(ctx, username, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return RefreshToken{}, ErrInvalidRefreshToken
		}
		return RefreshToken{}, err
	}
	if s.now().After(t.ExpireAt) {
		slog.Info("Refresh token expired", "token_id", t.ID, "expire_at", t.ExpireAt)
		return RefreshToken{}, ErrInvalidRefreshToken
	}
	return t, nil
}

// Revoke deletes a single refresh token. It returns ErrTokenNotFound if the
// token was already gone.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// RevokeAll deletes every refresh token of a user.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteByUserID(ctx, userID)
}
