// Package passwordreset issues and redeems single-use password reset tokens.
package passwordreset

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTokenExpiry is the validity of a reset token. The reset mail states
// the same value.
const DefaultTokenExpiry = time.Hour

type Service struct {
	repo        Repository
	tokenExpiry time.Duration
	now         func() time.Time
}

type Option func(*Service)

// WithTokenExpiry sets the token expiration duration
func WithTokenExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.tokenExpiry = expiry
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		tokenExpiry: DefaultTokenExpiry,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenExpiry reports how long newly issued tokens stay valid.
func (s *Service) TokenExpiry() time.Duration {
	return s.tokenExpiry
}

// Issue invalidates the user's outstanding tokens and creates a new one.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID) (PasswordResetToken, error) {
	now := s.now()
	if err := s.repo.InvalidateOutstanding(ctx, userID, now); err != nil {
		slog.Error("Failed to invalidate outstanding reset tokens", "user_id", userID, "error", err)
		return PasswordResetToken{}, err
	}

	t := PasswordResetToken{
		ID:        uuid.New(),
		UserID:    userID,
		ExpireAt:  now.Add(s.tokenExpiry),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		slog.Error("Failed to create reset token", "user_id", userID, "error", err)
		return PasswordResetToken{}, err
	}
	slog.Info("Password reset token created", "user_id", userID, "expire_at", t.ExpireAt)
	return t, nil
}

// Redeem validates a token value without consuming it. Call MarkUsed once the
// password has been changed.
func (s *Service) Redeem(ctx context.Context, token string) (PasswordResetToken, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return PasswordResetToken{}, ErrInvalidToken
	}

	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return PasswordResetToken{}, err
	}
	if t.UsedAt != nil {
		return PasswordResetToken{}, ErrTokenAlreadyUsed
	}
	if s.now().After(t.ExpireAt) {
		slog.Warn("Token expired", "token_id", t.ID, "expire_at", t.ExpireAt)
		return PasswordResetToken{}, ErrTokenExpired
	}
	return t, nil
}

// MarkUsed consumes the token. A concurrent redemption that already consumed
// it returns ErrTokenAlreadyUsed.
func (s *Service) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkUsed(ctx, id, s.now())
}
