package emailverification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const DefaultTokenExpiry = 12 * time.Hour

// EmailVerificationService handles email verification tokens
type EmailVerificationService struct {
	repo        Repository
	tokenExpiry time.Duration
	now         func() time.Time
}

// EmailVerificationServiceOption defines configuration options
type EmailVerificationServiceOption func(*EmailVerificationService)

// WithTokenExpiry sets the token expiration duration
func WithTokenExpiry(expiry time.Duration) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.tokenExpiry = expiry
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.now = now
	}
}

// NewEmailVerificationService creates a new email verification service
func NewEmailVerificationService(repo Repository, opts ...EmailVerificationServiceOption) *EmailVerificationService {
	service := &EmailVerificationService{
		repo:        repo,
		tokenExpiry: DefaultTokenExpiry,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Issue creates the verification token for userID.
func (s *EmailVerificationService) Issue(ctx context.Context, userID uuid.UUID) (VerificationToken, error) {
	now := s.now()
	t := VerificationToken{ID: userID, ExpireAt: now.Add(s.tokenExpiry), CreatedAt: now}
	if err := s.repo.Save(ctx, t); err != nil {
		slog.Error("Failed to create verification token", "user_id", userID, "error", err)
		return VerificationToken{}, err
	}
	slog.Info("Verification token created", "user_id", userID, "expire_at", t.ExpireAt)
	return t, nil
}

// Redeem validates a token value and returns the token. The caller enables
// the user identified by the token's ID.
func (s *EmailVerificationService) Redeem(ctx context.Context, token string) (VerificationToken, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return VerificationToken{}, ErrInvalidToken
	}

	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return VerificationToken{}, err
	}

	if s.now().After(t.ExpireAt) {
		slog.Warn("Token expired", "token_id", t.ID, "expire_at", t.ExpireAt)
		return VerificationToken{}, ErrTokenExpired
	}
	return t, nil
}
