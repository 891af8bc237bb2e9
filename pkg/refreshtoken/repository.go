package refreshtoken

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTokenNotFound       = errors.New("refresh token not found")
	ErrDuplicateToken      = errors.New("refresh token already exists")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or expired")
	ErrUserNotFound        = errors.New("user not found")
)

// RefreshToken is an opaque long-lived credential bound to one user.
// Rows are never mutated; a token is unusable once now is after ExpireAt.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpireAt  time.Time
	CreatedAt time.Time
}

// Repository defines the storage operations for refresh tokens.
type Repository interface {
	// Create stores t. A token value collision returns ErrDuplicateToken.
	Create(ctx context.Context, t RefreshToken) error
	// FindByUsernameAndToken returns ErrTokenNotFound unless token exists and
	// belongs to the user with the given username. Expiry is not checked.
	FindByUsernameAndToken(ctx context.Context, username, token string) (RefreshToken, error)
	// Delete returns ErrTokenNotFound when no row was removed, so of two
	// concurrent deletes of the same token exactly one succeeds.
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
