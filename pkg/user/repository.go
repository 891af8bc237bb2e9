package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already exists")
)

// Provider identifies where an account's credentials live.
type Provider string

const (
	ProviderLocal  Provider = "LOCAL"
	ProviderGoogle Provider = "GOOGLE"
	ProviderGithub Provider = "GITHUB"
)

// User is a stored account. Username and Email are each unique.
// An account with Enabled=false cannot sign in.
type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	Locked         bool
	Enabled        bool
	Provider       Provider
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SortFields maps the sort names accepted by list endpoints to column names.
var SortFields = map[string]string{
	"username":  "username",
	"email":     "email",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// UserRepository defines the storage operations for users.
type UserRepository interface {
	// Create inserts u. A username or email collision returns ErrDuplicateUser.
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	// Update persists every mutable field of u and returns the stored row.
	Update(ctx context.Context, u User) (User, error)
	// Delete removes the user. A missing id returns ErrUserNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, req utils.PageRequest) ([]User, int64, error)
}
