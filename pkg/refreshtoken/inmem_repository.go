package refreshtoken

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/user"
)

// userSource resolves token owners for username-scoped lookups.
type userSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
}

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	mu     sync.RWMutex
	tokens map[string]RefreshToken
	users  userSource
}

// NewInMemoryRepository creates a new in-memory refresh token repository
func NewInMemoryRepository(users userSource) *InMemoryRepository {
	return &InMemoryRepository{
		tokens: make(map[string]RefreshToken),
		users:  users,
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, t RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[t.Token]; ok {
		return ErrDuplicateToken
	}
	r.tokens[t.Token] = t
	return nil
}

func (r *InMemoryRepository) FindByUsernameAndToken(ctx context.Context, username, token string) (RefreshToken, error) {
	r.mu.RLock()
	t, ok := r.tokens[token]
	r.mu.RUnlock()
	if !ok {
		return RefreshToken{}, ErrTokenNotFound
	}

	owner, err := r.users.GetByID(ctx, t.UserID)
	if err != nil || owner.Username != username {
		return RefreshToken{}, ErrTokenNotFound
	}
	return t, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, t := range r.tokens {
		if t.ID == id {
			delete(r.tokens, key)
			return nil
		}
	}
	return ErrTokenNotFound
}

func (r *InMemoryRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, key)
		}
	}
	return nil
}
