package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

// InMemoryUserRepository implements UserRepository using in-memory storage
type InMemoryUserRepository struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]User
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
}

// NewInMemoryUserRepository creates a new in-memory user repository
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:      make(map[uuid.UUID]User),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[u.Username]; ok {
		return User{}, ErrDuplicateUser
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return User{}, ErrDuplicateUser
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	r.users[u.ID] = u
	r.byUsername[u.Username] = u.ID
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *InMemoryUserRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return r.users[id], nil
}

func (r *InMemoryUserRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return r.users[id], nil
}

func (r *InMemoryUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, byName := r.byUsername[username]
	_, byMail := r.byEmail[email]
	return byName || byMail, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if id, ok := r.byUsername[u.Username]; ok && id != u.ID {
		return User{}, ErrDuplicateUser
	}
	if id, ok := r.byEmail[u.Email]; ok && id != u.ID {
		return User{}, ErrDuplicateUser
	}

	delete(r.byUsername, existing.Username)
	delete(r.byEmail, existing.Email)

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = u
	r.byUsername[u.Username] = u.ID
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *InMemoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.byUsername, existing.Username)
	delete(r.byEmail, existing.Email)
	delete(r.users, id)
	return nil
}

func (r *InMemoryUserRepository) List(ctx context.Context, req utils.PageRequest) ([]User, int64, error) {
	r.mu.RLock()
	all := make([]User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		for _, o := range req.Sort {
			c := compareUsers(all[i], all[j], o.Field)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	total := int64(len(all))
	start := req.Offset()
	if start >= len(all) {
		return []User{}, total, nil
	}
	end := start + req.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func compareUsers(a, b User, column string) int {
	switch column {
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}
