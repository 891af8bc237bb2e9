package user

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

// UserService provides the administrative user operations.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// ListUsers returns one page of users.
func (s *UserService) ListUsers(ctx context.Context, req utils.PageRequest) (utils.Page[User], error) {
	users, total, err := s.repo.List(ctx, req)
	if err != nil {
		return utils.Page[User]{}, err
	}
	return utils.Page[User]{
		Content:       users,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
	}, nil
}

// GetUser returns the user with the given id or ErrUserNotFound.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// UnlockUser clears the locked flag.
func (s *UserService) UnlockUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.mutate(ctx, id, "unlock", func(u *User) { u.Locked = false })
}

// DisableUser clears the enabled flag. A disabled user cannot sign in with
// either grant, including refresh tokens issued before it was disabled.
func (s *UserService) DisableUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.mutate(ctx, id, "disable", func(u *User) { u.Enabled = false })
}

func (s *UserService) mutate(ctx context.Context, id uuid.UUID, action string, fn func(*User)) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	fn(&u)
	updated, err := s.repo.Update(ctx, u)
	if err != nil {
		slog.Error("Failed to update user", "user_id", id, "action", action, "error", err)
		return User{}, err
	}
	slog.Info("User updated", "user_id", id, "action", action)
	return updated, nil
}
