package role

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/user"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

// userLookup is the part of user.UserRepository the service needs to make
// sure assignments target an existing user.
type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
}

// RoleService provides methods for role and permission management
type RoleService struct {
	repo  RoleRepository
	users userLookup
}

func NewRoleService(repo RoleRepository, users userLookup) *RoleService {
	return &RoleService{
		repo:  repo,
		users: users,
	}
}

// CreateRole adds a new role. Names are unique; a clash returns ErrDuplicateRole.
func (s *RoleService) CreateRole(ctx context.Context, name string) (Role, error) {
	if name == "" {
		return Role{}, ErrEmptyRoleName
	}
	role, err := s.repo.CreateRole(ctx, name)
	if err != nil {
		return Role{}, err
	}
	slog.Info("Role created", "role_id", role.ID, "name", name)
	return role, nil
}

// ListRoles returns one page of roles sorted by name.
func (s *RoleService) ListRoles(ctx context.Context, req utils.PageRequest) (utils.Page[Role], error) {
	roles, total, err := s.repo.ListRoles(ctx, req)
	if err != nil {
		return utils.Page[Role]{}, err
	}
	return utils.Page[Role]{Content: roles, Page: req.Page, Size: req.Size, TotalElements: total}, nil
}

// GetRole retrieves a role with its permissions
func (s *RoleService) GetRole(ctx context.Context, id uuid.UUID) (RoleWithPermissions, error) {
	role, err := s.repo.GetRoleByID(ctx, id)
	if err != nil {
		return RoleWithPermissions{}, err
	}
	perms, err := s.repo.FindPermissionsByRoleID(ctx, id)
	if err != nil {
		return RoleWithPermissions{}, err
	}
	return RoleWithPermissions{Role: role, Permissions: perms}, nil
}

func (s *RoleService) CreatePermission(ctx context.Context, name string) (Permission, error) {
	if name == "" {
		return Permission{}, ErrEmptyPermissionName
	}
	return s.repo.CreatePermission(ctx, name)
}

func (s *RoleService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// GrantPermission attaches the named permission to a role, creating the
// permission first if it does not exist.
func (s *RoleService) GrantPermission(ctx context.Context, roleID uuid.UUID, permissionName string) error {
	if permissionName == "" {
		return ErrEmptyPermissionName
	}
	if _, err := s.repo.GetRoleByID(ctx, roleID); err != nil {
		return err
	}

	perm, err := s.findOrCreatePermission(ctx, permissionName)
	if err != nil {
		return err
	}
	if err := s.repo.GrantPermission(ctx, roleID, perm.ID); err != nil {
		return err
	}
	slog.Info("Permission granted", "role_id", roleID, "permission", permissionName)
	return nil
}

// RevokePermission detaches the named permission from a role.
func (s *RoleService) RevokePermission(ctx context.Context, roleID uuid.UUID, permissionName string) error {
	perm, err := s.repo.GetPermissionByName(ctx, permissionName)
	if err != nil {
		return err
	}
	return s.repo.RevokePermission(ctx, roleID, perm.ID)
}

func (s *RoleService) findOrCreatePermission(ctx context.Context, name string) (Permission, error) {
	perm, err := s.repo.GetPermissionByName(ctx, name)
	if err == nil {
		return perm, nil
	}
	if !errors.Is(err, ErrPermissionNotFound) {
		return Permission{}, err
	}

	perm, err = s.repo.CreatePermission(ctx, name)
	if errors.Is(err, ErrDuplicatePermission) {
		// Created concurrently.
		return s.repo.GetPermissionByName(ctx, name)
	}
	return perm, err
}

// AssignRole gives a user a role. Assigning a role the user already holds is a no-op.
func (s *RoleService) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if _, err := s.repo.GetRoleByID(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.AssignUserRole(ctx, userID, roleID); err != nil {
		return err
	}
	slog.Info("Role assigned", "user_id", userID, "role_id", roleID)
	return nil
}

// AssignRoleByName is used during registration to give new users a default role.
func (s *RoleService) AssignRoleByName(ctx context.Context, userID uuid.UUID, roleName string) error {
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	return s.repo.AssignUserRole(ctx, userID, role.ID)
}

func (s *RoleService) RemoveRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return s.repo.RemoveUserRole(ctx, userID, roleID)
}

// RolesForUser returns a user's roles with their permissions.
func (s *RoleService) RolesForUser(ctx context.Context, userID uuid.UUID) ([]RoleWithPermissions, error) {
	return s.repo.FindRolesByUserID(ctx, userID)
}
