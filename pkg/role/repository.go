package role

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

var (
	ErrEmptyRoleName       = errors.New("role name cannot be empty")
	ErrEmptyPermissionName = errors.New("permission name cannot be empty")
	ErrRoleNotFound        = errors.New("role not found")
	ErrPermissionNotFound  = errors.New("permission not found")
	ErrDuplicateRole       = errors.New("role already exists")
	ErrDuplicatePermission = errors.New("permission already exists")
)

// Role is a named group of permissions. Names are unique and case-sensitive.
type Role struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type Permission struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// RoleWithPermissions is a role together with the permissions it holds.
type RoleWithPermissions struct {
	Role
	Permissions []Permission
}

// RoleRepository defines the storage operations for roles, permissions and
// the role_permission and user_role join records.
type RoleRepository interface {
	CreateRole(ctx context.Context, name string) (Role, error)
	GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	// ListRoles returns one page of roles ordered by name.
	ListRoles(ctx context.Context, req utils.PageRequest) ([]Role, int64, error)

	CreatePermission(ctx context.Context, name string) (Permission, error)
	GetPermissionByName(ctx context.Context, name string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermissionsByRoleID(ctx context.Context, roleID uuid.UUID) ([]Permission, error)

	// GrantPermission and AssignUserRole are idempotent.
	GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) error
	RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID) error
	AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) error
	RemoveUserRole(ctx context.Context, userID, roleID uuid.UUID) error

	FindRolesByUserID(ctx context.Context, userID uuid.UUID) ([]RoleWithPermissions, error)
}
