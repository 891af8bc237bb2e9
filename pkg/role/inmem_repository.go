package role

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

type rolePermissionKey struct {
	roleID       uuid.UUID
	permissionID uuid.UUID
}

type userRoleKey struct {
	userID uuid.UUID
	roleID uuid.UUID
}

// InMemoryRoleRepository implements RoleRepository using in-memory storage
type InMemoryRoleRepository struct {
	mu              sync.RWMutex
	roles           map[uuid.UUID]Role
	permissions     map[uuid.UUID]Permission
	rolePermissions map[rolePermissionKey]struct{}
	userRoles       map[userRoleKey]struct{}
}

// NewInMemoryRoleRepository creates a new in-memory role repository
func NewInMemoryRoleRepository() *InMemoryRoleRepository {
	return &InMemoryRoleRepository{
		roles:           make(map[uuid.UUID]Role),
		permissions:     make(map[uuid.UUID]Permission),
		rolePermissions: make(map[rolePermissionKey]struct{}),
		userRoles:       make(map[userRoleKey]struct{}),
	}
}

func (r *InMemoryRoleRepository) CreateRole(ctx context.Context, name string) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.roles {
		if existing.Name == name {
			return Role{}, ErrDuplicateRole
		}
	}
	role := Role{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	r.roles[role.ID] = role
	return role, nil
}

func (r *InMemoryRoleRepository) GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (r *InMemoryRoleRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (r *InMemoryRoleRepository) ListRoles(ctx context.Context, req utils.PageRequest) ([]Role, int64, error) {
	r.mu.RLock()
	roles := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, role)
	}
	r.mu.RUnlock()

	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })

	total := int64(len(roles))
	start := req.Offset()
	if start >= len(roles) {
		return []Role{}, total, nil
	}
	end := min(start+req.Size, len(roles))
	return roles[start:end], total, nil
}

func (r *InMemoryRoleRepository) CreatePermission(ctx context.Context, name string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.permissions {
		if existing.Name == name {
			return Permission{}, ErrDuplicatePermission
		}
	}
	p := Permission{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	r.permissions[p.ID] = p
	return p, nil
}

func (r *InMemoryRoleRepository) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.permissions {
		if p.Name == name {
			return p, nil
		}
	}
	return Permission{}, ErrPermissionNotFound
}

func (r *InMemoryRoleRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perms := make([]Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		perms = append(perms, p)
	}
	sortPermissions(perms)
	return perms, nil
}

func (r *InMemoryRoleRepository) FindPermissionsByRoleID(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.permissionsOf(roleID), nil
}

func (r *InMemoryRoleRepository) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	if _, ok := r.permissions[permissionID]; !ok {
		return ErrPermissionNotFound
	}
	r.rolePermissions[rolePermissionKey{roleID, permissionID}] = struct{}{}
	return nil
}

func (r *InMemoryRoleRepository) RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rolePermissions, rolePermissionKey{roleID, permissionID})
	return nil
}

func (r *InMemoryRoleRepository) AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	r.userRoles[userRoleKey{userID, roleID}] = struct{}{}
	return nil
}

func (r *InMemoryRoleRepository) RemoveUserRole(ctx context.Context, userID, roleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.userRoles, userRoleKey{userID, roleID})
	return nil
}

func (r *InMemoryRoleRepository) FindRolesByUserID(ctx context.Context, userID uuid.UUID) ([]RoleWithPermissions, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []RoleWithPermissions{}
	for key := range r.userRoles {
		if key.userID != userID {
			continue
		}
		role, ok := r.roles[key.roleID]
		if !ok {
			continue
		}
		result = append(result, RoleWithPermissions{Role: role, Permissions: r.permissionsOf(role.ID)})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// permissionsOf must be called with r.mu held.
func (r *InMemoryRoleRepository) permissionsOf(roleID uuid.UUID) []Permission {
	perms := []Permission{}
	for key := range r.rolePermissions {
		if key.roleID != roleID {
			continue
		}
		if p, ok := r.permissions[key.permissionID]; ok {
			perms = append(perms, p)
		}
	}
	sortPermissions(perms)
	return perms
}

func sortPermissions(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
}
