package role

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-useraccess/pkg/pgtest"
	"github.com/tendant/simple-useraccess/pkg/user"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

func newTestService(t *testing.T) (*RoleService, user.User) {
	t.Helper()
	users := user.NewInMemoryUserRepository()
	u, err := users.Create(context.Background(), user.User{Username: "admin@example.com", Email: "admin@example.com"})
	require.NoError(t, err)
	return NewRoleService(NewInMemoryRoleRepository(), users), u
}

func TestCreateRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyRoleName)

	created, err := svc.CreateRole(ctx, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", created.Name)

	_, err = svc.CreateRole(ctx, "ADMIN")
	assert.ErrorIs(t, err, ErrDuplicateRole)

	// Names are case-sensitive.
	_, err = svc.CreateRole(ctx, "admin")
	assert.NoError(t, err)
}

func TestListRolesSortedByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"USER", "ADMIN", "EDITOR"} {
		_, err := svc.CreateRole(ctx, name)
		require.NoError(t, err)
	}

	page, err := svc.ListRoles(ctx, utils.PageRequest{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalElements)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "ADMIN", page.Content[0].Name)
	assert.Equal(t, "EDITOR", page.Content[1].Name)
}

func TestGrantPermissionCreatesMissingPermission(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.CreateRole(ctx, "ADMIN")
	require.NoError(t, err)

	require.NoError(t, svc.GrantPermission(ctx, admin.ID, "WRITE"))
	require.NoError(t, svc.GrantPermission(ctx, admin.ID, "WRITE"))
	require.NoError(t, svc.GrantPermission(ctx, admin.ID, "READ"))

	got, err := svc.GetRole(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, got.Permissions, 2)
	assert.Equal(t, "READ", got.Permissions[0].Name)
	assert.Equal(t, "WRITE", got.Permissions[1].Name)

	perms, err := svc.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 2)

	err = svc.GrantPermission(ctx, uuid.New(), "WRITE")
	assert.ErrorIs(t, err, ErrRoleNotFound)

	require.NoError(t, svc.RevokePermission(ctx, admin.ID, "READ"))
	got, err = svc.GetRole(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, got.Permissions, 1)
}

func TestAssignRole(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	admin, err := svc.CreateRole(ctx, "ADMIN")
	require.NoError(t, err)
	require.NoError(t, svc.GrantPermission(ctx, admin.ID, "WRITE"))

	require.NoError(t, svc.AssignRole(ctx, u.ID, admin.ID))
	require.NoError(t, svc.AssignRole(ctx, u.ID, admin.ID))

	roles, err := svc.RolesForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "ADMIN", roles[0].Name)
	require.Len(t, roles[0].Permissions, 1)
	assert.Equal(t, "WRITE", roles[0].Permissions[0].Name)

	err = svc.AssignRole(ctx, uuid.New(), admin.ID)
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	err = svc.AssignRole(ctx, u.ID, uuid.New())
	assert.ErrorIs(t, err, ErrRoleNotFound)

	require.NoError(t, svc.RemoveRole(ctx, u.ID, admin.ID))
	roles, err = svc.RolesForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestAssignRoleByName(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	err := svc.AssignRoleByName(ctx, u.ID, "USER")
	assert.ErrorIs(t, err, ErrRoleNotFound)

	_, err = svc.CreateRole(ctx, "USER")
	require.NoError(t, err)
	require.NoError(t, svc.AssignRoleByName(ctx, u.ID, "USER"))

	roles, err := svc.RolesForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestPostgresRoleRepository(t *testing.T) {
	pool := pgtest.NewPool(t)
	users := user.NewPostgresUserRepository(pool)
	repo := NewPostgresRoleRepository(pool)
	svc := NewRoleService(repo, users)
	ctx := context.Background()

	u, err := users.Create(ctx, user.User{Username: "pg@example.com", Email: "pg@example.com", Provider: user.ProviderLocal})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateRole(ctx, fmt.Sprintf("ROLE_%d", 2-i))
		require.NoError(t, err)
	}
	_, err = svc.CreateRole(ctx, "ROLE_0")
	assert.ErrorIs(t, err, ErrDuplicateRole)

	page, err := svc.ListRoles(ctx, utils.PageRequest{Page: 0, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Content, 3)
	assert.Equal(t, "ROLE_0", page.Content[0].Name)

	admin, err := svc.CreateRole(ctx, "ADMIN")
	require.NoError(t, err)
	empty, err := svc.CreateRole(ctx, "EMPTY")
	require.NoError(t, err)

	require.NoError(t, svc.GrantPermission(ctx, admin.ID, "WRITE"))
	require.NoError(t, svc.GrantPermission(ctx, admin.ID, "READ"))
	require.NoError(t, svc.AssignRole(ctx, u.ID, admin.ID))
	require.NoError(t, svc.AssignRole(ctx, u.ID, empty.ID))

	roles, err := svc.RolesForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "ADMIN", roles[0].Name)
	assert.Len(t, roles[0].Permissions, 2)
	assert.Equal(t, "EMPTY", roles[1].Name)
	assert.Empty(t, roles[1].Permissions)
}
