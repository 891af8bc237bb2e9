package principal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-useraccess/pkg/role"
	"github.com/tendant/simple-useraccess/pkg/user"
)

func TestBuildAuthorities(t *testing.T) {
	u := user.User{Username: "admin@example.com", Enabled: true}

	t.Run("single role and permission", func(t *testing.T) {
		p := Build(u, []role.RoleWithPermissions{
			{Role: role.Role{Name: "ADMIN"}, Permissions: []role.Permission{{Name: "WRITE"}}},
		})
		assert.Equal(t, []string{"ADMIN_WRITE"}, p.Authorities)
		assert.Equal(t, []string{"ADMIN"}, p.Roles)
	})

	t.Run("sorted and de-duplicated", func(t *testing.T) {
		p := Build(u, []role.RoleWithPermissions{
			{Role: role.Role{Name: "USER"}, Permissions: []role.Permission{{Name: "READ"}}},
			{Role: role.Role{Name: "ADMIN"}, Permissions: []role.Permission{{Name: "WRITE"}, {Name: "READ"}, {Name: "WRITE"}}},
		})
		assert.Equal(t, []string{"ADMIN_READ", "ADMIN_WRITE", "USER_READ"}, p.Authorities)
		assert.Equal(t, []string{"ADMIN", "USER"}, p.Roles)
	})

	t.Run("role without permissions grants no authority", func(t *testing.T) {
		p := Build(u, []role.RoleWithPermissions{{Role: role.Role{Name: "GUEST"}}})
		assert.Empty(t, p.Authorities)
		assert.True(t, p.HasAnyRole("GUEST"))
	})
}

func TestCheckAuthenticatable(t *testing.T) {
	assert.NoError(t, Principal{Enabled: true}.CheckAuthenticatable())
	assert.ErrorIs(t, Principal{Enabled: false}.CheckAuthenticatable(), ErrAccountDisabled)
	assert.ErrorIs(t, Principal{Enabled: true, Locked: true}.CheckAuthenticatable(), ErrAccountLocked)
}

func TestBuilderReloadsFromStorage(t *testing.T) {
	ctx := context.Background()
	users := user.NewInMemoryUserRepository()
	roles := role.NewInMemoryRoleRepository()
	builder := NewBuilder(users, roles)

	u, err := users.Create(ctx, user.User{Username: "a@example.com", Email: "a@example.com", Enabled: true})
	require.NoError(t, err)

	p, err := builder.LoadByUsername(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Empty(t, p.Authorities)

	admin, err := roles.CreateRole(ctx, "ADMIN")
	require.NoError(t, err)
	write, err := roles.CreatePermission(ctx, "WRITE")
	require.NoError(t, err)
	require.NoError(t, roles.GrantPermission(ctx, admin.ID, write.ID))
	require.NoError(t, roles.AssignUserRole(ctx, u.ID, admin.ID))

	p, err = builder.LoadByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN_WRITE"}, p.Authorities)
	assert.True(t, p.HasAuthority("ADMIN_WRITE"))

	_, err = builder.LoadByUsername(ctx, "missing@example.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Username: "x"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "x", p.Username)
}
