// Package role provides roles, permissions and their assignments for simple-useraccess.
//
// Roles and permissions are shared many-to-many: a role holds permissions through
// role_permission records and a user holds roles through user_role records. Both
// join tables are only mutated through RoleService.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-useraccess/pkg/role"
//
//	repo := role.NewPostgresRoleRepository(pool)
//	service := role.NewRoleService(repo, userRepo)
//
//	admin, err := service.CreateRole(ctx, "ADMIN")
//	err = service.GrantPermission(ctx, admin.ID, "WRITE")
//	err = service.AssignRole(ctx, userID, admin.ID)
//
// FindRolesByUserID returns each of a user's roles together with its
// permissions; the principal package turns that into "{role}_{permission}"
// authorities.
package role
