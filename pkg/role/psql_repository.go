package role

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRoleRepository implements RoleRepository using PostgreSQL
type PostgresRoleRepository struct {
	db DBTX
}

// NewPostgresRoleRepository creates a new PostgreSQL role repository
func NewPostgresRoleRepository(db DBTX) *PostgresRoleRepository {
	return &PostgresRoleRepository{db: db}
}

func (r *PostgresRoleRepository) CreateRole(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.db.QueryRow(ctx,
		`INSERT INTO roles (id, name) VALUES ($1, $2) RETURNING id, name, created_at`,
		uuid.New(), name,
	).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return Role{}, ErrDuplicateRole
		}
		return Role{}, fmt.Errorf("failed to create role: %w", err)
	}
	return role, nil
}

func (r *PostgresRoleRepository) GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error) {
	return r.getRole(ctx, `SELECT id, name, created_at FROM roles WHERE id = $1`, id)
}

func (r *PostgresRoleRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return r.getRole(ctx, `SELECT id, name, created_at FROM roles WHERE name = $1`, name)
}

func (r *PostgresRoleRepository) getRole(ctx context.Context, query string, arg interface{}) (Role, error) {
	var role Role
	err := r.db.QueryRow(ctx, query, arg).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

func (r *PostgresRoleRepository) ListRoles(ctx context.Context, req utils.PageRequest) ([]Role, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM roles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count roles: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, name, created_at FROM roles ORDER BY name ASC LIMIT $1 OFFSET $2`,
		req.Size, req.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	return roles, total, rows.Err()
}

func (r *PostgresRoleRepository) CreatePermission(ctx context.Context, name string) (Permission, error) {
	var p Permission
	err := r.db.QueryRow(ctx,
		`INSERT INTO permissions (id, name) VALUES ($1, $2) RETURNING id, name, created_at`,
		uuid.New(), name,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return Permission{}, ErrDuplicatePermission
		}
		return Permission{}, fmt.Errorf("failed to create permission: %w", err)
	}
	return p, nil
}

func (r *PostgresRoleRepository) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	var p Permission
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM permissions WHERE name = $1`, name,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrPermissionNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

func (r *PostgresRoleRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.queryPermissions(ctx, `SELECT id, name, created_at FROM permissions ORDER BY name`)
}

func (r *PostgresRoleRepository) FindPermissionsByRoleID(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT p.id, p.name, p.created_at
		FROM permissions p
		JOIN role_permission rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
}

func (r *PostgresRoleRepository) queryPermissions(ctx context.Context, query string, args ...interface{}) ([]Permission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *PostgresRoleRepository) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO role_permission (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID,
	)
	return err
}

func (r *PostgresRoleRepository) RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM role_permission WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID,
	)
	return err
}

func (r *PostgresRoleRepository) AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_role (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID,
	)
	return err
}

func (r *PostgresRoleRepository) RemoveUserRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_role WHERE user_id = $1 AND role_id = $2`,
		userID, roleID,
	)
	return err
}

// FindRolesByUserID loads the user's roles and their permissions in one query.
// Roles without permissions are still returned.
func (r *PostgresRoleRepository) FindRolesByUserID(ctx context.Context, userID uuid.UUID) ([]RoleWithPermissions, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.name, r.created_at, p.id, p.name, p.created_at
		FROM user_role ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permission rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY r.name, p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find roles for user: %w", err)
	}
	defer rows.Close()

	result := []RoleWithPermissions{}
	for rows.Next() {
		var role Role
		var permID *uuid.UUID
		var permName *string
		var permCreatedAt pgtype.Timestamptz
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &permID, &permName, &permCreatedAt); err != nil {
			return nil, err
		}
		if n := len(result); n == 0 || result[n-1].ID != role.ID {
			result = append(result, RoleWithPermissions{Role: role, Permissions: []Permission{}})
		}
		if permID != nil && permName != nil {
			last := &result[len(result)-1]
			last.Permissions = append(last.Permissions, Permission{ID: *permID, Name: *permName, CreatedAt: permCreatedAt.Time})
		}
	}
	return result, rows.Err()
}
