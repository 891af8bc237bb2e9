// Package principal builds the authorization context of an authenticated user:
// identity, account status, roles and "{role}_{permission}" authorities.
//
// A Principal is always derived from storage at the moment it is needed.
// Nothing here caches it, so role or status changes take effect on the next
// authentication.
package principal

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/role"
	"github.com/tendant/simple-useraccess/pkg/user"
)

var (
	ErrAccountDisabled = errors.New("account is disabled")
	ErrAccountLocked   = errors.New("account is locked")
)

// Principal is the authenticated view of a user.
type Principal struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Enabled      bool      `json:"enabled"`
	Locked       bool      `json:"locked"`
	Roles        []string  `json:"roles"`
	Authorities  []string  `json:"authorities"`
}

func (p Principal) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", p.ID.String()),
		slog.String("username", p.Username),
		slog.Any("roles", p.Roles),
	)
}

// Authority formats the authority string granted by holding permission
// through role.
func Authority(roleName, permissionName string) string {
	return roleName + "_" + permissionName
}

// Build derives a principal from a user and the roles it holds. Roles and
// Authorities are sorted and de-duplicated.
func Build(u user.User, roles []role.RoleWithPermissions) Principal {
	p := Principal{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Enabled:      u.Enabled,
		Locked:       u.Locked,
		Roles:        []string{},
		Authorities:  []string{},
	}
	for _, r := range roles {
		p.Roles = append(p.Roles, r.Name)
		for _, perm := range r.Permissions {
			p.Authorities = append(p.Authorities, Authority(r.Name, perm.Name))
		}
	}
	slices.Sort(p.Roles)
	p.Roles = slices.Compact(p.Roles)
	slices.Sort(p.Authorities)
	p.Authorities = slices.Compact(p.Authorities)
	return p
}

// CheckAuthenticatable rejects disabled and locked accounts.
func (p Principal) CheckAuthenticatable() error {
	if !p.Enabled {
		return ErrAccountDisabled
	}
	if p.Locked {
		return ErrAccountLocked
	}
	return nil
}

func (p Principal) HasAuthority(authority string) bool {
	return slices.Contains(p.Authorities, authority)
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// userSource and roleSource are the storage lookups a Builder needs.
type userSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	FindByUsername(ctx context.Context, username string) (user.User, error)
}

type roleSource interface {
	FindRolesByUserID(ctx context.Context, userID uuid.UUID) ([]role.RoleWithPermissions, error)
}

// Builder loads principals from storage.
type Builder struct {
	users userSource
	roles roleSource
}

func NewBuilder(users userSource, roles roleSource) *Builder {
	return &Builder{users: users, roles: roles}
}

// LoadByUsername returns user.ErrUserNotFound for an unknown username.
func (b *Builder) LoadByUsername(ctx context.Context, username string) (Principal, error) {
	u, err := b.users.FindByUsername(ctx, username)
	if err != nil {
		return Principal{}, err
	}
	return b.load(ctx, u)
}

// LoadByID returns user.ErrUserNotFound for an unknown id.
func (b *Builder) LoadByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	u, err := b.users.GetByID(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	return b.load(ctx, u)
}

func (b *Builder) load(ctx context.Context, u user.User) (Principal, error) {
	roles, err := b.roles.FindRolesByUserID(ctx, u.ID)
	if err != nil {
		return Principal{}, err
	}
	return Build(u, roles), nil
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "principal context value " + k.name
}

var principalKey = &contextKey{"Principal"}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal stored by the auth middleware, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
