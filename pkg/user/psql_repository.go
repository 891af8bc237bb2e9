package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const userColumns = `id, username, email, password_hash, email_confirmed, locked, enabled, provider, created_at, updated_at`

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db DBTX
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var provider string
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.EmailConfirmed,
		&u.Locked,
		&u.Enabled,
		&provider,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	u.Provider = Provider(provider)
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, username, email, password_hash, email_confirmed, locked, enabled, provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.EmailConfirmed, u.Locked, u.Enabled, string(u.Provider),
	))
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return User{}, ErrDuplicateUser
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *PostgresUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&exists)
	return exists, err
}

func (r *PostgresUserRepository) Update(ctx context.Context, u User) (User, error) {
	query := `
		UPDATE users
		SET username = $2, email = $3, password_hash = $4, email_confirmed = $5,
		    locked = $6, enabled = $7, provider = $8, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	updated, err := scanUser(r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.EmailConfirmed, u.Locked, u.Enabled, string(u.Provider),
	))
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return User{}, ErrDuplicateUser
		}
		return User{}, err
	}
	return updated, nil
}

// Delete removes the user. Role assignments and outstanding tokens go with it
// through ON DELETE CASCADE.
func (r *PostgresUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns one page of users. Sort columns must already be whitelisted
// through utils.ParsePageRequest with SortFields.
func (r *PostgresUserRepository) List(ctx context.Context, req utils.PageRequest) ([]User, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY ` + orderBy(req.Sort) + ` LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, req.Size, req.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func orderBy(sorts []utils.SortOrder) string {
	terms := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		if !knownColumn(s.Field) {
			continue
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		terms = append(terms, s.Field+" "+dir)
	}
	terms = append(terms, "id ASC")
	return strings.Join(terms, ", ")
}

func knownColumn(column string) bool {
	for _, c := range SortFields {
		if c == column {
			return true
		}
	}
	return false
}
