package passwordreset

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrTokenNotFound    = errors.New("password reset token not found")
	ErrTokenExpired     = errors.New("password reset token has expired")
	ErrTokenAlreadyUsed = errors.New("password reset token has already been used")
	ErrInvalidToken     = errors.New("invalid password reset token")
)

// PasswordResetToken is a single-use credential. Its ID is the bearer value.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ExpireAt  time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

// Repository stores password reset tokens.
type Repository interface {
	Create(ctx context.Context, t PasswordResetToken) error
	FindByID(ctx context.Context, id uuid.UUID) (PasswordResetToken, error)
	// InvalidateOutstanding marks every unused token of the user as used at at,
	// so only the next token issued can reset the password.
	InvalidateOutstanding(ctx context.Context, userID uuid.UUID, at time.Time) error
	// MarkUsed records use of an unused token. A token already used returns
	// ErrTokenAlreadyUsed.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t PasswordResetToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, expire_at, created_at)
		VALUES ($1, $2, $3, $4)`,
		t.ID, t.UserID, t.ExpireAt, t.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (PasswordResetToken, error) {
	var t PasswordResetToken
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, expire_at, created_at, used_at
		FROM password_reset_tokens
		WHERE id = $1`, id,
	).Scan(&t.ID, &t.UserID, &t.ExpireAt, &t.CreatedAt, &t.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PasswordResetToken{}, ErrTokenNotFound
		}
		return PasswordResetToken{}, err
	}
	return t, nil
}

func (r *PostgresRepository) InvalidateOutstanding(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE user_id = $1 AND used_at IS NULL`,
		userID, at,
	)
	return err
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE password_reset_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenAlreadyUsed
	}
	return nil
}

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]PasswordResetToken
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tokens: make(map[uuid.UUID]PasswordResetToken)}
}

func (r *InMemoryRepository) Create(ctx context.Context, t PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.ID] = t
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok {
		return PasswordResetToken{}, ErrTokenNotFound
	}
	return t, nil
}

func (r *InMemoryRepository) InvalidateOutstanding(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.UserID == userID && t.UsedAt == nil {
			usedAt := at
			t.UsedAt = &usedAt
			r.tokens[id] = t
		}
	}
	return nil
}

func (r *InMemoryRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok {
		return ErrTokenNotFound
	}
	if t.UsedAt != nil {
		return ErrTokenAlreadyUsed
	}
	t.UsedAt = &at
	r.tokens[id] = t
	return nil
}
