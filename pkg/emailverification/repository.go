package emailverification

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
	ErrTokenNotFound = errors.New("verification token not found")
	ErrTokenExpired  = errors.New("verification token has expired")
	// ErrInvalidToken means the presented value is not a user id at all.
	ErrInvalidToken = errors.New("invalid verification token")
)

// VerificationToken represents an email verification token. ID equals the
// owning user's id.
type VerificationToken struct {
	ID        uuid.UUID
	ExpireAt  time.Time
	CreatedAt time.Time
}

// Repository stores verification tokens.
type Repository interface {
	// Save inserts the token or replaces the existing one for the same user.
	Save(ctx context.Context, t VerificationToken) error
	FindByID(ctx context.Context, id uuid.UUID) (VerificationToken, error)
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

func (r *PostgresRepository) Save(ctx context.Context, t VerificationToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO verification_tokens (id, expire_at, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET expire_at = EXCLUDED.expire_at, created_at = EXCLUDED.created_at`,
		t.ID, t.ExpireAt, t.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (VerificationToken, error) {
	var t VerificationToken
	err := r.db.QueryRow(ctx,
		`SELECT id, expire_at, created_at FROM verification_tokens WHERE id = $1`, id,
	).Scan(&t.ID, &t.ExpireAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VerificationToken{}, ErrTokenNotFound
		}
		return VerificationToken{}, err
	}
	return t, nil
}

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	mu     sync.RWMutex
	tokens map[uuid.UUID]VerificationToken
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tokens: make(map[uuid.UUID]VerificationToken)}
}

func (r *InMemoryRepository) Save(ctx context.Context, t VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.ID] = t
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (VerificationToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[id]
	if !ok {
		return VerificationToken{}, ErrTokenNotFound
	}
	return t, nil
}
