package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-useraccess/pkg/emailverification"
	apperrors "github.com/tendant/simple-useraccess/pkg/errors"
	"github.com/tendant/simple-useraccess/pkg/login"
	"github.com/tendant/simple-useraccess/pkg/notification"
	"github.com/tendant/simple-useraccess/pkg/passwordreset"
	"github.com/tendant/simple-useraccess/pkg/refreshtoken"
	"github.com/tendant/simple-useraccess/pkg/role"
	"github.com/tendant/simple-useraccess/pkg/tokengenerator"
	"github.com/tendant/simple-useraccess/pkg/user"
	"github.com/tendant/simple-useraccess/pkg/utils"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	svc       *AuthService
	users     *user.InMemoryUserRepository
	roles     *role.InMemoryRoleRepository
	resets    *passwordreset.InMemoryRepository
	issuer    *tokengenerator.JwtTokenIssuer
	publisher *notification.MockPublisher
	now       time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		users:     user.NewInMemoryUserRepository(),
		roles:     role.NewInMemoryRoleRepository(),
		resets:    passwordreset.NewInMemoryRepository(),
		publisher: &notification.MockPublisher{},
		now:       time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	f.issuer = tokengenerator.NewJwtTokenIssuer("test-secret", "useraccess", "useraccess", 15*time.Minute,
		tokengenerator.WithClock(f.clock))

	base := []Option{
		WithUserRepository(f.users),
		WithRoleRepository(f.roles),
		WithPasswordHasher(login.NewBcryptHasherWithCost(bcrypt.MinCost)),
		WithTokenIssuer(f.issuer),
		WithRefreshTokenService(refreshtoken.NewService(refreshtoken.NewInMemoryRepository(f.users), f.users,
			refreshtoken.WithClock(f.clock))),
		WithVerificationService(emailverification.NewEmailVerificationService(emailverification.NewInMemoryRepository(),
			emailverification.WithClock(f.clock))),
		WithPasswordResetService(passwordreset.NewService(f.resets, passwordreset.WithClock(f.clock))),
		WithMailPublisher(f.publisher),
		WithBaseURL("http://localhost:8080"),
	}
	svc, err := NewAuthService(append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) register(t *testing.T, email, password string) user.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterRequest{Email: email, Password: password, ConfirmedPassword: password})
	require.NoError(t, err)
	return u
}

func (f *fixture) registerVerified(t *testing.T, email, password string) user.User {
	t.Helper()
	u := f.register(t, email, password)
	require.NoError(t, f.svc.VerifyEmail(context.Background(), u.ID.String()))
	return u
}

func signIn(f *fixture, username, secret, grant string) (TokenPair, error) {
	return f.svc.SignIn(context.Background(), SignInRequest{Username: username, PasswordOrRefreshToken: secret, GrantType: grant})
}

// tokenFromLastMail extracts the token query value from the last published mail.
func (f *fixture) tokenFromLastMail(t *testing.T) string {
	t.Helper()
	sent := f.publisher.Sent()
	require.NotEmpty(t, sent)
	body := sent[len(sent)-1].Body
	i := strings.Index(body, "token=")
	require.GreaterOrEqual(t, i, 0)
	rest := body[i+len("token="):]
	end := strings.IndexAny(rest, "\"< \n")
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}

func pageAll() utils.PageRequest {
	return utils.PageRequest{Page: 0, Size: utils.MaxPageSize}
}

func TestNewAuthServiceRequiresDependencies(t *testing.T) {
	_, err := NewAuthService()
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "new@example.com", "secret1")
	assert.Equal(t, "new@example.com", u.Username)
	assert.False(t, u.Enabled)
	assert.False(t, u.EmailConfirmed)
	assert.False(t, u.Locked)
	assert.Equal(t, user.ProviderLocal, u.Provider)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	sent := f.publisher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"new@example.com"}, sent[0].To)
	assert.Equal(t, "Complete Registration!", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "http://localhost:8080/auth/verify-email?token="+u.ID.String())

	t.Run("duplicate email conflicts without a second row", func(t *testing.T) {
		_, err := f.svc.Register(ctx, RegisterRequest{Email: "new@example.com", Password: "other", ConfirmedPassword: "other"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))

		_, total, err := f.users.List(ctx, pageAll())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("validation", func(t *testing.T) {
		cases := []RegisterRequest{
			{Email: "", Password: "a", ConfirmedPassword: "a"},
			{Email: "not-an-email", Password: "a", ConfirmedPassword: "a"},
			{Email: "x@example.com", Password: "", ConfirmedPassword: ""},
			{Email: "x@example.com", Password: "a", ConfirmedPassword: "b"},
		}
		for _, req := range cases {
			_, err := f.svc.Register(ctx, req)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed), "request %+v", req)
		}
	})

	t.Run("mail failure is swallowed", func(t *testing.T) {
		f.publisher.Err = errors.New("queue down")
		defer func() { f.publisher.Err = nil }()
		_, err := f.svc.Register(ctx, RegisterRequest{Email: "quiet@example.com", Password: "p", ConfirmedPassword: "p"})
		assert.NoError(t, err)
	})
}

// failingVerifications rejects every Save.
type failingVerifications struct {
	emailverification.Repository
}

func (failingVerifications) Save(context.Context, emailverification.VerificationToken) error {
	return errors.New("verification store down")
}

func TestRegisterRemovesUserWhenTokenCannotBeIssued(t *testing.T) {
	broken := emailverification.NewEmailVerificationService(failingVerifications{emailverification.NewInMemoryRepository()})
	f := newFixture(t, WithVerificationService(broken))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterRequest{Email: "orphan@example.com", Password: "p", ConfirmedPassword: "p"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInternal))
	assert.Empty(t, f.publisher.Sent())

	_, err = f.users.FindByEmail(ctx, "orphan@example.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	retry := newFixture(t, WithUserRepository(f.users))
	retry.register(t, "orphan@example.com", "p")
}

func TestRegisterAssignsDefaultRole(t *testing.T) {
	f := newFixture(t, WithDefaultRole("USER"))
	ctx := context.Background()

	// an unknown default role is skipped
	f.register(t, "early@example.com", "p")

	userRole, err := f.roles.CreateRole(ctx, "USER")
	require.NoError(t, err)
	u := f.register(t, "late@example.com", "p")

	roles, err := f.roles.FindRolesByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, userRole.ID, roles[0].ID)
}

func TestRegisterPasswordComplexity(t *testing.T) {
	f := newFixture(t, WithPasswordComplexity(PasswordComplexity{RequiredDigit: true, RequiredLength: 8}))
	_, err := f.svc.Register(context.Background(), RegisterRequest{Email: "c@example.com", Password: "short", ConfirmedPassword: "short"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	f.register(t, "c@example.com", "longer123")
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "v@example.com", "p")

	require.NoError(t, f.svc.VerifyEmail(ctx, f.tokenFromLastMail(t)))
	got, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.True(t, got.EmailConfirmed)

	assert.NoError(t, f.svc.VerifyEmail(ctx, u.ID.String()), "second redemption is harmless")

	err = f.svc.VerifyEmail(ctx, "garbage")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	err = f.svc.VerifyEmail(ctx, uuid.NewString())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "late@example.com", "p")

	f.now = f.now.Add(12 * time.Hour)
	require.NoError(t, f.svc.VerifyEmail(ctx, u.ID.String()), "valid at exactly the expiry instant")

	f2 := newFixture(t)
	u2 := f2.register(t, "later@example.com", "p")
	f2.now = f2.now.Add(12*time.Hour + time.Second)
	err := f2.svc.VerifyEmail(ctx, u2.ID.String())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenExpired))

	got, err := f2.users.GetByID(ctx, u2.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestSignInWithPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "s@example.com", "right")

	_, err := signIn(f, "s@example.com", "right", GrantTypePassword)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed), "disabled account is rejected")

	require.NoError(t, f.svc.VerifyEmail(ctx, u.ID.String()))

	_, wrongErr := signIn(f, "s@example.com", "wrong", GrantTypePassword)
	assert.True(t, apperrors.IsCode(wrongErr, apperrors.ErrCodeAuthFailed))

	_, unknownErr := signIn(f, "nobody@example.com", "right", GrantTypePassword)
	assert.True(t, apperrors.IsCode(unknownErr, apperrors.ErrCodeAuthFailed))
	assert.Equal(t, wrongErr.Error(), unknownErr.Error(), "failures are indistinguishable")

	pair, err := signIn(f, "s@example.com", "right", GrantTypePassword)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	p, err := f.issuer.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)

	rt, err := f.svc.refresh.FindByUsernameAndToken(ctx, "s@example.com", pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, rt.UserID)
}

func TestSignInLockedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "l@example.com", "p")

	u, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	u.Locked = true
	_, err = f.users.Update(ctx, u)
	require.NoError(t, err)

	_, err = signIn(f, "l@example.com", "p", GrantTypePassword)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed))
}

func TestSignInWithRefreshToken(t *testing.T) {
	f := newFixture(t)
	u := f.registerVerified(t, "r@example.com", "p")

	pair, err := signIn(f, "r@example.com", "p", GrantTypePassword)
	require.NoError(t, err)

	next, err := signIn(f, "r@example.com", pair.RefreshToken, GrantTypeRefreshToken)
	require.NoError(t, err)
	p, err := f.issuer.Parse(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = signIn(f, "r@example.com", pair.RefreshToken, GrantTypeRefreshToken)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed), "rotated token is spent")

	_, err = signIn(f, "r@example.com", "unknown-token", GrantTypeRefreshToken)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed))

	_, err = signIn(f, "someone-else@example.com", next.RefreshToken, GrantTypeRefreshToken)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed), "token is bound to its user")

	f.now = f.now.Add(12*time.Hour + time.Second)
	_, err = signIn(f, "r@example.com", next.RefreshToken, GrantTypeRefreshToken)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed), "expired token")
}

func TestSignInWithRefreshTokenConcurrentExchange(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "race@example.com", "p")
	pair, err := signIn(f, "race@example.com", "p", GrantTypePassword)
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := signIn(f, "race@example.com", pair.RefreshToken, GrantTypeRefreshToken)
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed), "unexpected error %v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), succeeded.Load(), "a refresh token is exchanged once")
}

func TestSignInWithoutRotation(t *testing.T) {
	f := newFixture(t, WithRefreshTokenRotation(false))
	f.registerVerified(t, "n@example.com", "p")

	pair, err := signIn(f, "n@example.com", "p", GrantTypePassword)
	require.NoError(t, err)

	_, err = signIn(f, "n@example.com", pair.RefreshToken, GrantTypeRefreshToken)
	require.NoError(t, err)
	_, err = signIn(f, "n@example.com", pair.RefreshToken, GrantTypeRefreshToken)
	assert.NoError(t, err)
}

func TestSignInGrantTypes(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "g@example.com", "p")

	_, err := signIn(f, "g@example.com", "p", "CLIENT_CREDENTIALS")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))

	_, err = signIn(f, "", "p", GrantTypePassword)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
}

func TestSignInCarriesAuthorities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "admin@example.com", "p")

	admin, err := f.roles.CreateRole(ctx, "ADMIN")
	require.NoError(t, err)
	write, err := f.roles.CreatePermission(ctx, "WRITE")
	require.NoError(t, err)
	require.NoError(t, f.roles.GrantPermission(ctx, admin.ID, write.ID))
	require.NoError(t, f.roles.AssignUserRole(ctx, u.ID, admin.ID))

	pair, err := signIn(f, "admin@example.com", "p", GrantTypePassword)
	require.NoError(t, err)
	p, err := f.issuer.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN_WRITE"}, p.Authorities)
}

func TestForgotPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "f@example.com", "p")
	before := len(f.publisher.Sent())

	errKnown := f.svc.ForgotPassword(ctx, "f@example.com")
	errUnknown := f.svc.ForgotPassword(ctx, "ghost@example.com")
	assert.NoError(t, errKnown)
	assert.NoError(t, errUnknown)

	sent := f.publisher.Sent()
	require.Len(t, sent, before+1)
	assert.Equal(t, "Password Reset Request!", sent[len(sent)-1].Subject)
	assert.Contains(t, sent[len(sent)-1].Body, "1 hour")

	f.publisher.Err = errors.New("queue down")
	assert.NoError(t, f.svc.ForgotPassword(ctx, "f@example.com"))
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "reset@example.com", "old")

	require.NoError(t, f.svc.ForgotPassword(ctx, "reset@example.com"))
	token := f.tokenFromLastMail(t)

	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "new", ConfirmedPassword: "new"})
	require.NoError(t, err)

	_, err = signIn(f, "reset@example.com", "old", GrantTypePassword)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed))
	_, err = signIn(f, "reset@example.com", "new", GrantTypePassword)
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "again", ConfirmedPassword: "again"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid), "token is single use")
}

func TestResetPasswordFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "rf@example.com", "old")

	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: "anything", NewPassword: "a", ConfirmedPassword: "b"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: "not-a-uuid", NewPassword: "a", ConfirmedPassword: "a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid))

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: uuid.NewString(), NewPassword: "a", ConfirmedPassword: "a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	require.NoError(t, f.svc.ForgotPassword(ctx, "rf@example.com"))
	first := f.tokenFromLastMail(t)
	require.NoError(t, f.svc.ForgotPassword(ctx, "rf@example.com"))
	second := f.tokenFromLastMail(t)

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: first, NewPassword: "a", ConfirmedPassword: "a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid), "superseded token")

	f.now = f.now.Add(time.Hour + time.Second)
	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: second, NewPassword: "a", ConfirmedPassword: "a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenExpired))
}

// countingUsers and countingResets count storage reads and writes.
type countingUsers struct {
	user.UserRepository
	calls int
}

func (c *countingUsers) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	c.calls++
	return c.UserRepository.GetByID(ctx, id)
}

func (c *countingUsers) Update(ctx context.Context, u user.User) (user.User, error) {
	c.calls++
	return c.UserRepository.Update(ctx, u)
}

type countingResets struct {
	passwordreset.Repository
	calls int
}

func (c *countingResets) FindByID(ctx context.Context, id uuid.UUID) (passwordreset.PasswordResetToken, error) {
	c.calls++
	return c.Repository.FindByID(ctx, id)
}

// flakyUsers fails the next Update when failNext is set.
type flakyUsers struct {
	*user.InMemoryUserRepository
	failNext bool
}

func (u *flakyUsers) Update(ctx context.Context, usr user.User) (user.User, error) {
	if u.failNext {
		u.failNext = false
		return user.User{}, errors.New("connection reset")
	}
	return u.InMemoryUserRepository.Update(ctx, usr)
}

func TestResetPasswordRetryAfterFailedUpdate(t *testing.T) {
	users := &flakyUsers{InMemoryUserRepository: user.NewInMemoryUserRepository()}
	f := newFixture(t, WithUserRepository(users))
	f.users = users.InMemoryUserRepository
	ctx := context.Background()
	f.registerVerified(t, "retry@example.com", "old")

	require.NoError(t, f.svc.ForgotPassword(ctx, "retry@example.com"))
	token := f.tokenFromLastMail(t)

	users.failNext = true
	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "new", ConfirmedPassword: "new"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInternal))
	_, err = signIn(f, "retry@example.com", "old", GrantTypePassword)
	assert.NoError(t, err, "password is unchanged")

	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "new", ConfirmedPassword: "new"}),
		"token survives the failed attempt")
	_, err = signIn(f, "retry@example.com", "new", GrantTypePassword)
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "again", ConfirmedPassword: "again"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenInvalid))
}

func TestResetPasswordMismatchTouchesNoStorage(t *testing.T) {
	users := &countingUsers{UserRepository: user.NewInMemoryUserRepository()}
	resets := &countingResets{Repository: passwordreset.NewInMemoryRepository()}
	svc, err := NewAuthService(
		WithUserRepository(users),
		WithRoleRepository(role.NewInMemoryRoleRepository()),
		WithTokenIssuer(tokengenerator.NewJwtTokenIssuer("s", "i", "a", time.Minute)),
		WithRefreshTokenService(refreshtoken.NewService(refreshtoken.NewInMemoryRepository(users), users)),
		WithVerificationService(emailverification.NewEmailVerificationService(emailverification.NewInMemoryRepository())),
		WithPasswordResetService(passwordreset.NewService(resets)),
	)
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: uuid.NewString(), NewPassword: "a", ConfirmedPassword: "b"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
	assert.Zero(t, users.calls)
	assert.Zero(t, resets.calls)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "c@example.com", "old")
	pair, err := signIn(f, "c@example.com", "old", GrantTypePassword)
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, "c@example.com", "wrong", "new")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed))

	err = f.svc.ChangePassword(ctx, "ghost@example.com", "old", "new")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	err = f.svc.ChangePassword(ctx, "c@example.com", "old", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	require.NoError(t, f.svc.ChangePassword(ctx, "c@example.com", "old", "new"))
	_, err = signIn(f, "c@example.com", "new", GrantTypePassword)
	assert.NoError(t, err)

	_, err = signIn(f, "c@example.com", pair.RefreshToken, GrantTypeRefreshToken)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAuthFailed), "sessions are revoked")
}
