package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/emailverification"
	apperrors "github.com/tendant/simple-useraccess/pkg/errors"
	"github.com/tendant/simple-useraccess/pkg/login"
	"github.com/tendant/simple-useraccess/pkg/notice"
	"github.com/tendant/simple-useraccess/pkg/notification"
	"github.com/tendant/simple-useraccess/pkg/passwordreset"
	"github.com/tendant/simple-useraccess/pkg/principal"
	"github.com/tendant/simple-useraccess/pkg/refreshtoken"
	"github.com/tendant/simple-useraccess/pkg/role"
	"github.com/tendant/simple-useraccess/pkg/tokengenerator"
	"github.com/tendant/simple-useraccess/pkg/user"
)

// invalidCredentials is the only message a caller sees for a failed sign-in.
const invalidCredentials = "invalid username or password"

// TokenPair is returned by a successful sign-in.
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"-"`
	RefreshTokenExpiresAt time.Time `json:"-"`
}

// MailComposer renders the account mails.
type MailComposer interface {
	VerificationMail(to, token string) (notification.MailRequest, error)
	PasswordResetMail(to, token string, expiry time.Duration) (notification.MailRequest, error)
}

// AuthService orchestrates registration, sign-in and password recovery.
type AuthService struct {
	users        user.UserRepository
	roles        role.RoleRepository
	principals   *principal.Builder
	hasher       login.PasswordHasher
	complexity   PasswordComplexity
	issuer       tokengenerator.TokenIssuer
	refresh      *refreshtoken.Service
	verification *emailverification.EmailVerificationService
	reset        *passwordreset.Service
	publisher    notification.MailPublisher
	composer     MailComposer
	baseURL      string
	defaultRole  string
	rotate       bool
}

type Option func(*AuthService)

func WithUserRepository(repo user.UserRepository) Option {
	return func(s *AuthService) {
		s.users = repo
	}
}

func WithRoleRepository(repo role.RoleRepository) Option {
	return func(s *AuthService) {
		s.roles = repo
	}
}

func WithPasswordHasher(hasher login.PasswordHasher) Option {
	return func(s *AuthService) {
		s.hasher = hasher
	}
}

func WithPasswordComplexity(pc PasswordComplexity) Option {
	return func(s *AuthService) {
		s.complexity = pc
	}
}

func WithTokenIssuer(issuer tokengenerator.TokenIssuer) Option {
	return func(s *AuthService) {
		s.issuer = issuer
	}
}

func WithRefreshTokenService(svc *refreshtoken.Service) Option {
	return func(s *AuthService) {
		s.refresh = svc
	}
}

func WithVerificationService(svc *emailverification.EmailVerificationService) Option {
	return func(s *AuthService) {
		s.verification = svc
	}
}

func WithPasswordResetService(svc *passwordreset.Service) Option {
	return func(s *AuthService) {
		s.reset = svc
	}
}

// WithMailPublisher sets where account mails go. Without one, mails are
// logged and dropped.
func WithMailPublisher(p notification.MailPublisher) Option {
	return func(s *AuthService) {
		s.publisher = p
	}
}

func WithMailComposer(c MailComposer) Option {
	return func(s *AuthService) {
		s.composer = c
	}
}

// WithBaseURL sets the root of links placed in mails by the default composer.
func WithBaseURL(baseURL string) Option {
	return func(s *AuthService) {
		s.baseURL = baseURL
	}
}

// WithDefaultRole names a role given to every new registration.
func WithDefaultRole(name string) Option {
	return func(s *AuthService) {
		s.defaultRole = name
	}
}

// WithRefreshTokenRotation controls whether a refresh token is revoked once
// it has been exchanged. Rotation is on by default.
func WithRefreshTokenRotation(enabled bool) Option {
	return func(s *AuthService) {
		s.rotate = enabled
	}
}

func NewAuthService(opts ...Option) (*AuthService, error) {
	s := &AuthService{
		hasher:  login.NewBcryptHasher(),
		baseURL: "http://localhost:8080",
		rotate:  true,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.users == nil:
		return nil, fmt.Errorf("auth: user repository is required")
	case s.roles == nil:
		return nil, fmt.Errorf("auth: role repository is required")
	case s.issuer == nil:
		return nil, fmt.Errorf("auth: token issuer is required")
	case s.refresh == nil:
		return nil, fmt.Errorf("auth: refresh token service is required")
	case s.verification == nil:
		return nil, fmt.Errorf("auth: verification service is required")
	case s.reset == nil:
		return nil, fmt.Errorf("auth: password reset service is required")
	}

	if s.composer == nil {
		s.composer = notice.NewComposer(s.baseURL)
	}
	s.principals = principal.NewBuilder(s.users, s.roles)
	return s, nil
}

// Register creates a disabled local account and mails its verification link.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (user.User, error) {
	if err := req.Validate(); err != nil {
		return user.User{}, ValidationError(err)
	}
	if err := s.complexity.Verify(req.Password); err != nil {
		return user.User{}, apperrors.Validation(err.Error(), map[string]interface{}{"password": err.Error()})
	}

	username := req.Email
	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, req.Email)
	if err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to check existing user")
	}
	if exists {
		slog.Info("Registration rejected, user exists", "email", req.Email)
		return user.User{}, apperrors.Conflict("user", req.Email)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.User{}, apperrors.InternalWrap(err, "failed to hash password")
	}

	created, err := s.users.Create(ctx, user.User{
		Username:       username,
		Email:          req.Email,
		PasswordHash:   hash,
		EmailConfirmed: false,
		Locked:         false,
		Enabled:        false,
		Provider:       user.ProviderLocal,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateUser) {
			return user.User{}, apperrors.Conflict("user", req.Email)
		}
		return user.User{}, apperrors.InternalWrap(err, "failed to create user")
	}
	slog.Info("User registered", "user_id", created.ID, "email", created.Email)

	s.assignDefaultRole(ctx, created.ID)

	token, err := s.verification.Issue(ctx, created.ID)
	if err != nil {
		// Without a token the account can never be enabled, so it is removed
		// and the email stays free for another attempt.
		if delErr := s.users.Delete(ctx, created.ID); delErr != nil {
			slog.Error("Failed to remove unverifiable user", "user_id", created.ID, "error", delErr)
		}
		return user.User{}, apperrors.InternalWrap(err, "failed to create verification token")
	}

	mail, err := s.composer.VerificationMail(created.Email, token.ID.String())
	if err != nil {
		slog.Error("Failed to compose verification mail", "user_id", created.ID, "error", err)
		return created, nil
	}
	s.publish(ctx, mail)
	return created, nil
}

func (s *AuthService) assignDefaultRole(ctx context.Context, userID uuid.UUID) {
	if s.defaultRole == "" {
		return
	}
	r, err := s.roles.GetRoleByName(ctx, s.defaultRole)
	if err != nil {
		if errors.Is(err, role.ErrRoleNotFound) {
			slog.Warn("Default role does not exist, skipping", "role", s.defaultRole)
			return
		}
		slog.Error("Failed to load default role", "role", s.defaultRole, "error", err)
		return
	}
	if err := s.roles.AssignUserRole(ctx, userID, r.ID); err != nil {
		slog.Error("Failed to assign default role", "user_id", userID, "role", s.defaultRole, "error", err)
	}
}

// VerifyEmail enables the account identified by a verification token.
// Redeeming the same token again is harmless.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	t, err := s.verification.Redeem(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, emailverification.ErrInvalidToken), errors.Is(err, emailverification.ErrTokenNotFound):
			return apperrors.NotFound("verification token", token)
		case errors.Is(err, emailverification.ErrTokenExpired):
			return apperrors.Expired("verification token has expired")
		default:
			return apperrors.InternalWrap(err, "failed to load verification token")
		}
	}

	u, err := s.users.GetByID(ctx, t.ID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperrors.NotFound("user", t.ID.String())
		}
		return apperrors.InternalWrap(err, "failed to load user")
	}

	u.Enabled = true
	u.EmailConfirmed = true
	if _, err := s.users.Update(ctx, u); err != nil {
		return apperrors.InternalWrap(err, "failed to enable user")
	}
	slog.Info("Email verified", "user_id", u.ID)
	return nil
}

// SignIn exchanges a password or a refresh token for a new token pair.
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (TokenPair, error) {
	if err := req.Validate(); err != nil {
		return TokenPair{}, ValidationError(err)
	}

	switch req.GrantType {
	case GrantTypePassword:
		return s.signInWithPassword(ctx, req.Username, req.PasswordOrRefreshToken)
	case GrantTypeRefreshToken:
		return s.signInWithRefreshToken(ctx, req.Username, req.PasswordOrRefreshToken)
	default:
		slog.Warn("Unsupported grant type", "grant_type", req.GrantType)
		return TokenPair{}, apperrors.Forbidden("unsupported grant type")
	}
}

func (s *AuthService) signInWithPassword(ctx context.Context, username, password string) (TokenPair, error) {
	p, err := s.principals.LoadByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			slog.Warn("Sign-in for unknown user", "username", username)
			return TokenPair{}, apperrors.AuthFailed(invalidCredentials)
		}
		return TokenPair{}, apperrors.InternalWrap(err, "failed to load user")
	}

	ok, err := s.hasher.Verify(password, p.PasswordHash)
	if err != nil {
		slog.Error("Failed to verify password hash", "user_id", p.ID, "error", err)
	}
	if !ok {
		slog.Warn("Sign-in with wrong password", "user_id", p.ID)
		return TokenPair{}, apperrors.AuthFailed(invalidCredentials)
	}
	if err := p.CheckAuthenticatable(); err != nil {
		slog.Warn("Sign-in rejected", "user_id", p.ID, "reason", err)
		return TokenPair{}, apperrors.AuthFailed(invalidCredentials)
	}
	return s.issueTokens(ctx, p)
}

func (s *AuthService) signInWithRefreshToken(ctx context.Context, username, token string) (TokenPair, error) {
	rt, err := s.refresh.FindByUsernameAndToken(ctx, username, token)
	if err != nil {
		if errors.Is(err, refreshtoken.ErrInvalidRefreshToken) {
			slog.Warn("Invalid refresh token presented", "username", username)
			return TokenPair{}, apperrors.AuthFailed(invalidCredentials)
		}
		return TokenPair{}, apperrors.InternalWrap(err, "failed to load refresh token")
	}

	p, err := s.principals.LoadByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return TokenPair{}, apperrors.AuthFailed(invalidCredentials)
		}
		return TokenPair{}, apperrors.InternalWrap(err, "failed to load user")
	}
	if err := p.CheckAuthenticatable(); err != nil {
		slog.Warn("Refresh rejected", "user_id", p.ID, "reason", err)
		return TokenPair{}, apperrors.AuthFailed(invalidCredentials)
	}

	// With rotation the presented token is claimed before anything is issued.
	// A concurrent exchange of the same token finds it gone and fails.
	if s.rotate {
		if err := s.refresh.Revoke(ctx, rt.ID); err != nil {
			if errors.Is(err, refreshtoken.ErrTokenNotFound) {
				slog.Warn("Refresh token already exchanged", "token_id", rt.ID, "user_id", p.ID)
				return TokenPair{}, apperrors.AuthFailed(invalidCredentials)
			}
			return TokenPair{}, apperrors.InternalWrap(err, "failed to revoke exchanged refresh token")
		}
	}
	return s.issueTokens(ctx, p)
}

func (s *AuthService) issueTokens(ctx context.Context, p principal.Principal) (TokenPair, error) {
	access, expiresAt, err := s.issuer.Issue(p)
	if err != nil {
		return TokenPair{}, apperrors.InternalWrap(err, "failed to issue access token")
	}
	rt, err := s.refresh.Create(ctx, p.Username)
	if err != nil {
		return TokenPair{}, apperrors.InternalWrap(err, "failed to issue refresh token")
	}
	slog.Info("User signed in", "principal", p)
	return TokenPair{
		AccessToken:           access,
		RefreshToken:          rt.Token,
		AccessTokenExpiresAt:  expiresAt,
		RefreshTokenExpiresAt: rt.ExpireAt,
	}, nil
}

// ForgotPassword starts a password reset. The result is the same whether or
// not the username exists.
func (s *AuthService) ForgotPassword(ctx context.Context, username string) error {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			slog.Info("Password reset requested for unknown user", "username", username)
		} else {
			slog.Error("Failed to load user for password reset", "username", username, "error", err)
		}
		return nil
	}

	t, err := s.reset.Issue(ctx, u.ID)
	if err != nil {
		slog.Error("Failed to issue password reset token", "user_id", u.ID, "error", err)
		return nil
	}

	mail, err := s.composer.PasswordResetMail(u.Email, t.ID.String(), s.reset.TokenExpiry())
	if err != nil {
		slog.Error("Failed to compose password reset mail", "user_id", u.ID, "error", err)
		return nil
	}
	s.publish(ctx, mail)
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed with a conditional update, so of two concurrent redemptions only
// one succeeds.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return ValidationError(err)
	}
	if err := s.complexity.Verify(req.NewPassword); err != nil {
		return apperrors.Validation(err.Error(), map[string]interface{}{"newPassword": err.Error()})
	}

	t, err := s.reset.Redeem(ctx, req.Token)
	if err != nil {
		return mapResetError(err, req.Token)
	}

	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperrors.NotFound("user", t.UserID.String())
		}
		return apperrors.InternalWrap(err, "failed to load user")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperrors.InternalWrap(err, "failed to hash password")
	}

	// The password is written before the token is consumed so a failed
	// update leaves the token usable for a retry.
	u.PasswordHash = hash
	if _, err := s.users.Update(ctx, u); err != nil {
		return apperrors.InternalWrap(err, "failed to update password")
	}
	if err := s.reset.MarkUsed(ctx, t.ID); err != nil {
		slog.Warn("Password reset token consumed concurrently", "user_id", u.ID, "token_id", t.ID, "error", err)
		return mapResetError(err, req.Token)
	}
	slog.Info("Password reset", "user_id", u.ID)
	s.revokeSessions(ctx, u.ID)
	return nil
}

func mapResetError(err error, token string) error {
	switch {
	case errors.Is(err, passwordreset.ErrInvalidToken):
		return apperrors.InvalidToken("invalid password reset token")
	case errors.Is(err, passwordreset.ErrTokenNotFound):
		return apperrors.NotFound("password reset token", token)
	case errors.Is(err, passwordreset.ErrTokenAlreadyUsed):
		return apperrors.InvalidToken("password reset token has already been used")
	case errors.Is(err, passwordreset.ErrTokenExpired):
		return apperrors.Expired("password reset token has expired")
	default:
		return apperrors.InternalWrap(err, "failed to redeem password reset token")
	}
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	if newPassword == "" {
		return apperrors.Validation("validation failed", map[string]interface{}{"newPassword": "cannot be blank"})
	}
	if err := s.complexity.Verify(newPassword); err != nil {
		return apperrors.Validation(err.Error(), map[string]interface{}{"newPassword": err.Error()})
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperrors.NotFound("user", username)
		}
		return apperrors.InternalWrap(err, "failed to load user")
	}

	ok, err := s.hasher.Verify(currentPassword, u.PasswordHash)
	if err != nil {
		slog.Error("Failed to verify password hash", "user_id", u.ID, "error", err)
	}
	if !ok {
		slog.Warn("Password change with wrong current password", "user_id", u.ID)
		return apperrors.AuthFailed("current password is incorrect")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.InternalWrap(err, "failed to hash password")
	}
	u.PasswordHash = hash
	if _, err := s.users.Update(ctx, u); err != nil {
		return apperrors.InternalWrap(err, "failed to update password")
	}
	slog.Info("Password changed", "user_id", u.ID)
	s.revokeSessions(ctx, u.ID)
	return nil
}

// revokeSessions drops every refresh token of a user whose password changed.
func (s *AuthService) revokeSessions(ctx context.Context, userID uuid.UUID) {
	if err := s.refresh.RevokeAll(ctx, userID); err != nil {
		slog.Error("Failed to revoke refresh tokens", "user_id", userID, "error", err)
	}
}

func (s *AuthService) publish(ctx context.Context, mail notification.MailRequest) {
	if s.publisher == nil {
		slog.Warn("No mail publisher configured, dropping mail", "to", mail.To, "subject", mail.Subject)
		return
	}
	if err := s.publisher.Publish(ctx, mail); err != nil {
		slog.Error("Failed to publish mail", "to", mail.To, "subject", mail.Subject, "error", err)
	}
}
