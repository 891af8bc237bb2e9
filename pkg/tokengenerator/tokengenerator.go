package tokengenerator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-useraccess/pkg/principal"
)

var (
	ErrTokenInvalid = errors.New("access token is invalid")
	ErrTokenExpired = errors.New("access token has expired")
)

// TokenIssuer mints and verifies access tokens for principals.
type TokenIssuer interface {
	Issue(p principal.Principal) (string, time.Time, error)
	Parse(tokenStr string) (principal.Principal, error)
}

// Claims struct for JWT claims
type Claims struct {
	Username    string   `json:"username"`
	Roles       []string `json:"roles,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	jwt.RegisteredClaims
}

// JwtTokenIssuer issues HS256 signed access tokens.
type JwtTokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
	now      func() time.Time
}

type Option func(*JwtTokenIssuer)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(g *JwtTokenIssuer) {
		g.now = now
	}
}

// NewJwtTokenIssuer creates a new JwtTokenIssuer
func NewJwtTokenIssuer(secret, issuer, audience string, expiry time.Duration, opts ...Option) *JwtTokenIssuer {
	g := &JwtTokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Issue signs an access token carrying the principal's identity, roles and
// authorities.
func (g *JwtTokenIssuer) Issue(p principal.Principal) (string, time.Time, error) {
	now := g.now()
	claims := Claims{
		Username:    p.Username,
		Roles:       p.Roles,
		Authorities: p.Authorities,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    g.issuer,
			Subject:   p.ID.String(),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(g.secret)
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

// Parse verifies signature, expiry, issuer and audience and returns the
// principal encoded in the token. Account status is not part of the token;
// the returned principal is marked enabled because only enabled accounts
// are ever issued one.
func (g *JwtTokenIssuer) Parse(tokenStr string) (principal.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return g.secret, nil
		},
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return principal.Principal{}, ErrTokenExpired
		}
		slog.Debug("Failed parse JWT string!", "err", err)
		return principal.Principal{}, ErrTokenInvalid
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return principal.Principal{}, ErrTokenInvalid
	}
	return principal.Principal{
		ID:          id,
		Username:    claims.Username,
		Enabled:     true,
		Roles:       claims.Roles,
		Authorities: claims.Authorities,
	}, nil
}
