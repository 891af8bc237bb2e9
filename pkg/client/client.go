// Package client holds the request-time side of authorization: middleware
// that turns a bearer token into a principal on the request context, and
// guards that require authentication, roles or authorities.
package client

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-useraccess/pkg/principal"
	"github.com/tendant/simple-useraccess/pkg/tokengenerator"
)

const ACCESS_TOKEN_NAME = "access_token"

// TokenParser turns an access token into a principal.
type TokenParser interface {
	Parse(tokenStr string) (principal.Principal, error)
}

// AuthMiddleware looks for an access token in the Authorization header, then
// in the access_token cookie. A valid token puts its principal on the request
// context. Requests without a valid token continue unauthenticated; use
// RequireAuth to reject them.
func AuthMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return Verify(parser, jwtauth.TokenFromHeader, TokenFromCookie)
}

// Verify is AuthMiddleware with explicit token lookups, tried in order.
func Verify(parser TokenParser, findTokenFns ...func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := findToken(r, findTokenFns...)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := parser.Parse(token)
			if err != nil {
				if errors.Is(err, tokengenerator.ErrTokenExpired) {
					slog.Debug("Expired access token", "path", r.URL.Path)
				} else {
					slog.Warn("Invalid access token", "path", r.URL.Path, "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := principal.WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func findToken(r *http.Request, findTokenFns ...func(r *http.Request) string) string {
	for _, fn := range findTokenFns {
		if token := fn(r); token != "" {
			return token
		}
	}
	return ""
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}
