package client

import (
	"log/slog"
	"net/http"

	apperrors "github.com/tendant/simple-useraccess/pkg/errors"
	"github.com/tendant/simple-useraccess/pkg/principal"
)

func unauthorized(w http.ResponseWriter, r *http.Request) {
	apperrors.Render(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "authentication required"))
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	apperrors.Render(w, r, apperrors.Forbidden("insufficient permissions"))
}

// RequireAuth returns 401 Unauthorized if the request is not authenticated.
// Must be used after AuthMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principal.FromContext(r.Context()); !ok {
			slog.Debug("Unauthenticated request to protected resource", "path", r.URL.Path)
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns a middleware that checks if the authenticated user has any of the specified roles.
// Returns 401 Unauthorized if not authenticated.
// Returns 403 Forbidden if authenticated but missing required role.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principal.FromContext(r.Context())
			if !ok {
				slog.Debug("Unauthenticated request to role-protected resource", "requiredRoles", roles)
				unauthorized(w, r)
				return
			}

			if !p.HasAnyRole(roles...) {
				slog.Warn("User lacks required role",
					"userId", p.ID,
					"userRoles", p.Roles,
					"requiredRoles", roles)
				forbidden(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthority returns a middleware that checks if the authenticated user
// holds any of the given "{role}_{permission}" authorities.
func RequireAuthority(authorities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principal.FromContext(r.Context())
			if !ok {
				slog.Debug("Unauthenticated request to authority-protected resource", "requiredAuthorities", authorities)
				unauthorized(w, r)
				return
			}

			for _, a := range authorities {
				if p.HasAuthority(a) {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.Warn("User lacks required authority",
				"userId", p.ID,
				"userAuthorities", p.Authorities,
				"requiredAuthorities", authorities)
			forbidden(w, r)
		})
	}
}
