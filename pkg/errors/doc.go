// Package errors defines the error values rendered by the HTTP API.
//
// Domain packages return their own sentinel errors (for example
// refreshtoken.ErrInvalidRefreshToken). The auth orchestrator and the admin
// services translate those into an *Error carrying one of the codes below, and
// HTTP handlers pass the result to Render.
//
// # Codes
//
//	VALIDATION_FAILED                 400
//	TOKEN_INVALID, TOKEN_EXPIRED      400
//	AUTH_FAILED, UNAUTHORIZED         401
//	FORBIDDEN                         403
//	NOT_FOUND                         404
//	CONFLICT                          409
//	INTERNAL_ERROR                    500
//
// # Usage
//
//	import "github.com/tendant/simple-useraccess/pkg/errors"
//
//	err := errors.Conflict("user", email)
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query database")
//
//	if errors.IsCode(err, errors.ErrCodeAuthFailed) {
//		// ...
//	}
//
// Internal errors are never rendered with their underlying cause; Render logs
// the cause and writes a generic message.
package errors
