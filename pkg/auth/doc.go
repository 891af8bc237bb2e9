// Package auth implements the account lifecycle: registration, email
// verification, sign-in with a password or refresh token, password reset and
// password change.
//
// AuthService is assembled from functional options:
//
//	svc, err := auth.NewAuthService(
//	    auth.WithUserRepository(users),
//	    auth.WithRoleRepository(roles),
//	    auth.WithTokenIssuer(issuer),
//	    auth.WithRefreshTokenService(refreshSvc),
//	    auth.WithVerificationService(verificationSvc),
//	    auth.WithPasswordResetService(resetSvc),
//	    auth.WithMailPublisher(queue),
//	)
//
// Every method returns *errors.Error values from pkg/errors so HTTP handlers
// can render them directly. Sign-in failures never say which credential was
// wrong, and ForgotPassword succeeds for unknown usernames.
package auth
