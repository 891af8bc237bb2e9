// Package emailverification manages the one-per-user email verification token.
//
// The token's id is the owning user's id, so the link sent at registration is
// {baseURL}/auth/verify-email?token={userID}. Issuing again for the same user
// replaces the previous token and restarts its validity window (12 hours by
// default). Redeeming does not consume the token, so following the link twice
// is harmless.
package emailverification
