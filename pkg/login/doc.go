// Package login hashes and verifies passwords.
//
// NewPasswordHasher selects bcrypt (the default) or argon2id. A hasher only
// verifies hashes in its own format.
package login
