package login

import (
	"crypto/subtle"
	"fmt"
)

// Supported password hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// PasswordHasher defines the interface for password hashing implementations
type PasswordHasher interface {
	// Hash hashes a password
	Hash(password string) (string, error)

	// Verify checks if the provided password matches the stored hash.
	// A mismatch is reported as (false, nil); an error means the hash itself
	// could not be processed.
	Verify(password, hashedPassword string) (bool, error)
}

// NewPasswordHasher returns the hasher for the named algorithm.
// An empty name selects bcrypt.
func NewPasswordHasher(algorithm string) (PasswordHasher, error) {
	switch algorithm {
	case "", AlgorithmBcrypt:
		return NewBcryptHasher(), nil
	case AlgorithmArgon2id:
		return NewArgon2Hasher(), nil
	default:
		return nil, fmt.Errorf("unsupported password algorithm: %s", algorithm)
	}
}

// PasswordsMatch reports whether a password and its confirmation are equal.
// Every request that carries a new password checks this before doing any work.
func PasswordsMatch(password, confirmedPassword string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(confirmedPassword)) == 1
}
