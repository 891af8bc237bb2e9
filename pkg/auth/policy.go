package auth

import (
	"errors"
	"regexp"
	"strconv"
)

var (
	hasDigit           = regexp.MustCompile(`[0-9]+`)
	hasLowercase       = regexp.MustCompile(`[a-z]+`)
	hasUppercase       = regexp.MustCompile(`[A-Z]+`)
	hasNonAlphanumeric = regexp.MustCompile(`[\W_]+`)
)

// PasswordComplexity is applied to every new password. The zero value
// accepts any non-empty password.
type PasswordComplexity struct {
	RequiredDigit           bool
	RequiredLowercase       bool
	RequiredNonAlphanumeric bool
	RequiredUppercase       bool
	RequiredLength          int
}

func (pc PasswordComplexity) Verify(password string) error {
	if pc.RequiredDigit && !hasDigit.MatchString(password) {
		return errors.New("password complexity is not satisfied. Passwords must have at least one digit ('0'-'9')")
	}
	if pc.RequiredLowercase && !hasLowercase.MatchString(password) {
		return errors.New("password complexity is not satisfied. Passwords must have at least one lowercase ('a'-'z')")
	}
	if pc.RequiredUppercase && !hasUppercase.MatchString(password) {
		return errors.New("password complexity is not satisfied. Passwords must have at least one uppercase ('A'-'Z')")
	}
	if pc.RequiredNonAlphanumeric && !hasNonAlphanumeric.MatchString(password) {
		return errors.New("password complexity is not satisfied. Passwords must have at least one non-alphanumeric character")
	}
	if len(password) < pc.RequiredLength {
		return errors.New("password complexity is not satisfied. Passwords must be at least " + strconv.Itoa(pc.RequiredLength) + " characters")
	}
	return nil
}
