package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	apperrors "github.com/tendant/simple-useraccess/pkg/errors"
	"github.com/tendant/simple-useraccess/pkg/login"
)

// Grant types accepted by SignIn.
const (
	GrantTypePassword     = "PASSWORD"
	GrantTypeRefreshToken = "REFRESH_TOKEN"
)

var errPasswordMismatch = errors.New("passwords do not match")

type RegisterRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ConfirmedPassword string `json:"confirmedPassword"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.ConfirmedPassword, validation.Required, validation.By(matches(r.Password))),
	)
}

type SignInRequest struct {
	Username               string `json:"username"`
	PasswordOrRefreshToken string `json:"passwordOrRefreshToken"`
	GrantType              string `json:"grantType"`
}

func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.PasswordOrRefreshToken, validation.Required),
		validation.Field(&r.GrantType, validation.Required),
	)
}

type ForgotPasswordRequest struct {
	Username string `json:"username"`
}

type ResetPasswordRequest struct {
	Token             string `json:"token"`
	NewPassword       string `json:"newPassword"`
	ConfirmedPassword string `json:"confirmedPassword"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
		validation.Field(&r.ConfirmedPassword, validation.Required, validation.By(matches(r.NewPassword))),
	)
}

type ChangePasswordRequest struct {
	CurrentPassword   string `json:"currentPassword"`
	NewPassword       string `json:"newPassword"`
	ConfirmedPassword string `json:"confirmedPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
		validation.Field(&r.ConfirmedPassword, validation.Required, validation.By(matches(r.NewPassword))),
	)
}

func matches(password string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if !login.PasswordsMatch(password, s) {
			return errPasswordMismatch
		}
		return nil
	}
}

// ValidationError converts ozzo-validation field errors into a structured
// validation error whose details map field names to messages.
func ValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		details := make(map[string]interface{}, len(fields))
		for name, fieldErr := range fields {
			details[name] = fieldErr.Error()
		}
		return apperrors.Validation("validation failed", details)
	}
	return apperrors.Validation(err.Error(), nil)
}
