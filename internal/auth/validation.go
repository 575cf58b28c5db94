package auth

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/buildwise/backend/internal/model"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// EmailPattern is the address shape accepted by every endpoint that takes an email.
var EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	College  string `json:"college"`
}

// Validate checks the request and normalizes the email in place.
func (r *SignupRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	err := validation.ValidateStruct(r,
		validation.Field(&r.Email, emailRules()...),
		validation.Field(&r.Password,
			validation.Required.Error("Password is required and must be a string"),
			validation.Length(MinPasswordLength, 0).Error("Password must be at least 8 characters long"),
		),
		validation.Field(&r.Name, validation.Length(0, 255).Error("Name must be at most 255 characters")),
		validation.Field(&r.College, validation.Length(0, 255).Error("College must be at most 255 characters")),
	)
	if err := firstValidationError(err, "email", "password", "name", "college"); err != nil {
		return err
	}
	// bcrypt limit is in bytes, ozzo Length counts runes
	if len(r.Password) > MaxPasswordBytes {
		return model.NewValidationError("Password must be at most 72 bytes long")
	}
	return nil
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request and normalizes the email in place.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	err := validation.ValidateStruct(r,
		validation.Field(&r.Email, emailRules()...),
		validation.Field(&r.Password, validation.Required.Error("Password is required and must be a string")),
	)
	return firstValidationError(err, "email", "password")
}

// ValidateEmail validates a single address, e.g. an admin target.
func ValidateEmail(email string) error {
	err := validation.Validate(strings.TrimSpace(email), emailRules()...)
	if err != nil {
		return model.NewValidationError(err.Error())
	}
	return nil
}

func emailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Email is required and must be a string"),
		validation.Match(EmailPattern).Error("Invalid email format"),
	}
}

// firstValidationError reports the first failing field in order as a single validation error.
func firstValidationError(err error, order ...string) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, field := range order {
			if fe, ok := errs[field]; ok && fe != nil {
				return model.NewValidationError(fe.Error())
			}
		}
	}
	return model.NewValidationError(err.Error())
}
