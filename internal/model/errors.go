package model

import (
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of domain error variants.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindInvalidCredentials
	KindAccountDeactivated
	KindUnauthorized
	KindTokenExpired
	KindTokenInvalid
	KindSessionNotFound
	KindSessionExpired
	KindForbidden
	KindNotFound
	KindConflict
	KindOAuthNotConfigured
	KindOAuthExchangeFailed
	KindInternal
)

// HTTPStatus returns the response status for the kind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindAccountDeactivated, KindUnauthorized,
		KindTokenExpired, KindTokenInvalid, KindSessionNotFound, KindSessionExpired,
		KindOAuthExchangeFailed:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindOAuthNotConfigured, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the stable machine-readable error code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case KindAccountDeactivated:
		return "ACCOUNT_DEACTIVATED"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindTokenInvalid:
		return "TOKEN_INVALID"
	case KindSessionNotFound:
		return "SESSION_NOT_FOUND"
	case KindSessionExpired:
		return "SESSION_EXPIRED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindOAuthNotConfigured:
		return "OAUTH_NOT_CONFIGURED"
	case KindOAuthExchangeFailed:
		return "OAUTH_EXCHANGE_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}

// APIError is a typed domain error carried up to the HTTP boundary.
type APIError struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying cause, logged but never sent to clients
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind.Code(), e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Code returns the error code.
func (e *APIError) Code() string {
	return e.Kind.Code()
}

// HTTPStatus returns the response status.
func (e *APIError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *APIError {
	return &APIError{Kind: KindValidation, Message: message}
}

// NewInvalidCredentialsError creates the error returned for any failed password login.
// Unknown email, missing credential and wrong password all share it.
func NewInvalidCredentialsError() *APIError {
	return &APIError{Kind: KindInvalidCredentials, Message: "Invalid email or password"}
}

// NewAccountDeactivatedError creates a deactivated-account error.
func NewAccountDeactivatedError() *APIError {
	return &APIError{Kind: KindAccountDeactivated, Message: "Account is deactivated"}
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(message string) *APIError {
	if message == "" {
		message = "Unauthorized"
	}
	return &APIError{Kind: KindUnauthorized, Message: message}
}

// NewTokenExpiredError creates an expired-token error.
func NewTokenExpiredError() *APIError {
	return &APIError{Kind: KindTokenExpired, Message: "Token has expired"}
}

// NewTokenInvalidError creates an invalid-token error.
func NewTokenInvalidError(err error) *APIError {
	return &APIError{Kind: KindTokenInvalid, Message: "Invalid token", Err: err}
}

// NewSessionNotFoundError creates a missing-session error.
func NewSessionNotFoundError() *APIError {
	return &APIError{Kind: KindSessionNotFound, Message: "Session not found"}
}

// NewSessionExpiredError creates an expired-session error.
func NewSessionExpiredError() *APIError {
	return &APIError{Kind: KindSessionExpired, Message: "Session has expired"}
}

// NewForbiddenError creates a forbidden error.
func NewForbiddenError(message string) *APIError {
	if message == "" {
		message = "Forbidden"
	}
	return &APIError{Kind: KindForbidden, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string) *APIError {
	if message == "" {
		message = "Resource not found"
	}
	return &APIError{Kind: KindNotFound, Message: message}
}

// NewUserNotFoundError creates a not-found error for a missing user.
func NewUserNotFoundError() *APIError {
	return NewNotFoundError("User not found")
}

// NewEmailAlreadyExistsError creates the conflict error for a taken email.
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{Kind: KindConflict, Message: "User with this email already exists"}
}

// NewOAuthNotConfiguredError creates an error for a provider missing credentials.
func NewOAuthNotConfiguredError(provider Provider) *APIError {
	return &APIError{
		Kind:    KindOAuthNotConfigured,
		Message: fmt.Sprintf("%s OAuth is not configured", providerLabel(provider)),
	}
}

// NewOAuthExchangeFailedError creates an error for a rejected or unusable provider exchange.
func NewOAuthExchangeFailedError(provider Provider, err error) *APIError {
	return &APIError{
		Kind:    KindOAuthExchangeFailed,
		Message: fmt.Sprintf("Failed to authenticate with %s", providerLabel(provider)),
		Err:     err,
	}
}

// NewInternalError creates a generic internal error. The cause is kept for logging only.
func NewInternalError(err error) *APIError {
	return &APIError{Kind: KindInternal, Message: "Internal server error", Err: err}
}

func providerLabel(p Provider) string {
	switch p {
	case ProviderGoogle:
		return "Google"
	case ProviderGitHub:
		return "GitHub"
	default:
		return string(p)
	}
}
