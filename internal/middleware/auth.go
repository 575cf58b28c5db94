// Package middleware provides the HTTP middleware of the API.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/token"
)

type contextKey string

var (
	claimsContextKey = contextKey("claims")
	holderContextKey = contextKey("claims_holder")
)

// claimsHolder lets an outer middleware see who a request was authenticated as.
type claimsHolder struct {
	userID string
}

func withClaimsHolder(ctx context.Context, h *claimsHolder) context.Context {
	return context.WithValue(ctx, holderContextKey, h)
}

// AccessTokenVerifier verifies bearer access tokens.
type AccessTokenVerifier interface {
	VerifyAccess(tokenString string) (*token.Payload, error)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the decoded claims in the request context. Verification never touches the database.
func Authenticate(verifier AccessTokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, apiErr := bearerToken(r)
			if apiErr != nil {
				WriteErrorResponse(w, apiErr)
				return
			}

			claims, err := verifier.VerifyAccess(raw)
			if err != nil {
				WriteErrorResponse(w, asAPIError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuthenticate attaches claims when a valid bearer token is present
// and passes every request through.
func OptionalAuthenticate(verifier AccessTokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, apiErr := bearerToken(r); apiErr == nil {
				if claims, err := verifier.VerifyAccess(raw); err == nil {
					r = r.WithContext(ContextWithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize admits callers whose role is one of roles.
// It must run after Authenticate; without claims the request is rejected with 401.
func Authorize(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, model.NewUnauthorizedError("User not authenticated"))
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteErrorResponse(w, model.NewForbiddenError("Access denied. Required roles: "+joinRoles(roles)))
		})
	}
}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*token.Payload, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Payload)
	return claims, ok && claims != nil
}

// UserIDFromContext returns the authenticated user id.
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID == "" {
		return "", errors.New("user ID not found in context")
	}
	return claims.UserID, nil
}

// ContextWithClaims stores claims in ctx.
func ContextWithClaims(ctx context.Context, claims *token.Payload) context.Context {
	if h, ok := ctx.Value(holderContextKey).(*claimsHolder); ok && claims != nil {
		h.userID = claims.UserID
	}
	return context.WithValue(ctx, claimsContextKey, claims)
}

func bearerToken(r *http.Request) (string, *model.APIError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", model.NewUnauthorizedError("No authorization header provided")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", model.NewUnauthorizedError("Invalid authorization header format. Use: Bearer <token>")
	}
	if parts[1] == "" {
		return "", model.NewUnauthorizedError("No token provided")
	}
	return parts[1], nil
}

func asAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewTokenInvalidError(err)
}

func joinRoles(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
