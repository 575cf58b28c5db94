// Package model defines the domain model.
package model

import "time"

// Role is a user's privilege tier.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Provider identifies an external OAuth identity provider.
type Provider string

const (
	ProviderGoogle Provider = "GOOGLE"
	ProviderGitHub Provider = "GITHUB"
)

// User is the canonical identity. Email is the only cross-provider linking key.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	IsActive  bool
	AvatarURL string
	College   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential holds a user's password hash. At most one per user.
type Credential struct {
	ID           string
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthAccount links a user to one OAuth provider.
// (Provider, ProviderUserID) is unique.
type AuthAccount struct {
	ID             string
	UserID         string
	Provider       Provider
	ProviderUserID string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session is the server-side record backing one refresh token.
type Session struct {
	ID        string
	UserID    string
	Token     string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PublicUser is the subset of User fields returned to clients.
type PublicUser struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	Role      Role    `json:"role"`
	AvatarURL *string `json:"avatarUrl"`
	College   *string `json:"college"`
}

// Public converts the user into its client-facing representation.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      nullable(u.Name),
		Role:      u.Role,
		AvatarURL: nullable(u.AvatarURL),
		College:   nullable(u.College),
	}
}

// Profile is the caller's own account view returned by /api/auth/me.
type Profile struct {
	PublicUser
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile converts the user into the self-view representation.
func (u *User) Profile() Profile {
	return Profile{
		PublicUser: u.Public(),
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
