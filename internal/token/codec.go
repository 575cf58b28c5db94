// Package token mints and verifies the signed access and refresh tokens.
//
// Access tokens carry the full identity payload and are verified without
// touching the database. Refresh tokens carry only the user and session ids
// and are always cross-checked against the session registry by the caller.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/buildwise/backend/internal/model"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "buildwise"
)

var lifetimePattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// Config holds the signing secrets and lifetimes. It is loaded once at startup.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     string // e.g. "15m"
	RefreshTTL    string // e.g. "7d"
	Issuer        string
}

// Payload is the identity carried by an access token.
type Payload struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	SessionID string     `json:"sessionId,omitempty"`
}

// RefreshPayload is the identity carried by a refresh token.
type RefreshPayload struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
}

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

type accessClaims struct {
	Payload
	jwt.RegisteredClaims
}

type refreshClaims struct {
	RefreshPayload
	jwt.RegisteredClaims
}

// Codec mints and verifies tokens. It holds no mutable state.
type Codec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewCodec validates cfg and returns a Codec.
// Unparsable lifetimes fall back to the defaults (15m access, 7d refresh).
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}

	accessTTL, err := ParseLifetime(cfg.AccessTTL)
	if err != nil {
		slog.Warn("invalid access token lifetime, using default",
			slog.String("value", cfg.AccessTTL),
			slog.Duration("default", defaultAccessTTL),
		)
		accessTTL = defaultAccessTTL
	}
	refreshTTL, err := ParseLifetime(cfg.RefreshTTL)
	if err != nil {
		slog.Warn("invalid refresh token lifetime, using default",
			slog.String("value", cfg.RefreshTTL),
			slog.Duration("default", defaultRefreshTTL),
		)
		refreshTTL = defaultRefreshTTL
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}

	return &Codec{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		now:        time.Now,
	}, nil
}

// Issue mints an access token carrying p and a refresh token carrying only
// the user and session ids.
func (c *Codec) Issue(p Payload) (*Pair, error) {
	now := c.now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Payload:          p,
		RegisteredClaims: c.registered(p.UserID, now, c.accessTTL),
	})
	accessToken, err := access.SignedString(c.accessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		RefreshPayload:   RefreshPayload{UserID: p.UserID, SessionID: p.SessionID},
		RegisteredClaims: c.registered(p.UserID, now, c.refreshTTL),
	})
	refreshToken, err := refresh.SignedString(c.refreshKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccess decodes an access token.
// It fails with a TokenExpired or TokenInvalid *model.APIError.
func (c *Codec) VerifyAccess(tokenString string) (*Payload, error) {
	claims := &accessClaims{}
	if err := c.parse(tokenString, claims, c.accessKey); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, model.NewTokenInvalidError(errors.New("missing userId claim"))
	}
	return &claims.Payload, nil
}

// VerifyRefresh decodes a refresh token.
// It fails with a TokenExpired or TokenInvalid *model.APIError.
func (c *Codec) VerifyRefresh(tokenString string) (*RefreshPayload, error) {
	claims := &refreshClaims{}
	if err := c.parse(tokenString, claims, c.refreshKey); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, model.NewTokenInvalidError(errors.New("missing userId claim"))
	}
	return &claims.RefreshPayload, nil
}

// AccessTokenLifetimeSeconds returns the access token lifetime advertised to clients as expiresIn.
func (c *Codec) AccessTokenLifetimeSeconds() int {
	return int(c.accessTTL / time.Second)
}

// RefreshTokenLifetime returns the refresh token lifetime.
func (c *Codec) RefreshTokenLifetime() time.Duration {
	return c.refreshTTL
}

func (c *Codec) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    c.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) parse(tokenString string, claims jwt.Claims, key []byte) error {
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return model.NewTokenExpiredError()
	}
	return model.NewTokenInvalidError(err)
}

// ParseLifetime parses "<digits><s|m|h|d>" into a duration.
func ParseLifetime(s string) (time.Duration, error) {
	m := lifetimePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid lifetime %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid lifetime %q: %w", s, err)
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid lifetime %q: must be positive", s)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("invalid lifetime %q: out of range", s)
	}
	return time.Duration(n) * unit, nil
}

// LifetimeSeconds parses a lifetime string into whole seconds, defaulting to 900.
func LifetimeSeconds(s string) int {
	d, err := ParseLifetime(s)
	if err != nil {
		return int(defaultAccessTTL / time.Second)
	}
	return int(d / time.Second)
}
