package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/buildwise/backend/internal/model"
)

// defaultOAuthTimeout bounds every call to a provider, including the code exchange.
const defaultOAuthTimeout = 10 * time.Second

// maxProviderBody caps how much of a provider response is read.
const maxProviderBody = 1 << 20

// OAuthUserInfo is the profile and token set returned by a provider.
type OAuthUserInfo struct {
	Provider       model.Provider
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
}

// OAuthProvider is an OAuth 2.0 identity provider.
type OAuthProvider interface {
	// Provider names the provider.
	Provider() model.Provider
	// Configured reports whether client id, secret and redirect URI are all set.
	Configured() bool
	// AuthCodeURL builds the consent page URL carrying state.
	AuthCodeURL(state string) string
	// ExchangeCode trades an authorization code for tokens and the user's profile.
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func newHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultOAuthTimeout}
}

// exchange runs the code exchange through client so its timeout applies.
func exchange(ctx context.Context, cfg *oauth2.Config, client *http.Client, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tok, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into dst.
func getJSON(ctx context.Context, client *http.Client, url, accessToken string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d", url, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func tokenExpiry(tok *oauth2.Token) *time.Time {
	if tok.Expiry.IsZero() {
		return nil
	}
	t := tok.Expiry
	return &t
}
