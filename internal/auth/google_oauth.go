package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/buildwise/backend/internal/model"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var googleScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// GoogleOAuthConfig configures the Google provider.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// overridable in tests
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	HTTPClient  *http.Client
}

// GoogleOAuthProvider authenticates with Google OAuth 2.0.
type GoogleOAuthProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewGoogleOAuthProvider creates a GoogleOAuthProvider.
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := endpoints.Google
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}

	return &GoogleOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       googleScopes,
		},
		userInfoURL: config.UserInfoURL,
		client:      newHTTPClient(config.HTTPClient),
	}
}

func (p *GoogleOAuthProvider) Provider() model.Provider { return model.ProviderGoogle }

func (p *GoogleOAuthProvider) Configured() bool {
	return p.oauth.ClientID != "" && p.oauth.ClientSecret != "" && p.oauth.RedirectURL != ""
}

// AuthCodeURL requests offline access and forces the consent screen so a refresh token is issued.
func (p *GoogleOAuthProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ExchangeCode trades code for tokens and reads the userinfo endpoint.
// An unverified email is rejected since email is the account merge key.
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	tok, err := exchange(ctx, p.oauth, p.client, code)
	if err != nil {
		return nil, err
	}

	var info googleUserInfo
	if err := getJSON(ctx, p.client, p.userInfoURL, tok.AccessToken, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	if info.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}
	if info.Email == "" {
		return nil, fmt.Errorf("google account has no email")
	}
	if info.EmailVerified != nil && !*info.EmailVerified {
		return nil, fmt.Errorf("google email is not verified")
	}

	return &OAuthUserInfo{
		Provider:       model.ProviderGoogle,
		ProviderUserID: info.Sub,
		Email:          info.Email,
		Name:           info.Name,
		AvatarURL:      info.Picture,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		ExpiresAt:      tokenExpiry(tok),
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
