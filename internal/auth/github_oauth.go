package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/buildwise/backend/internal/model"
)

const defaultGitHubAPIURL = "https://api.github.com"

var githubScopes = []string{"read:user", "user:email"}

// GitHubOAuthConfig configures the GitHub provider.
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// overridable in tests
	AuthURL    string
	TokenURL   string
	APIURL     string
	HTTPClient *http.Client
}

// GitHubOAuthProvider authenticates with GitHub OAuth.
type GitHubOAuthProvider struct {
	oauth  *oauth2.Config
	apiURL string
	client *http.Client
}

// NewGitHubOAuthProvider creates a GitHubOAuthProvider.
func NewGitHubOAuthProvider(config GitHubOAuthConfig) *GitHubOAuthProvider {
	endpoint := endpoints.GitHub
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	if config.APIURL == "" {
		config.APIURL = defaultGitHubAPIURL
	}

	return &GitHubOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       githubScopes,
		},
		apiURL: config.APIURL,
		client: newHTTPClient(config.HTTPClient),
	}
}

func (p *GitHubOAuthProvider) Provider() model.Provider { return model.ProviderGitHub }

func (p *GitHubOAuthProvider) Configured() bool {
	return p.oauth.ClientID != "" && p.oauth.ClientSecret != "" && p.oauth.RedirectURL != ""
}

func (p *GitHubOAuthProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ExchangeCode trades code for a token and reads /user.
// When the public profile hides the email, /user/emails supplies it.
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	tok, err := exchange(ctx, p.oauth, p.client, code)
	if err != nil {
		return nil, err
	}

	var user githubUser
	if err := getJSON(ctx, p.client, p.apiURL+"/user", tok.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("empty id in user response")
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := getJSON(ctx, p.client, p.apiURL+"/user/emails", tok.AccessToken, &emails); err != nil {
			return nil, fmt.Errorf("failed to fetch user emails: %w", err)
		}
		email = pickGitHubEmail(emails)
	}
	if email == "" {
		return nil, fmt.Errorf("github account has no verified email")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	// GitHub OAuth app tokens carry no refresh token and no expiry
	return &OAuthUserInfo{
		Provider:       model.ProviderGitHub,
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
		Name:           name,
		AvatarURL:      user.AvatarURL,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		ExpiresAt:      tokenExpiry(tok),
	}, nil
}

// pickGitHubEmail returns the primary verified address, then any verified one.
// Unverified addresses are never used since email is the account merge key.
func pickGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
