package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-accounts"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubConfig configures the GitHub provider. Endpoint and APIBaseURL are
// only set for GitHub Enterprise or tests.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	APIBaseURL   string
	HTTPClient   *http.Client
}

// GitHub resolves the identity through the REST user and emails endpoints.
type GitHub struct {
	oauth  *oauth2.Config
	api    string
	client *http.Client
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func NewGitHub(cfg GitHubConfig) *GitHub {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}

	api := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if api == "" {
		api = defaultGitHubAPI
	}

	return &GitHub{
		api:    api,
		client: cfg.HTTPClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
	}
}

func (p *GitHub) Name() string { return "github" }

func (p *GitHub) DisplayName() string { return "GitHub" }

func (p *GitHub) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(state, AuthCodeOptions(codeChallenge)...)
}

func (p *GitHub) Exchange(ctx context.Context, code, codeVerifier string) (*accounts.ExternalLoginInfo, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}

	token, err := p.oauth.Exchange(ctx, code, ExchangeOptions(codeVerifier)...)
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, newProviderError(p.Name(), "exchange", err))
	}

	client := p.oauth.Client(ctx, token)

	var user githubUser
	if err := p.get(ctx, client, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, wrapProviderError(ErrMissingClaims, &ProviderError{
			Provider:    p.Name(),
			Operation:   "user_info",
			Code:        "missing_id",
			Description: "user response has no id",
		})
	}

	email, verified := user.Email, false
	var emails []githubEmail
	if err := p.get(ctx, client, "/user/emails", &emails); err == nil {
		for _, e := range emails {
			if e.Primary {
				email, verified = e.Email, e.Verified
				break
			}
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &accounts.ExternalLoginInfo{
		Provider:            p.Name(),
		ProviderKey:         strconv.FormatInt(user.ID, 10),
		ProviderDisplayName: p.DisplayName(),
		Email:               email,
		EmailVerified:       verified,
		Name:                name,
		Tokens:              TokensFrom(token),
	}, nil
}

func (p *GitHub) get(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.api+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return wrapProviderError(ErrUserInfoFailed, newProviderError(p.Name(), "user_info", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wrapProviderError(ErrUserInfoFailed, &ProviderError{
			Provider:    p.Name(),
			Operation:   "user_info",
			Status:      resp.StatusCode,
			Description: fmt.Sprintf("GET %s returned %d", path, resp.StatusCode),
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return wrapProviderError(ErrUserInfoFailed, newProviderError(p.Name(), "user_info", err))
	}
	return nil
}
