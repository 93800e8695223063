package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jaevor/go-nanoid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/mikejsmtih1985/mbl2pc/internal/config"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	stateLength       = 32
)

// Provider is the external identity provider used by the login flow.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.User, error)
}

type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg config.AuthConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the authorization code for a token and loads the profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*models.User, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if user.Sub == "" {
		return nil, fmt.Errorf("userinfo has no subject")
	}
	return &user, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	generate, err := nanoid.Standard(stateLength)
	if err != nil {
		return "", fmt.Errorf("failed to create state generator: %w", err)
	}
	return generate(), nil
}
