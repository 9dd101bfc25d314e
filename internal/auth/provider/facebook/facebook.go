package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	oauthfacebook "golang.org/x/oauth2/facebook"

	"github.com/sweenec/Secrets/internal/auth"
	"github.com/sweenec/Secrets/internal/logger"
)

const (
	providerName = "facebook"

	// Facebook has no OIDC discovery; identity comes from the Graph API.
	userInfoURL = "https://graph.facebook.com/v19.0/me?fields=id,name,email"
)

// Provider implements OAuth authentication against Facebook. Unlike
// google, there is no id_token to verify: the profile is fetched from
// the Graph API with the access token obtained in the code exchange.
type Provider struct {
	oauthConfig *oauth2.Config
}

func New(
	clientID string,
	clientSecret string,
	redirectURL string,
) (*Provider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("facebook oauth config missing required fields")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     oauthfacebook.Endpoint,
		Scopes: []string{
			"public_profile",
			"email",
		},
	}

	return &Provider{oauthConfig: oauthCfg}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Identity, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("facebook token exchange failed: %w", err)
	}

	client := p.oauthConfig.Client(ctx, token)

	resp, err := client.Get(userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("facebook userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook userinfo returned status %d", resp.StatusCode)
	}

	var profile struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("facebook userinfo decode failed: %w", err)
	}

	if profile.ID == "" {
		return nil, errors.New("facebook userinfo missing id")
	}

	logger.Info("facebook profile fetched", map[string]any{
		"subject_present": profile.ID != "",
		"email_present":   profile.Email != "",
		"name_present":    profile.Name != "",
	})

	return &auth.Identity{
		Provider:       providerName,
		ProviderUserID: profile.ID,
		Email:          profile.Email,
		// Facebook does not assert email ownership the way OIDC providers
		// do, so the email is treated as unverified.
		EmailVerified: false,
		Name:          profile.Name,
	}, nil
}
