package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// ErrProviderNotImplemented is returned for provider names outside the
// hardcoded table.
var ErrProviderNotImplemented = errors.New("oauth2 provider not implemented")

// ProviderCredentials carries per-provider client configuration.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Profile is the normalized identity returned by a provider's userinfo
// endpoint.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type providerSpec struct {
	endpoint    oauth2.Endpoint
	scopes      []string
	userInfoURL string
}

// knownProviders is the closed table of supported external identity
// providers.
var knownProviders = map[string]providerSpec{
	"google": {
		endpoint:    endpoints.Google,
		scopes:      []string{"openid", "profile", "email"},
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
	},
	"facebook": {
		endpoint:    endpoints.Facebook,
		scopes:      []string{"public_profile", "email"},
		userInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture",
	},
	"github": {
		endpoint:    endpoints.GitHub,
		scopes:      []string{"read:user", "user:email"},
		userInfoURL: "https://api.github.com/user",
	},
}

// providerConfig builds the oauth2 client for a known provider name.
func providerConfig(provider string, creds ProviderCredentials) (*oauth2.Config, string, error) {
	spec, ok := knownProviders[provider]
	if !ok || creds.ClientID == "" {
		return nil, "", ErrProviderNotImplemented
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     spec.endpoint,
		RedirectURL:  creds.RedirectURL,
		Scopes:       spec.scopes,
	}, spec.userInfoURL, nil
}

// fetchProfile reads the provider's userinfo endpoint with the exchanged
// access token.
func fetchProfile(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, userInfoURL string) (*Profile, error) {
	client := cfg.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}
	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &profile, nil
}
