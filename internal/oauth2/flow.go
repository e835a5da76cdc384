package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/aicacia/go-auth/internal/domain"
)

// ErrCallbackUnauthorized covers every state failure on callback: unknown,
// already consumed, expired, or malformed. Callers cannot tell these cases
// apart.
var ErrCallbackUnauthorized = errors.New("oauth2 callback unauthorized")

// StatePayload is embedded in the CSRF state token issued at authorize time.
type StatePayload struct {
	Nonce          string    `json:"nonce"`
	TenantClientID uuid.UUID `json:"tenant_client_id"`
	// UserID is set when an authenticated caller links an external identity.
	UserID   *int64 `json:"user_id,omitempty"`
	Register bool   `json:"register"`
}

// LinkFlow builds provider authorize URLs and completes code exchanges. It
// signs nothing itself; it owns the PKCE correlation store.
type LinkFlow struct {
	store  *PkceStore
	creds  map[string]ProviderCredentials
	logger *zap.Logger
}

// NewLinkFlow wires the flow with its injected correlation store and the
// per-provider client credentials.
func NewLinkFlow(store *PkceStore, creds map[string]ProviderCredentials, logger *zap.Logger) *LinkFlow {
	return &LinkFlow{store: store, creds: creds, logger: logger}
}

// Authorize builds the provider redirect URL carrying a PKCE challenge and a
// CSRF state token, and records the state/verifier pair.
func (f *LinkFlow) Authorize(provider string, tenant *domain.Tenant, register bool, linkingUserID *int64) (string, error) {
	cfg, _, err := providerConfig(provider, f.creds[provider])
	if err != nil {
		return "", err
	}

	nonce, err := randomToken(16)
	if err != nil {
		return "", fmt.Errorf("generate state nonce: %w", err)
	}
	state, err := encodeState(StatePayload{
		Nonce:          nonce,
		TenantClientID: tenant.ClientID,
		UserID:         linkingUserID,
		Register:       register,
	})
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	f.store.Insert(state, verifier)

	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Callback atomically consumes the stored verifier for state, exchanges the
// code with the provider, and fetches the provider profile. A given state
// succeeds at most once.
func (f *LinkFlow) Callback(ctx context.Context, provider, state, code string) (*Profile, *StatePayload, error) {
	cfg, userInfoURL, err := providerConfig(provider, f.creds[provider])
	if err != nil {
		return nil, nil, err
	}

	verifier, ok := f.store.Take(state)
	if !ok {
		return nil, nil, ErrCallbackUnauthorized
	}
	payload, err := decodeState(state)
	if err != nil {
		return nil, nil, ErrCallbackUnauthorized
	}

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		f.logger.Warn("oauth2 code exchange failed", zap.String("provider", provider), zap.Error(err))
		return nil, nil, ErrCallbackUnauthorized
	}

	profile, err := fetchProfile(ctx, cfg, token, userInfoURL)
	if err != nil {
		f.logger.Warn("oauth2 userinfo fetch failed", zap.String("provider", provider), zap.Error(err))
		return nil, nil, ErrCallbackUnauthorized
	}
	return profile, payload, nil
}

func encodeState(payload StatePayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeState(state string) (*StatePayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return nil, err
	}
	var payload StatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
