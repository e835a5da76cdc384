package service

import (
	"strings"

	"github.com/aicacia/go-auth/internal/apierrors"
)

// GrantType is the closed set of token grant types.
type GrantType string

const (
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantServiceAccount    GrantType = "service_account"
	GrantAuthorizationCode GrantType = "authorization_code"
)

// ParseGrantType maps a request's grant_type field onto the closed set.
func ParseGrantType(value string) (GrantType, error) {
	switch GrantType(strings.ToLower(strings.TrimSpace(value))) {
	case GrantPassword:
		return GrantPassword, nil
	case GrantRefreshToken:
		return GrantRefreshToken, nil
	case GrantServiceAccount:
		return GrantServiceAccount, nil
	case GrantAuthorizationCode:
		return GrantAuthorizationCode, nil
	}
	return "", apierrors.Invalid("grant_type")
}

// TokenRequest is the grant-discriminated body of POST /token.
type TokenRequest struct {
	GrantType    string `json:"grant_type" binding:"required"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

// Issued-token-type provenance labels carried in TokenBundle.
const (
	TokenTypeBearer = "bearer"

	IssuedTokenTypeAccess            = "urn:ietf:params:oauth:token-type:access_token"
	IssuedTokenTypeID                = "urn:ietf:params:oauth:token-type:id_token"
	IssuedTokenTypeResetPassword     = "urn:x-auth:params:oauth:token-type:reset_password"
	IssuedTokenTypeMFATOTP           = "urn:x-auth:params:oauth:token-type:mfa_totp"
	IssuedTokenTypeMFAServiceAccount = "urn:x-auth:params:oauth:token-type:mfa_service_account"
)

// TokenBundle is the response of every successful issuance, including the
// non-terminal reset-password and MFA step-up outcomes.
type TokenBundle struct {
	AccessToken           string  `json:"access_token"`
	TokenType             string  `json:"token_type"`
	IssuedTokenType       string  `json:"issued_token_type"`
	ExpiresIn             int64   `json:"expires_in"`
	Scope                 *string `json:"scope,omitempty"`
	RefreshToken          *string `json:"refresh_token,omitempty"`
	RefreshTokenExpiresIn *int64  `json:"refresh_token_expires_in,omitempty"`
	IDToken               *string `json:"id_token,omitempty"`
}

// StepUp reports whether the bundle is a non-terminal MFA step-up outcome.
func (b *TokenBundle) StepUp() bool {
	return b.IssuedTokenType == IssuedTokenTypeMFATOTP ||
		b.IssuedTokenType == IssuedTokenTypeMFAServiceAccount
}

// parseScopes splits a space-delimited scope string preserving order and
// dropping duplicates.
func parseScopes(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	scopes := make([]string, 0, len(fields))
	for _, s := range fields {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}
	return scopes
}

// intersectScopes keeps requested scopes that were previously granted; an
// empty request keeps the full grant.
func intersectScopes(requested, granted []string) []string {
	if len(requested) == 0 {
		return granted
	}
	allowed := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		allowed[s] = struct{}{}
	}
	var scopes []string
	for _, s := range requested {
		if _, ok := allowed[s]; ok {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func trimLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func joinScopes(scopes []string) *string {
	if len(scopes) == 0 {
		return nil
	}
	joined := strings.Join(scopes, " ")
	return &joined
}
